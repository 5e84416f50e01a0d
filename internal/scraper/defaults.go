package scraper

// DefaultExcludePatterns apply when the caller passes no exclude list.
// Passing an explicit empty list disables them. Regex entries are wrapped in
// slashes; the rest are globs.
var DefaultExcludePatterns = []string{
	// Repo boilerplate
	"CHANGELOG.*",
	"changelog.*",
	"/(^|/)LICENSE(\\.md|\\.txt)?$/",
	"/(^|/)license(\\.md|\\.txt)?$/",
	"CODE_OF_CONDUCT.*",

	// Test fixtures
	"**/*.test.*",
	"**/*.spec.*",
	"**/*_test.py",
	"**/*_test.go",

	// Lock files
	"package-lock.json",
	"yarn.lock",
	"pnpm-lock.yaml",
	"Cargo.lock",
	"poetry.lock",
	"Pipfile.lock",
	"Gemfile.lock",
	"composer.lock",
	"go.sum",

	// Minified assets
	"*.min.js",
	"*.min.css",
	"*.map",

	// IDE and system files
	".DS_Store",
	"Thumbs.db",
	"**/.vscode/**",
	"**/.idea/**",

	// Stale content folders
	"**/archive/**",
	"**/archived/**",
	"**/deprecated/**",
	"**/legacy/**",
	"**/old/**",
	"**/outdated/**",
	"**/previous/**",
	"**/superseded/**",

	// Build outputs
	"**/dist/**",
	"**/build/**",
	"**/out/**",
	"**/target/**",
	"**/.next/**",
	"**/.nuxt/**",

	// Non-English locale trees. RE2 has no lookahead, so "two-letter code
	// other than en" is spelled out as an alternation.
	"/\\/i18n\\/(?:[a-df-z][a-z]|e[a-mo-z])(?:[-_][A-Za-z0-9]+)?\\//",
	"/(^|\\/)zh-(cn|tw|hk|mo|sg)(\\/|$)/",
}
