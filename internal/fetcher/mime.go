package fetcher

import (
	"path"
	"strings"
)

// textExtensions is the allow-list of file extensions treated as indexable
// text. The GitHub strategy uses the same table to filter tree entries.
var textExtensions = map[string]string{
	// docs
	".md": "text/markdown", ".mdx": "text/markdown", ".txt": "text/plain",
	".rst": "text/x-rst", ".adoc": "text/asciidoc", ".asciidoc": "text/asciidoc",
	".html": "text/html", ".htm": "text/html", ".xml": "application/xml",
	// styles
	".css": "text/css", ".scss": "text/x-scss", ".sass": "text/x-sass", ".less": "text/x-less",
	// code
	".js": "text/javascript", ".jsx": "text/javascript", ".ts": "text/x-typescript", ".tsx": "text/x-typescript",
	".py": "text/x-python", ".java": "text/x-java", ".c": "text/x-c", ".cpp": "text/x-c++",
	".cc": "text/x-c++", ".cxx": "text/x-c++", ".h": "text/x-c", ".hpp": "text/x-c++",
	".cs": "text/x-csharp", ".go": "text/x-go", ".rs": "text/x-rust", ".rb": "text/x-ruby",
	".php": "text/x-php", ".swift": "text/x-swift", ".kt": "text/x-kotlin", ".scala": "text/x-scala",
	".clj": "text/x-clojure", ".cljs": "text/x-clojure", ".hs": "text/x-haskell", ".elm": "text/x-elm",
	".dart": "text/x-dart", ".r": "text/x-r", ".m": "text/x-objective-c", ".mm": "text/x-objective-c",
	// shell
	".sh": "text/x-shellscript", ".bash": "text/x-shellscript", ".zsh": "text/x-shellscript",
	".fish": "text/x-shellscript", ".ps1": "text/x-powershell", ".bat": "text/x-batch", ".cmd": "text/x-batch",
	// config / data
	".json": "application/json", ".yaml": "text/x-yaml", ".yml": "text/x-yaml",
	".toml": "text/x-toml", ".ini": "text/plain", ".cfg": "text/plain", ".conf": "text/plain",
	".properties": "text/plain", ".env": "text/plain",
	".gitignore": "text/plain", ".dockerignore": "text/plain", ".gitattributes": "text/plain",
	".editorconfig": "text/plain",
	// build
	".gradle": "text/plain", ".pom": "application/xml", ".sbt": "text/x-scala", ".maven": "text/plain",
	".cmake": "text/plain", ".make": "text/x-makefile", ".dockerfile": "text/x-dockerfile",
	".mod": "text/plain", ".sum": "text/plain",
	// query / schema
	".sql": "text/x-sql", ".graphql": "text/x-graphql", ".gql": "text/x-graphql",
	".proto": "text/x-protobuf", ".thrift": "text/plain", ".avro": "application/json",
	// tabular / logs
	".csv": "text/csv", ".tsv": "text/tab-separated-values", ".log": "text/plain",
}

// extensionlessTextFiles are common documentation/build files without an
// extension, matched case-insensitively on the basename.
var extensionlessTextFiles = map[string]bool{
	"readme": true, "license": true, "changelog": true, "contributing": true,
	"authors": true, "maintainers": true, "code_of_conduct": true,
	"dockerfile": true, "makefile": true, "rakefile": true, "gemfile": true,
	"podfile": true, "cartfile": true, "brewfile": true, "procfile": true,
	"vagrantfile": true, "gulpfile": true, "gruntfile": true,
}

// dotfileRoots match rc-style config files, including suffixed variants like
// .prettierrc.js.
var dotfileRoots = []string{".prettierrc", ".eslintrc", ".babelrc", ".nvmrc", ".npmrc"}

// MimeTypeForPath derives a MIME type from the file extension. Unknown
// extensions yield application/octet-stream.
func MimeTypeForPath(filePath string) string {
	ext := strings.ToLower(path.Ext(filePath))
	if mimeType, ok := textExtensions[ext]; ok {
		return mimeType
	}
	base := strings.ToLower(path.Base(filePath))
	if extensionlessTextFiles[base] {
		return "text/plain"
	}
	return "application/octet-stream"
}

// IsTextFilePath reports whether the path names an indexable text file per the
// allow-list: known extension, known extensionless file, rc-style dotfile, or
// one of the compound triggers (.env., .config., .lock).
func IsTextFilePath(filePath string) bool {
	base := strings.ToLower(path.Base(filePath))
	ext := strings.ToLower(path.Ext(filePath))

	if _, ok := textExtensions[ext]; ok {
		return true
	}
	if extensionlessTextFiles[base] {
		return true
	}
	for _, root := range dotfileRoots {
		if base == root || strings.HasPrefix(base, root+".") {
			return true
		}
	}
	// Compound triggers
	if strings.Contains(base, ".env.") || strings.HasSuffix(base, ".env") {
		return true
	}
	if strings.Contains(base, ".config.") {
		return true
	}
	if strings.Contains(base, ".lock") {
		return true
	}
	return false
}

// LanguageForPath returns the fenced-code-block language tag for a source
// file, or "" when none applies.
func LanguageForPath(filePath string) string {
	ext := strings.ToLower(path.Ext(filePath))
	switch ext {
	case ".js", ".jsx":
		return "javascript"
	case ".ts", ".tsx":
		return "typescript"
	case ".py":
		return "python"
	case ".rb":
		return "ruby"
	case ".rs":
		return "rust"
	case ".kt":
		return "kotlin"
	case ".cs":
		return "csharp"
	case ".cc", ".cxx", ".cpp", ".hpp":
		return "cpp"
	case ".yml", ".yaml":
		return "yaml"
	case ".sh", ".bash", ".zsh", ".fish":
		return "bash"
	case ".gql", ".graphql":
		return "graphql"
	case ".dockerfile":
		return "dockerfile"
	case "":
		if strings.EqualFold(path.Base(filePath), "dockerfile") {
			return "dockerfile"
		}
		if strings.EqualFold(path.Base(filePath), "makefile") {
			return "makefile"
		}
		return ""
	default:
		return strings.TrimPrefix(ext, ".")
	}
}
