// -----------------------------------------------------------------------
// GitHub Strategy - API tree walk over a repository's text files
// -----------------------------------------------------------------------

package scraper

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/google/go-github/v57/github"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/doctrina/internal/fetcher"
	"github.com/ternarybob/doctrina/internal/models"
	"github.com/ternarybob/doctrina/internal/pipeline"
	"golang.org/x/oauth2"
)

// GitHubStrategy indexes a repository by walking its git tree and fetching
// raw file contents
type GitHubStrategy struct {
	client    *github.Client
	fetcher   fetcher.Fetcher
	pipelines []pipeline.Pipeline
	logger    arbor.ILogger
}

// repoRef is the repository coordinates resolved at depth 0 and shared with
// the file items of the same crawl
type repoRef struct {
	mu     sync.Mutex
	owner  string
	repo   string
	branch string
}

// NewGitHubStrategy creates a GitHub strategy. A non-empty token raises the
// API rate limit; anonymous access works for public repositories.
func NewGitHubStrategy(httpFetcher fetcher.Fetcher, pipelines []pipeline.Pipeline, token string, logger arbor.ILogger) *GitHubStrategy {
	var client *github.Client
	if token != "" {
		source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		client = github.NewClient(oauth2.NewClient(context.Background(), source))
	} else {
		client = github.NewClient(nil)
	}

	return &GitHubStrategy{
		client:    client,
		fetcher:   httpFetcher,
		pipelines: pipelines,
		logger:    logger,
	}
}

// CanHandle accepts github.com repository URLs
func (s *GitHubStrategy) CanHandle(rawURL string) bool {
	_, _, _, err := parseRepoURL(rawURL)
	return err == nil
}

// Scrape walks the repository tree and indexes each text file
func (s *GitHubStrategy) Scrape(ctx context.Context, opts *models.ScrapeOptions, sink Sink, progress ProgressFunc) error {
	ref := &repoRef{}
	c, err := newCrawl(opts, s.processItem(opts, ref), sink, progress, s.logger)
	if err != nil {
		return err
	}
	return c.run(ctx)
}

func (s *GitHubStrategy) processItem(opts *models.ScrapeOptions, ref *repoRef) itemProcessor {
	return func(ctx context.Context, item queueItem) (*processResult, error) {
		if filePath, ok := strings.CutPrefix(item.url, syntheticScheme); ok {
			return s.processFile(ctx, opts, ref, filePath)
		}
		return s.processRepo(ctx, ref, item.url)
	}
}

// processRepo resolves the branch and lists the tree, emitting one synthetic
// link per text-like blob
func (s *GitHubStrategy) processRepo(ctx context.Context, ref *repoRef, repoURL string) (*processResult, error) {
	owner, repo, branch, err := parseRepoURL(repoURL)
	if err != nil {
		return nil, models.NewToolError("%s", err.Error())
	}

	if branch == "" {
		branch = s.defaultBranch(ctx, owner, repo)
	}

	ref.mu.Lock()
	ref.owner, ref.repo, ref.branch = owner, repo, branch
	ref.mu.Unlock()

	tree, _, err := s.client.Git.GetTree(ctx, owner, repo, branch, true)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &models.CancellationError{Cause: ctx.Err()}
		}
		return nil, models.NewScraperError(fmt.Sprintf("failed to list tree of %s/%s@%s", owner, repo, branch), true, err)
	}

	var links []string
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" {
			continue
		}
		if !fetcher.IsTextFilePath(entry.GetPath()) {
			continue
		}
		links = append(links, syntheticScheme+entry.GetPath())
	}

	s.logger.Info().
		Str("repo", owner+"/"+repo).
		Str("branch", branch).
		Int("tree_entries", len(tree.Entries)).
		Int("text_files", len(links)).
		Bool("truncated", tree.GetTruncated()).
		Msg("Repository tree listed")

	return &processResult{links: links, finalURL: repoURL}, nil
}

// defaultBranch asks the API for the repository's default branch, falling
// back to main when the lookup fails
func (s *GitHubStrategy) defaultBranch(ctx context.Context, owner, repo string) string {
	repository, _, err := s.client.Repositories.Get(ctx, owner, repo)
	if err != nil || repository.GetDefaultBranch() == "" {
		s.logger.Warn().Str("repo", owner+"/"+repo).Err(err).Msg("Repository lookup failed, assuming branch main")
		return "main"
	}
	return repository.GetDefaultBranch()
}

// processFile fetches one blob from raw.githubusercontent.com and runs it
// through the matching pipeline
func (s *GitHubStrategy) processFile(ctx context.Context, opts *models.ScrapeOptions, ref *repoRef, filePath string) (*processResult, error) {
	ref.mu.Lock()
	owner, repo, branch := ref.owner, ref.repo, ref.branch
	ref.mu.Unlock()

	rawURL := fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s/%s", owner, repo, branch, filePath)

	raw, err := s.fetcher.Fetch(ctx, rawURL, &fetcher.Options{FollowRedirects: true, Headers: opts.Headers})
	if err != nil {
		return nil, err
	}

	// raw.githubusercontent.com serves everything as text/plain
	if raw.MimeType == "text/plain" || raw.MimeType == "application/octet-stream" {
		if derived := fetcher.MimeTypeForPath(filePath); derived != "application/octet-stream" {
			raw.MimeType = derived
		}
	}

	p := pipeline.Select(s.pipelines, raw.MimeType)
	if p == nil {
		return &processResult{}, nil
	}
	raw.Source = rawURL
	processed, err := p.Process(ctx, raw)
	if err != nil {
		return nil, err
	}

	title := processed.Title
	if title == "" {
		title = path.Base(filePath)
	}

	blobURL := fmt.Sprintf("https://github.com/%s/%s/blob/%s/%s", owner, repo, branch, filePath)
	doc := &models.Document{
		URL:     blobURL,
		Content: processed.TextContent,
		Metadata: models.DocumentMetadata{
			Title:       title,
			Description: processed.Description,
			Path:        filePath,
			Library:     opts.Library,
			Version:     opts.Version,
			ContentType: raw.MimeType,
		},
	}
	// Tree files are flat; file-relative links never widen the crawl
	return &processResult{document: doc}, nil
}

// parseRepoURL extracts owner, repo and optional branch from a github.com URL
func parseRepoURL(rawURL string) (owner, repo, branch string, err error) {
	u, parseErr := url.Parse(rawURL)
	if parseErr != nil {
		return "", "", "", fmt.Errorf("invalid GitHub URL %q", rawURL)
	}
	host := strings.ToLower(u.Hostname())
	if host != "github.com" && host != "www.github.com" {
		return "", "", "", fmt.Errorf("not a github.com URL: %s", rawURL)
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 || segments[0] == "" || segments[1] == "" {
		return "", "", "", fmt.Errorf("GitHub URL %q must name owner/repo", rawURL)
	}
	// Wiki pages are ordinary HTML, not repo blobs; leave them to the web crawl
	if len(segments) >= 3 && segments[2] == "wiki" {
		return "", "", "", fmt.Errorf("GitHub wiki URL %q is not a repository", rawURL)
	}

	owner = segments[0]
	repo = strings.TrimSuffix(segments[1], ".git")
	if len(segments) >= 4 && segments[2] == "tree" {
		branch = segments[3]
	}
	return owner, repo, branch, nil
}
