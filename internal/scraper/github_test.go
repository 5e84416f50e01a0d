package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-github/v57/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/doctrina/internal/common"
	"github.com/ternarybob/doctrina/internal/fetcher"
	"github.com/ternarybob/doctrina/internal/models"
	"github.com/ternarybob/doctrina/internal/pipeline"
)

// stubFetcher returns canned content for any URL
type stubFetcher struct {
	content  string
	mimeType string
	lastURL  string
}

func (f *stubFetcher) CanHandle(source string) bool { return true }

func (f *stubFetcher) Fetch(ctx context.Context, source string, opts *fetcher.Options) (*models.RawContent, error) {
	f.lastURL = source
	return &models.RawContent{
		Content:  []byte(f.content),
		MimeType: f.mimeType,
		Source:   source,
	}, nil
}

func newMockedGitHubStrategy(t *testing.T, apiURL string, raw fetcher.Fetcher) *GitHubStrategy {
	t.Helper()
	logger := common.GetLogger()
	client := github.NewClient(nil)
	base, err := url.Parse(apiURL + "/")
	require.NoError(t, err)
	client.BaseURL = base

	pipelines := []pipeline.Pipeline{
		pipeline.NewMarkdownPipeline(logger),
		pipeline.NewSourcePipeline(logger),
		pipeline.NewTextPipeline(logger),
	}
	return &GitHubStrategy{
		client:    client,
		fetcher:   raw,
		pipelines: pipelines,
		logger:    logger,
	}
}

func TestGitHubStrategyCanHandle(t *testing.T) {
	s := NewGitHubStrategy(nil, nil, "", common.GetLogger())

	assert.True(t, s.CanHandle("https://github.com/owner/repo"))
	assert.True(t, s.CanHandle("https://github.com/owner/repo/tree/develop"))
	assert.True(t, s.CanHandle("https://www.github.com/owner/repo.git"))
	assert.False(t, s.CanHandle("https://github.com/owner"))
	assert.False(t, s.CanHandle("https://raw.githubusercontent.com/owner/repo/main/README.md"))
	assert.False(t, s.CanHandle("https://gitlab.com/owner/repo"))
}

func TestParseRepoURL(t *testing.T) {
	owner, repo, branch, err := parseRepoURL("https://github.com/acme/widgets/tree/v2/docs")
	require.NoError(t, err)
	assert.Equal(t, "acme", owner)
	assert.Equal(t, "widgets", repo)
	assert.Equal(t, "v2", branch)

	owner, repo, branch, err = parseRepoURL("https://github.com/acme/widgets")
	require.NoError(t, err)
	assert.Equal(t, "acme", owner)
	assert.Equal(t, "widgets", repo)
	assert.Empty(t, branch)

	_, _, _, err = parseRepoURL("https://github.com/acme/widgets/wiki/Getting-Started")
	assert.Error(t, err)
}

func TestGitHubStrategyRejectsWikiURLs(t *testing.T) {
	s := NewGitHubStrategy(nil, nil, "", arbor.NewLogger())
	assert.True(t, s.CanHandle("https://github.com/acme/widgets"))
	assert.False(t, s.CanHandle("https://github.com/acme/widgets/wiki"))
	assert.False(t, s.CanHandle("https://github.com/acme/widgets/wiki/Home"))
}

func TestGitHubStrategyTreeWalk(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"repo","default_branch":"main"}`))
	})
	mux.HandleFunc("/repos/owner/repo/git/trees/main", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("recursive"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sha":"abc","tree":[
			{"path":"README.md","type":"blob"},
			{"path":".dockerignore","type":"blob"},
			{"path":"src/main.js","type":"blob"},
			{"path":"image.png","type":"blob"},
			{"path":"package.json","type":"blob"},
			{"path":"src","type":"tree"}
		]}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	s := newMockedGitHubStrategy(t, server.URL, &stubFetcher{})
	ref := &repoRef{}
	result, err := s.processRepo(context.Background(), ref, "https://github.com/owner/repo")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"github-file://README.md",
		"github-file://.dockerignore",
		"github-file://src/main.js",
		"github-file://package.json",
	}, result.links)
	assert.Nil(t, result.document)
	assert.Equal(t, "main", ref.branch)
}

func TestGitHubStrategyBranchInURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/git/trees/dev", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sha":"abc","tree":[{"path":"docs/guide.md","type":"blob"}]}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	s := newMockedGitHubStrategy(t, server.URL, &stubFetcher{})
	ref := &repoRef{}
	result, err := s.processRepo(context.Background(), ref, "https://github.com/owner/repo/tree/dev")
	require.NoError(t, err)

	assert.Equal(t, []string{"github-file://docs/guide.md"}, result.links)
	assert.Equal(t, "dev", ref.branch)
}

func TestGitHubStrategyDefaultBranchFallback(t *testing.T) {
	mux := http.NewServeMux()
	// Repo lookup 404s; tree for main still served
	mux.HandleFunc("/repos/owner/repo/git/trees/main", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sha":"abc","tree":[{"path":"README.md","type":"blob"}]}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	s := newMockedGitHubStrategy(t, server.URL, &stubFetcher{})
	ref := &repoRef{}
	result, err := s.processRepo(context.Background(), ref, "https://github.com/owner/repo")
	require.NoError(t, err)
	assert.Equal(t, "main", ref.branch)
	assert.Len(t, result.links, 1)
}

func TestGitHubStrategyProcessFile(t *testing.T) {
	raw := &stubFetcher{content: "const x = 1;\n", mimeType: "text/plain"}
	s := newMockedGitHubStrategy(t, "http://unused.invalid", raw)

	ref := &repoRef{owner: "owner", repo: "repo", branch: "main"}
	opts := &models.ScrapeOptions{Library: "widgets", Version: "2.0.0"}

	result, err := s.processFile(context.Background(), opts, ref, "src/main.js")
	require.NoError(t, err)
	require.NotNil(t, result.document)

	doc := result.document
	assert.Equal(t, "https://raw.githubusercontent.com/owner/repo/main/src/main.js", raw.lastURL)
	assert.Equal(t, "https://github.com/owner/repo/blob/main/src/main.js", doc.URL)
	assert.Equal(t, "main.js", doc.Metadata.Title)
	assert.Equal(t, "src/main.js", doc.Metadata.Path)
	assert.Equal(t, "widgets", doc.Metadata.Library)
	// text/plain from the raw host is overridden by the extension type and
	// the content arrives fenced with a language tag
	assert.Equal(t, "text/javascript", doc.Metadata.ContentType)
	assert.Contains(t, doc.Content, "```javascript")
	assert.Empty(t, result.links)
}
