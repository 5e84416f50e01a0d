package scraper

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/doctrina/internal/common"
	"github.com/ternarybob/doctrina/internal/models"
	"github.com/ternarybob/doctrina/internal/pipeline"

	"github.com/ternarybob/doctrina/internal/fetcher"
)

func newTestLocalStrategy(t *testing.T) *LocalStrategy {
	t.Helper()
	logger := common.GetLogger()
	pipelines := []pipeline.Pipeline{
		pipeline.NewMarkdownPipeline(logger),
		pipeline.NewSourcePipeline(logger),
		pipeline.NewTextPipeline(logger),
	}
	return NewLocalStrategy(fetcher.NewFileFetcher(logger), pipelines, logger)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLocalStrategyWalksDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "readme.md"), "# Readme\n\nTop doc.")
	writeFile(t, filepath.Join(dir, "guide", "intro.md"), "# Intro\n\nNested doc.")
	writeFile(t, filepath.Join(dir, ".hidden.md"), "# Hidden")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "binary.bin"), []byte{0x00, 0x01}, 0o644))

	s := newTestLocalStrategy(t)
	opts := models.DefaultScrapeOptions()
	opts.URL = "file://" + dir
	opts.Library = "local-lib"
	opts.ExcludePatterns = []string{}

	collector := &docCollector{}
	err := s.Scrape(context.Background(), &opts, collector.sink, nil)
	require.NoError(t, err)

	require.Len(t, collector.docs, 2)
	titles := []string{collector.docs[0].Metadata.Title, collector.docs[1].Metadata.Title}
	assert.Contains(t, titles, "Readme")
	assert.Contains(t, titles, "Intro")
	for _, doc := range collector.docs {
		assert.Equal(t, "local-lib", doc.Metadata.Library)
	}
}

func TestLocalStrategySingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	writeFile(t, path, "First line title\n\nBody text.")

	s := newTestLocalStrategy(t)
	opts := models.DefaultScrapeOptions()
	opts.URL = "file://" + path
	opts.Library = "local-lib"
	opts.ExcludePatterns = []string{}

	collector := &docCollector{}
	err := s.Scrape(context.Background(), &opts, collector.sink, nil)
	require.NoError(t, err)

	require.Len(t, collector.docs, 1)
	assert.Equal(t, "First line title", collector.docs[0].Metadata.Title)
}

func TestLocalStrategyScopeStaysUnderStart(t *testing.T) {
	root := t.TempDir()
	inside := filepath.Join(root, "docs")
	writeFile(t, filepath.Join(inside, "a.md"), "# A")
	writeFile(t, filepath.Join(root, "outside.md"), "# Outside")

	s := newTestLocalStrategy(t)
	opts := models.DefaultScrapeOptions()
	opts.URL = "file://" + inside
	opts.Library = "local-lib"
	opts.ExcludePatterns = []string{}

	collector := &docCollector{}
	err := s.Scrape(context.Background(), &opts, collector.sink, nil)
	require.NoError(t, err)

	require.Len(t, collector.docs, 1)
	assert.Equal(t, "A", collector.docs[0].Metadata.Title)
}

func TestLocalStrategyMissingPathFails(t *testing.T) {
	s := newTestLocalStrategy(t)
	opts := models.DefaultScrapeOptions()
	opts.URL = "file:///does/not/exist"
	opts.Library = "local-lib"
	opts.IgnoreErrors = false

	err := s.Scrape(context.Background(), &opts, (&docCollector{}).sink, nil)
	assert.Error(t, err)
}
