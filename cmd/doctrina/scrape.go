package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/ternarybob/doctrina/internal/models"
)

// runScrape enqueues one indexing job and waits for it to finish
func runScrape(args []string) error {
	fs := flag.NewFlagSet("scrape", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to TOML configuration file")
	rawURL := fs.String("url", "", "Documentation start URL (http, https, file or github)")
	library := fs.String("library", "", "Library name to index under")
	version := fs.String("version", "", "Version label (empty = unversioned)")
	scope := fs.String("scope", "", "Crawl scope: subpages, hostname or domain")
	mode := fs.String("mode", "", "Scrape mode: fetch, render or auto")
	maxPages := fs.Int("max-pages", 0, "Page limit for the crawl")
	maxDepth := fs.Int("max-depth", models.DefaultMaxDepth, "Link depth limit")
	follow := fs.Bool("follow-redirects", true, "Follow HTTP redirects")
	ignoreErrors := fs.Bool("ignore-errors", true, "Keep crawling past page errors")
	include := fs.String("include", "", "Comma separated URL glob patterns to include")
	exclude := fs.String("exclude", "", "Comma separated URL glob patterns to exclude")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, _, err := loadApp(*configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	a.Jobs.OnProgress = func(job models.Job) {
		if job.Progress.TotalPages > 0 {
			fmt.Printf("\r%s: %d/%d pages", job.Library, job.Progress.Pages, job.Progress.TotalPages)
		} else {
			fmt.Printf("\r%s: %d pages", job.Library, job.Progress.Pages)
		}
	}

	ctx := context.Background()
	if err := a.Start(ctx); err != nil {
		return err
	}

	opts := models.DefaultScrapeOptions()
	opts.URL = *rawURL
	opts.Library = *library
	opts.Version = *version
	opts.MaxDepth = *maxDepth
	opts.FollowRedirects = *follow
	opts.IgnoreErrors = *ignoreErrors
	opts.IncludePatterns = splitPatterns(*include)
	opts.ExcludePatterns = splitPatterns(*exclude)
	if *scope != "" {
		opts.Scope = models.ScopeMode(*scope)
	}
	if *mode != "" {
		opts.ScrapeMode = models.ScrapeMode(*mode)
	}
	if *maxPages > 0 {
		opts.MaxPages = *maxPages
	}

	job, err := a.Docs.Scrape(ctx, opts)
	if err != nil {
		return err
	}
	fmt.Printf("queued %s@%s as job %s\n", job.Library, displayVersion(job.Version), job.ID)

	if err := a.Docs.WaitForJob(ctx, job.ID); err != nil {
		fmt.Println()
		return err
	}

	if final, ok := a.Docs.GetJob(job.ID); ok {
		fmt.Printf("\nindexed %d pages for %s@%s\n", final.Progress.Pages, final.Library, displayVersion(final.Version))
	}
	return nil
}

func splitPatterns(s string) []string {
	if s == "" {
		return nil
	}
	var patterns []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}
	return patterns
}

func displayVersion(v string) string {
	if v == "" {
		return "unversioned"
	}
	return v
}
