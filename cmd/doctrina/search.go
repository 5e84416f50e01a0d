package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
)

// runSearch queries the index and prints ranked results
func runSearch(args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to TOML configuration file")
	library := fs.String("library", "", "Library to search")
	version := fs.String("version", "", "Version to search (empty = best available)")
	limit := fs.Int("limit", 10, "Maximum number of results")
	if err := fs.Parse(args); err != nil {
		return err
	}
	query := strings.Join(fs.Args(), " ")

	a, _, err := loadApp(*configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.Docs.Search(context.Background(), *library, *version, query, *limit)
	if err != nil {
		return err
	}

	if resp.NotFound != nil {
		fmt.Printf("version %q of %s is not indexed\n", resp.NotFound.Requested, *library)
		if len(resp.NotFound.Available) > 0 {
			fmt.Printf("available: %s\n", strings.Join(resp.NotFound.Available, ", "))
		}
		if resp.NotFound.HasUnversioned {
			fmt.Println("an unversioned index exists, retry without -version")
		}
		return nil
	}

	if len(resp.Results) == 0 {
		fmt.Printf("no results for %q in %s@%s\n", query, resp.Library, displayVersion(resp.Version))
		return nil
	}

	fmt.Printf("%s@%s: %d results for %q\n\n", resp.Library, displayVersion(resp.Version), len(resp.Results), query)
	for _, r := range resp.Results {
		title := r.Metadata.Title
		if title == "" {
			title = r.URL
		}
		fmt.Printf("%d. %s (score %.4f)\n", r.Rank, title, r.Score)
		if r.URL != "" {
			fmt.Printf("   %s\n", r.URL)
		}
		fmt.Printf("   %s\n\n", snippet(r.Content, 200))
	}
	return nil
}

// snippet returns the first n bytes of content collapsed onto one line
func snippet(content string, n int) string {
	content = strings.Join(strings.Fields(content), " ")
	if len(content) <= n {
		return content
	}
	if cut := strings.LastIndexByte(content[:n], ' '); cut > 0 {
		return content[:cut] + "..."
	}
	return content[:n] + "..."
}
