package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createScrapeDocsTool returns the scrape_docs tool definition
func createScrapeDocsTool() mcp.Tool {
	return mcp.NewTool("scrape_docs",
		mcp.WithDescription("Queue a documentation crawl and index the result for search"),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Start URL (http, https, file or github repository URL)"),
		),
		mcp.WithString("library",
			mcp.Required(),
			mcp.Description("Library name to index under (e.g. react, django)"),
		),
		mcp.WithString("version",
			mcp.Description("Version label (e.g. 18.2.0); omit for unversioned"),
		),
		mcp.WithNumber("max_pages",
			mcp.Description("Page limit for the crawl (default: 1000)"),
		),
		mcp.WithNumber("max_depth",
			mcp.Description("Link depth limit (default: 3)"),
		),
		mcp.WithString("scope",
			mcp.Description("Crawl scope: subpages, hostname or domain (default: subpages)"),
		),
		mcp.WithString("scrape_mode",
			mcp.Description("Page loading: fetch, render or auto (default: auto)"),
		),
		mcp.WithBoolean("follow_redirects",
			mcp.Description("Follow HTTP redirects (default: true)"),
		),
		mcp.WithBoolean("ignore_errors",
			mcp.Description("Keep crawling past page errors (default: true)"),
		),
	)
}

// createSearchDocsTool returns the search_docs tool definition
func createSearchDocsTool() mcp.Tool {
	return mcp.NewTool("search_docs",
		mcp.WithDescription("Search indexed documentation with hybrid full-text and semantic ranking"),
		mcp.WithString("library",
			mcp.Required(),
			mcp.Description("Library to search"),
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query"),
		),
		mcp.WithString("version",
			mcp.Description("Version to search; partial versions like \"18\" resolve to the best match"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results to return (default: 10, max: 50)"),
		),
	)
}

// createListLibrariesTool returns the list_libraries tool definition
func createListLibrariesTool() mcp.Tool {
	return mcp.NewTool("list_libraries",
		mcp.WithDescription("List every indexed library with its versions, document counts and index status"),
	)
}

// createFindVersionTool returns the find_version tool definition
func createFindVersionTool() mcp.Tool {
	return mcp.NewTool("find_version",
		mcp.WithDescription("Resolve a version request (exact, partial or empty) to the best indexed version"),
		mcp.WithString("library",
			mcp.Required(),
			mcp.Description("Library to resolve against"),
		),
		mcp.WithString("version",
			mcp.Description("Requested version; omit to pick the unversioned index"),
		),
	)
}

// createListJobsTool returns the list_jobs tool definition
func createListJobsTool() mcp.Tool {
	return mcp.NewTool("list_jobs",
		mcp.WithDescription("List indexing jobs with status and progress"),
		mcp.WithString("status",
			mcp.Description("Filter: queued, running, completed, failed, cancelled"),
		),
	)
}

// createGetJobTool returns the get_job tool definition
func createGetJobTool() mcp.Tool {
	return mcp.NewTool("get_job",
		mcp.WithDescription("Get one indexing job by ID"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("Job ID returned by scrape_docs"),
		),
	)
}

// createCancelJobTool returns the cancel_job tool definition
func createCancelJobTool() mcp.Tool {
	return mcp.NewTool("cancel_job",
		mcp.WithDescription("Cancel a queued or running indexing job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("Job ID to cancel"),
		),
	)
}

// createRemoveDocsTool returns the remove_docs tool definition
func createRemoveDocsTool() mcp.Tool {
	return mcp.NewTool("remove_docs",
		mcp.WithDescription("Remove an indexed version and all of its documents"),
		mcp.WithString("library",
			mcp.Required(),
			mcp.Description("Library to remove from"),
		),
		mcp.WithString("version",
			mcp.Description("Version to remove; omit for the unversioned index"),
		),
	)
}

// createFetchURLTool returns the fetch_url tool definition
func createFetchURLTool() mcp.Tool {
	return mcp.NewTool("fetch_url",
		mcp.WithDescription("Fetch a single URL and convert it to markdown without indexing it"),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("URL to fetch"),
		),
	)
}
