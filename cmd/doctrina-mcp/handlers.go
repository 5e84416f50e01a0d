package main

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/doctrina/internal/models"
	"github.com/ternarybob/doctrina/internal/services/docs"
)

// textResult wraps a markdown string into a tool result
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

// handleScrapeDocs implements the scrape_docs tool
func handleScrapeDocs(service *docs.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rawURL, err := request.RequireString("url")
		if err != nil || rawURL == "" {
			return textResult("Error: url parameter is required"), nil
		}
		library, err := request.RequireString("library")
		if err != nil || library == "" {
			return textResult("Error: library parameter is required"), nil
		}

		opts := models.DefaultScrapeOptions()
		opts.URL = rawURL
		opts.Library = library
		opts.Version = request.GetString("version", "")
		opts.MaxDepth = request.GetInt("max_depth", models.DefaultMaxDepth)
		opts.FollowRedirects = request.GetBool("follow_redirects", opts.FollowRedirects)
		opts.IgnoreErrors = request.GetBool("ignore_errors", opts.IgnoreErrors)
		if v := request.GetInt("max_pages", 0); v > 0 {
			opts.MaxPages = v
		}
		if v := request.GetString("scope", ""); v != "" {
			opts.Scope = models.ScopeMode(v)
		}
		if v := request.GetString("scrape_mode", ""); v != "" {
			opts.ScrapeMode = models.ScrapeMode(v)
		}

		job, err := service.Scrape(ctx, opts)
		if err != nil {
			logger.Error().Err(err).Str("url", rawURL).Msg("Scrape enqueue failed")
			return textResult(fmt.Sprintf("Scrape error: %v", err)), nil
		}

		return textResult(formatJobQueued(job)), nil
	}
}

// handleSearchDocs implements the search_docs tool
func handleSearchDocs(service *docs.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		library, err := request.RequireString("library")
		if err != nil || library == "" {
			return textResult("Error: library parameter is required"), nil
		}
		query, err := request.RequireString("query")
		if err != nil || query == "" {
			return textResult("Error: query parameter is required"), nil
		}

		limit := request.GetInt("limit", 10)
		if limit > 50 {
			limit = 50
		}
		version := request.GetString("version", "")

		resp, err := service.Search(ctx, library, version, query, limit)
		if err != nil {
			logger.Error().Err(err).Str("library", library).Msg("Search failed")
			return textResult(fmt.Sprintf("Search error: %v", err)), nil
		}

		return textResult(formatSearchResponse(resp)), nil
	}
}

// handleListLibraries implements the list_libraries tool
func handleListLibraries(service *docs.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		libraries, err := service.ListLibraries(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("List libraries failed")
			return textResult(fmt.Sprintf("List error: %v", err)), nil
		}

		return textResult(formatLibraries(libraries)), nil
	}
}

// handleFindVersion implements the find_version tool
func handleFindVersion(service *docs.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		library, err := request.RequireString("library")
		if err != nil || library == "" {
			return textResult("Error: library parameter is required"), nil
		}
		target := request.GetString("version", "")

		resolved, notFound, err := service.FindVersion(ctx, library, target)
		if err != nil {
			logger.Error().Err(err).Str("library", library).Msg("Find version failed")
			return textResult(fmt.Sprintf("Find version error: %v", err)), nil
		}
		if notFound != nil {
			return textResult(formatVersionNotFound(library, notFound)), nil
		}

		return textResult(fmt.Sprintf("Best match for %s: **%s**\n", library, displayVersion(resolved))), nil
	}
}

// handleListJobs implements the list_jobs tool
func handleListJobs(service *docs.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var statuses []models.JobStatus
		if status := request.GetString("status", ""); status != "" {
			statuses = append(statuses, models.JobStatus(status))
		}

		jobs := service.ListJobs(statuses...)
		return textResult(formatJobs(jobs)), nil
	}
}

// handleGetJob implements the get_job tool
func handleGetJob(service *docs.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jobID, err := request.RequireString("job_id")
		if err != nil || jobID == "" {
			return textResult("Error: job_id parameter is required"), nil
		}

		job, ok := service.GetJob(jobID)
		if !ok {
			return textResult(fmt.Sprintf("Job not found: %s", jobID)), nil
		}

		return textResult(formatJob(job)), nil
	}
}

// handleCancelJob implements the cancel_job tool
func handleCancelJob(service *docs.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jobID, err := request.RequireString("job_id")
		if err != nil || jobID == "" {
			return textResult("Error: job_id parameter is required"), nil
		}

		if err := service.CancelJob(ctx, jobID); err != nil {
			logger.Error().Err(err).Str("job_id", jobID).Msg("Cancel failed")
			return textResult(fmt.Sprintf("Cancel error: %v", err)), nil
		}

		return textResult(fmt.Sprintf("Cancelled job %s\n", jobID)), nil
	}
}

// handleRemoveDocs implements the remove_docs tool
func handleRemoveDocs(service *docs.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		library, err := request.RequireString("library")
		if err != nil || library == "" {
			return textResult("Error: library parameter is required"), nil
		}
		version := request.GetString("version", "")

		if err := service.RemoveVersion(ctx, library, version); err != nil {
			logger.Error().Err(err).Str("library", library).Msg("Remove failed")
			return textResult(fmt.Sprintf("Remove error: %v", err)), nil
		}

		return textResult(fmt.Sprintf("Removed %s@%s\n", library, displayVersion(version))), nil
	}
}

// handleFetchURL implements the fetch_url tool
func handleFetchURL(service *docs.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rawURL, err := request.RequireString("url")
		if err != nil || rawURL == "" {
			return textResult("Error: url parameter is required"), nil
		}

		content, err := service.FetchURL(ctx, rawURL, nil)
		if err != nil {
			logger.Error().Err(err).Str("url", rawURL).Msg("Fetch failed")
			return textResult(fmt.Sprintf("Fetch error: %v", err)), nil
		}

		return textResult(content), nil
	}
}
