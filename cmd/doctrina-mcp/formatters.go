package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/doctrina/internal/models"
	"github.com/ternarybob/doctrina/internal/services/docs"
)

// displayVersion renders the empty version label as a readable name
func displayVersion(v string) string {
	if v == "" {
		return "unversioned"
	}
	return v
}

// formatSearchResponse formats a search envelope as markdown
func formatSearchResponse(resp *docs.SearchResponse) string {
	if resp.NotFound != nil {
		return formatVersionNotFound(resp.Library, resp.NotFound)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Search Results for \"%s\" in %s@%s (%d results)\n\n",
		resp.Query, resp.Library, displayVersion(resp.Version), len(resp.Results)))

	if len(resp.Results) == 0 {
		sb.WriteString("No results found.\n")
		return sb.String()
	}

	for _, r := range resp.Results {
		title := r.Metadata.Title
		if title == "" {
			title = r.URL
		}
		sb.WriteString(fmt.Sprintf("### %d. %s\n", r.Rank, title))
		if r.URL != "" {
			sb.WriteString(fmt.Sprintf("**URL:** %s\n", r.URL))
		}
		sb.WriteString(fmt.Sprintf("**Score:** %.4f\n\n", r.Score))

		content := r.Content
		if len(content) > 500 {
			content = content[:500] + "..."
		}
		sb.WriteString(content)
		sb.WriteString("\n\n---\n\n")
	}

	return sb.String()
}

// formatVersionNotFound formats a failed version resolution as markdown
func formatVersionNotFound(library string, notFound *docs.VersionNotFound) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Version \"%s\" of %s is not indexed.\n",
		displayVersion(notFound.Requested), library))
	if len(notFound.Available) > 0 {
		sb.WriteString(fmt.Sprintf("\nAvailable versions: %s\n", strings.Join(notFound.Available, ", ")))
	}
	if notFound.HasUnversioned {
		sb.WriteString("\nAn unversioned index exists; retry without the version parameter.\n")
	}
	return sb.String()
}

// formatLibraries formats the library listing as markdown
func formatLibraries(libraries []models.LibrarySummary) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Indexed Libraries (%d)\n\n", len(libraries)))

	if len(libraries) == 0 {
		sb.WriteString("No libraries indexed yet. Use scrape_docs to index documentation.\n")
		return sb.String()
	}

	for _, lib := range libraries {
		sb.WriteString(fmt.Sprintf("### %s\n", lib.Library))
		for _, v := range lib.Versions {
			sb.WriteString(fmt.Sprintf("- **%s**: %s, %d documents",
				displayVersion(v.Ref), v.Status, v.DocumentCount))
			if v.IndexedAt != nil {
				sb.WriteString(fmt.Sprintf(", indexed %s", v.IndexedAt.Format(time.RFC3339)))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// formatJobQueued formats the scrape_docs acknowledgement as markdown
func formatJobQueued(job *models.Job) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Queued indexing job for %s@%s\n\n", job.Library, displayVersion(job.Version)))
	sb.WriteString(fmt.Sprintf("**Job ID:** %s\n", job.ID))
	sb.WriteString(fmt.Sprintf("**URL:** %s\n", job.Options.URL))
	sb.WriteString("\nUse get_job to poll progress.\n")
	return sb.String()
}

// formatJob formats a single job as markdown
func formatJob(job *models.Job) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Job %s\n\n", job.ID))
	sb.WriteString(fmt.Sprintf("**Library:** %s@%s\n", job.Library, displayVersion(job.Version)))
	sb.WriteString(fmt.Sprintf("**Status:** %s\n", job.Status))
	sb.WriteString(fmt.Sprintf("**Progress:** %s\n", formatProgress(job.Progress)))
	if job.StartedAt != nil {
		sb.WriteString(fmt.Sprintf("**Started:** %s\n", job.StartedAt.Format(time.RFC3339)))
	}
	if job.FinishedAt != nil {
		sb.WriteString(fmt.Sprintf("**Finished:** %s\n", job.FinishedAt.Format(time.RFC3339)))
	}
	if job.Error != "" {
		sb.WriteString(fmt.Sprintf("**Error:** %s\n", job.Error))
	}
	return sb.String()
}

// formatJobs formats the job listing as markdown
func formatJobs(jobs []*models.Job) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Jobs (%d)\n\n", len(jobs)))

	if len(jobs) == 0 {
		sb.WriteString("No jobs found.\n")
		return sb.String()
	}

	for _, job := range jobs {
		sb.WriteString(fmt.Sprintf("- **%s** %s@%s: %s, %s\n",
			job.ID, job.Library, displayVersion(job.Version), job.Status, formatProgress(job.Progress)))
	}

	return sb.String()
}

// formatProgress renders a progress snapshot in "n/m pages" form
func formatProgress(p models.JobProgress) string {
	if p.TotalPages > 0 {
		return fmt.Sprintf("%d/%d pages", p.Pages, p.TotalPages)
	}
	return fmt.Sprintf("%d pages", p.Pages)
}
