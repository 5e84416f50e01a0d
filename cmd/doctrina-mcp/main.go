package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"
	"github.com/ternarybob/doctrina/internal/app"
	"github.com/ternarybob/doctrina/internal/common"
)

func main() {
	configPath := os.Getenv("DOCTRINA_CONFIG")
	if configPath == "" {
		if _, err := os.Stat("doctrina.toml"); err == nil {
			configPath = "doctrina.toml"
		}
	}

	config, err := common.LoadFromFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Console-only warn logger keeps the stdio transport clean
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:       arbor_models.LogWriterTypeConsole,
		TimeFormat: "15:04:05",
	}).WithLevelFromString("warn")

	a, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer a.Close()

	if err := a.Start(context.Background()); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start job pipeline")
	}

	mcpServer := server.NewMCPServer(
		"doctrina",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(createScrapeDocsTool(), handleScrapeDocs(a.Docs, logger))
	mcpServer.AddTool(createSearchDocsTool(), handleSearchDocs(a.Docs, logger))
	mcpServer.AddTool(createListLibrariesTool(), handleListLibraries(a.Docs, logger))
	mcpServer.AddTool(createFindVersionTool(), handleFindVersion(a.Docs, logger))
	mcpServer.AddTool(createListJobsTool(), handleListJobs(a.Docs, logger))
	mcpServer.AddTool(createGetJobTool(), handleGetJob(a.Docs, logger))
	mcpServer.AddTool(createCancelJobTool(), handleCancelJob(a.Docs, logger))
	mcpServer.AddTool(createRemoveDocsTool(), handleRemoveDocs(a.Docs, logger))
	mcpServer.AddTool(createFetchURLTool(), handleFetchURL(a.Docs, logger))

	// Blocks on stdio until the client disconnects
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}
