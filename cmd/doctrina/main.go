package main

import (
	"fmt"
	"os"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/doctrina/internal/app"
	"github.com/ternarybob/doctrina/internal/common"
)

const usage = `doctrina - documentation indexing and hybrid search

Usage:
  doctrina <command> [flags]

Commands:
  serve     Run the job pipeline until interrupted
  scrape    Index documentation from a URL
  search    Search indexed documentation
  list      List indexed libraries and versions
  remove    Remove an indexed version
  version   Print version information

Run "doctrina <command> -h" for command flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "scrape":
		err = runScrape(os.Args[2:])
	case "search":
		err = runSearch(os.Args[2:])
	case "list":
		err = runList(os.Args[2:])
	case "remove":
		err = runRemove(os.Args[2:])
	case "version":
		fmt.Printf("doctrina %s\n", common.GetFullVersion())
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadApp builds the application from the config file path, falling back to
// ./doctrina.toml when present
func loadApp(configPath string) (*app.App, arbor.ILogger, error) {
	return loadAppWithOverrides(configPath, "", "")
}

// loadAppWithOverrides layers CLI flag values over the loaded configuration
func loadAppWithOverrides(configPath, dbPath, logLevel string) (*app.App, arbor.ILogger, error) {
	if configPath == "" {
		if _, err := os.Stat("doctrina.toml"); err == nil {
			configPath = "doctrina.toml"
		}
	}

	config, err := common.LoadFromFile(configPath)
	if err != nil {
		return nil, nil, err
	}
	if dbPath != "" {
		config.Storage.Path = dbPath
	}
	if logLevel != "" {
		config.Logging.Level = logLevel
	}
	logger := common.InitLogger(config)

	a, err := app.New(config, logger)
	if err != nil {
		return nil, nil, err
	}
	return a, logger, nil
}
