package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/ternarybob/doctrina/internal/models"
)

// runRemove deletes one indexed version and its documents
func runRemove(args []string) error {
	fs := flag.NewFlagSet("remove", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to TOML configuration file")
	library := fs.String("library", "", "Library to remove from")
	version := fs.String("version", "", "Version to remove (empty = unversioned)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, _, err := loadApp(*configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	err = a.Docs.RemoveVersion(context.Background(), *library, *version)
	var notFound *models.VersionNotFoundError
	if errors.As(err, &notFound) {
		fmt.Printf("%s@%s is not indexed\n", *library, displayVersion(*version))
		if len(notFound.Available) > 0 {
			fmt.Printf("available: %s\n", strings.Join(notFound.Available, ", "))
		}
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("removed %s@%s\n", *library, displayVersion(*version))
	return nil
}
