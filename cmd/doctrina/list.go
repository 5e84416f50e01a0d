package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
)

// runList prints every indexed library with its version rows
func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to TOML configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, _, err := loadApp(*configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	libraries, err := a.Docs.ListLibraries(context.Background())
	if err != nil {
		return err
	}
	if len(libraries) == 0 {
		fmt.Println("no libraries indexed")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LIBRARY\tVERSION\tSTATUS\tDOCS\tINDEXED")
	for _, lib := range libraries {
		for _, v := range lib.Versions {
			indexed := "-"
			if v.IndexedAt != nil {
				indexed = v.IndexedAt.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				lib.Library, displayVersion(v.Ref), v.Status, v.DocumentCount, indexed)
		}
	}
	return w.Flush()
}
