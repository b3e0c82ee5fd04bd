package main

import (
	"context"
	"fmt"

	"github.com/blacker-cz/mangascraper"
)

// Run executes the search command.
func (c *SearchCmd) Run(deps *Dependencies) error {
	source, err := deps.Sources.Get(c.Source)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s. Use 'mangascraper sources' to see available sources.\n", mangascraper.ErrorMessage(err))
		return err
	}

	filter := mangascraper.CollectionFilter{Query: c.Query, Offset: c.Offset, Limit: c.Limit}
	collections, err := await(deps, func(ctx context.Context) ([]*mangascraper.Collection, error) {
		return source.ListCollections(ctx, filter)
	})
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", mangascraper.ErrorMessage(err))
		return err
	}

	if len(collections) == 0 {
		fmt.Fprintln(deps.Stdout, "No collections found.")
		return nil
	}

	for _, col := range collections {
		fmt.Fprintf(deps.Stdout, "%s  %s  %s\n", col.ID, col.Name, col.URL)
	}
	return nil
}
