package main

import (
	"context"
	"fmt"

	"github.com/blacker-cz/mangascraper"
	"github.com/blacker-cz/mangascraper/goquery"
)

// Run executes the chapters command.
func (c *ChaptersCmd) Run(deps *Dependencies) error {
	source, err := deps.Sources.Get(c.Source)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s. Use 'mangascraper sources' to see available sources.\n", mangascraper.ErrorMessage(err))
		return err
	}

	collection := newCollection(c.Source, c.URL, c.Title)

	if c.Describe {
		if d, ok := deps.Describers[c.Source]; ok {
			desc, err := await(deps, func(ctx context.Context) (string, error) {
				return d.Describe(ctx, collection)
			})
			if err != nil {
				fmt.Fprintf(deps.Stderr, "error: %s\n", mangascraper.ErrorMessage(err))
				return err
			}
			if desc != "" {
				fmt.Fprintf(deps.Stdout, "%s\n\n", desc)
			}
		}
	}

	chapters, err := listChapters(deps, source, collection)
	if err != nil {
		return err
	}

	if len(chapters) == 0 {
		fmt.Fprintln(deps.Stdout, "No chapters found.")
		return nil
	}

	for _, ch := range chapters {
		fmt.Fprintf(deps.Stdout, "%s  %s  %s\n", ch.ID(), ch.Name(), ch.URL())
	}
	return nil
}

func listChapters(deps *Dependencies, source mangascraper.Source, collection *mangascraper.Collection) ([]*mangascraper.Chapter, error) {
	chapters, err := await(deps, func(ctx context.Context) ([]*mangascraper.Chapter, error) {
		return source.ListChapters(ctx, collection)
	})
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", mangascraper.ErrorMessage(err))
		return nil, err
	}
	return chapters, nil
}

// newCollection builds the collection a command operates on from its URL.
func newCollection(sourceID, u, title string) *mangascraper.Collection {
	if title == "" {
		title = goquery.NameFromURL(u)
	}
	return &mangascraper.Collection{
		ID:       goquery.HashID(u),
		SourceID: sourceID,
		Name:     title,
		URL:      u,
	}
}
