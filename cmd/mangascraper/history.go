package main

import (
	"fmt"
	"time"

	"github.com/blacker-cz/mangascraper"
)

// Run executes the history command.
func (c *HistoryCmd) Run(deps *Dependencies) error {
	filter := mangascraper.RecordFilter{Limit: c.Limit}
	if c.Source != "" {
		filter.SourceID = &c.Source
	}
	if c.Outcome != "" && c.Outcome != "any" {
		outcome := mangascraper.Outcome(c.Outcome)
		filter.Outcome = &outcome
	}

	records, err := deps.Records.ListRecords(deps.Ctx, filter)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", mangascraper.ErrorMessage(err))
		return err
	}

	if len(records) == 0 {
		fmt.Fprintln(deps.Stdout, "No downloads recorded.")
		return nil
	}

	for _, r := range records {
		name := r.ChapterName
		if r.CollectionName != "" {
			name = r.CollectionName + " - " + name
		}
		detail := r.OutputPath
		if r.Outcome == mangascraper.OutcomeFailed {
			detail = r.Error
		}
		fmt.Fprintf(deps.Stdout, "%s  %s  %-9s  %s  %s\n",
			r.ID, r.CreatedAt.Local().Format(time.DateTime), r.Outcome, name, detail)
	}
	return nil
}

// Run executes the forget command.
func (c *ForgetCmd) Run(deps *Dependencies) error {
	if err := deps.Records.RemoveRecord(deps.Ctx, c.ID); err != nil {
		if mangascraper.ErrorCode(err) == mangascraper.ENOTFOUND {
			fmt.Fprintf(deps.Stderr, "error: record %q not found. Use 'mangascraper history' to see records.\n", c.ID)
			return err
		}
		fmt.Fprintf(deps.Stderr, "error: %s\n", mangascraper.ErrorMessage(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "Forgot record %s\n", c.ID)
	return nil
}
