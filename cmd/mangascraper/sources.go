package main

import (
	"fmt"
	"strings"
)

// Run executes the sources command.
func (c *SourcesCmd) Run(deps *Dependencies) error {
	if len(deps.Configs) == 0 {
		fmt.Fprintln(deps.Stdout, "No sources configured. Add site configs to the sources file.")
		return nil
	}

	for _, cfg := range deps.Configs {
		var flags []string
		if cfg.Text {
			flags = append(flags, "text")
		}
		if cfg.RenderJS {
			flags = append(flags, "js")
		}
		if cfg.SearchURL != "" {
			flags = append(flags, "search")
		}
		line := fmt.Sprintf("%s  %s  %s", cfg.ID, cfg.Name, cfg.BaseURL)
		if len(flags) > 0 {
			line += "  [" + strings.Join(flags, ",") + "]"
		}
		fmt.Fprintln(deps.Stdout, line)
	}
	return nil
}
