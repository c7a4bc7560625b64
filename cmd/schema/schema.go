// Package schema implements the "schema" CLI subcommand: it emits the
// configuration's resolved JSON shape, so operators can see exactly what
// keys and types conf.Settings expects without reading Go source.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"priconne-watch/internal/conf"
)

// Command builds the "schema" subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Emit the configuration schema as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(settings)
		},
	}
}

func run(settings *conf.Settings) error {
	current := settings
	if current == nil {
		current = conf.GetSettings()
	}
	if current == nil {
		current = &conf.Settings{}
	}

	out, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling config schema: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
