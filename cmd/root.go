// root.go viper root command code
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"priconne-watch/cmd/events"
	"priconne-watch/cmd/schema"
	"priconne-watch/cmd/serve"
	"priconne-watch/internal/conf"
)

// RootCommand builds the root cobra command, binding persistent flags to
// viper and wiring every subcommand.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "priconne-watch",
		Short: "Watch upstream announcement, news and cartoon surfaces and publish notifications",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initialize(settings)
		},
	}

	setupFlags(rootCmd)

	rootCmd.AddCommand(schema.Command(settings))
	rootCmd.AddCommand(serve.Command(settings))
	rootCmd.AddCommand(events.Command(settings))

	return rootCmd
}

// setupFlags binds the root command's persistent flags to viper. main
// loads conf.Settings before the command line is parsed, so flag values
// are not reflected in conf.Settings.
func setupFlags(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().Bool("debug", false, "bound to viper key \"debug\"; not read by any subcommand")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Printf("error binding flags: %v\n", err)
	}
}

// initialize runs once per invocation, before any subcommand's RunE:
// currently a no-op hook reserved for flag-driven overrides that must
// apply before a subcommand reads settings.
func initialize(settings *conf.Settings) error {
	return nil
}
