// Command priconne-watch monitors upstream announcement, news and
// cartoon surfaces, archives changed content, and publishes chat
// notifications on a cron schedule.
package main

import (
	"fmt"
	"os"

	"priconne-watch/cmd"
	"priconne-watch/internal/conf"
)

func main() {
	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error loading configuration:", err)
		os.Exit(1)
	}

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
