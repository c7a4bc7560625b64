// Package events implements the "events" CLI subcommand: it lists the
// upcoming calendar events carried by archived posts, or (with
// --schedule) each configured source's next cron fire times.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"priconne-watch/internal/conf"
	"priconne-watch/internal/scheduler"
	"priconne-watch/internal/store"
)

// Command builds the "events" subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List upcoming events from archived posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if schedule, _ := cmd.Flags().GetBool("schedule"); schedule {
				return runSchedule(settings)
			}
			return runEvents(cmd.Context(), settings)
		},
	}
	cmd.Flags().Bool("schedule", false, "list each source's next scheduled fire times instead")
	return cmd
}

// runEvents dumps every stored event that has not yet ended, oldest
// start first.
func runEvents(ctx context.Context, settings *conf.Settings) error {
	st, err := store.Open(ctx, settings.Mongo.ConnectionString, settings.Mongo.Database)
	if err != nil {
		return fmt.Errorf("error opening store: %w", err)
	}
	defer st.Close(context.Background())

	events, err := st.UpcomingEvents(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("error loading events: %w", err)
	}

	for _, e := range events {
		fmt.Printf("%s\t%s - %s\n", e.Title,
			e.Start.Format("2006/01/02 15:04"), e.End.Format("2006/01/02 15:04"))
	}
	return nil
}

func runSchedule(settings *conf.Settings) error {
	sched := scheduler.New(nil, slog.Default())

	names := make([]string, 0, len(settings.Fetch.Schedule))
	for name := range settings.Fetch.Schedule {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		noop := func(context.Context) error { return nil }
		if err := sched.Register(name, settings.Fetch.Schedule[name], noop); err != nil {
			return fmt.Errorf("error registering %s: %w", name, err)
		}
	}

	printEntries(sched.Entries())
	return nil
}

// printEntries computes each entry's next fire time itself: the cron
// engine only fills Entry.Next once started, and this command never
// starts it.
func printEntries(entries []cron.Entry) {
	now := time.Now()
	for _, e := range entries {
		fmt.Printf("next=%s\n", e.Schedule.Next(now).Format(time.RFC3339))
	}
}
