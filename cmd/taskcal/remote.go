package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"taskcal/internal/calendar"
	"taskcal/internal/client"
	"taskcal/internal/config"
)

var (
	remoteUser string
	remoteFrom string
	remoteTo   string
	moveStart  string
	moveEnd    string
	icsOut     string
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List a user's calendar events from the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, c, err := remote()
		if err != nil {
			return err
		}
		loc := cfg.Location()
		today := time.Now().In(loc)
		from := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc)
		to := from.AddDate(0, 0, 7)
		if remoteFrom != "" {
			if from, err = calendar.ParseDate("from", remoteFrom, loc); err != nil {
				return err
			}
		}
		if remoteTo != "" {
			if to, err = calendar.ParseDate("to", remoteTo, loc); err != nil {
				return err
			}
		}

		events, err := c.Events(cmd.Context(), remoteUser, from, to)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KIND\tID\tSTART\tEND\tTITLE")
		for _, ev := range events {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", ev.Kind, ev.ID, formatWhen(ev.Start, ev.AllDay, loc), formatWhen(ev.End, ev.AllDay, loc), ev.Title)
		}
		return w.Flush()
	},
}

var moveCmd = &cobra.Command{
	Use:   "move <task-id>",
	Short: "Propose a new window for a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, c, err := remote()
		if err != nil {
			return err
		}
		loc := cfg.Location()
		start, err := calendar.ParseDate("start", moveStart, loc)
		if err != nil {
			return err
		}
		end := start.AddDate(0, 0, 1)
		if moveEnd != "" {
			if end, err = calendar.ParseDate("end", moveEnd, loc); err != nil {
				return err
			}
		}

		res, err := c.Move(cmd.Context(), args[0], calendar.Window{Start: start, End: end}, remoteUser)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s now %s → %s\n", res.Task.Title,
			res.Window.Start.In(loc).Format("2006-01-02"), res.Window.End.In(loc).Format("2006-01-02"))
		if res.Adjusted {
			fmt.Fprintln(cmd.OutOrStdout(), "window was adjusted to fit the task's dates")
		}
		return nil
	},
}

var unscheduleCmd = &cobra.Command{
	Use:   "unschedule <task-id>",
	Short: "Take a task off the calendar",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, c, err := remote()
		if err != nil {
			return err
		}
		task, err := c.Unschedule(cmd.Context(), args[0], remoteUser)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is off the calendar\n", task.Title)
		return nil
	},
}

var icsCmd = &cobra.Command{
	Use:   "ics",
	Short: "Download a user's iCalendar feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, c, err := remote()
		if err != nil {
			return err
		}
		if icsOut == "" || icsOut == "-" {
			return c.WriteICS(cmd.Context(), remoteUser, cmd.OutOrStdout())
		}
		f, err := os.Create(icsOut)
		if err != nil {
			return err
		}
		if err := c.WriteICS(cmd.Context(), remoteUser, f); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	},
}

func remote() (config.Config, *client.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, nil, fmt.Errorf("config: %w", err)
	}
	var opts []client.Option
	if cfg.BasicAuth.Enabled() {
		opts = append(opts, client.WithBasicAuth(cfg.BasicAuth.Username, cfg.BasicAuth.Password))
	}
	return cfg, client.New(cfg.ServerURL, opts...), nil
}

func formatWhen(t time.Time, allDay bool, loc *time.Location) string {
	if allDay {
		return t.In(loc).Format("2006-01-02")
	}
	return t.In(loc).Format("2006-01-02 15:04")
}

func init() {
	for _, c := range []*cobra.Command{eventsCmd, moveCmd, unscheduleCmd, icsCmd} {
		c.Flags().StringVar(&remoteUser, "user", "", "acting user id")
		c.MarkFlagRequired("user")
	}
	eventsCmd.Flags().StringVar(&remoteFrom, "from", "", "range start (default today)")
	eventsCmd.Flags().StringVar(&remoteTo, "to", "", "range end (default a week after from)")
	moveCmd.Flags().StringVar(&moveStart, "start", "", "new first day (YYYY-MM-DD)")
	moveCmd.Flags().StringVar(&moveEnd, "end", "", "exclusive end day (default start + 1 day)")
	moveCmd.MarkFlagRequired("start")
	icsCmd.Flags().StringVar(&icsOut, "out", "-", "output file, - for stdout")
}
