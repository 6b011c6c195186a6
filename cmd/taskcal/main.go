package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "taskcal",
	Short: "Task calendar with role-aware occupancy",
	Long: `Taskcal keeps project tasks and meetings on a shared calendar.
Managers move the real start date and deadline. Contributors move a
personal override clamped into the task's bounds.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(unscheduleCmd)
	rootCmd.AddCommand(icsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
