package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"taskcal/internal/calendar"
	"taskcal/internal/model"
	"taskcal/internal/service"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var (
	userName  string
	userEmail string
	userRole  string
)

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		user := &model.User{Name: userName, Email: userEmail, Role: model.Role(userRole)}
		if err := a.users.Create(cmd.Context(), user); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", user.ID, user.Role, user.Name)
		return nil
	},
}

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
}

var (
	taskManager     string
	taskTitle       string
	taskDescription string
	taskProject     string
	taskPriority    string
	taskStart       string
	taskDeadline    string
	taskAssignees   []string
)

var taskAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a task as a manager",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		loc := a.cfg.Location()
		input := service.TaskInput{
			Title:       taskTitle,
			Description: taskDescription,
			Project:     taskProject,
			Priority:    model.Priority(taskPriority),
			AssigneeIDs: taskAssignees,
		}
		if input.StartDate, err = flagDate("start", taskStart, loc); err != nil {
			return err
		}
		if input.Deadline, err = flagDate("deadline", taskDeadline, loc); err != nil {
			return err
		}

		manager, err := a.users.FindByID(cmd.Context(), taskManager)
		if err != nil {
			return fmt.Errorf("manager: %w", err)
		}
		task, err := a.tasks.CreateTask(cmd.Context(), manager, input)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", task.ID, task.Title)
		return nil
	},
}

func flagDate(field, raw string, loc *time.Location) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, err := calendar.ParseDate(field, raw, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func init() {
	userAddCmd.Flags().StringVar(&userName, "name", "", "display name")
	userAddCmd.Flags().StringVar(&userEmail, "email", "", "unique email")
	userAddCmd.Flags().StringVar(&userRole, "role", string(model.RoleContributor), "manager or contributor")
	userAddCmd.MarkFlagRequired("name")
	userAddCmd.MarkFlagRequired("email")
	userCmd.AddCommand(userAddCmd)

	taskAddCmd.Flags().StringVar(&taskManager, "manager", "", "id of the creating manager")
	taskAddCmd.Flags().StringVar(&taskTitle, "title", "", "task title")
	taskAddCmd.Flags().StringVar(&taskDescription, "description", "", "task description")
	taskAddCmd.Flags().StringVar(&taskProject, "project", "", "project name, created when missing")
	taskAddCmd.Flags().StringVar(&taskPriority, "priority", "", "low, medium or high")
	taskAddCmd.Flags().StringVar(&taskStart, "start", "", "start date (YYYY-MM-DD)")
	taskAddCmd.Flags().StringVar(&taskDeadline, "deadline", "", "deadline (YYYY-MM-DD)")
	taskAddCmd.Flags().StringSliceVar(&taskAssignees, "assign", nil, "assignee user ids")
	taskAddCmd.MarkFlagRequired("manager")
	taskAddCmd.MarkFlagRequired("title")
	taskCmd.AddCommand(taskAddCmd)
}
