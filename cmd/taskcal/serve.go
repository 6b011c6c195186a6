package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"taskcal/internal/bot"
	"taskcal/internal/config"
	"taskcal/internal/repository"
	"taskcal/internal/service"
	"taskcal/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the Telegram bot and the daily agenda",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		db, err := repository.NewDB(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("db: %w", err)
		}
		defer closeDB(db)
		fmt.Fprintf(cmd.OutOrStdout(), "schema ready in %s\n", cfg.DatabaseURL)
		return nil
	},
}

type app struct {
	cfg       config.Config
	db        *gorm.DB
	users     *repository.UserRepository
	tasks     *service.TaskService
	meetings  *service.MeetingService
	calendar  *service.CalendarService
	occupancy *service.OccupancyService
	agenda    *service.AgendaService
}

func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}

	userRepo := repository.NewUserRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	meetingRepo := repository.NewMeetingRepository(db)

	calendarSvc := service.NewCalendarService(userRepo, taskRepo, meetingRepo)
	return &app{
		cfg:       cfg,
		db:        db,
		users:     userRepo,
		tasks:     service.NewTaskService(taskRepo, userRepo, projectRepo),
		meetings:  service.NewMeetingService(meetingRepo, userRepo, cfg.MeetingLinkBase),
		calendar:  calendarSvc,
		occupancy: service.NewOccupancyService(taskRepo, userRepo),
		agenda:    service.NewAgendaService(calendarSvc, userRepo, cfg.AgendaDays),
	}, nil
}

func (a *app) Close() { closeDB(a.db) }

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}

func serve(ctx context.Context) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	server := web.NewServer(a.cfg, web.Services{
		Users:     a.users,
		Tasks:     a.tasks,
		Meetings:  a.meetings,
		Calendar:  a.calendar,
		Occupancy: a.occupancy,
	})

	if a.cfg.TelegramToken == "" {
		log.Println("[info] TELEGRAM_TOKEN not set, running without the bot")
	} else {
		telegramBot, err := bot.New(a.cfg.TelegramToken, bot.Deps{
			Users:     a.users,
			Occupancy: a.occupancy,
			Calendar:  a.calendar,
			Agenda:    a.agenda,
			Location:  a.cfg.Location(),
		})
		if err != nil {
			return fmt.Errorf("bot: %w", err)
		}

		scheduler := service.NewSchedulerService(a.cfg.Location())
		id, err := scheduler.ScheduleAgenda(a.cfg.AgendaTime, a.agenda, telegramBot.SendText)
		if err != nil {
			return fmt.Errorf("schedule agenda: %w", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
		log.Printf("[info] daily agenda scheduled, next run %s", scheduler.NextAfter(id, time.Now()).Format("2006-01-02 15:04 MST"))

		go func() {
			if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("bot stopped with error: %v", err)
			}
		}()
	}

	log.Println("Taskcal started.")
	if err := server.ListenAndServe(ctx); err != nil {
		return err
	}
	log.Println("Shutdown complete.")
	return nil
}
