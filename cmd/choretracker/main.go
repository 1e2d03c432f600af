package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chore-tracker/internal/bot"
	"chore-tracker/internal/config"
	"chore-tracker/internal/repository"
	"chore-tracker/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	logRepo := repository.NewCompletionLogRepository(db)

	if cfg.SeedFile != "" {
		if err := repository.SeedIfEmpty(ctx, cfg.SeedFile, userRepo, taskRepo); err != nil {
			log.Fatalf("seed: %v", err)
		}
	}

	clock := service.NewZoneClock(cfg.Timezone)
	taskSvc := service.NewTaskService(taskRepo, logRepo, clock)
	completionSvc := service.NewCompletionService(taskRepo, logRepo, clock, cfg.UndoWindow)
	reminderSvc := service.NewReminderService(taskSvc, clock)

	telegramBot, err := bot.New(cfg.TelegramToken, userRepo, taskSvc, completionSvc, reminderSvc, clock)
	if err != nil {
		log.Fatalf("bot: %v", err)
	}

	scheduler := service.NewSchedulerService(cfg.Timezone)
	if _, err := scheduler.ScheduleDaily(cfg.ReminderTime, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := telegramBot.SendDailyReports(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("reminders: %v", err)
		}
	}); err != nil {
		log.Fatalf("schedule reminders: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	log.Println("Chore tracker bot started.")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("bot stopped with error: %v", err)
	}
	log.Println("Shutdown complete.")
}
