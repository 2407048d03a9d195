package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"domain-monitor/internal/api"
	"domain-monitor/internal/config"
	"domain-monitor/internal/database"
	"domain-monitor/internal/scheduler"
	"domain-monitor/internal/services"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	// Initialize database
	store, err := database.Connect(&cfg.Database)
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()
	logrus.WithField("path", cfg.Database.Path).Info("Database initialized successfully")

	// Initialize services
	notifyService := services.NewNotifyService(&cfg.Notifications, store.Dispatches, cfg.Monitor.MaxRetries)
	monitorService := services.NewMonitorService(store, notifyService,
		services.MonitorOptions{
			BatchSize:      cfg.Checks.BatchSize,
			BatchDelay:     config.Duration(cfg.Checks.BatchDelay),
			CriticalWindow: config.Duration(cfg.Monitor.CriticalWindow),
		},
		services.NewWhoisService(&cfg.Whois),
		services.NewSSLChecker(config.Duration(cfg.Checks.SSLTimeout)),
		services.NewDNSChecker(cfg.Checks.Resolver, config.Duration(cfg.Checks.DNSTimeout)),
		services.NewUptimeChecker(config.Duration(cfg.Checks.UptimeTimeout)),
	)

	if err := monitorService.Resume(context.Background()); err != nil {
		logrus.Warnf("Failed to restore last run time: %v", err)
	}

	// Initialize scheduler
	sched := scheduler.NewScheduler(monitorService)
	if err := sched.Start(cfg.Monitor.CheckInterval, cfg.Monitor.RetryInterval); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer sched.Stop()
	monitorService.SetNextRun(sched.NextRun)

	// Setup Gin
	gin.SetMode(cfg.Server.Mode)
	handler := api.NewHandler(monitorService, store, sched)
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           api.NewRouter(&cfg.Server, handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logrus.Infof("Server starting on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server shutdown: %v", err)
	}
}
