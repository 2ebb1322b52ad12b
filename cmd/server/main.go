package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Staby-Guy/pidgeon/internal/api"
	"github.com/Staby-Guy/pidgeon/internal/api/handlers"
	"github.com/Staby-Guy/pidgeon/internal/api/services"
	"github.com/Staby-Guy/pidgeon/internal/config"
	"github.com/Staby-Guy/pidgeon/internal/metrics"
	"github.com/Staby-Guy/pidgeon/internal/realtime"
	"github.com/Staby-Guy/pidgeon/internal/repositories"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// @title Pidgeon API
// @version 1.0
// @description Direct messaging between contacts with realtime delivery.
// @host localhost:8080
// @BasePath /
func main() {
	cmd := &cli.Command{
		Name:  "pidgeon",
		Usage: "direct messaging server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "dotenv file to load before reading the environment",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API and realtime streams",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "create or update the account tables and exit",
				Action: migrate,
			},
		},
		DefaultCommand: "serve",
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal("Server exited", "err", err)
	}
}

func loadConfig(cmd *cli.Command) (config.Config, error) {
	cfg := config.Load(cmd.String("env-file"))
	log.SetLevel(config.ParseLogLevel(cfg.LogLevel))

	labels, err := metrics.ParseLabels(cfg.MetricsLabels)
	if err != nil {
		return cfg, fmt.Errorf("metrics labels: %w", err)
	}
	metrics.Init(labels)
	return cfg, nil
}

func migrate(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	db, err := repositories.ConnectDatabase(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	return repositories.Migrate(ctx, db)
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repositories.ConnectDatabase(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if cfg.DBAutoMigrate {
		if err := repositories.Migrate(ctx, db); err != nil {
			return err
		}
	}

	rdb, err := repositories.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer rdb.Close()

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := realtime.NewHub(realtime.NewRedisTransport(hubCtx, rdb))

	var avatarStorage services.AvatarStorage
	if cfg.R2.Enabled() {
		avatarStorage = repositories.NewAvatars(cfg.R2)
	} else {
		log.Warn("R2 not configured, avatar uploads disabled")
	}

	var users repositories.UserStore = repositories.NewUsers(db)
	if cfg.UserCacheSize > 0 {
		cached, err := repositories.NewCachedUsers(users, cfg.UserCacheSize)
		if err != nil {
			return err
		}
		defer cached.Close()
		users = cached
	}
	contacts := repositories.NewContacts(rdb)
	messages := repositories.NewMessages(rdb)
	unread := repositories.NewUnread(rdb)
	events := realtime.NewDispatcher(hub)

	google := services.NewGoogleOAuth(cfg.Google)
	if google == nil {
		log.Warn("Google OAuth not configured, Google sign-in disabled")
	}

	h := handlers.New(handlers.Deps{
		Accounts: services.NewAccounts(users, avatarStorage),
		Contacts: services.NewContacts(users, contacts, messages, unread, events, avatarStorage),
		Messages: services.NewMessages(contacts, messages, unread, events),
		Streams:  services.NewStreams(hub),
		Avatars:  services.NewAvatars(avatarStorage),
		Tokens:   services.NewTokens(cfg.JWTSecret),
		Google:   google,
		Config:   cfg,
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: api.NewRouter(h, cfg),
		// Timeouts prevent resource exhaustion from slow clients
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	// Open event streams only end once the hub closes their subscriptions.
	server.RegisterOnShutdown(stopHub)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(hubCtx)
	})
	g.Go(func() error {
		log.Info("Starting Pidgeon server", "port", cfg.Port, "env", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on port %s: %w", cfg.Port, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
