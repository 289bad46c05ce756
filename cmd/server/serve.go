package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/enrollment-lottery/internal/config"
	"github.com/iliyamo/enrollment-lottery/internal/database"
	"github.com/iliyamo/enrollment-lottery/internal/engine"
	"github.com/iliyamo/enrollment-lottery/internal/handler"
	"github.com/iliyamo/enrollment-lottery/internal/middleware"
	"github.com/iliyamo/enrollment-lottery/internal/notify"
	"github.com/iliyamo/enrollment-lottery/internal/queue"
	"github.com/iliyamo/enrollment-lottery/internal/router"
	"github.com/iliyamo/enrollment-lottery/internal/sweeper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with its background workers",
	RunE:  serve,
}

func serve(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := slog.Default()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	var pinger handler.Pinger
	if db != nil {
		defer db.Close()
		if err := database.Migrate(ctx, db.DB); err != nil {
			return err
		}
		pinger = db
	}

	var pub notify.Publisher = notify.LogPublisher{Log: log}
	if cfg.NotifyDriver == config.NotifyRabbitMQ {
		rp := queue.NewPublisher(cfg.RabbitURL, cfg.NotifyQueue, log)
		defer rp.Close()
		pub = rp
	}
	dispatcher := notify.NewAsync(pub, cfg.NotifyBuffer, log)

	eng := engine.New(store, dispatcher,
		engine.WithResponseWindow(cfg.ResponseWindow),
		engine.WithLogger(log),
	)

	var scripter redis.Scripter
	if rdb, err := config.NewRedisClient(ctx); err != nil {
		log.WarnContext(ctx, "redis unavailable, rate limiting disabled", slog.String("err", err.Error()))
	} else {
		defer rdb.Close()
		scripter = rdb
	}

	e := echo.New()
	e.HideBanner = true
	e.Debug = !cfg.Production()
	e.Use(echomw.Recover())
	entrant := handler.NewEntrantHandler(eng, log)
	router.RegisterRoutes(e, pinger)
	router.RegisterShared(e, entrant, cfg.JWTSecret)
	router.RegisterEntrant(e, entrant, cfg.JWTSecret, middleware.RateLimit(config.LoadRateLimitConfig(), scripter, log))
	router.RegisterOrganizer(e, handler.NewOrganizerHandler(eng, log), cfg.JWTSecret)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error {
		addr := ":" + cfg.Port
		log.InfoContext(gctx, "listening", slog.String("addr", addr), slog.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(sctx)
	})
	if cfg.NotifyConsumer && cfg.NotifyDriver == config.NotifyRabbitMQ {
		c := &queue.Consumer{URL: cfg.RabbitURL, Queue: cfg.NotifyQueue, Dir: cfg.NotifyLogDir, Log: log}
		g.Go(func() error { return c.Run(gctx) })
	}
	if cfg.SweepInterval > 0 {
		w := sweeper.New(eng, cfg.SweepInterval, log)
		g.Go(func() error { return w.Run(gctx) })
	}
	return g.Wait()
}
