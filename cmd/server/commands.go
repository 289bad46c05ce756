package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/enrollment-lottery/internal/config"
	"github.com/iliyamo/enrollment-lottery/internal/database"
	"github.com/iliyamo/enrollment-lottery/internal/engine"
	"github.com/iliyamo/enrollment-lottery/internal/notify"
	"github.com/iliyamo/enrollment-lottery/internal/queue"
	"github.com/iliyamo/enrollment-lottery/internal/sweeper"
	"github.com/iliyamo/enrollment-lottery/internal/utils"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		db, err := openDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		return database.Migrate(cmd.Context(), db.DB)
	},
}

var sweepEventID string

// sweepCmd is the external periodic trigger, meant to be run from cron.
// Notifications go straight to the configured publisher.
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire overdue invitations and draw replacements",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		store, db, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		if db != nil {
			defer db.Close()
		}

		log := slog.Default()
		var pub notify.Publisher = notify.LogPublisher{Log: log}
		if cfg.NotifyDriver == config.NotifyRabbitMQ {
			rp := queue.NewPublisher(cfg.RabbitURL, cfg.NotifyQueue, log)
			defer rp.Close()
			pub = rp
		}
		eng := engine.New(store, syncDispatcher{pub: pub, log: log},
			engine.WithResponseWindow(cfg.ResponseWindow),
			engine.WithLogger(log),
		)

		if sweepEventID != "" {
			res, err := eng.SweepExpired(ctx, sweepEventID)
			if err != nil {
				return err
			}
			return json.NewEncoder(os.Stdout).Encode(res)
		}
		n, err := sweeper.New(eng, time.Minute, log).SweepOnce(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "expired %d invitations\n", n)
		return nil
	},
}

var (
	tokenSub  string
	tokenRole string
	tokenTTL  time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a development JWT signed with JWT_SECRET",
	RunE: func(*cobra.Command, []string) error {
		secret := os.Getenv("JWT_SECRET")
		if secret == "" {
			return fmt.Errorf("JWT_SECRET is not set")
		}
		tok, err := utils.NewAccessToken(secret, tokenSub, tokenRole, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, tok.Token)
		return nil
	},
}

// syncDispatcher publishes inline; a one-shot command has no worker to
// drain a buffer before exit.
type syncDispatcher struct {
	pub notify.Publisher
	log *slog.Logger
}

func (d syncDispatcher) Dispatch(ctx context.Context, n notify.Notification) {
	if err := d.pub.Publish(ctx, n); err != nil {
		d.log.ErrorContext(ctx, "can't publish notification",
			slog.String("err", err.Error()),
			slog.String("kind", string(n.Kind)),
			slog.String("entrant_id", n.EntrantID),
		)
	}
}

func init() {
	sweepCmd.Flags().StringVar(&sweepEventID, "event", "", "sweep only this event (default: every event with overdue invitations)")
	tokenCmd.Flags().StringVar(&tokenSub, "sub", "", "subject (entrant or organizer id)")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "ENTRANT", "ENTRANT, ORGANIZER or ADMIN")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("sub")
}
