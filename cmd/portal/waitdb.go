package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

func waitDBCmd() *cobra.Command {
	var (
		dsn      string
		timeout  time.Duration
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "waitdb",
		Short: "Wait until Postgres accepts connections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dsn == "" {
				return fmt.Errorf("--dsn, TEST_POSTGRES_DSN or DATABASE_URL is required")
			}
			db, err := sql.Open("postgres", dsn)
			if err != nil {
				return fmt.Errorf("open postgres: %w", err)
			}
			defer db.Close()

			if err := waitForDB(cmd.Context(), db, timeout, interval); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "postgres ready")
			return nil
		},
	}

	defaultDSN := os.Getenv("TEST_POSTGRES_DSN")
	if defaultDSN == "" {
		defaultDSN = os.Getenv("DATABASE_URL")
	}
	cmd.Flags().StringVar(&dsn, "dsn", defaultDSN, "Postgres connection string")
	cmd.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "Give up after this long")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Delay between attempts")
	return cmd
}

type pinger interface {
	PingContext(ctx context.Context) error
}

func waitForDB(ctx context.Context, db pinger, timeout, interval time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("postgres not ready within %s: %w", timeout, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
