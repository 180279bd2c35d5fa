// Package storage opens the Postgres pool and owns the transaction scope
// shared by the inventory, cart and order repositories.
package storage

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Options struct {
	URL            string
	ConnectTimeout time.Duration
	ConnectRetries uint64
	MaxOpenConns   int
}

// Open connects through the pgx stdlib driver and pings until the server
// answers or the retry budget is spent.
func Open(ctx context.Context, opts Options, log logrus.FieldLogger) (*sqlx.DB, error) {
	if opts.URL == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}
	db, err := sqlx.Open("pgx", opts.URL)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
		db.SetMaxIdleConns(opts.MaxOpenConns)
	}

	ping := func() error {
		pingCtx, cancel := withTimeout(ctx, opts.ConnectTimeout)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			log.WithError(err).Warn("database not ready")
			return err
		}
		return nil
	}
	if err := backoff.Retry(ping, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), opts.ConnectRetries)); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping database")
	}
	return db, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
