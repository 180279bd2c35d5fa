package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/wichananm65/storefront/internal/address"
	"github.com/wichananm65/storefront/internal/cart"
	"github.com/wichananm65/storefront/internal/config"
	"github.com/wichananm65/storefront/internal/inventory"
	"github.com/wichananm65/storefront/internal/notify"
	"github.com/wichananm65/storefront/internal/order"
	"github.com/wichananm65/storefront/internal/product"
	"github.com/wichananm65/storefront/internal/server"
	"github.com/wichananm65/storefront/internal/storage"
	"github.com/wichananm65/storefront/internal/user"
)

func main() {
	app := &cli.App{
		Name:  "storefront",
		Usage: "catalog, cart and order API",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serve,
			},
			{
				Name:  "migrate",
				Usage: "apply or roll back the database schema",
				Subcommands: []*cli.Command{
					{Name: "up", Action: migrateAction(storage.Up)},
					{Name: "down", Action: migrateAction(storage.Down)},
				},
			},
			{
				Name:  "seed",
				Usage: "load a YAML product catalog",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Value: "catalog.yaml", Usage: "catalog file"},
				},
				Action: seed,
			},
			{
				Name:  "create-admin",
				Usage: "create a staff account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"ADMIN_PASSWORD"}},
				},
				Action: createAdmin,
			},
			{
				Name:   "purge-carts",
				Usage:  "delete expired carts",
				Action: purgeCarts,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("storefront failed")
	}
}

func setup() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if cfg.LogFormat == "text" {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&log.JSONFormatter{})
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return config.Config{}, errors.Wrap(err, "LOG_LEVEL")
	}
	log.SetLevel(level)
	return cfg, nil
}

func openDB(ctx context.Context, cfg config.Config) (*sqlx.DB, error) {
	return storage.Open(ctx, storage.Options{
		URL:            cfg.DatabaseURL,
		ConnectTimeout: cfg.DB.ConnectTimeout,
		ConnectRetries: cfg.DB.ConnectRetries,
		MaxOpenConns:   cfg.DB.MaxOpenConns,
	}, log.StandardLogger())
}

func serve(c *cli.Context) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	if err := cfg.RequireServe(); err != nil {
		return err
	}
	logger := log.StandardLogger()

	db, err := openDB(c.Context, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	events := notify.Multi{notify.NewLogger(logger)}
	if cfg.AMQP.URL != "" {
		pub, err := notify.Dial(c.Context, cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.DB.ConnectRetries, logger)
		if err != nil {
			return err
		}
		defer pub.Close()
		events = append(events, pub)
	}

	tx := storage.NewSQLTransactor(db, cfg.DB.OperationTimeout)
	productRepo := product.NewPostgresRepository(db, tx)
	cartRepo := cart.NewPostgresRepository(db, tx)
	addressService := address.NewService(address.NewPostgresRepository(db))
	ledger := inventory.NewLedger(inventory.NewPostgresStore(db), tx, logger)
	orderService := order.NewService(
		order.NewPostgresRepository(db, tx),
		cartRepo,
		addressService,
		productRepo,
		ledger,
		tx,
		events,
		logger,
	)

	app := server.New(cfg.JWTSecret, server.Handlers{
		Users:     user.NewHandler(user.NewService(user.NewPostgresRepository(db), addressService, cfg.JWTSecret, cfg.TokenTTL, logger)),
		Products:  product.NewHandler(product.NewService(productRepo, logger)),
		Inventory: inventory.NewHandler(ledger),
		Carts:     cart.NewHandler(cart.NewService(cartRepo, productRepo, tx, cfg.CartTTL, logger)),
		Addresses: address.NewHandler(addressService),
		Orders:    order.NewHandler(orderService),
	}, logger)

	errs := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Addr).Info("starting server")
		errs <- app.Listen(cfg.Addr)
	}()

	kill := make(chan os.Signal, 1)
	signal.Notify(kill, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errs:
		return errors.Wrap(err, "listen")
	case sig := <-kill:
		log.WithField("signal", sig.String()).Info("shutting down")
	}
	return app.Shutdown()
}

func migrateAction(dir storage.Direction) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		db, err := openDB(c.Context, cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		return storage.Migrate(db.DB, dir, log.StandardLogger())
	}
}

func seed(c *cli.Context) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	f, err := os.Open(c.String("file"))
	if err != nil {
		return errors.Wrap(err, "open catalog")
	}
	defer f.Close()
	products, err := product.LoadSeed(f)
	if err != nil {
		return err
	}

	db, err := openDB(c.Context, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	tx := storage.NewSQLTransactor(db, cfg.DB.OperationTimeout)
	svc := product.NewService(product.NewPostgresRepository(db, tx), log.StandardLogger())
	n, err := svc.Seed(c.Context, products)
	log.WithFields(log.Fields{"created": n, "file": c.String("file")}).Info("catalog seeded")
	return err
}

func createAdmin(c *cli.Context) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	db, err := openDB(c.Context, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	addresses := address.NewService(address.NewPostgresRepository(db))
	svc := user.NewService(user.NewPostgresRepository(db), addresses, cfg.JWTSecret, cfg.TokenTTL, log.StandardLogger())
	_, err = svc.CreateStaff(c.Context, user.Registration{
		Email:    c.String("email"),
		Password: c.String("password"),
	})
	return err
}

func purgeCarts(c *cli.Context) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	db, err := openDB(c.Context, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	tx := storage.NewSQLTransactor(db, cfg.DB.OperationTimeout)
	products := product.NewPostgresRepository(db, tx)
	svc := cart.NewService(cart.NewPostgresRepository(db, tx), products, tx, cfg.CartTTL, log.StandardLogger())
	_, err = svc.PurgeExpired(c.Context)
	return err
}
