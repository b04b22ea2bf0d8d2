// Package app connects the configured backends and builds the cart
// coordinator, checkout orchestrator and order ledger from them.
//
//	a, err := app.Boot(ctx, app.Options{Carts: true, Ledger: true})
//	defer a.Close()
//	coord := a.NewCoordinator(store)
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/cartsync/config"
	"github.com/shashiranjanraj/cartsync/internal/cart"
	"github.com/shashiranjanraj/cartsync/internal/checkout"
	"github.com/shashiranjanraj/cartsync/internal/order"
	"github.com/shashiranjanraj/cartsync/internal/payment"
	"github.com/shashiranjanraj/cartsync/internal/persist"
	"github.com/shashiranjanraj/cartsync/pkg/cache"
	"github.com/shashiranjanraj/cartsync/pkg/database"
	"github.com/shashiranjanraj/cartsync/pkg/logger"
	"github.com/shashiranjanraj/cartsync/pkg/migration"
	"github.com/shashiranjanraj/cartsync/pkg/storage"
)

// Options selects what Boot connects.
type Options struct {
	Carts  bool // cart backends: firestore, redis, local disk
	Ledger bool // order ledger per LEDGER_DRIVER
}

// App holds the connected clients. Fields are nil when not configured.
type App struct {
	Firestore *firestore.Client
	Redis     *redis.Client
	DB        *gorm.DB

	Carts   *persist.Chain
	Watcher persist.Watcher
	Ledger  order.Ledger

	closers []func() error
}

// Boot loads config and connects what opts asks for. Redis and Firestore
// are optional for carts: when they are missing or unreachable the cart
// falls back to the local disk alone.
func Boot(ctx context.Context, opts Options) (*App, error) {
	if err := config.Load(); err != nil {
		logger.Warn("app: config files not loaded, using defaults", "error", err)
	}
	a := &App{}

	if uri := config.LogMongoURI(); uri != "" {
		if err := logger.EnableMongo(uri, config.LogMongoDB()); err != nil {
			logger.Warn("app: mongo log sink disabled", "error", err)
		} else {
			a.closers = append(a.closers, func() error { logger.Shutdown(); return nil })
		}
	}

	needFirestore := opts.Carts || (opts.Ledger && config.LedgerDriver() == "firestore")
	if needFirestore && config.FirestoreProject() != "" {
		fs, err := connectFirestore(ctx, config.FirestoreProject(), config.FirestoreCredentials())
		if err != nil {
			return nil, a.fail(err)
		}
		a.Firestore = fs
		a.closers = append(a.closers, fs.Close)
	}

	if opts.Carts {
		if err := a.bootCarts(ctx); err != nil {
			return nil, a.fail(err)
		}
	}
	if opts.Ledger {
		if err := a.bootLedger(); err != nil {
			return nil, a.fail(err)
		}
	}
	return a, nil
}

func connectFirestore(ctx context.Context, project, credentials string) (*firestore.Client, error) {
	var clientOpts []option.ClientOption
	if c := strings.TrimSpace(credentials); c != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(c))
	}
	fs, err := firestore.NewClient(ctx, project, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("app: firestore client (project=%s): %w", project, err)
	}
	logger.Info("app: firestore connected", "project", project)
	return fs, nil
}

// bootCarts builds the chain remote first: firestore, then redis, then the
// local disk.
func (a *App) bootCarts(ctx context.Context) error {
	var backends []persist.Backend

	if a.Firestore != nil {
		fb := persist.NewFirestoreBackend(a.Firestore)
		backends = append(backends, fb)
		a.Watcher = fb
	} else {
		logger.Warn("app: FIRESTORE_PROJECT not set, carts are not synced remotely")
	}

	if addr := config.RedisAddr(); addr != "" {
		rdb, err := cache.Connect(ctx, addr, config.RedisPassword())
		if err != nil {
			logger.Warn("app: redis unavailable, cart mirror disabled", "addr", addr, "error", err)
		} else {
			a.Redis = rdb
			a.closers = append(a.closers, rdb.Close)
			backends = append(backends, persist.NewRedisBackend(rdb, config.CartCacheTTL()))
		}
	}

	disk, err := storage.NewLocal(config.CartLocalRoot())
	if err != nil {
		return fmt.Errorf("app: cart disk: %w", err)
	}
	backends = append(backends, persist.NewLocalBackend(disk))

	a.Carts = persist.NewChain(backends...)
	return nil
}

func (a *App) bootLedger() error {
	switch config.LedgerDriver() {
	case "sql":
		db, err := database.Open(config.DatabaseDriver(), config.DatabaseDSN())
		if err != nil {
			return err
		}
		a.DB = db
		a.closers = append(a.closers, func() error { return database.Close(db) })
		a.Ledger = order.NewSQLLedger(db)
	default:
		if a.Firestore == nil {
			return errors.New("app: LEDGER_DRIVER=firestore needs FIRESTORE_PROJECT")
		}
		a.Ledger = order.NewFirestoreLedger(a.Firestore)
	}
	return nil
}

// Migrator runs the SQL ledger schema. It fails for the firestore driver,
// which has no schema.
func (a *App) Migrator() (*migration.Runner, error) {
	if a.DB == nil {
		return nil, errors.New("app: migrations need LEDGER_DRIVER=sql")
	}
	return migration.New(a.DB, order.Migrations()...), nil
}

// NewCoordinator wires store to the cart backends.
func (a *App) NewCoordinator(store *cart.Store) *persist.Coordinator {
	return persist.New(store, a.Carts, a.Watcher,
		persist.WithWindow(config.CartSaveDebounce()),
		persist.WithSessionSchemes(config.CartSessionSchemes()...),
	)
}

// NewOrchestrator builds checkout for store. Online payment is offered only
// when PAYSTACK_SECRET_KEY is set.
func (a *App) NewOrchestrator(store *cart.Store, session checkout.Session, confirm checkout.Confirmer, authorizer payment.Authorizer) *checkout.Orchestrator {
	opts := []checkout.Option{
		checkout.WithDeliveryFee(config.DeliveryFee()),
		checkout.WithCurrency(config.Currency()),
	}
	if secret := config.PaystackSecretKey(); secret != "" {
		cfg := payment.PaystackConfig{
			BaseURL:   config.PaystackBaseURL(),
			SecretKey: secret,
			Currency:  config.Currency(),
		}
		opts = append(opts,
			checkout.WithGateway(payment.NewPaystackGateway(cfg, authorizer)),
			checkout.WithCardProcessor(payment.Validating(payment.NewPaystackCardProcessor(cfg))),
		)
	}
	return checkout.New(store, a.Ledger, session, confirm, opts...)
}

// Close releases every connection, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) fail(err error) error {
	if cerr := a.Close(); cerr != nil {
		logger.Warn("app: close after failed boot", "error", cerr)
	}
	return err
}
