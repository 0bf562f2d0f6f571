package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/listorder/internal/config"
	"github.com/roach88/listorder/internal/lock"
	"github.com/roach88/listorder/internal/logger"
	"github.com/roach88/listorder/internal/metrics"
	"github.com/roach88/listorder/internal/ordering"
	"github.com/roach88/listorder/internal/repository"
	"github.com/roach88/listorder/internal/store"
	"github.com/roach88/listorder/internal/store/memory"
	"github.com/roach88/listorder/internal/store/mongo"
	"github.com/roach88/listorder/internal/store/postgres"
	"github.com/roach88/listorder/internal/store/sqlite"
)

// app is everything a record command needs: a repository over the
// selected list, plus the resources to release.
type app struct {
	repo     *repository.Repository
	store    store.Store
	locker   lock.Locker
	registry *prometheus.Registry
	log      *slog.Logger
	out      *OutputFormatter
}

// openApp loads configuration, installs the logger, and opens the store,
// the locker and the list repository. Failures are reported through out
// and returned as ExitErrors.
func openApp(ctx context.Context, opts *RootOptions, out *OutputFormatter) (*app, context.Context, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, ctx, out.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}

	level := cfg.Logging.Level
	if opts.Verbose {
		level = "debug"
	}
	logger.Setup(out.GetErrWriter(), level, cfg.Logging.Format)

	listCfg, err := cfg.List(opts.List)
	if err != nil {
		return nil, ctx, out.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}
	orderingCfg, err := listCfg.Ordering()
	if err != nil {
		return nil, ctx, out.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}
	listName := opts.List
	if listName == "" {
		listName = listCfg.Collection
	}
	ctx = logger.WithList(ctx, listName)

	a := &app{
		log: logger.FromContext(ctx),
		out: out,
	}

	a.store, err = openStore(ctx, cfg.Store)
	if err != nil {
		return nil, ctx, out.Fail(ExitCommandError, ErrCodeStoreOpen, err.Error(), map[string]string{"driver": cfg.Store.Driver})
	}
	coll, err := a.store.Collection(listCfg.Collection)
	if err != nil {
		a.Close()
		return nil, ctx, out.Fail(ExitCommandError, ErrCodeStoreOpen, err.Error(), nil)
	}

	if cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		m, err := metrics.New(a.registry)
		if err != nil {
			a.Close()
			return nil, ctx, out.Fail(ExitCommandError, ErrCodeStoreOpen, err.Error(), nil)
		}
		coll = m.Wrap(coll)
	}

	a.locker, err = openLocker(ctx, cfg.Lock)
	if err != nil {
		a.Close()
		return nil, ctx, out.Fail(ExitCommandError, ErrCodeStoreOpen, err.Error(), map[string]string{"lock": cfg.Lock.Driver})
	}

	a.repo, err = repository.New(coll, orderingCfg,
		ordering.WithLocker(a.locker),
		ordering.WithLogger(a.log.With("component", "ordering")),
	)
	if err != nil {
		a.Close()
		return nil, ctx, out.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}
	if err := a.repo.EnsureIndexes(ctx); err != nil {
		a.Close()
		return nil, ctx, out.Fail(ExitCommandError, ErrCodeStoreOpen, err.Error(), nil)
	}

	a.log.Debug("opened list",
		"collection", listCfg.Collection,
		"column", orderingCfg.Column,
		"scope", orderingCfg.Scope,
		"store", cfg.Store.Driver,
		"lock", cfg.Lock.Driver)
	return a, ctx, nil
}

// Close releases the locker and the store. With metrics enabled and
// verbose output on, the store call counts are printed first.
func (a *app) Close() error {
	if a.registry != nil && a.out.Verbose {
		if rows, err := metrics.Summary(a.registry); err == nil {
			for _, r := range rows {
				a.out.VerboseLog("store %s %s %s: %.0f", r.Collection, r.Op, r.Status, r.Count)
			}
		}
	}
	var errs []error
	if c, ok := a.locker.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}

// openStore opens the document store selected by cfg.Driver.
func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case "memory":
		return memory.New(), nil
	case "sqlite":
		s, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		opts := postgres.DefaultOptions(cfg.DSN)
		if cfg.MaxOpenConns > 0 {
			opts.MaxOpenConns = cfg.MaxOpenConns
		}
		if cfg.ConnMaxLifetime > 0 {
			opts.ConnMaxLifetime = cfg.ConnMaxLifetime.Std()
		}
		s, err := postgres.Open(ctx, opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "mongo":
		s, err := mongo.Open(ctx, cfg.URI, cfg.Database)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// openLocker returns the scope locker selected by cfg.Driver.
func openLocker(ctx context.Context, cfg config.LockConfig) (lock.Locker, error) {
	switch cfg.Driver {
	case "", "none":
		return lock.Noop{}, nil
	case "mutex":
		return lock.NewMutex(), nil
	case "redis":
		r, err := lock.NewRedis(ctx, lock.RedisOptions{
			Addr:          cfg.Redis.Addr,
			Password:      cfg.Redis.Password,
			DB:            cfg.Redis.DB,
			TTL:           cfg.TTL.Std(),
			RetryInterval: cfg.RetryInterval.Std(),
			Prefix:        cfg.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown lock driver %q", cfg.Driver)
	}
}

// withApp opens the app, runs fn and closes the app.
func withApp(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, a *app) error) error {
	out := opts.formatter(cmd)
	a, ctx, err := openApp(cmdContext(cmd), opts, out)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// opError reports a failed record operation. Unknown ids get their own
// code.
func (a *app) opError(op, id string, err error) error {
	a.log.Debug("operation failed", "op", op, "id", id, "error", err)
	if repository.IsNotFound(err) {
		return a.out.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("record %s not found", id), nil)
	}
	return a.out.Fail(ExitCommandError, ErrCodeOperation, fmt.Sprintf("%s %s: %v", op, id, err), nil)
}
