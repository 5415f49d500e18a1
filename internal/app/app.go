package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"enarm/portal/internal/audit"
	"enarm/portal/internal/auth"
	"enarm/portal/internal/authapi"
	"enarm/portal/internal/config"
	"enarm/portal/internal/httpserver"
	"enarm/portal/internal/login"
	"enarm/portal/internal/metrics"
	"enarm/portal/internal/observability"
	"enarm/portal/internal/routes"
	"enarm/portal/internal/storage"
)

type App struct {
	cfg     config.Config
	log     *slog.Logger
	server  *httpserver.Server
	closers []io.Closer
}

// New wires every component described by cfg. Resources opened before a
// failure are released before returning.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{
		cfg: cfg,
		log: observability.NewLogger(os.Stdout, cfg.Log.Level, cfg.Log.Format),
	}
	if err := a.build(ctx); err != nil {
		_ = a.close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.cfg

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		a.closers = append(a.closers, db)
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}
	}

	backend, err := a.openStorage(db)
	if err != nil {
		return err
	}

	authenticator, err := a.openAuthenticator(ctx, db)
	if err != nil {
		return err
	}

	sink, err := a.openAudit()
	if err != nil {
		return err
	}

	table, err := loadRoutes(cfg.RoutesFile)
	if err != nil {
		return err
	}

	reg, m := metrics.NewRegistry()

	flow, err := login.NewFlow(authenticator,
		login.WithLogger(a.log),
		login.WithObserver(m),
		login.WithAudit(sink),
	)
	if err != nil {
		return fmt.Errorf("create login flow: %w", err)
	}

	a.server = httpserver.New(cfg.HTTP, httpserver.Deps{
		Storage:         backend,
		Flow:            flow,
		Routes:          table,
		Metrics:         m,
		Gatherer:        reg,
		Logger:          a.log,
		Cookie:          cfg.Cookie,
		FrontendDistDir: cfg.FrontendDistDir,
	})
	return nil
}

func (a *App) openStorage(db *sql.DB) (storage.Storage, error) {
	cfg := a.cfg
	switch cfg.Storage.Driver {
	case config.StorageMemory:
		return storage.NewMemory(), nil
	case config.StorageFile:
		s, err := storage.NewFile(cfg.Storage.File)
		if err != nil {
			return nil, fmt.Errorf("create file storage: %w", err)
		}
		return s, nil
	case config.StoragePostgres:
		s, err := storage.NewPostgres(db)
		if err != nil {
			return nil, fmt.Errorf("create postgres storage: %w", err)
		}
		return s, nil
	case config.StorageRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, client)
		s, err := storage.NewRedis(client,
			storage.WithRedisPrefix(cfg.Redis.Prefix),
			storage.WithRedisTTL(cfg.Storage.TTL),
		)
		if err != nil {
			return nil, fmt.Errorf("create redis storage: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func (a *App) openAuthenticator(ctx context.Context, db *sql.DB) (authapi.Authenticator, error) {
	cfg := a.cfg
	if cfg.Auth.Mode == config.AuthRemote {
		client, err := authapi.NewClient(cfg.Auth.APIURL, &http.Client{Timeout: cfg.Auth.APITimeout})
		if err != nil {
			return nil, fmt.Errorf("create auth client: %w", err)
		}
		a.log.Info("using remote authentication service", "url", cfg.Auth.APIURL)
		return client, nil
	}

	var users auth.UserStore
	if db != nil {
		pg, err := auth.NewPostgresUserStore(ctx, db)
		if err != nil {
			return nil, fmt.Errorf("create postgres user store: %w", err)
		}
		users = pg
	} else {
		fs, err := auth.NewFileUserStore(cfg.Auth.UserStateFile)
		if err != nil {
			return nil, fmt.Errorf("create user store: %w", err)
		}
		users = fs
	}

	svc, err := auth.NewService(users, auth.ServiceConfig{BcryptCost: cfg.Auth.BcryptCost})
	if err != nil {
		return nil, fmt.Errorf("create auth service: %w", err)
	}
	created, err := svc.EnsureAdmin(ctx, cfg.Auth.BootstrapEmail, cfg.Auth.BootstrapPassword, cfg.Auth.BootstrapName)
	if err != nil {
		return nil, fmt.Errorf("create bootstrap admin: %w", err)
	}
	if created {
		a.log.Info("bootstrap admin created", "email", cfg.Auth.BootstrapEmail)
	}
	return svc, nil
}

func (a *App) openAudit() (audit.Sink, error) {
	cfg := a.cfg.Audit
	sinks := audit.Multi{audit.NewLogger(cfg.LogFile)}
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := audit.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, fmt.Errorf("create kafka audit sink: %w", err)
		}
		a.closers = append(a.closers, kafka)
		sinks = append(sinks, kafka)
	}
	return sinks, nil
}

func loadRoutes(path string) (routes.Table, error) {
	if path == "" {
		t, err := routes.Default()
		if err != nil {
			return routes.Table{}, fmt.Errorf("load default routes: %w", err)
		}
		return t, nil
	}
	t, err := routes.Load(path)
	if err != nil {
		return routes.Table{}, fmt.Errorf("load routes: %w", err)
	}
	return t, nil
}

func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Run serves HTTP until ctx is cancelled or the server fails, then shuts
// down and releases every resource.
func (a *App) Run(ctx context.Context) error {
	defer func() {
		if err := a.close(); err != nil {
			a.log.Warn("release resources", "error", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info("http server starting", "addr", a.cfg.HTTP.Addr)
		if err := a.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server exited: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func (a *App) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
