package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sieve-urls/sieve/internal/api"
	"github.com/sieve-urls/sieve/internal/buildinfo"
	"github.com/sieve-urls/sieve/internal/config"
	"github.com/sieve-urls/sieve/internal/registry"
	"github.com/sieve-urls/sieve/internal/rulepack"
	"github.com/sieve-urls/sieve/internal/service"
	"github.com/sieve-urls/sieve/internal/state"
)

type sieveApp struct {
	envCfg *config.EnvConfig
	db     *sql.DB
	reg    *registry.Registry
	svc    *service.Service
	cron   *cron.Cron
	apiSrv *api.Server
}

func run() error {
	envCfg, err := config.LoadEnvConfig()
	if err != nil {
		return err
	}
	warnAboutAdminToken(envCfg.AdminToken)

	if err := os.MkdirAll(envCfg.StateDir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	db, err := state.OpenDB(filepath.Join(envCfg.StateDir, "state.db"))
	if err != nil {
		return fmt.Errorf("open state db: %w", err)
	}
	if err := state.MigrateStateDB(db); err != nil {
		_ = db.Close()
		return fmt.Errorf("migrate state db: %w", err)
	}
	log.Println("[main] state db ready")

	app, err := newSieveApp(envCfg, db)
	if err != nil {
		_ = db.Close()
		return err
	}

	serverErrCh := app.startServers()
	runtimeErr := waitForShutdown(serverErrCh)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	app.shutdown(ctx)

	if err := db.Close(); err != nil {
		log.Printf("[main] state db close error: %v", err)
	}
	if runtimeErr != nil {
		return fmt.Errorf("runtime server error: %w", runtimeErr)
	}
	return nil
}

func warnAboutAdminToken(token string) {
	if token == "" {
		log.Println("[main] WARNING: SIEVE_ADMIN_TOKEN is empty; API authentication is effectively disabled")
		return
	}
	if config.IsWeakToken(token) {
		log.Println("[main] WARNING: SIEVE_ADMIN_TOKEN is weak; consider a longer random value")
	}
}

func newSieveApp(envCfg *config.EnvConfig, db *sql.DB) (*sieveApp, error) {
	reg, err := bootstrapRegistry(envCfg, db)
	if err != nil {
		return nil, err
	}

	svc := service.New(reg, db, service.SystemInfo{
		Version:   buildinfo.Version,
		GitCommit: buildinfo.GitCommit,
		BuildTime: buildinfo.BuildTime,
		StartedAt: time.Now().UTC(),
	})

	app := &sieveApp{
		envCfg: envCfg,
		db:     db,
		reg:    reg,
		svc:    svc,
	}
	if err := app.startBackgroundJobs(); err != nil {
		return nil, err
	}

	app.apiSrv = api.NewServerWithAddress(
		envCfg.ListenAddress,
		envCfg.Port,
		envCfg.AdminToken,
		svc,
		int64(envCfg.APIMaxBodyBytes),
	)
	return app, nil
}

// bootstrapRegistry builds the engine and loads its ruleset: the saved
// snapshot when one exists, the built-in defaults on first boot.
func bootstrapRegistry(envCfg *config.EnvConfig, db *sql.DB) (*registry.Registry, error) {
	reg, err := registry.New(registry.Config{
		NormalisationCacheCapacity: envCfg.NormalisationCacheCapacity,
		DomainErrorThreshold:       envCfg.DomainErrorThreshold,
		DomainErrorWindow:          envCfg.DomainErrorWindow,
	})
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}

	empty, err := state.IsEmpty(db)
	if err != nil {
		return nil, fmt.Errorf("inspect state db: %w", err)
	}

	if empty {
		snap, err := rulepack.Defaults()
		if err != nil {
			return nil, fmt.Errorf("load default rule pack: %w", err)
		}
		reg.Install(snap)
		if err := state.SaveSnapshot(db, reg.Export()); err != nil {
			return nil, fmt.Errorf("save initial snapshot: %w", err)
		}
		reg.SetClean()
		log.Printf("[main] first boot: installed default rule pack (%d url classes)", len(snap.URLClasses))
		return reg, nil
	}

	snap, err := state.LoadSnapshot(db)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	reg.Install(snap)
	reg.SetClean()
	log.Printf("[main] restored snapshot (%d url classes, %d parsers)", len(snap.URLClasses), len(snap.Parsers))
	return reg, nil
}

func (a *sieveApp) startBackgroundJobs() error {
	a.cron = cron.New()

	if _, err := a.cron.AddFunc(a.envCfg.SnapshotFlushSchedule, func() {
		if err := a.svc.FlushIfDirty(); err != nil {
			log.Printf("[main] snapshot flush error: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule snapshot flush: %w", err)
	}

	if _, err := a.cron.AddFunc(a.envCfg.BreakerScrubSchedule, func() {
		a.reg.ScrubAllStaleDomainErrors()
	}); err != nil {
		return fmt.Errorf("schedule breaker scrub: %w", err)
	}

	a.cron.Start()
	log.Println("[main] background jobs scheduled")
	return nil
}

func (a *sieveApp) startServers() <-chan error {
	serverErrCh := make(chan error, 1)

	go func() {
		log.Printf("[main] Sieve API server starting on http://%s:%d", a.envCfg.ListenAddress, a.envCfg.Port)
		if err := a.apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case serverErrCh <- fmt.Errorf("api server: %w", err):
			default:
			}
		}
	}()

	return serverErrCh
}

func waitForShutdown(serverErrCh <-chan error) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		log.Printf("[main] received signal %s, shutting down...", sig)
		return nil
	case err := <-serverErrCh:
		log.Printf("[main] received server runtime error (%v), shutting down...", err)
		return err
	}
}

func (a *sieveApp) shutdown(ctx context.Context) {
	if err := a.apiSrv.Shutdown(ctx); err != nil {
		log.Printf("[main] server shutdown error: %v", err)
	}
	log.Println("[main] API server stopped")

	stopped := a.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
	}
	log.Println("[main] background jobs stopped")

	// Final flush so mutations since the last scheduled run survive restart.
	if err := a.svc.FlushIfDirty(); err != nil {
		log.Printf("[main] final snapshot flush error: %v", err)
	}
	log.Println("[main] server stopped")
}
