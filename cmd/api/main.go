package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/lightningnetwork/lnd/ticker"

	"github.com/fastprodman/gumball/internal/api"
	"github.com/fastprodman/gumball/internal/chain"
	"github.com/fastprodman/gumball/internal/config"
	"github.com/fastprodman/gumball/internal/events"
	"github.com/fastprodman/gumball/internal/infra/logging"
	"github.com/fastprodman/gumball/internal/infra/pgutils"
	"github.com/fastprodman/gumball/internal/ledgers/memledger"
	"github.com/fastprodman/gumball/internal/repos/memory"
	"github.com/fastprodman/gumball/internal/repos/pgstore"
	"github.com/fastprodman/gumball/internal/services/gumball"
	"github.com/fastprodman/gumball/pkg/envconf"
	"github.com/fastprodman/gumball/pkg/shutdownqueue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running api: %v", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

//nolint:funlen
func run(ctx context.Context) (retErr error) {
	cfg := new(apiConfig)

	err := envconf.Load(cfg)
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	err = cfg.validate()
	if err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	logger := logging.Setup(cfg.LogFormat, cfg.LogLevel)

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		serr := shutdownqueue.Shutdown(shutdownCtx)
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}
	}()

	params, err := config.LoadMachineParams(cfg.MachineConfig)
	if err != nil {
		return fmt.Errorf("machine params: %w", err)
	}

	// --- Infra ---
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	host, err := chain.NewSimChain(chain.Config{
		Ticker:       ticker.New(cfg.BlockInterval),
		HistoryDepth: chain.HistoryDepthFor(params.Window),
		Logger:       logger.With("component", "chain"),
	})
	if err != nil {
		return fmt.Errorf("init chain: %w", err)
	}

	host.Start()
	shutdownqueue.Add("block producer", func(context.Context) error {
		host.Stop()
		return nil
	})

	reference := memledger.NewFungible()
	items := memledger.NewCollectibles()
	bus := events.NewBus(logger.With("component", "events"))

	// --- Service ---
	machine, err := gumball.New(gumball.Config{
		Params:    params,
		Store:     store,
		Reference: reference,
		Custody:   items,
		Chain:     host,
		Events:    bus,
		Logger:    logger.With("component", "gumball"),
	})
	if err != nil {
		return fmt.Errorf("init machine: %w", err)
	}

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	janitorDone := make(chan struct{})

	go func() {
		defer close(janitorDone)
		machine.RunJanitor(janitorCtx, ticker.New(cfg.SweepInterval))
	}()

	shutdownqueue.Add("janitor", func(c context.Context) error {
		stopJanitor()

		select {
		case <-janitorDone:
			return nil
		case <-c.Done():
			return c.Err()
		}
	})

	// --- HTTP server ---
	deps := api.Deps{Machine: machine, Events: bus, Logger: logger}
	if cfg.AppEnv == envDev {
		deps.Dev = &api.DevLedgers{Reference: reference, Items: items}
	}

	srv := api.NewServer(cfg.Port, api.NewRouter(deps))

	shutdownqueue.Add("http server", func(c context.Context) error {
		err := srv.Shutdown(c)
		if err != nil {
			return fmt.Errorf("shutdown srv: %w", err)
		}

		return nil
	})

	// Run server
	errCh := make(chan error, 1)

	go func() {
		serr := srv.ListenAndServe()
		// http.ErrServerClosed is the normal path during Shutdown
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- serr
			return
		}

		errCh <- nil
	}()

	slog.Info("API started",
		"port", cfg.Port,
		"store", cfg.StoreBackend,
		"dev_routes", deps.Dev != nil,
		"price", params.Price,
	)

	// --- Wait until either context cancels or server errors out ---
	select {
	case <-ctx.Done():
		// graceful path; deferred shutdownqueue.Shutdown will run
		return nil
	case serr := <-errCh:
		if serr != nil {
			return fmt.Errorf("server error: %w", serr)
		}

		return nil
	}
}

func openStore(ctx context.Context, cfg *apiConfig) (gumball.Store, error) {
	if cfg.StoreBackend != backendPostgres {
		return memory.New(), nil
	}

	db, err := pgutils.OpenDB(ctx, cfg.Postgres.DSN, cfg.Postgres.Pool())
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	shutdownqueue.Add("database", func(context.Context) error {
		return db.Close()
	})

	return pgstore.New(db), nil
}
