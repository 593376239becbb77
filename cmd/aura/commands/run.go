package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/dyluth/aura/internal/artifact"
	"github.com/dyluth/aura/internal/config"
	"github.com/dyluth/aura/internal/feed"
	"github.com/dyluth/aura/internal/logging"
	"github.com/dyluth/aura/internal/metrics"
	"github.com/dyluth/aura/internal/printer"
	"github.com/dyluth/aura/internal/reconcile"
	"github.com/dyluth/aura/pkg/board"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	runFeedAddr string
	runNoFeed   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a reconciling client for the room",
	Long: `Run one client: a reconciliation engine per configured domain that keeps
the local artifact set in step with the board.

The artifact set is served on the feed (HTTP + WebSocket) so a renderer can
draw it. Stop with Ctrl-C; the client removes its artifacts on exit.

Examples:
  # Follow room 'dungeon-1' and serve the feed on :8080
  aura run --room dungeon-1

  # Engines only, no HTTP listener
  aura run --no-feed`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runFeedAddr, "feed-addr", "", "Feed listen address (overrides config)")
	runCmd.Flags().BoolVar(&runNoFeed, "no-feed", false, "Do not start the feed server")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := logging.New("aura", logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return printer.Error("invalid logging configuration", err.Error(), nil)
	}
	logger = logger.With().Str("room", cfg.Room).Logger()
	metrics.RegisterMetrics()

	feedAddr := ""
	if cfg.FeedEnabled() && !runNoFeed {
		feedAddr = cfg.Feed.Addr
		if runFeedAddr != "" {
			feedAddr = runFeedAddr
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return runClient(ctx, cfg, feedAddr, logger)
}

// domainEngine pairs an engine with its on-demand pass trigger.
type domainEngine struct {
	engine *reconcile.Engine
	manual chan struct{}
}

// runClient runs the engines, and the feed when feedAddr is set, until ctx is
// cancelled or an engine fails. Every engine removes its artifacts on exit.
func runClient(parent context.Context, cfg *config.AuraConfig, feedAddr string, logger zerolog.Logger) error {
	ctx, stop := context.WithCancel(parent)
	defer stop()

	client, err := openBoard(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	store := artifact.NewStore()
	factory := artifact.NewFactory(
		artifact.WithCircleSegments(cfg.Engine.CircleSegments),
		artifact.WithParticleCount(cfg.Engine.ParticleCount),
	)

	// Engines are built up front so the feed can serve their identity maps.
	// Each engine's manual channel holds one pending on-demand pass.
	domains := make([]domainEngine, 0, len(cfg.Domains))
	feedOpts := []feed.Option{feed.WithLogger(logger)}
	for _, domain := range cfg.Domains {
		d := domainEngine{
			engine: reconcile.NewEngine(client, store, factory,
				reconcile.WithDomain(domain),
				reconcile.WithLogger(logger),
				reconcile.WithNotifier(reconcile.NotifierFunc(printer.Notice)),
			),
			manual: make(chan struct{}, 1),
		}
		domains = append(domains, d)
		feedOpts = append(feedOpts, feed.WithEngine(d.engine, d.manual))
	}

	var feedServer *feed.Server
	if feedAddr != "" {
		feedServer = feed.NewServer(feedAddr, client, store, feedOpts...)
		if err := feedServer.Start(); err != nil {
			return printer.ErrorWithContext(
				"feed failed to start",
				err.Error(),
				map[string]string{"Address": feedAddr},
				[]string{
					"Choose another address:\n  aura run --feed-addr :8081",
					"Disable the feed:\n  aura run --no-feed",
				},
			)
		}
	}

	engines := make([]*reconcile.Engine, 0, len(domains))
	var wg sync.WaitGroup
	errCh := make(chan error, len(domains)+1)

	for _, d := range domains {
		triggers, release, err := subscribe(ctx, client, store, cfg.Engine.ResyncInterval.Duration)
		if err != nil {
			errCh <- fmt.Errorf("failed to subscribe for domain %s: %w", d.engine.Domain(), err)
			stop()
			break
		}
		triggers.Manual = d.manual
		engines = append(engines, d.engine)

		wg.Add(1)
		go func(d domainEngine) {
			defer wg.Done()
			defer release()
			if err := d.engine.Run(ctx, triggers); err != nil {
				errCh <- fmt.Errorf("engine %s: %w", d.engine.Domain(), err)
				stop()
			}
		}(d)
	}

	if feedServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := feedServer.Stream(ctx); err != nil {
				errCh <- fmt.Errorf("feed: %w", err)
				stop()
			}
		}()
	}

	if ctx.Err() == nil {
		printer.Success("Following room '%s' (domains: %v)\n", cfg.Room, cfg.Domains)
		if feedServer != nil {
			printer.Info("Feed: http://%s/artifacts\n", displayAddr(feedAddr))
		}
	}

	<-ctx.Done()
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var errs []error
	for _, engine := range engines {
		if err := engine.Close(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}
	if feedServer != nil {
		if err := feedServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}
	close(errCh)
	for err := range errCh {
		errs = append(errs, err)
	}

	logShutdown(logger, errs)
	return errors.Join(errs...)
}

// subscribe opens the board and artifact streams one engine follows. The
// returned release func closes all of them.
func subscribe(ctx context.Context, client *board.Client, store *artifact.Store, resync time.Duration) (reconcile.Triggers, func(), error) {
	anchors, err := client.SubscribeAnchorEvents(ctx)
	if err != nil {
		return reconcile.Triggers{}, nil, err
	}
	boardEvents, err := client.SubscribeBoardEvents(ctx)
	if err != nil {
		anchors.Close()
		return reconcile.Triggers{}, nil, err
	}
	artifacts, unsubscribe := store.Subscribe()

	release := func() {
		anchors.Close()
		boardEvents.Close()
		unsubscribe()
	}
	return reconcile.Triggers{
		Anchors:   anchors.Events(),
		Board:     boardEvents.Events(),
		Artifacts: artifacts,
		Errors:    mergeErrors(ctx, anchors.Errors(), boardEvents.Errors()),
		Resync:    resync,
	}, release, nil
}

// mergeErrors fans several error streams into one. The output closes once
// every input has closed or ctx is done.
func mergeErrors(ctx context.Context, inputs ...<-chan error) <-chan error {
	out := make(chan error)
	var wg sync.WaitGroup
	for _, in := range inputs {
		wg.Add(1)
		go func(in <-chan error) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case err, ok := <-in:
					if !ok {
						return
					}
					select {
					case out <- err:
					case <-ctx.Done():
						return
					}
				}
			}
		}(in)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}

func logShutdown(logger zerolog.Logger, errs []error) {
	if len(errs) == 0 {
		logger.Info().Str("event_type", "client_stopped").Msg("client_stopped")
		return
	}
	logger.Error().Str("event_type", "client_stopped").Errs("errors", errs).Msg("client_stopped")
}
