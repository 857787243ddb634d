package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/tunedeck/internal/approval"
	"github.com/nextlevelbuilder/tunedeck/internal/bus"
	"github.com/nextlevelbuilder/tunedeck/internal/config"
	"github.com/nextlevelbuilder/tunedeck/internal/gateway"
	"github.com/nextlevelbuilder/tunedeck/internal/httpapi"
	"github.com/nextlevelbuilder/tunedeck/internal/pairing"
	"github.com/nextlevelbuilder/tunedeck/internal/player"
	"github.com/nextlevelbuilder/tunedeck/internal/secrets"
	"github.com/nextlevelbuilder/tunedeck/internal/token"
	"github.com/nextlevelbuilder/tunedeck/internal/view"
)

func serveCmd() *cobra.Command {
	var (
		flagSim          bool
		flagAllowPairing bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the companion control server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			if flagLogLevel == "" {
				setupLogging(cfg.LogLevel)
			}
			if flagSim {
				cfg.Sim = true
			}
			if flagAllowPairing {
				cfg.AllowPairing = true
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().BoolVar(&flagSim, "sim", false, "run with the built-in simulated media view")
	cmd.Flags().BoolVar(&flagAllowPairing, "allow-pairing", false, "arm approval for one pairing at startup")

	return cmd
}

func runServe(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	blob, err := secrets.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open secret store: %w", err)
	}
	tokens := token.NewStore(blob)

	events := bus.New()
	provider := player.NewProvider(events)
	bridge := view.NewBridge()
	registry := pairing.NewRegistry()
	broker := approval.NewBroker(registry, tokens, approval.NewTerminalSurface())

	if cfg.AllowPairing {
		broker.Arm()
	}
	if cfg.Sim {
		bridge.Attach(player.NewSimulator(provider, bridge, events))
		slog.Info("simulated media view attached")
	}

	api := httpapi.NewServer(registry, broker, tokens, provider, bridge, "tunedeck", Version)
	applyRateLimits(api, cfg)

	realtime := gateway.NewServer(tokens, events)

	root := http.NewServeMux()
	root.HandleFunc("/realtime", realtime.HandleWS)
	root.Handle("/", api.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Listen.Host, cfg.Listen.Port),
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	watcher := startConfigWatcher(broker, api, cfg)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("companion server listening", "addr", srv.Addr, "sim", cfg.Sim)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		api.CleanupLoop(ctx.Done())
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down")
		if watcher != nil {
			watcher.Stop()
		}
		realtime.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// startConfigWatcher hot-reloads allow_pairing and rate-limit overrides.
// Setting allow_pairing: true in the file re-arms the broker; the arm still
// burns on the first approved pairing.
func startConfigWatcher(broker *approval.Broker, api *httpapi.Server, cfg *config.Config) *config.Watcher {
	watcher, err := config.NewWatcher(flagConfig)
	if err != nil {
		slog.Warn("config watcher unavailable", "error", err)
		return nil
	}

	watcher.OnChange(func(next *config.Config) {
		if next.AllowPairing {
			broker.Arm()
		} else {
			broker.Disarm()
		}
		applyRateLimits(api, next)
	})

	if err := watcher.Start(); err != nil {
		slog.Warn("config watcher failed to start", "error", err)
		return nil
	}
	return watcher
}

func applyRateLimits(api *httpapi.Server, cfg *config.Config) {
	for route, rule := range cfg.RateLimits {
		if rule.Max > 0 && rule.WindowSeconds > 0 {
			api.SetRule(route, rule.Max, time.Duration(rule.WindowSeconds)*time.Second)
		}
	}
}
