package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/leanbalancer/admindash/internal/admin"
	"github.com/leanbalancer/admindash/internal/boundary"
	"github.com/leanbalancer/admindash/internal/clock"
	"github.com/leanbalancer/admindash/internal/dashboard"
	"github.com/leanbalancer/admindash/internal/liveclock"
	"github.com/leanbalancer/admindash/internal/metrics"
	"github.com/leanbalancer/admindash/internal/middleware"
	"github.com/leanbalancer/admindash/internal/preference"
	"github.com/leanbalancer/admindash/internal/proxy"
	"github.com/leanbalancer/admindash/internal/readiness"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the boundary server and the dashboard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	log := logger.Named("serve")
	log.Info("admindash starting",
		zap.String("profile", string(cfg.Profile)),
		zap.String("config", cfg.ConfigPath()))

	// Ports are bound before anything else. A port that is taken is fatal;
	// there is no fallback to another port.
	boundaryLn, err := boundary.Listen(cfg.Boundary.ListenAddr)
	if err != nil {
		log.Error("boundary server cannot start", zap.Error(err))
		return err
	}
	defer boundaryLn.Close()

	var dashboardLn net.Listener
	if cfg.Dashboard.Enabled {
		dashboardLn, err = boundary.Listen(cfg.Dashboard.ListenAddr)
		if err != nil {
			log.Error("dashboard cannot start", zap.Error(err))
			return err
		}
		defer dashboardLn.Close()
	}

	logFeatures(log)

	m := metrics.New()
	clk := clock.Real()

	backend, err := preference.OpenBackend(cfg.Preferences)
	if err != nil {
		return err
	}
	themeScope := preference.ScopeFunc(func(t preference.Theme) { m.SetThemeDark(t == preference.Dark) })
	prefs := preference.Open(backend, themeScope, logger.Named("preference"))
	prefs.OnPersistFailure = func(error) { m.RecordPreferenceFailure() }
	defer prefs.Close()

	live := liveclock.NewSource(clk, cfg.ClockInterval())
	live.OnChange = m.SetClockSubscriptions

	seq := readiness.New(clk, cfg.LoadingDelay(),
		readiness.WithStages(dashboard.LoadingStages(logger.Named("dashboard"))...),
		readiness.WithLogger(logger.Named("readiness")))
	seq.Subscribe(func(readiness.State) { m.SetReady(true) })
	defer seq.Stop()

	adminMux := http.NewServeMux()
	admin.NewHandler(cfg, seq, prefs, live, m, logger.Named("admin")).RegisterRoutes(adminMux)
	boundarySrv := boundary.New(cfg, adminMux, logger.Named("boundary"), m)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return boundarySrv.Serve(ctx, boundaryLn) })

	if dashboardLn != nil {
		var px *proxy.Proxy
		if cfg.Proxy.Enabled {
			px, err = proxy.New(cfg.Proxy, logger.Named("proxy"), m)
			if err != nil {
				return err
			}
		}

		mux := http.NewServeMux()
		dashboard.NewHandler(dashboard.Deps{
			Config:      cfg,
			Clock:       clk,
			Readiness:   seq,
			Preferences: prefs,
			LiveClock:   live,
			Proxy:       px,
			Logger:      logger.Named("dashboard"),
		}).RegisterRoutes(mux)

		dashLogger := logger.Named("dashboard")
		handler := middleware.Chain(mux,
			middleware.RequestID,
			middleware.StructuredLogging(dashLogger),
			m.Instrument("dashboard"))
		dashboardSrv := boundary.NewServer("dashboard", handler, dashLogger)
		g.Go(func() error { return dashboardSrv.Serve(ctx, dashboardLn) })
	}

	if cfg.Preferences.Backend == "file" && cfg.Preferences.Watch {
		g.Go(func() error {
			if err := prefs.Watch(ctx, cfg.Preferences.Path); err != nil {
				log.Warn("preference file watch stopped", zap.Error(err))
			}
			return nil
		})
	}

	seq.Start()
	g.Go(func() error {
		select {
		case <-seq.Ready():
			log.Info("dashboard ready", zap.String("addr", cfg.Dashboard.ListenAddr))
		case <-ctx.Done():
		}
		return nil
	})

	err = g.Wait()
	log.Info("admindash stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func logFeatures(log *zap.Logger) {
	log.Info("boundary server",
		zap.String("addr", cfg.Boundary.ListenAddr),
		zap.Strings("allowed_origins", cfg.Boundary.AllowedOrigins))
	if cfg.Dashboard.Enabled {
		log.Info("[feature] dashboard enabled",
			zap.String("addr", cfg.Dashboard.ListenAddr),
			zap.Duration("loading_delay", cfg.LoadingDelay()))
	}
	if cfg.Dashboard.Enabled && cfg.Proxy.Enabled {
		log.Info("[feature] metrics forwarding enabled",
			zap.String("route", cfg.Proxy.PathPrefix),
			zap.String("target", cfg.Proxy.Target),
			zap.Duration("timeout", cfg.Proxy.Timeout()))
	}
	if cfg.Auth.Enabled {
		log.Info("[feature] admin key authentication enabled", zap.Int("admin_keys", len(cfg.Auth.AdminKeys)))
	}
	if cfg.RateLimit.Enabled {
		log.Info("[feature] rate limiting enabled",
			zap.Int("requests_per_min", cfg.RateLimit.RequestsPerMin),
			zap.Int("burst", cfg.RateLimit.BurstSize))
	}
	log.Info("[feature] preferences",
		zap.String("backend", cfg.Preferences.Backend),
		zap.String("path", cfg.Preferences.Path),
		zap.Bool("watch", cfg.Preferences.Watch && cfg.Preferences.Backend == "file"))
}
