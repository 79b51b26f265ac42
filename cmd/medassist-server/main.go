package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ehr/medassist/internal/config"
	"github.com/ehr/medassist/internal/domain/dictation"
	"github.com/ehr/medassist/internal/domain/history"
	"github.com/ehr/medassist/internal/domain/profile"
	"github.com/ehr/medassist/internal/platform/export"
	"github.com/ehr/medassist/internal/platform/middleware"
	"github.com/ehr/medassist/internal/platform/mockdata"
	"github.com/ehr/medassist/internal/platform/observe"
	"github.com/ehr/medassist/internal/platform/websocket"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "medassist-server",
		Short:         "Clinical dictation demo API server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(poolsCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func poolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pools",
		Short: "Print the mock data pools as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("file")
			if path == "" {
				path = os.Getenv("DATA_FILE")
			}
			return printPools(cmd.OutOrStdout(), path)
		},
	}
	cmd.Flags().String("file", "", "pools file to load instead of the built-in data (default $DATA_FILE)")
	return cmd
}

func printPools(w io.Writer, path string) error {
	pools, err := mockdata.LoadPools(path)
	if err != nil {
		return err
	}
	return pools.WriteYAML(w)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "medassist-server", version)
		},
	}
}

func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	if cfg.IsDev() {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	logger := zerolog.New(out).With().Timestamp().Logger()
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" {
		logger = logger.Level(lvl)
	}
	return logger
}

// server holds the wired application.
type server struct {
	echo      *echo.Echo
	simulator *dictation.Simulator
	history   *history.Service
	hub       *websocket.Hub
	provider  *observe.Provider
}

func buildServer(cfg *config.Config, logger zerolog.Logger) (*server, error) {
	countMode, err := history.ParseCountMode(cfg.CountMode)
	if err != nil {
		return nil, err
	}

	pools, err := mockdata.LoadPools(cfg.DataFile)
	if err != nil {
		return nil, fmt.Errorf("load data pools: %w", err)
	}
	gen := mockdata.NewGenerator(pools, cfg.RNGSeed)

	// Metrics
	var (
		provider *observe.Provider
		metrics  *observe.Metrics
	)
	if cfg.MetricsEnabled {
		provider, err = observe.InitProvider("medassist-server", version, nil)
		if err != nil {
			return nil, fmt.Errorf("init metrics: %w", err)
		}
		metrics, err = observe.NewMetrics(provider.MeterProvider)
		if err != nil {
			return nil, fmt.Errorf("create instruments: %w", err)
		}
	}

	hub := websocket.NewHub(logger.With().Str("component", "websocket").Logger())
	publisher := NewHubPublisher(hub, logger)

	historySvc := history.NewService(history.NewMemoryRepo(), history.Config{
		CountMode: countMode,
		Publisher: publisher,
		Metrics:   metrics,
		Logger:    logger.With().Str("component", "history").Logger(),
	})
	if metrics != nil {
		err := metrics.ObserveStatusCounts(func(ctx context.Context) (int64, int64, int64) {
			c, err := historySvc.Counts(ctx)
			if err != nil {
				return 0, 0, 0
			}
			return int64(c.Open), int64(c.Saved), int64(c.Sent)
		})
		if err != nil {
			return nil, fmt.Errorf("register status gauge: %w", err)
		}
	}

	simulator := dictation.NewSimulator(historySvc, gen, export.NewPDFRenderer(), dictation.Config{
		Delay:     cfg.DictationDelay,
		QueueSize: cfg.DictationQueueSize,
		Publisher: publisher,
		Metrics:   metrics,
		Logger:    logger.With().Str("component", "dictation").Logger(),
	})

	selector := profile.NewSelector(gen, simulator, profile.Config{
		ResetHistoryOnChange: cfg.ResetHistoryOnProfileChange,
		Metrics:              metrics,
		Logger:               logger.With().Str("component", "profile").Logger(),
	})

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:  []string{"Content-Type", middleware.RequestIDHeader},
		ExposeHeaders: []string{echo.HeaderContentDisposition, middleware.RequestIDHeader},
	}))
	e.Use(observe.Middleware(metrics))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	if provider != nil {
		e.GET("/metrics", echo.WrapHandler(provider.Handler()))
	}

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))
	apiV1.Use(middleware.BodyLimit(cfg.BodyLimit))
	apiV1.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	profile.NewHandler(selector).RegisterRoutes(apiV1)
	history.NewHandler(historySvc, selector).RegisterRoutes(apiV1)
	dictation.NewHandler(simulator, selector).RegisterRoutes(apiV1)
	websocket.NewHandler(hub, cfg.CORSOrigins, logger).RegisterRoutes(apiV1)

	return &server{
		echo:      e,
		simulator: simulator,
		history:   historySvc,
		hub:       hub,
		provider:  provider,
	}, nil
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger := newLogger(cfg, os.Stdout)

	srv, err := buildServer(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.simulator.Run(gctx)
	})

	g.Go(func() error {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = srv.echo.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = srv.echo.Start(addr)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		if srv.provider != nil {
			if err := srv.provider.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("metrics shutdown failed")
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
