package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	zerologlog "github.com/rs/zerolog/log"

	"github.com/clp/pointingpoker/internal/api"
	"github.com/clp/pointingpoker/internal/config"
	"github.com/clp/pointingpoker/internal/session"
	"github.com/clp/pointingpoker/internal/store"
)

const version = "v1.0.0"

func main() {
	var (
		showHelp    = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
		portFlag    = flag.String("port", "", "Port to listen on (overrides PORT env var)")
		dbFlag      = flag.String("db", "", "SQLite database path (overrides DB_PATH env var)")
	)
	flag.BoolVar(showHelp, "h", false, "Show help message (shorthand)")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Parse()

	if *showHelp {
		fmt.Printf(`Pointing Poker - synchronized estimation voting for distributed teams

Usage: %s [options]

Options:
  -h, --help      Show this help message
  -v, --version   Show version information
  --port PORT     Port to listen on (default: 8080 or PORT env var)
  --db PATH       SQLite database path (default: pointing_poker.sqlite)

Environment Variables:
  PORT              Port to listen on (default: 8080)
  DB_PATH           SQLite database path (default: pointing_poker.sqlite)
  ALLOWED_VOTES     Comma-separated vote tokens (default: ?,☕,0,0.5,1,2,3,5,8,13,21)
  RETENTION_WINDOW  How long a login counts as present (default: 2h)
  POLL_INTERVAL     Refresh cadence of the poll loop (default: 2s)

The host opens rounds and reveals votes; share the team name with
participants and point their clients at this server.
`, os.Args[0])
		return
	}

	if *showVersion {
		fmt.Printf("Pointing Poker %s\n", version)
		return
	}

	// zerolog setup (human-friendly console)
	zerolog.TimeFieldFormat = time.RFC3339
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	zerologlog.Logger = zerologlog.Output(cw)
	logger := zerologlog.Logger

	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	if *portFlag != "" {
		cfg.Port = *portFlag
	}
	if *dbFlag != "" {
		cfg.DBPath = *dbFlag
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("open store")
	}
	defer st.Close()

	svc := session.New(st, cfg, logger)

	// Gin setup with custom logger (skip per-tick stream noise)
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasSuffix(path, "/stream") {
			return
		}
		status := c.Writer.Status()
		dur := time.Since(start)
		logger.Info().Str("path", path).Int("status", status).Dur("dur", dur).Msg("http")
	})

	// Healthcheck
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC()})
	})

	api.New(svc, cfg, logger).Mount(r)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("port", cfg.Port).Str("db", cfg.DBPath).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("serve")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown")
	}
}
