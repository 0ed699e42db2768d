// Command wealthsimd serves the wealth simulation over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pthm-cable/wealthsim/api"
	"github.com/pthm-cable/wealthsim/archive"
	"github.com/pthm-cable/wealthsim/config"
)

func main() {
	port := flag.Int("port", 8000, "Port to listen on")
	configPath := flag.String("config", "", "Path to defaults YAML merged under every request (empty = built-in defaults)")
	archivePath := flag.String("archive", "", "SQLite database to archive runs in (empty = no archive)")
	origins := flag.String("cors-origins", strings.Join(api.DefaultOrigins, ","), "Comma-separated allowed CORS origins")
	maxWork := flag.Int("max-work", 50_000_000, "Reject runs above total_population × max(num_time_steps, 1) (0 = unlimited)")
	debug := flag.Bool("debug", false, "Enable debug mode")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	defaults, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	handlers := api.NewHandlers(defaults).WithMaxWork(*maxWork)
	if *archivePath != "" {
		db, err := archive.Open(*archivePath)
		if err != nil {
			slog.Error("failed to open archive", "path", *archivePath, "error", err)
			os.Exit(1)
		}
		defer db.Close()
		handlers.WithArchive(db)
	}

	router := api.NewRouter(handlers, splitOrigins(*origins))
	if *debug {
		router.Use(gin.Logger())
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", *port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown failed", "error", err)
		}
	}()

	slog.Info("starting server", "address", srv.Addr, "archive", *archivePath != "")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
