package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/crashscan/backend/internal/api"
	"github.com/crashscan/backend/internal/storage"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	readTimeout     = 30 * time.Second
	writeTimeout    = 60 * time.Second
	scanTimeout     = 2 * time.Minute
	shutdownTimeout = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.Int("port", 0, "listen port")
	f.String("bind", "", "listen address")
	f.Bool("show-values", false, "look up record descriptions")
	f.Bool("simplify-logs", false, "drop noise lines before scanning")
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	srv := a.cfg.Settings.Server
	uploadDir := filepath.Join(a.cfg.Settings.DataDir, "uploads")
	fileStore, err := storage.NewLocalStore(uploadDir)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	api.ShowErrorDetails = a.logger.IsLevelEnabled(logrus.DebugLevel)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	api.SetupMiddleware(e, api.MiddlewareOptions{
		RequestLogging: true,
		BodyLimit:      srv.BodyLimit,
		Timeout:        scanTimeout,
		EnableCORS:     srv.EnableCORS,
		AllowOrigins:   strings.Split(srv.AllowOrigins, ","),
		Log:            a.log,
	})
	api.RegisterRoutes(e, api.NewHandlers(&api.Dependencies{
		Store:     fileStore,
		Env:       a.env,
		Assembler: a.assembler,
		Resolver:  a.resolver,
		Rules:     a.cfg.RulesInfo(),
		Version:   Version,
		Log:       a.log,

		ReportCacheSize: srv.ReportCache,
	}))

	s := &http.Server{
		Addr:         a.cfg.Settings.ServerAddr(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.StartServer(s)
	}()

	fmt.Printf("crashscan %s (built %s)\n", Version, BuildTime)
	fmt.Printf("Game:       %s\n", a.cfg.Info.Name)
	fmt.Printf("Rules:      %d error, %d stack\n", len(a.cfg.Game.Rules.ErrorRules), len(a.cfg.Game.Rules.StackRules))
	fmt.Printf("Upload dir: %s\n", uploadDir)
	fmt.Printf("Listening:  http://%s\n", s.Addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
