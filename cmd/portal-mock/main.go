package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-brief-portal/internal/config"
	"github.com/jrsteele09/go-brief-portal/internal/fakebackend"
	"github.com/jrsteele09/go-brief-portal/internal/logging"
	"github.com/rs/zerolog/log"
)

const revocationCleanupInterval = 10 * time.Minute

func main() {
	for {
		if err := run(); err != nil {
			log.Error().Err(err).Msg("error running mock backend")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("mock backend stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.Setup(c.GetEnv(), c.GetLogLevel(), os.Stderr)
	displayAppname(c.GetAppName() + " mock")

	backend := fakebackend.New(
		fakebackend.WithLogger(logger),
		fakebackend.WithEnv(c.GetEnv()),
		fakebackend.WithSigningSecret(c.GetSigningSecret()),
		fakebackend.WithAccessTokenTTL(c.GetAccessTokenExpiry()),
	)
	if err := backend.Seed(); err != nil {
		return fmt.Errorf("backend.Seed: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cleanupRevocations(ctx, backend)

	server := &http.Server{Addr: c.GetPort(), Handler: backend}
	errs := make(chan error, 1)
	go func() { errs <- listenAndServe(server) }()

	select {
	case err := <-errs:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(server)
}

func loadConfig() (config.Config, error) {
	if path := config.GetEnv("CONFIG_FILE", ""); path != "" {
		return config.Load(path)
	}
	return config.New(), nil
}

func cleanupRevocations(ctx context.Context, backend *fakebackend.Backend) {
	ticker := time.NewTicker(revocationCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			backend.Cleanup()
		}
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Str("api", fakebackend.APIPrefix).Msg("mock backend listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
