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
	"github.com/joho/godotenv"
	"github.com/jrsteele09/go-edu-portal/internal/config"
	"github.com/jrsteele09/go-edu-portal/internal/logger"
	"github.com/jrsteele09/go-edu-portal/internal/metrics"
	"github.com/jrsteele09/go-edu-portal/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()

	for {
		if err := run(); err != nil {
			log.Error().Err(err).Msg("Error running site")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Site stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	logger.Setup(logger.Options{Env: c.GetEnv(), Level: c.GetLogLevel(), LogFile: c.GetLogFile()})
	displayAppname(c.GetAppName())

	registry := prometheus.NewRegistry()
	site, err := web.New(c, web.WithRecorder(metrics.NewCollector(registry)))
	if err != nil {
		return fmt.Errorf("web.New: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(registry))
	mux.Handle("/", site)

	httpServer := &http.Server{
		Addr:              c.GetWebPort(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- listenAndServe(httpServer, c.GetAPIBaseURL()) }()

	select {
	case err := <-errCh:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

func listenAndServe(server *http.Server, apiBaseURL string) error {
	log.Info().Msgf("Site listening on %s (API %s)", server.Addr, apiBaseURL)
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
