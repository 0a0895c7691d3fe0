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
	fakeleadrepo "github.com/jrsteele09/go-edu-portal/leads/repofake"
	fakeprogramrepo "github.com/jrsteele09/go-edu-portal/programs/repofake"
	"github.com/jrsteele09/go-edu-portal/server"
	refreshrepofake "github.com/jrsteele09/go-edu-portal/token/refresh/repofake"
	fakeuserrepo "github.com/jrsteele09/go-edu-portal/users/repofake"
	"github.com/rs/zerolog/log"
)

func main() {
	// A missing .env is fine, the environment may already be set.
	_ = godotenv.Load()

	for {
		if err := run(); err != nil {
			log.Error().Err(err).Msg("Error running API server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("API server stopped")
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
	displayAppname(c.GetAppName() + " API")

	// Repositories are in-memory, so accounts and enquiries last for the life of the process.
	handler, err := server.New(c, server.Repos{
		Users:    fakeuserrepo.NewFakeUserRepo(),
		Refresh:  refreshrepofake.NewFakeRefreshTokenRepo(),
		Programs: fakeprogramrepo.NewFakeProgramRepo(),
		Leads:    fakeleadrepo.NewFakeLeadRepo(),
	})
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}
	defer handler.Close()

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- listenAndServe(httpServer) }()

	select {
	case err := <-errCh:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

func listenAndServe(server *http.Server) error {
	log.Info().Msgf("API server listening on %s", server.Addr)
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
