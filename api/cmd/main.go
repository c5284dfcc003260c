// Command mwauth-service serves the MediaWiki OAuth login provider to a
// Matrix homeserver.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/bootstrap"
	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/logger"
)

// A check in flight may be waiting on the wiki for up to OAUTH_HTTP_TIMEOUT
// twice; the drain window covers that with the default timeout.
const drainTimeout = 25 * time.Second

var version = "dev"

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
	Close() error
	Addr() string
}

type stdServer struct{ *http.Server }

func (s stdServer) Addr() string { return s.Server.Addr }

type serverBuilder func() (httpServer, func(), error)

// Run builds the server, serves until a signal or a listen failure, and
// returns the process exit code.
func Run(build serverBuilder, sigCh <-chan os.Signal, lg zerolog.Logger) int {
	srv, cleanup, err := build()
	if err != nil {
		lg.Error().Err(err).Msg("startup failed")
		return 1
	}
	defer cleanup()

	failed := serve(srv, lg)

	select {
	case err := <-failed:
		lg.Error().Err(err).Str("addr", srv.Addr()).Msg("listener failed")
		return 1
	case sig := <-sigCh:
		lg.Info().Stringer("signal", sig).Msg("draining")
	}

	drain(srv, lg)
	return 0
}

// serve starts the listener; the channel yields only unexpected failures.
func serve(srv httpServer, lg zerolog.Logger) <-chan error {
	failed := make(chan error, 1)
	go func() {
		lg.Info().Str("addr", srv.Addr()).Str("version", version).Msg("mwauth-service listening")
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			failed <- err
		}
	}()
	return failed
}

func drain(srv httpServer, lg zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		lg.Warn().Err(err).Msg("drain incomplete; closing open connections")
		_ = srv.Close()
		return
	}
	lg.Info().Msg("drained")
}

func fromBootstrap() (httpServer, func(), error) {
	srv, cleanup, err := bootstrap.NewServer()
	if err != nil {
		return nil, nil, err
	}
	return stdServer{srv}, cleanup, nil
}

func main() {
	logger.Init()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	os.Exit(Run(fromBootstrap, sigCh, logger.Logger))
}
