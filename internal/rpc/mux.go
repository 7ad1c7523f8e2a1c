package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/soheilhy/cmux"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

// Serve splits lis between grpcServer (HTTP/2 with a gRPC content type) and
// httpServer (everything else) and blocks until ctx is cancelled or a server
// fails. On cancellation both servers drain for up to shutdownTimeout, and
// Serve returns only once every serving goroutine has exited.
func Serve(ctx context.Context, lis net.Listener, grpcServer *grpc.Server, httpServer *http.Server, shutdownTimeout time.Duration, logger *slog.Logger) error {
	m := cmux.New(lis)
	grpcL := m.MatchWithWriters(cmux.HTTP2MatchHeaderFieldSendSettings("content-type", "application/grpc"))
	httpL := m.Match(cmux.Any())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := grpcServer.Serve(grpcL); err != nil && !errors.Is(err, grpc.ErrServerStopped) && !errors.Is(err, cmux.ErrListenerClosed) {
			return fmt.Errorf("grpc: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := httpServer.Serve(httpL); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, cmux.ErrListenerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := m.Serve(); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, cmux.ErrServerClosed) {
			return fmt.Errorf("cmux: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			logger.Info("shutdown signal received")
		}
		return shutdown(m, grpcServer, httpServer, shutdownTimeout)
	})
	logger.Info("server listening", "addr", lis.Addr().String())

	return g.Wait()
}

// shutdown drains both servers, forcing gRPC closed once timeout passes, and
// then closes the root listener.
func shutdown(m cmux.CMux, grpcServer *grpc.Server, httpServer *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	httpErr := httpServer.Shutdown(ctx)
	select {
	case <-stopped:
	case <-ctx.Done():
		grpcServer.Stop()
		<-stopped
	}
	m.Close()

	if httpErr != nil {
		return fmt.Errorf("http shutdown: %w", httpErr)
	}
	return nil
}
