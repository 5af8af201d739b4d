package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gridreplay.ai/internal/logging"
	"gridreplay.ai/internal/transport/viewer"
)

func main() {
	var (
		addr      = flag.String("addr", "127.0.0.1:8080", "http listen address")
		tablesDir = flag.String("tables", "./data/tables", "persisted tables dir")
		logLevel  = flag.String("log_level", os.Getenv("LOG_LEVEL"), "log level")
		logFormat = flag.String("log_format", os.Getenv("LOG_FORMAT"), "log format (console|json)")
	)
	flag.Parse()

	logger := logging.New(*logLevel, *logFormat).With().Str("cmd", "viewer").Logger()

	ctx, cancel := signalContext()
	defer cancel()

	srv := &http.Server{
		Addr:              *addr,
		Handler:           viewer.NewServer(*tablesDir, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Info().Str("addr", *addr).Str("tables", *tablesDir).Msg("Listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("ListenAndServe")
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
