package main

import (
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"todosync/server"
)

func main() {
	if err := run(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "localhost:8080", "the address to listen on")
	dbPath := flag.String("db", "todosync.db", "path to the sqlite database")
	flag.Parse()

	db, err := server.OpenDB(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	srv := server.New(db, slog.Default())
	httpServer := &http.Server{Addr: *addr, Handler: srv.Router()}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	slog.Info("listening", "addr", *addr, "db", *dbPath)

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-exit:
		slog.Info("signal caught", "sig", sig)
	case err := <-errCh:
		return err
	}
	return httpServer.Close()
}
