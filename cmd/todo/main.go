package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"todosync/app"
	"todosync/model"
	"todosync/store"
	"todosync/tui"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "base URL of the todod sync server")
	logPath := flag.String("log", "", "write diagnostics to this file (default: discard)")
	flag.Parse()

	// The terminal belongs to the TUI, so diagnostics go to a file or
	// nowhere at all.
	var logOut io.Writer = io.Discard
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open log file:", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	logger := slog.New(slog.NewTextHandler(logOut, nil))

	remote := store.NewClient(*serverURL, logger)
	st := app.NewStore(model.NewState(), remote, app.Config{Logger: logger})
	defer st.Close()

	// The relay keeps Dispatch decoupled from Send: Send blocks until
	// the program runs and while its loop is inside Update, so calling
	// it straight from a watcher would wedge the store. The model's
	// Init opens the change feed once the loop is live.
	p := tea.NewProgram(tui.NewModel(st), tea.WithAltScreen())
	stop := tui.Relay(st, func(msg tui.StateMsg) { p.Send(msg) })
	defer stop()

	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
