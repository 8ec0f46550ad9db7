package main

import (
	"log/slog"
	"os"

	"github.com/brightpath-solar/siteimg/cmd/siteimg/commands"
)

func main() {
	// Text logs on stdout; event names are snake_case.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	commands.Execute()
}
