package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/malusev998/currency-converter/cli/cmd"
)

func main() {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cmd.Execute(&cmd.Config{
		Ctx:   ctx,
		Setup: setup,
	})

	if err != nil {
		stop()
		os.Exit(1)
	}
}
