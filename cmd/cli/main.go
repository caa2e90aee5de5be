package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/celestiaorg/reelcast/cmd/cli/commands"
)

func main() {
	// A missing .env is fine; the environment and flags still apply
	_ = godotenv.Load()

	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
