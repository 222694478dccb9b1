package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/vantagevision/vantage/cmd/cli/commands"
	"github.com/vantagevision/vantage/internal/logger"
)

func main() {
	// Load environment variables from .env file if present
	_ = godotenv.Load()

	logger.Initialize()

	if err := commands.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
