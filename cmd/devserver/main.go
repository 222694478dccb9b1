package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/vantagevision/vantage/config"
	"github.com/vantagevision/vantage/internal/logger"
	"github.com/vantagevision/vantage/internal/simserver"
	"github.com/vantagevision/vantage/pkg/api/v1/routes"
)

func main() {
	// Load environment variables from .env file if present
	_ = godotenv.Load()

	logger.Initialize()

	port := config.GetEnv("PORT", routes.DefaultPort)
	server := simserver.New()

	logger.Infof("Simulator server listening on :%s", port)
	if err := server.App().Listen(":" + port); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
