package main

import (
	"stockwatch/cmd/handlers"
	"stockwatch/internal/logger"
)

func main() {
	logger.Init() // Initialize the logger
	handlers.Execute()
}
