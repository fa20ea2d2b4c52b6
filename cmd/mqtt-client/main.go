package main

import (
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/config"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/database"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/event"
	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/logger"
)

func main() {
	cfg, err := config.ReadConfig()
	if err != nil {
		logger.FatalF("Error occured while reading config %v", err)
		return
	}
	loggerCallback := logger.Init(cfg.DebugMode)
	logger.Debug("Application initializing...")
	cleaner := event.NewCleaner()
	cleaner.Init(loggerCallback)
	defer cleaner.Clean()
	if cfg.DatabaseEnabled() {
		err = database.ConnectDatabase()
		if err != nil {
			logger.FatalF("Error occured while initializing database, details: %v", err)
			return
		}
	}
	runClient(cfg, cleaner)
}
