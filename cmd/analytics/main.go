package main

import (
	"os"

	"github.com/andresuchdata/compras/backend-go/internal/config"
	"github.com/andresuchdata/compras/backend-go/pkg/logger"
)

func main() {
	cfg := config.Load()
	logger.Setup(cfg.Log.Level, cfg.Log.Format)

	if err := newApp(cfg).Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("analytics failed")
	}
}
