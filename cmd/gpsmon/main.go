package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"gpsmon/internal/config"
	"gpsmon/internal/logging"
	"gpsmon/internal/web"
)

func main() {
	var configPath string
	var summarize string
	flag.StringVar(&configPath, "config", "./configs/gpsmon.yaml", "Path to YAML config")
	flag.StringVar(&summarize, "summarize", "", "Print a summary of a module capture file and exit")
	flag.Parse()

	if summarize != "" {
		if err := printCaptureSummary(os.Stdout, summarize); err != nil {
			log.Fatalf("capture summary failed: %v", err)
		}
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logs := web.NewLogBuffer(cfg.Web.LogLines)
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, logs)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt, err := newRuntime(ctx, cfg, logger, logs)
	if err != nil {
		logger.WithError(err).Fatal("gpsmon init failed")
	}
	defer rt.Close()

	logger.WithFields(logrus.Fields{
		"config":    configPath,
		"board":     cfg.Hardware.Board,
		"hardware":  cfg.Hardware.Backend,
		"transport": cfg.Transport.Backend,
	}).Info("gpsmon starting")

	if err := rt.Run(ctx); err != nil {
		logger.WithError(err).Error("gpsmon stopped with error")
		rt.Close()
		os.Exit(1)
	}
	logger.Info("gpsmon stopping")
}
