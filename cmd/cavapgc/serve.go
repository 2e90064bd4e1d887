package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"CavaPgc/internal/appmanager"
	"CavaPgc/internal/logger"
)

var servicesPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the services listed in services.yaml",
	RunE:  serve,
}

func init() {
	serveCmd.Flags().StringVar(&servicesPath, "services", "services.yaml", "Service sequence file")
}

func serve(cmd *cobra.Command, args []string) error {
	manager := appmanager.NewAppManager()

	// Load service configs from YAML
	servicesCfg, err := appmanager.LoadServiceSequence(servicesPath)
	if err != nil {
		return fmt.Errorf("failed to load service sequence: %w", err)
	}

	// Automatically register all services
	for _, name := range manager.AutoRegisterServices(appmanager.WithDefaults(servicesCfg, cfg)) {
		log.Warn("unknown service in sequence", zap.String("service", name))
	}

	if err := manager.StartAll(); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	logger.Audit("Services started", zap.String("sequence", servicesPath))

	// Graceful shutdown handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	// Stop all services
	if err := manager.StopAll(); err != nil {
		return fmt.Errorf("failed to stop: %w", err)
	}
	return nil
}
