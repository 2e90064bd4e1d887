package jobs

import (
	"fmt"
	"path/filepath"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"CavaPgc/internal/delivery"
	"CavaPgc/internal/logger"
	"CavaPgc/internal/metrics"
	"CavaPgc/internal/serviceiface"
)

type CronService struct {
	config    map[string]interface{}
	collector *metrics.Collector
	cron      *cron.Cron
}

func NewCronService(cfg map[string]interface{}, collector *metrics.Collector) serviceiface.Service {
	return &CronService{
		config:    cfg,
		collector: collector,
	}
}

func (s *CronService) Name() string {
	return "cron"
}

// inboxConfig overlays services.yaml settings on the defaults.
func (s *CronService) inboxConfig() (*InboxConfig, error) {
	cfg := NewDefaultInboxConfig()
	if s.config == nil {
		return cfg, nil
	}
	if v, ok := s.config["schedule"].(string); ok && v != "" {
		cfg.Schedule = v
	}
	if v, ok := s.config["time_zone"].(string); ok && v != "" {
		cfg.TimeZone = v
	}
	if v, ok := s.config["inbox_dir"].(string); ok && v != "" {
		cfg.InboxDir = v
		cfg.ProcessedDir = filepath.Join(v, "processed")
		cfg.FailedDir = filepath.Join(v, "failed")
	}
	if v, ok := s.config["outbox_dir"].(string); ok && v != "" {
		cfg.OutboxDir = v
	}
	if v, ok := s.config["processed_dir"].(string); ok && v != "" {
		cfg.ProcessedDir = v
	}
	if v, ok := s.config["failed_dir"].(string); ok && v != "" {
		cfg.FailedDir = v
	}
	if v, ok := s.config["source"].(string); ok && v != "" {
		if _, err := delivery.Lookup(v); err != nil {
			return nil, err
		}
		cfg.Run.Source = v
	}
	switch v := s.config["yield_per_hectare"].(type) {
	case int:
		cfg.Run.YieldPerHectare = decimal.NewFromInt(int64(v))
	case float64:
		cfg.Run.YieldPerHectare = decimal.NewFromFloat(v)
	}
	if v, ok := s.config["group_by_year"].(bool); ok {
		cfg.Run.GroupByYear = v
	}
	return cfg, nil
}

func (s *CronService) Start() error {
	cfg, err := s.inboxConfig()
	if err != nil {
		return fmt.Errorf("cron config: %w", err)
	}
	cfg.Run.Logger = logger.L()

	s.cron, err = RunInboxScheduler(cfg, s.collector)
	if err != nil {
		return fmt.Errorf("failed to start inbox scheduler: %w", err)
	}
	return nil
}

// Stop waits for a running batch to finish.
func (s *CronService) Stop() error {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	logger.Audit("Cron service stopped")
	return nil
}
