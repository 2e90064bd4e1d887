package quota

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"CavaPgc/internal/config"
	"CavaPgc/internal/logger"
	"CavaPgc/internal/metrics"
	"CavaPgc/internal/pipeline"
	"CavaPgc/internal/serviceiface"
)

type QuotaService struct {
	config    map[string]interface{}
	collector *metrics.Collector
	server    *http.Server
	listener  net.Listener
}

func NewQuotaService(cfg map[string]interface{}, collector *metrics.Collector) serviceiface.Service {
	return &QuotaService{config: cfg, collector: collector}
}

func (s *QuotaService) Name() string {
	return "quota"
}

func (s *QuotaService) addr() string {
	switch v := s.config["port"].(type) {
	case int:
		return ":" + strconv.Itoa(v)
	case string:
		if v != "" {
			return ":" + v
		}
	}
	if v, ok := s.config["addr"].(string); ok && v != "" {
		return v
	}
	return config.DefaultHTTPAddr
}

// defaults reads the run parameters used when a request leaves them out.
func (s *QuotaService) defaults() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	if v, ok := s.config["source"].(string); ok && v != "" {
		cfg.Source = v
	}
	switch v := s.config["yield_per_hectare"].(type) {
	case int:
		cfg.YieldPerHectare = decimal.NewFromInt(int64(v))
	case float64:
		cfg.YieldPerHectare = decimal.NewFromFloat(v)
	}
	if v, ok := s.config["group_by_year"].(bool); ok {
		cfg.GroupByYear = v
	}
	return cfg
}

func (s *QuotaService) Start() error {
	h := &Handler{Defaults: s.defaults(), Collector: s.collector, MaxUpload: config.MaxUploadBytes}
	s.server = &http.Server{
		Addr:              s.addr(),
		Handler:           NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("quota service listen on %s: %w", s.server.Addr, err)
	}
	s.listener = ln
	logger.Audit("Quota service listening", zap.String("addr", ln.Addr().String()))
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Error("quota service stopped", zap.Error(err))
		}
	}()
	return nil
}

// Addr is the bound listen address, empty before Start.
func (s *QuotaService) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *QuotaService) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
