package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"CavaPgc/internal/config"
	"CavaPgc/internal/logger"
	"CavaPgc/internal/metrics"
	"CavaPgc/internal/pipeline"
	"CavaPgc/internal/workbook"
)

// InboxConfig drives the scheduled batch over an inbox directory.
type InboxConfig struct {
	Schedule     string
	TimeZone     string
	InboxDir     string
	OutboxDir    string
	ProcessedDir string
	FailedDir    string
	Run          pipeline.Config
}

func NewDefaultInboxConfig() *InboxConfig {
	return &InboxConfig{
		Schedule:     config.DefaultInboxSchedule,
		TimeZone:     config.DefaultTimeZone,
		InboxDir:     "./inbox",
		OutboxDir:    "./outbox",
		ProcessedDir: filepath.Join("./inbox", "processed"),
		FailedDir:    filepath.Join("./inbox", "failed"),
		Run:          pipeline.DefaultConfig(),
	}
}

var inputExtensions = map[string]bool{".xlsx": true, ".xlsm": true, ".xls": true, ".csv": true, ".txt": true}

// Batch is the set of inbox files that make up one run.
type Batch struct {
	Parcels     string
	Corrections string
	Deliveries  string
}

func (b Batch) files() []string {
	var out []string
	for _, f := range []string{b.Parcels, b.Corrections, b.Deliveries} {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// ScanInbox picks the next batch from dir: a parcelas* file, an optional
// it04* file and the first other spreadsheet as deliveries, all in name
// order. ok is false until both parcels and deliveries are present.
func ScanInbox(dir string) (b Batch, ok bool, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return b, false, nil
		}
		return b, false, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || strings.HasPrefix(e.Name(), "~$") {
			continue
		}
		if inputExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, n := range names {
		path := filepath.Join(dir, n)
		lower := strings.ToLower(n)
		switch {
		case strings.HasPrefix(lower, "parcelas"):
			if b.Parcels == "" {
				b.Parcels = path
			}
		case strings.HasPrefix(lower, "it04"):
			if b.Corrections == "" {
				b.Corrections = path
			}
		default:
			if b.Deliveries == "" {
				b.Deliveries = path
			}
		}
	}
	return b, b.Parcels != "" && b.Deliveries != "", nil
}

// ProcessInbox runs at most one batch. The result lands in the outbox as
// <run-id>.xlsx and the inputs move to the processed directory; inputs of a
// failed run move to the failed directory so the next tick does not retry
// them.
func ProcessInbox(ctx context.Context, cfg *InboxConfig, collector *metrics.Collector) error {
	batch, ok, err := ScanInbox(cfg.InboxDir)
	if err != nil || !ok {
		return err
	}
	log := cfg.Run.Logger
	if log == nil {
		log = logger.L()
	}
	runCfg := cfg.Run
	runCfg.Logger = log.With(zap.String("trigger", "inbox"))

	started := time.Now()
	res, err := runBatch(ctx, batch, runCfg, cfg.OutboxDir)
	stats := metrics.RunStats{Trigger: "inbox", Source: runCfg.Source, Err: err, Duration: time.Since(started)}
	if res != nil {
		stats.Rows = res.Stats.Rows()
		quota, excess := res.Totals()
		stats.QuotaKg, stats.ExcessKg = quota.InexactFloat64(), excess.InexactFloat64()
	}
	if collector != nil {
		collector.ObserveRun(stats)
	}

	dest := cfg.FailedDir
	tag := started.Format("20060102T150405")
	if err == nil {
		dest, tag = cfg.ProcessedDir, res.RunID
	}
	if mvErr := moveAll(batch.files(), filepath.Join(dest, tag)); mvErr != nil {
		return errors.Join(err, mvErr)
	}
	return err
}

func runBatch(ctx context.Context, b Batch, cfg pipeline.Config, outbox string) (*pipeline.Result, error) {
	in, err := pipeline.InputFromFiles(b.Parcels, b.Deliveries, b.Corrections)
	if err != nil {
		return nil, err
	}
	res, err := pipeline.Run(ctx, in, cfg)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outbox, 0o755); err != nil {
		return nil, err
	}
	out := filepath.Join(outbox, res.RunID+".xlsx")
	f, err := os.Create(out)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := workbook.Write(f, res.Report().Sheets()); err != nil {
		return nil, fmt.Errorf("write %s: %w", out, err)
	}
	return res, f.Close()
}

func moveAll(files []string, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, f := range files {
		if err := os.Rename(f, filepath.Join(dir, filepath.Base(f))); err != nil {
			return err
		}
	}
	return nil
}

// RunInboxScheduler schedules ProcessInbox. Overlapping ticks are skipped.
func RunInboxScheduler(cfg *InboxConfig, collector *metrics.Collector) (*cron.Cron, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = config.DefaultInboxSchedule
	}
	if cfg.TimeZone == "" {
		cfg.TimeZone = config.DefaultTimeZone
	}

	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		loc = time.UTC
	}

	cronLog := cron.PrintfLogger(zap.NewStdLog(logger.L().Named("cron")))
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	_, err = c.AddFunc(cfg.Schedule, func() {
		if err := ProcessInbox(context.Background(), cfg, collector); err != nil {
			logger.Audit("Inbox run failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("unable to schedule inbox processor: %w", err)
	}

	c.Start()
	logger.Audit("Inbox scheduler started", zap.String("schedule", cfg.Schedule), zap.String("inbox", cfg.InboxDir))
	return c, nil
}
