// Package pipeline runs a whole quota batch: clean the inputs, build the
// yield ledger, link deliveries and allocate them in both orders.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"CavaPgc/internal/allocation"
	"CavaPgc/internal/checksum"
	"CavaPgc/internal/config"
	"CavaPgc/internal/correction"
	"CavaPgc/internal/crosslink"
	"CavaPgc/internal/delivery"
	"CavaPgc/internal/parcel"
	"CavaPgc/internal/sheet"
	"CavaPgc/internal/summary"
	"CavaPgc/internal/workbook"
)

// Config holds the per-run parameters.
type Config struct {
	YieldPerHectare decimal.Decimal
	GroupByYear     bool
	Source          string
	Logger          *zap.Logger
}

func DefaultConfig() Config {
	return Config{
		YieldPerHectare: decimal.NewFromInt(config.DefaultYieldPerHectare),
		GroupByYear:     config.DefaultGroupByYear,
		Source:          config.DefaultSource,
	}
}

// FromConfig maps the application configuration onto a run configuration.
func FromConfig(c config.Config, log *zap.Logger) Config {
	return Config{
		YieldPerHectare: decimal.NewFromFloat(c.YieldPerHectare),
		GroupByYear:     c.GroupByYear,
		Source:          c.Source,
		Logger:          log,
	}
}

func (c Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// Input is the set of workbooks one run consumes. Corrections may be nil.
type Input struct {
	Parcels     *sheet.Workbook
	Corrections *sheet.Workbook
	Deliveries  *sheet.Workbook
}

// Checksums maps each given input to the short checksum of its file.
func (in Input) Checksums() map[string]string {
	out := make(map[string]string, 3)
	for name, wb := range map[string]*sheet.Workbook{
		"parcels":     in.Parcels,
		"corrections": in.Corrections,
		"deliveries":  in.Deliveries,
	} {
		if wb != nil && wb.Checksum != "" {
			out[name] = wb.FileName + "@" + checksum.Short(wb.Checksum)
		}
	}
	return out
}

// InputFromFiles reads the input workbooks from disk. An empty
// correctionsPath means no correction file.
func InputFromFiles(parcelsPath, deliveriesPath, correctionsPath string) (Input, error) {
	var in Input
	var err error
	if in.Parcels, err = sheet.ReadFile(parcelsPath); err != nil {
		return in, fmt.Errorf("parcels: %w", err)
	}
	if in.Deliveries, err = sheet.ReadFile(deliveriesPath); err != nil {
		return in, fmt.Errorf("deliveries: %w", err)
	}
	if correctionsPath != "" {
		if in.Corrections, err = sheet.ReadFile(correctionsPath); err != nil {
			return in, fmt.Errorf("corrections: %w", err)
		}
	}
	return in, nil
}

// Stats are the row counts of each stage.
type Stats struct {
	Parcels    parcel.CleanStats
	Deliveries delivery.CleanStats
	Dropped    crosslink.Dropped
	Linked     int
}

// Rows flattens the stats into per-stage counts.
func (s Stats) Rows() map[string]int {
	return map[string]int{
		"parcels_read":      s.Parcels.Read,
		"parcels_kept":      s.Parcels.Kept,
		"deliveries_read":   s.Deliveries.Read,
		"deliveries_kept":   s.Deliveries.Kept,
		"dropped_producer":  s.Dropped.UnknownProducer,
		"dropped_key":       s.Dropped.UnknownKey,
		"dropped_parcel":    s.Dropped.UnknownParcel,
		"deliveries_linked": s.Linked,
	}
}

// Result is a finished run.
type Result struct {
	RunID    string
	Source   string
	Inputs   map[string]string
	Started  time.Time
	Duration time.Duration
	Stats    Stats

	Parcels     []parcel.Parcel
	Ledger      []parcel.YieldEntry
	Corrections []correction.Entry
	Adjusted    []correction.Adjusted

	ByDate   allocation.Ledger
	ByTicket allocation.Ledger
	// Primary is the ledger in the order the delivery platform itself uses.
	Primary allocation.Ledger
	// Divergent lists keys whose per-row split differs between the orders.
	Divergent []string
	// SiteColumn splits each cellar in Cellars: facility or grower nipd.
	SiteColumn string

	Keys    []summary.KeyTotals
	Cellars []summary.CellarTotals
	First   []summary.FirstExcess
}

// Totals sums quota and excess kilograms over the primary ledger.
func (r *Result) Totals() (quota, excess decimal.Decimal) {
	for _, e := range r.Primary.Entries {
		quota = quota.Add(e.KgQuota)
		excess = excess.Add(e.KgExcess)
	}
	return quota, excess
}

// Report lays the result out as the quota workbook.
func (r *Result) Report() workbook.QuotaReport {
	rep := workbook.QuotaReport{
		ByDate:       r.ByDate,
		ByTicket:     r.ByTicket,
		Processed:    r.Primary,
		SiteColumn:   r.SiteColumn,
		Cellars:      r.Cellars,
		Keys:         r.Keys,
		FirstExcess:  r.First,
		Excess:       summary.ExcessRows(r.Primary.Entries),
		ExcessBySite: summary.ExcessBySite(r.Primary.Entries, r.SiteColumn),
	}
	if len(r.Corrections) > 0 {
		rep.Corrections = r.Corrections
		rep.Adjusted = r.Adjusted
	}
	return rep
}

// Registry is the cleaned parcel registry and its yield ledger.
type Registry struct {
	Parcels []parcel.Parcel
	Ledger  []parcel.YieldEntry
	Stats   parcel.CleanStats
}

// Report lays the registry out as the parcel workbook.
func (r Registry) Report(groupByYear bool) workbook.ParcelReport {
	return workbook.ParcelReport{Ledger: r.Ledger, Parcels: r.Parcels, ByYear: groupByYear}
}

// Parcels cleans the parcel workbook and builds its yield ledger.
func Parcels(wb *sheet.Workbook, cfg Config) (Registry, error) {
	parcels, stats, err := parcel.Clean(parcel.Table(wb))
	if err != nil {
		return Registry{}, err
	}
	cfg.logger().Info("parcels cleaned",
		zap.Int("read", stats.Read),
		zap.Int("not_guarda", stats.NotGuarda),
		zap.Int("not_validated", stats.NotValidated),
		zap.Int("no_tax_id", stats.NoTaxID),
		zap.Int("bad_surface", stats.BadSurface),
		zap.Int("kept", stats.Kept))
	return Registry{
		Parcels: parcels,
		Ledger:  parcel.BuildYieldLedger(parcels, cfg.YieldPerHectare, cfg.GroupByYear),
		Stats:   stats,
	}, nil
}

// Run executes one batch. ctx is checked between stages.
func Run(ctx context.Context, in Input, cfg Config) (*Result, error) {
	if in.Parcels == nil || in.Deliveries == nil {
		return nil, fmt.Errorf("pipeline: parcels and deliveries are required")
	}
	src, err := delivery.Lookup(cfg.Source)
	if err != nil {
		return nil, err
	}
	res := &Result{RunID: uuid.NewString(), Source: src.Name(), SiteColumn: src.SiteColumn(), Started: time.Now()}
	log := cfg.logger().With(zap.String("run_id", res.RunID), zap.String("source", src.Name()))
	cfg.Logger = log
	res.Inputs = in.Checksums()
	log.Info("run started", zap.Any("inputs", res.Inputs))

	reg, err := Parcels(in.Parcels, cfg)
	if err != nil {
		return nil, fmt.Errorf("parcels: %w", err)
	}
	res.Parcels, res.Ledger, res.Stats.Parcels = reg.Parcels, reg.Ledger, reg.Stats

	if in.Corrections != nil {
		res.Corrections, err = correction.Load(sheet.NewTable(in.Corrections.Pick(""), 0))
		if err != nil {
			return nil, fmt.Errorf("corrections: %w", err)
		}
	}
	res.Adjusted = correction.Adjust(res.Ledger, res.Corrections)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	deliveries, dstats, err := src.Clean(src.Table(in.Deliveries))
	if err != nil {
		return nil, fmt.Errorf("deliveries: %w", err)
	}
	res.Stats.Deliveries = dstats
	log.Info("deliveries cleaned",
		zap.Int("read", dstats.Read),
		zap.Int("excluded", dstats.Excluded),
		zap.Int("not_guarda", dstats.NotGuarda),
		zap.Int("not_validated", dstats.NotValidated),
		zap.Int("no_tax_id", dstats.NoTaxID),
		zap.Int("bad_kg", dstats.BadKg),
		zap.Int("kept", dstats.Kept))

	linked, err := crosslink.Link(deliveries, crosslink.NewRegistry(res.Parcels, res.Ledger, res.Adjusted))
	res.Stats.Dropped = linked.Dropped
	res.Stats.Linked = len(linked.Rows)
	log.Info("deliveries linked",
		zap.Int("linked", len(linked.Rows)),
		zap.Int("unknown_producer", linked.Dropped.UnknownProducer),
		zap.Int("unknown_key", linked.Dropped.UnknownKey),
		zap.Int("unknown_parcel", linked.Dropped.UnknownParcel))
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.ByDate = allocation.Allocate(linked.Rows, allocation.ByDate)
	res.ByTicket = allocation.Allocate(linked.Rows, allocation.ByTicket)
	res.Primary = res.ByDate
	if src.TicketOrdered() {
		res.Primary = res.ByTicket
	}
	res.Divergent = allocation.Divergent(res.ByDate, res.ByTicket)
	if len(res.Divergent) > 0 {
		log.Warn("date and ticket order split some keys differently",
			zap.Int("keys", len(res.Divergent)),
			zap.Strings("sample", sample(res.Divergent, 10)))
	}

	res.Keys = summary.ByKey(res.Primary.Entries)
	res.Cellars = summary.ByCellar(res.Primary.Entries, res.SiteColumn)
	res.First = summary.FirstExcesses(res.Primary.Entries)
	res.Duration = time.Since(res.Started)

	quota, excess := res.Totals()
	log.Info("run finished",
		zap.String("order", res.Primary.Order.String()),
		zap.String("kg_quota", quota.StringFixed(2)),
		zap.String("kg_excess", excess.StringFixed(2)),
		zap.Int("keys", len(res.Keys)),
		zap.Duration("duration", res.Duration))
	return res, nil
}

func sample(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
