package main

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"CavaPgc/internal/delivery"
	"CavaPgc/internal/pipeline"
	"CavaPgc/internal/sheet"
	"CavaPgc/internal/vibase"
	"CavaPgc/internal/workbook"
)

var runFlags struct {
	parcels     string
	deliveries  string
	corrections string
	source      string
	yield       float64
	groupByYear bool
	out         string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Allocate a delivery export against the parcel registry",
	Example: `  cavapgc run --parcels parcelas.xlsx --deliveries pesadas.xlsx --out resultado.xlsx
  cavapgc run --parcels parcelas.xlsx --deliveries rvc.xls --source rvc --it04 it04.xlsx --out resultado.xlsx`,
	RunE: runQuota,
}

var parcelFlags struct {
	parcels     string
	yield       float64
	groupByYear bool
	out         string
}

var parcelsCmd = &cobra.Command{
	Use:   "parcels",
	Short: "Clean the parcel registry and export its yield ledger",
	RunE:  runParcels,
}

var vibaseFlags struct {
	in  string
	out string
}

var vibaseCmd = &cobra.Command{
	Use:   "vibase",
	Short: "Keep the latest accumulated base wine per facility, type, segment and zone",
	RunE:  runViBase,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.parcels, "parcels", "", "Parcel registry file (required)")
	f.StringVar(&runFlags.deliveries, "deliveries", "", "Delivery export file (required)")
	f.StringVar(&runFlags.corrections, "it04", "", "IT04 yield correction file")
	f.StringVar(&runFlags.source, "source", "", fmt.Sprintf("Delivery export format %v", delivery.Names()))
	f.Float64Var(&runFlags.yield, "yield", 0, "Maximum kg per hectare")
	f.BoolVar(&runFlags.groupByYear, "group-by-year", false, "Keep one yield entry per campaign year")
	f.StringVarP(&runFlags.out, "out", "o", "", "Result workbook (required)")
	runCmd.MarkFlagRequired("parcels")
	runCmd.MarkFlagRequired("deliveries")
	runCmd.MarkFlagRequired("out")

	f = parcelsCmd.Flags()
	f.StringVar(&parcelFlags.parcels, "parcels", "", "Parcel registry file (required)")
	f.Float64Var(&parcelFlags.yield, "yield", 0, "Maximum kg per hectare")
	f.BoolVar(&parcelFlags.groupByYear, "group-by-year", false, "Keep one yield entry per campaign year")
	f.StringVarP(&parcelFlags.out, "out", "o", "", "Output workbook (required)")
	parcelsCmd.MarkFlagRequired("parcels")
	parcelsCmd.MarkFlagRequired("out")

	f = vibaseCmd.Flags()
	f.StringVar(&vibaseFlags.in, "in", "", "Base wine movements export (required)")
	f.StringVarP(&vibaseFlags.out, "out", "o", "", "Output workbook (required)")
	vibaseCmd.MarkFlagRequired("in")
	vibaseCmd.MarkFlagRequired("out")
}

// runConfig overlays the flags the user actually set on the loaded config.
func runConfig(cmd *cobra.Command, source string, yield float64, groupByYear bool) pipeline.Config {
	rc := pipeline.FromConfig(cfg, log)
	if cmd.Flags().Changed("source") {
		rc.Source = source
	}
	if cmd.Flags().Changed("yield") {
		rc.YieldPerHectare = decimal.NewFromFloat(yield)
	}
	if cmd.Flags().Changed("group-by-year") {
		rc.GroupByYear = groupByYear
	}
	return rc
}

func runQuota(cmd *cobra.Command, args []string) error {
	rc := runConfig(cmd, runFlags.source, runFlags.yield, runFlags.groupByYear)
	if !rc.YieldPerHectare.IsPositive() {
		return fmt.Errorf("yield must be positive, got %s", rc.YieldPerHectare)
	}
	in, err := pipeline.InputFromFiles(runFlags.parcels, runFlags.deliveries, runFlags.corrections)
	if err != nil {
		return err
	}
	res, err := pipeline.Run(cmd.Context(), in, rc)
	if err != nil {
		return err
	}
	if err := writeWorkbook(runFlags.out, res.Report().Sheets()); err != nil {
		return err
	}
	quota, excess := res.Totals()
	fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d deliveries, %s kg cava, %s kg pgc -> %s\n",
		res.RunID, len(res.Primary.Entries), quota.StringFixed(2), excess.StringFixed(2), runFlags.out)
	return nil
}

func runParcels(cmd *cobra.Command, args []string) error {
	rc := runConfig(cmd, "", parcelFlags.yield, parcelFlags.groupByYear)
	wb, err := sheet.ReadFile(parcelFlags.parcels)
	if err != nil {
		return err
	}
	reg, err := pipeline.Parcels(wb, rc)
	if err != nil {
		return err
	}
	if err := writeWorkbook(parcelFlags.out, reg.Report(rc.GroupByYear).Sheets()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d parcels, %d yield entries -> %s\n", len(reg.Parcels), len(reg.Ledger), parcelFlags.out)
	return nil
}

func runViBase(cmd *cobra.Command, args []string) error {
	wb, err := sheet.ReadFile(vibaseFlags.in)
	if err != nil {
		return err
	}
	latest, err := vibase.Process(wb)
	if err != nil {
		return err
	}
	log.Info("vi base processed", zap.Int("groups", len(latest)), zap.String("total", vibase.Total(latest).String()))
	if err := writeWorkbook(vibaseFlags.out, []workbook.Sheet{vibase.Sheet(latest)}); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d groups -> %s\n", len(latest), vibaseFlags.out)
	return nil
}

func writeWorkbook(path string, sheets []workbook.Sheet) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := workbook.Write(f, sheets); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
