// Package quota serves the batch over HTTP: multipart uploads in, result
// workbooks or JSON summaries out.
package quota

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"CavaPgc/api"
	"CavaPgc/api/constants"
	"CavaPgc/internal/crosslink"
	"CavaPgc/internal/delivery"
	"CavaPgc/internal/logger"
	"CavaPgc/internal/metrics"
	"CavaPgc/internal/normalize"
	"CavaPgc/internal/pipeline"
	"CavaPgc/internal/sheet"
	"CavaPgc/internal/summary"
	"CavaPgc/internal/vibase"
	"CavaPgc/internal/workbook"
)

// Handler holds what the routes share.
type Handler struct {
	Defaults  pipeline.Config
	Collector *metrics.Collector
	MaxUpload int64
}

func NewRouter(h *Handler) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)
	router.HandleFunc("/quota/process", h.Process).Methods(http.MethodPost)
	router.HandleFunc("/quota/preview", h.Preview).Methods(http.MethodPost)
	router.HandleFunc("/vibase/process", h.ViBase).Methods(http.MethodPost)
	if h.Collector != nil {
		router.Handle("/metrics", h.Collector.Handler()).Methods(http.MethodGet)
	}
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.RespondWithError(w, http.StatusMethodNotAllowed, constants.ErrMethodNotAllowed)
	})
	return router
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	api.RespondWithPayload(w, true, "", map[string]string{"status": "ok"})
}

// Process runs the batch and returns the result workbook.
func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	res, ok := h.run(w, r)
	if !ok {
		return
	}
	data, err := workbook.Bytes(res.Report().Sheets())
	if err != nil {
		logger.L().Error("write workbook", zap.String("run_id", res.RunID), zap.Error(err))
		api.RespondWithError(w, http.StatusInternalServerError, constants.ErrWriteWorkbook)
		return
	}
	w.Header().Set(constants.HeaderRunID, res.RunID)
	api.RespondWithFile(w, workbook.ContentType, "pgc_"+res.RunID+".xlsx", data)
}

// Preview is the JSON summary of a run.
type Preview struct {
	RunID       string                 `json:"run_id"`
	Source      string                 `json:"source"`
	Inputs      map[string]string      `json:"inputs"`
	Order       string                 `json:"order"`
	Rows        map[string]int         `json:"rows"`
	KgQuota     decimal.Decimal        `json:"kg_quota"`
	KgExcess    decimal.Decimal        `json:"kg_excess"`
	Keys        []summary.KeyTotals    `json:"keys"`
	Cellars     []summary.CellarTotals `json:"cellars"`
	FirstExcess []summary.FirstExcess  `json:"first_excess"`
	Divergent   []string               `json:"divergent_keys"`
}

func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	res, ok := h.run(w, r)
	if !ok {
		return
	}
	quota, excess := res.Totals()
	w.Header().Set(constants.HeaderRunID, res.RunID)
	api.RespondWithPayload(w, true, "", Preview{
		RunID:       res.RunID,
		Source:      res.Source,
		Inputs:      res.Inputs,
		Order:       res.Primary.Order.String(),
		Rows:        res.Stats.Rows(),
		KgQuota:     quota,
		KgExcess:    excess,
		Keys:        res.Keys,
		Cellars:     res.Cellars,
		FirstExcess: res.First,
		Divergent:   res.Divergent,
	})
}

// ViBase returns the latest accumulated stock workbook for an upload.
func (h *Handler) ViBase(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}
	wb, err := formWorkbook(r, constants.FieldFile)
	if err != nil {
		respondRunError(w, err)
		return
	}
	if wb == nil {
		api.RespondWithError(w, http.StatusBadRequest, constants.ErrMissingFile)
		return
	}
	latest, err := vibase.Process(wb)
	if err != nil {
		respondRunError(w, err)
		return
	}
	data, err := workbook.Bytes([]workbook.Sheet{vibase.Sheet(latest)})
	if err != nil {
		api.RespondWithError(w, http.StatusInternalServerError, constants.ErrWriteWorkbook)
		return
	}
	api.RespondWithFile(w, workbook.ContentType, "vi_base_acumulado.xlsx", data)
}

func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request) bool {
	if h.MaxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUpload)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		api.RespondWithError(w, http.StatusBadRequest, constants.ErrParseForm)
		return false
	}
	return true
}

// run parses the upload, runs the batch and records it. On failure the
// error response has already been written.
func (h *Handler) run(w http.ResponseWriter, r *http.Request) (*pipeline.Result, bool) {
	if !h.parseForm(w, r) {
		return nil, false
	}
	cfg, err := h.config(r)
	if err != nil {
		api.RespondWithError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	in, err := formInput(r)
	if err != nil {
		respondRunError(w, err)
		return nil, false
	}

	started := time.Now()
	res, err := pipeline.Run(r.Context(), in, cfg)
	stats := metrics.RunStats{Trigger: "http", Source: cfg.Source, Err: err, Duration: time.Since(started)}
	if res != nil {
		stats.Rows = res.Stats.Rows()
		quota, excess := res.Totals()
		stats.QuotaKg, stats.ExcessKg = quota.InexactFloat64(), excess.InexactFloat64()
	}
	if h.Collector != nil {
		h.Collector.ObserveRun(stats)
	}
	if err != nil {
		respondRunError(w, err)
		return nil, false
	}
	return res, true
}

// config overlays the form fields on the service defaults.
func (h *Handler) config(r *http.Request) (pipeline.Config, error) {
	cfg := h.Defaults
	cfg.Logger = logger.L().With(zap.String("trigger", "http"))
	if v := r.FormValue(constants.FieldSource); v != "" {
		if _, err := delivery.Lookup(v); err != nil {
			return cfg, errors.New(constants.ErrUnknownSource + v)
		}
		cfg.Source = v
	}
	if v := r.FormValue(constants.FieldYield); v != "" {
		d, ok := normalize.Decimal(v)
		if !ok || !d.IsPositive() {
			return cfg, errors.New(constants.ErrInvalidYield)
		}
		cfg.YieldPerHectare = d
	}
	if v := r.FormValue(constants.FieldGroupByYear); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, errors.New(constants.ErrInvalidGroupBy)
		}
		cfg.GroupByYear = b
	}
	return cfg, nil
}

type formError struct {
	msg string
}

func (e formError) Error() string { return e.msg }

func formInput(r *http.Request) (pipeline.Input, error) {
	var in pipeline.Input
	var err error
	if in.Parcels, err = formWorkbook(r, constants.FieldParcels); err != nil {
		return in, err
	}
	if in.Parcels == nil {
		return in, formError{constants.ErrMissingParcels}
	}
	if in.Deliveries, err = formWorkbook(r, constants.FieldDeliveries); err != nil {
		return in, err
	}
	if in.Deliveries == nil {
		return in, formError{constants.ErrMissingDeliveries}
	}
	in.Corrections, err = formWorkbook(r, constants.FieldCorrections)
	return in, err
}

// formWorkbook reads the uploaded file under field, nil when absent.
func formWorkbook(r *http.Request, field string) (*sheet.Workbook, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[field]) == 0 {
		return nil, nil
	}
	fh := r.MultipartForm.File[field][0]
	data, err := readPart(fh)
	if err != nil {
		return nil, formError{constants.ErrOpenFile + fh.Filename}
	}
	wb, err := sheet.Read(fh.Filename, data)
	if err != nil {
		if errors.Is(err, sheet.ErrUnsupportedFormat) {
			return nil, formError{constants.ErrUnsupportedFile + fh.Filename}
		}
		return nil, formError{fmt.Sprintf("%s%s: %v", constants.ErrOpenFile, fh.Filename, err)}
	}
	return wb, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// respondRunError maps run errors onto status codes.
func respondRunError(w http.ResponseWriter, err error) {
	var fe formError
	var mce *normalize.MissingColumnError
	switch {
	case errors.As(err, &fe):
		api.RespondWithError(w, http.StatusBadRequest, fe.msg)
	case errors.As(err, &mce):
		api.RespondWithError(w, http.StatusBadRequest, constants.ErrMissingColumn+mce.Error())
	case errors.Is(err, crosslink.ErrEmptyCrossLink):
		api.RespondWithError(w, http.StatusUnprocessableEntity, constants.ErrNoLinkedDeliveries)
	case errors.Is(err, context.Canceled):
		api.RespondWithError(w, http.StatusRequestTimeout, constants.ErrCancelled)
	default:
		api.RespondWithError(w, http.StatusInternalServerError, constants.ErrRunFailed+err.Error())
	}
}
