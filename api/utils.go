package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"CavaPgc/api/constants"
	"CavaPgc/internal/logger"
)

// Error response helper
func RespondWithError(w http.ResponseWriter, status int, errMsg string) {
	logger.L().Warn("request failed", zap.Int("status", status), zap.String("error", errMsg))
	w.Header().Set(constants.ContentTypeText, constants.ContentTypeJSON)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   errMsg,
	})
}

// RespondWithPayload sends a consistent JSON response and includes an arbitrary payload
func RespondWithPayload(w http.ResponseWriter, success bool, errMsg string, payload interface{}) {
	w.Header().Set(constants.ContentTypeText, constants.ContentTypeJSON)
	resp := map[string]interface{}{"success": success}
	if !success && errMsg != "" {
		resp["error"] = errMsg
		logger.L().Warn("RespondWithPayload", zap.String("error", errMsg))
	}
	if payload != nil {
		// use a conventional key `rows` for list payloads
		resp["rows"] = payload
	}
	json.NewEncoder(w).Encode(resp)
}

// RespondWithFile sends a download with the given name.
func RespondWithFile(w http.ResponseWriter, contentType, fileName string, data []byte) {
	w.Header().Set(constants.ContentTypeText, contentType)
	w.Header().Set(constants.HeaderContentDisposition, `attachment; filename="`+fileName+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
