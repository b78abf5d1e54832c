package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"therabook/backend/internal/domain"
	"therabook/backend/internal/tzmath"
)

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Path      string `json:"path"`
}

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvalidInput:
		return http.StatusBadRequest
	case domain.KindUnprocessable:
		return http.StatusUnprocessableEntity
	case domain.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	body := errorBody{
		Code:      "INTERNAL_ERROR",
		Message:   "An unexpected error occurred",
		Timestamp: tzmath.Format(time.Now(), tzmath.FormatISO),
		Path:      r.URL.RequestURI(),
	}
	status := http.StatusInternalServerError
	if dErr, ok := domain.AsError(err); ok {
		status = statusFor(dErr.Kind)
		body.Code = dErr.Code
		body.Message = err.Error()
	}
	if status == http.StatusInternalServerError {
		log.Error("request failed", slog.String("path", r.URL.Path), slog.Any("err", err))
	}
	body.Error = http.StatusText(status)
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
