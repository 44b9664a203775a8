package httputil

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/cwrk-planet/attendance-service/internal/logger"
)

type envelope map[string]any

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write json response failed", logger.Err(err))
	}
}

// OK — «успешный» ответ с обёрткой.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, envelope{"data": data})
}

func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, envelope{"data": data})
}

// Error — унифицированная ошибка (kind + message + meta).
func Error(ctx context.Context, w http.ResponseWriter, status int, kind, msg string, meta map[string]any) {
	body := envelope{
		"kind":    kind,
		"message": msg,
	}
	if len(meta) > 0 {
		body["meta"] = meta
	}
	if id := RequestIDFrom(ctx); id != "" {
		body["request_id"] = id
	}
	JSON(w, status, envelope{"error": body})
}
