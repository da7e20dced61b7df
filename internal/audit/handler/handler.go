// Package handler exposes the audit engine's admin surface over HTTP.
package handler

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	audit "auditlog/pkg/platform/audit"
	"auditlog/pkg/platform/httputil"
	"auditlog/pkg/platform/middleware/admin"
	"auditlog/pkg/platform/middleware/metadata"
)

// Service is the subset of the audit engine the admin surface drives.
type Service interface {
	Log(ctx context.Context, operation string, result audit.Result, fields ...audit.Field) bool
	Query(ctx context.Context, f audit.Filter) []audit.Entry
	GetStatistics(ctx context.Context) audit.Stats
	CleanupOldLogs(ctx context.Context, daysToKeep int) int
	Flush(ctx context.Context)
}

// Operations the admin surface records about itself.
const (
	OperationCleanup = "audit_cleanup"
	OperationFlush   = "audit_flush"
)

const maxLimit = 1000

// Handler serves /admin/audit.
type Handler struct {
	svc        Service
	logger     *slog.Logger
	adminToken string
}

// New creates a Handler. An empty adminToken leaves the routes open.
func New(svc Service, logger *slog.Logger, adminToken string) *Handler {
	return &Handler{svc: svc, logger: logger, adminToken: adminToken}
}

// Register mounts the admin routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/admin/audit", func(r chi.Router) {
		r.Use(chimw.RequestID)
		r.Use(metadata.ClientMetadata)
		r.Use(admin.RequireAdminToken(h.adminToken, h.logger))
		r.Get("/logs", h.handleQuery)
		r.Get("/stats", h.handleStats)
		r.Post("/cleanup", h.handleCleanup)
		r.Post("/flush", h.handleFlush)
	})
}

type queryResponse struct {
	Entries []audit.Entry `json:"entries"`
	Count   int           `json:"count"`
	Limit   int           `json:"limit"`
	Offset  int           `json:"offset"`
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		h.logger.WarnContext(ctx, "invalid audit query",
			"request_id", chimw.GetReqID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	entries := h.svc.Query(ctx, f)
	if entries == nil {
		entries = []audit.Entry{}
	}
	limit := f.Limit
	if limit <= 0 {
		limit = audit.DefaultLimit
	}
	httputil.WriteJSON(w, http.StatusOK, queryResponse{
		Entries: entries,
		Count:   len(entries),
		Limit:   limit,
		Offset:  f.Offset,
	})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.svc.GetStatistics(r.Context()))
}

func (h *Handler) handleCleanup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	days := 0
	if raw := r.URL.Query().Get("days_to_keep"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httputil.WriteError(w, httputil.NewError(httputil.CodeBadRequest, "days_to_keep must be a non-negative integer"))
			return
		}
		days = n
	}

	removed := h.svc.CleanupOldLogs(ctx, days)
	h.svc.Log(ctx, OperationCleanup, audit.ResultSuccess, h.requestFields(ctx, map[string]any{
		"days_to_keep": days,
		"removed":      removed,
	})...)
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (h *Handler) handleFlush(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.svc.Flush(ctx)
	h.svc.Log(ctx, OperationFlush, audit.ResultSuccess, h.requestFields(ctx, nil)...)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) requestFields(ctx context.Context, details map[string]any) []audit.Field {
	if details == nil {
		details = map[string]any{}
	}
	if ua := metadata.UserAgent(ctx); ua != "" {
		details["user_agent"] = ua
		details["device"] = metadata.DeviceName(ua)
	}
	if id := chimw.GetReqID(ctx); id != "" {
		details["request_id"] = id
	}
	return []audit.Field{
		audit.WithIPAddress(metadata.ClientIP(ctx)),
		audit.WithUserRole("admin"),
		audit.WithDetails(details),
	}
}

func parseFilter(q url.Values) (audit.Filter, error) {
	var f audit.Filter
	var err error
	if f.Start, err = parseTime(q.Get("start")); err != nil {
		return f, httputil.NewError(httputil.CodeBadRequest, "start must be RFC3339 or epoch seconds")
	}
	if f.End, err = parseTime(q.Get("end")); err != nil {
		return f, httputil.NewError(httputil.CodeBadRequest, "end must be RFC3339 or epoch seconds")
	}
	if !f.Start.IsZero() && !f.End.IsZero() && f.End.Before(f.Start) {
		return f, httputil.NewError(httputil.CodeBadRequest, "end must not precede start")
	}
	f.Operation = q.Get("operation")
	f.UserID = q.Get("user_id")
	f.SessionID = q.Get("session_id")
	f.VMName = q.Get("vm_name")
	if raw := q.Get("result"); raw != "" {
		res, ok := audit.ParseResult(raw)
		if !ok {
			return f, httputil.NewError(httputil.CodeBadRequest, "result must be one of success, denied, failed, error")
		}
		f.Result = res
	}
	if f.Limit, err = parseCount(q.Get("limit")); err != nil || f.Limit > maxLimit {
		return f, httputil.NewError(httputil.CodeBadRequest, "limit must be between 0 and 1000")
	}
	if f.Offset, err = parseCount(q.Get("offset")); err != nil {
		return f, httputil.NewError(httputil.CodeBadRequest, "offset must be a non-negative integer")
	}
	return f, nil
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return time.Time{}, strconv.ErrSyntax
	}
	return audit.TimeOf(secs), nil
}

func parseCount(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}
