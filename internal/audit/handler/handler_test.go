package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"auditlog/internal/audit/handler/mocks"
	audit "auditlog/pkg/platform/audit"
)

type HandlerSuite struct {
	suite.Suite
	ctrl   *gomock.Controller
	svc    *mocks.MockService
	router chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.svc = mocks.NewMockService(s.ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.router = chi.NewRouter()
	New(s.svc, logger, "s3cret").Register(s.router)
}

func (s *HandlerSuite) do(method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("X-Admin-Token", "s3cret")
	req.RemoteAddr = "192.0.2.50:4711"
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *HandlerSuite) TestQueryParsesFilter() {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	s.svc.EXPECT().Query(gomock.Any(), audit.Filter{
		Start:     start,
		End:       audit.TimeOf(1717286400),
		Operation: "login",
		UserID:    "alice",
		Result:    audit.ResultDenied,
		Limit:     10,
		Offset:    20,
	}).Return([]audit.Entry{{ID: "e1", Operation: "login", Result: audit.ResultDenied}})

	w := s.do(http.MethodGet, "/admin/audit/logs?start=2024-06-01T00:00:00Z&end=1717286400&operation=login&user_id=alice&result=DENIED&limit=10&offset=20")

	s.Require().Equal(http.StatusOK, w.Code)
	var body struct {
		Entries []map[string]any `json:"entries"`
		Count   int              `json:"count"`
		Limit   int              `json:"limit"`
		Offset  int              `json:"offset"`
	}
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&body))
	s.Equal(1, body.Count)
	s.Equal(10, body.Limit)
	s.Equal(20, body.Offset)
	s.Equal("e1", body.Entries[0]["id"])
	s.Nil(body.Entries[0]["user_id"])
}

func (s *HandlerSuite) TestQueryEmptyResultIsArray() {
	s.svc.EXPECT().Query(gomock.Any(), audit.Filter{}).Return(nil)

	w := s.do(http.MethodGet, "/admin/audit/logs")

	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"entries":[],"count":0,"limit":100,"offset":0}`, w.Body.String())
}

func (s *HandlerSuite) TestQueryRejectsBadInput() {
	for _, target := range []string{
		"/admin/audit/logs?start=yesterday",
		"/admin/audit/logs?end=NaN",
		"/admin/audit/logs?start=2024-06-02T00:00:00Z&end=2024-06-01T00:00:00Z",
		"/admin/audit/logs?result=maybe",
		"/admin/audit/logs?limit=-1",
		"/admin/audit/logs?limit=5000",
		"/admin/audit/logs?offset=abc",
	} {
		s.Run(target, func() {
			w := s.do(http.MethodGet, target)
			s.Equal(http.StatusBadRequest, w.Code)
		})
	}
}

func (s *HandlerSuite) TestStats() {
	s.svc.EXPECT().GetStatistics(gomock.Any()).Return(audit.Stats{TotalLogged: 12, QueueDepth: 3, BackendAvailable: true})

	w := s.do(http.MethodGet, "/admin/audit/stats")

	s.Require().Equal(http.StatusOK, w.Code)
	var body map[string]any
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&body))
	s.Equal(float64(12), body["total_logged"])
	s.Equal(float64(3), body["queue_depth"])
	s.Equal(true, body["backend_available"])
}

func (s *HandlerSuite) TestCleanupRecordsItself() {
	s.svc.EXPECT().CleanupOldLogs(gomock.Any(), 30).Return(4)
	s.svc.EXPECT().Log(gomock.Any(), OperationCleanup, audit.ResultSuccess, gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, _ audit.Result, fields ...audit.Field) bool {
			var e audit.Entry
			for _, f := range fields {
				f(&e)
			}
			s.Equal("192.0.2.50", e.IPAddress)
			s.Equal("admin", e.UserRole)
			s.Equal(30, e.Details["days_to_keep"])
			s.Equal(4, e.Details["removed"])
			return true
		})

	w := s.do(http.MethodPost, "/admin/audit/cleanup?days_to_keep=30")

	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"removed":4}`, w.Body.String())
}

func (s *HandlerSuite) TestCleanupWithoutDaysUsesRetention() {
	s.svc.EXPECT().CleanupOldLogs(gomock.Any(), 0).Return(0)
	s.svc.EXPECT().Log(gomock.Any(), OperationCleanup, audit.ResultSuccess, gomock.Any(), gomock.Any(), gomock.Any()).Return(true)

	w := s.do(http.MethodPost, "/admin/audit/cleanup")
	s.Equal(http.StatusOK, w.Code)
}

func (s *HandlerSuite) TestCleanupRejectsBadDays() {
	w := s.do(http.MethodPost, "/admin/audit/cleanup?days_to_keep=-3")
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *HandlerSuite) TestFlush() {
	gomock.InOrder(
		s.svc.EXPECT().Flush(gomock.Any()),
		s.svc.EXPECT().Log(gomock.Any(), OperationFlush, audit.ResultSuccess, gomock.Any(), gomock.Any(), gomock.Any()).Return(true),
	)

	w := s.do(http.MethodPost, "/admin/audit/flush")
	s.Equal(http.StatusNoContent, w.Code)
}

func (s *HandlerSuite) TestRequiresAdminToken() {
	req := httptest.NewRequest(http.MethodGet, "/admin/audit/stats", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusUnauthorized, w.Code)
}
