package handlers

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/anonto42/trendpulse/backend/internal/repositories"
	"github.com/anonto42/trendpulse/backend/internal/tasks"
	"github.com/anonto42/trendpulse/backend/internal/testutil"
	"github.com/anonto42/trendpulse/backend/internal/validators"
	"github.com/anonto42/trendpulse/backend/pkg/config"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testServer struct {
	e     *echo.Echo
	db    *gorm.DB
	queue *tasks.MemoryQueue
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := testutil.NewDB(t)
	queue := tasks.NewMemoryQueue(8)
	repo := repositories.NewPostgresTrendRepository(db)

	e := echo.New()
	e.Validator = validators.New()
	api := e.Group("/api")
	NewHealthHandler(repo, queue).RegisterHealthRoutes(e, api)
	NewTrendHandler(repo).RegisterTrendRoutes(api)
	NewTaskHandler(queue, config.RetentionConfig{MaxAgeDays: 7, MaxRecordsPerPlatform: 1000}).RegisterTaskRoutes(api)

	return &testServer{e: e, db: db, queue: queue}
}

func (s *testServer) do(t *testing.T, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func jsonBody(s string) io.Reader {
	return strings.NewReader(s)
}

var seedBase = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func bodyOrNil(s string) io.Reader {
	if s == "" {
		return nil
	}
	return jsonBody(s)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
