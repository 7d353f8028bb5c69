package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/persistence"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/service"
)

type testServer struct {
	app    *fiber.App
	tokens *auth.TokenManager
}

// newTestServer serves the full route table over a temp sqlite store.
// backdate shifts the clock used for ticket creation so deadlines can lie
// in the past.
func newTestServer(t *testing.T, demoUserID string, backdate time.Duration) *testServer {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	db, err := persistence.OpenSQLite(ctx, filepath.Join(t.TempDir(), "helpdesk.db"), logger)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(db.Close)
	repos := repository.NewSQLiteSet(db.DB)

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	dispatcher := events.NewInMemoryDispatcher()
	service.NewActivityService(dispatcher, metrics, logger).RegisterHandlers()

	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  repos.Tickets,
		CommentRepo: repos.Comments,
		HistoryRepo: repos.History,
		UserRepo:    repos.Users,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
		Clock:       func() time.Time { return time.Now().Add(-backdate) },
	})
	users := service.NewUserService(repos.Users, logger)
	sweeper := service.NewBreachSweeper(service.SweepDependencies{
		TicketRepo:  repos.Tickets,
		HistoryRepo: repos.History,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
	})
	stats := service.NewStatsService(repos.Tickets, logger)
	tokens := auth.NewTokenManager("test-secret", 60)

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:   handlers.NewHealthHandler("helpdesk", "test", handlers.Dependency{Name: "sqlite", Pinger: db}),
		Tickets:  handlers.NewTicketsHandler(tickets, users),
		SLA:      handlers.NewSLAHandler(sweeper, stats),
		Users:    handlers.NewUsersHandler(users),
		Identity: auth.NewIdentityMiddleware(tokens, repos.Users, demoUserID),
		Metrics:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
	return &testServer{app: app, tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers ...string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	out := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("%s %s body %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, out
}

func (s *testServer) createTicket(t *testing.T, priority string) map[string]any {
	t.Helper()
	status, body := s.do(t, nethttp.MethodPost, "/api/tickets", map[string]any{
		"title":       "Printer on fire",
		"description": "Third floor printer is smoking",
		"priority":    priority,
	})
	if status != nethttp.StatusCreated {
		t.Fatalf("create status = %d, body = %v", status, body)
	}
	return body["data"].(map[string]any)
}

func errorCode(body map[string]any) string {
	errBody, _ := body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func TestCreateAndGetTicket(t *testing.T) {
	srv := newTestServer(t, domain.DemoUserID, 0)
	ticket := srv.createTicket(t, "high")

	if ticket["status"] != "open" || ticket["priority"] != "high" || ticket["version"] != float64(1) {
		t.Fatalf("created ticket = %v", ticket)
	}
	if ticket["created_by"] != domain.DemoUserID || ticket["is_breached"] != false || ticket["assigned_to"] != nil {
		t.Fatalf("created ticket = %v", ticket)
	}

	status, body := srv.do(t, nethttp.MethodGet, "/api/tickets/"+ticket["id"].(string), nil)
	if status != nethttp.StatusOK {
		t.Fatalf("get status = %d, body = %v", status, body)
	}
	detail := body["data"].(map[string]any)
	creator := detail["creator"].(map[string]any)
	if creator["name"] != "Demo User" {
		t.Fatalf("creator = %v", creator)
	}
	remaining := detail["sla_remaining"].(map[string]any)
	if remaining["overdue"] != false || remaining["hours"] != float64(7) {
		t.Fatalf("sla_remaining = %v, want 7h left", remaining)
	}
	if !strings.HasSuffix(remaining["label"].(string), "remaining") {
		t.Fatalf("label = %v", remaining["label"])
	}
}

func TestCreateTicketValidation(t *testing.T) {
	srv := newTestServer(t, domain.DemoUserID, 0)

	status, body := srv.do(t, nethttp.MethodPost, "/api/tickets", map[string]any{
		"title": "No description", "priority": "high",
	})
	if status != nethttp.StatusBadRequest || errorCode(body) != "VALIDATION_FAILED" {
		t.Fatalf("missing description = %d %v", status, body)
	}

	status, body = srv.do(t, nethttp.MethodPost, "/api/tickets", map[string]any{
		"title": "Bad", "description": "x", "priority": "critical",
	})
	if status != nethttp.StatusBadRequest || errorCode(body) != "VALIDATION_FAILED" {
		t.Fatalf("bad priority = %d %v", status, body)
	}
}

func TestAnonymousWritesRejected(t *testing.T) {
	srv := newTestServer(t, "", 0)
	status, body := srv.do(t, nethttp.MethodPost, "/api/tickets", map[string]any{
		"title": "t", "description": "d",
	})
	if status != nethttp.StatusUnauthorized || errorCode(body) != "UNAUTHORIZED" {
		t.Fatalf("anonymous create = %d %v", status, body)
	}

	status, _ = srv.do(t, nethttp.MethodGet, "/api/tickets", nil)
	if status != nethttp.StatusOK {
		t.Fatalf("anonymous list = %d, want 200", status)
	}
}

func TestBearerTokenIdentifiesCaller(t *testing.T) {
	srv := newTestServer(t, "", 0)
	token, _, err := srv.tokens.GenerateToken(&domain.User{ID: domain.DemoAgentUserID, Role: domain.UserRoleAgent})
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	status, body := srv.do(t, nethttp.MethodGet, "/api/me", nil, fiber.HeaderAuthorization, "Bearer "+token)
	if status != nethttp.StatusOK {
		t.Fatalf("me status = %d, body = %v", status, body)
	}
	if body["data"].(map[string]any)["id"] != domain.DemoAgentUserID {
		t.Fatalf("me = %v", body)
	}
}

func TestUpdateTicketVersionConflict(t *testing.T) {
	srv := newTestServer(t, domain.DemoUserID, 0)
	ticket := srv.createTicket(t, "low")
	path := "/api/tickets/" + ticket["id"].(string)

	status, body := srv.do(t, nethttp.MethodPatch, path, map[string]any{"status": "in_progress", "version": 1})
	if status != nethttp.StatusOK {
		t.Fatalf("first update = %d %v", status, body)
	}
	if body["data"].(map[string]any)["version"] != float64(2) {
		t.Fatalf("updated = %v", body)
	}

	status, body = srv.do(t, nethttp.MethodPatch, path, map[string]any{"status": "resolved", "version": 1})
	if status != nethttp.StatusConflict || errorCode(body) != "VERSION_CONFLICT" {
		t.Fatalf("stale update = %d %v", status, body)
	}
	raw, _ := json.Marshal(body)
	var conflict dto.ErrorResponse
	if err := json.Unmarshal(raw, &conflict); err != nil {
		t.Fatalf("decode conflict body: %v", err)
	}
	if conflict.Error.Code != "VERSION_CONFLICT" || conflict.Error.Details["currentVersion"] != float64(2) {
		t.Fatalf("conflict = %+v, want currentVersion 2 under error.details", conflict.Error)
	}

	_, body = srv.do(t, nethttp.MethodGet, path, nil)
	if body["data"].(map[string]any)["status"] != "in_progress" {
		t.Fatalf("ticket changed by rejected update: %v", body)
	}
}

func TestUpdateTicketAssignAndUnassign(t *testing.T) {
	srv := newTestServer(t, domain.DemoUserID, 0)
	ticket := srv.createTicket(t, "medium")
	path := "/api/tickets/" + ticket["id"].(string)

	status, body := srv.do(t, nethttp.MethodPatch, path, map[string]any{"assigned_to": domain.DemoAgentUserID})
	if status != nethttp.StatusOK || body["data"].(map[string]any)["assigned_to"] != domain.DemoAgentUserID {
		t.Fatalf("assign = %d %v", status, body)
	}

	status, body = srv.do(t, nethttp.MethodPatch, path, map[string]any{"assigned_to": nil})
	if status != nethttp.StatusOK || body["data"].(map[string]any)["assigned_to"] != nil {
		t.Fatalf("unassign = %d %v", status, body)
	}

	status, body = srv.do(t, nethttp.MethodPatch, path, map[string]any{"assigned_to": "0190c2a4-5b6e-7c3d-8e9f-0a1b2c3d4e5f"})
	if status != nethttp.StatusBadRequest {
		t.Fatalf("unknown assignee = %d %v", status, body)
	}
}

func TestUnknownTicketIsNotFound(t *testing.T) {
	srv := newTestServer(t, domain.DemoUserID, 0)
	for _, path := range []string{"/api/tickets/nope", "/api/tickets/0190c2a4-5b6e-7c3d-8e9f-0a1b2c3d4e5f/history"} {
		status, body := srv.do(t, nethttp.MethodGet, path, nil)
		if status != nethttp.StatusNotFound || errorCode(body) != "NOT_FOUND" {
			t.Fatalf("GET %s = %d %v", path, status, body)
		}
	}
}

func TestCommentsAndHistory(t *testing.T) {
	srv := newTestServer(t, domain.DemoUserID, 0)
	ticket := srv.createTicket(t, "urgent")
	base := "/api/tickets/" + ticket["id"].(string)

	status, body := srv.do(t, nethttp.MethodPost, base+"/comments", map[string]any{"content": "Looking into it"})
	if status != nethttp.StatusCreated {
		t.Fatalf("comment = %d %v", status, body)
	}
	status, body = srv.do(t, nethttp.MethodPost, base+"/comments", map[string]any{"content": "  "})
	if status != nethttp.StatusBadRequest {
		t.Fatalf("blank comment = %d %v", status, body)
	}

	_, body = srv.do(t, nethttp.MethodGet, base+"/comments", nil)
	comments := body["data"].([]any)
	if len(comments) != 1 {
		t.Fatalf("comments = %v", comments)
	}
	author := comments[0].(map[string]any)["user"].(map[string]any)
	if author["id"] != domain.DemoUserID {
		t.Fatalf("comment author = %v", author)
	}

	_, body = srv.do(t, nethttp.MethodGet, base+"/history", nil)
	history := body["data"].([]any)
	if len(history) != 2 {
		t.Fatalf("history = %v", history)
	}
	if history[0].(map[string]any)["action"] != "commented" || history[1].(map[string]any)["action"] != "created" {
		t.Fatalf("history order = %v, want newest first", history)
	}
}

func TestListTicketsQuery(t *testing.T) {
	srv := newTestServer(t, domain.DemoUserID, 0)
	srv.createTicket(t, "low")
	srv.createTicket(t, "high")
	srv.createTicket(t, "high")

	status, body := srv.do(t, nethttp.MethodGet, "/api/tickets?priority=high&limit=1", nil)
	if status != nethttp.StatusOK {
		t.Fatalf("list = %d %v", status, body)
	}
	if body["total"] != float64(2) || body["limit"] != float64(1) || len(body["data"].([]any)) != 1 {
		t.Fatalf("list = %v", body)
	}

	status, body = srv.do(t, nethttp.MethodGet, "/api/tickets?breached=maybe", nil)
	if status != nethttp.StatusBadRequest {
		t.Fatalf("bad breached = %d %v", status, body)
	}
	status, _ = srv.do(t, nethttp.MethodGet, "/api/tickets?limit=ten", nil)
	if status != nethttp.StatusBadRequest {
		t.Fatalf("bad limit = %d", status)
	}
}

func TestCheckBreachesAndStats(t *testing.T) {
	srv := newTestServer(t, domain.DemoUserID, 10*time.Hour)
	urgent := srv.createTicket(t, "urgent")
	srv.createTicket(t, "low")

	status, body := srv.do(t, nethttp.MethodPost, "/api/sla/check-breaches", nil)
	if status != nethttp.StatusOK {
		t.Fatalf("check-breaches = %d %v", status, body)
	}
	if body["checked"] != float64(2) || body["updated"] != float64(1) {
		t.Fatalf("sweep = %v", body)
	}
	update := body["updates"].([]any)[0].(map[string]any)
	if update["id"] != urgent["id"] || update["wasBreached"] != false || update["isNowBreached"] != true {
		t.Fatalf("update = %v", update)
	}

	_, body = srv.do(t, nethttp.MethodPost, "/api/sla/check-breaches", nil)
	if body["updated"] != float64(0) || len(body["updates"].([]any)) != 0 {
		t.Fatalf("second sweep = %v, want no changes", body)
	}

	status, body = srv.do(t, nethttp.MethodGet, "/api/sla/stats", nil)
	if status != nethttp.StatusOK {
		t.Fatalf("stats = %d %v", status, body)
	}
	if body["total"] != float64(2) || body["breached"] != float64(1) || body["atRisk"] != float64(0) {
		t.Fatalf("stats = %v", body)
	}
	byPriority := body["byPriority"].(map[string]any)
	if byPriority["urgent"] != float64(1) || byPriority["low"] != float64(1) {
		t.Fatalf("byPriority = %v", byPriority)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, domain.DemoUserID, 0)
	status, body := srv.do(t, nethttp.MethodGet, "/health/ready", nil)
	if status != nethttp.StatusOK || body["status"] != "ready" {
		t.Fatalf("ready = %d %v", status, body)
	}
	srv.createTicket(t, "low")

	req := httptest.NewRequest(nethttp.MethodGet, "/metrics", nil)
	resp, err := srv.app.Test(req, -1)
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), `helpdesk_ticket_events_total{type="ticket.created"} 1`) {
		t.Fatalf("metrics missing ticket event counter:\n%s", raw)
	}
	if !strings.Contains(string(raw), "helpdesk_http_requests_total") {
		t.Fatalf("metrics missing request counter")
	}
}
