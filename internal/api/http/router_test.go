package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/accessgate/access-gate/internal/api/http/handlers"
	"github.com/accessgate/access-gate/internal/auth"
	"github.com/accessgate/access-gate/internal/config"
	"github.com/accessgate/access-gate/internal/events"
	"github.com/accessgate/access-gate/internal/observability"
	"github.com/accessgate/access-gate/internal/repository"
	"github.com/accessgate/access-gate/internal/repository/memory"
	"github.com/accessgate/access-gate/internal/service"
)

type testServer struct {
	app     *fiber.App
	store   *memory.AccessRequestStore
	metrics *observability.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newServingTestServer(t, context.Background())
}

// newServingTestServer builds the app with waits bound to serving.
func newServingTestServer(t *testing.T, serving context.Context) *testServer {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	store := memory.NewAccessRequestStore()
	dispatcher := events.NewInMemoryDispatcher()

	hash, err := auth.HashPassword("s3cret", bcrypt.MinCost)
	require.NoError(t, err)
	operators := repository.NewStaticOperatorRepository(map[string]string{"alice": hash})

	authService := service.NewAuthService(
		config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 5},
		service.AuthDependencies{Operators: operators, Logger: logger},
	)
	admission := service.NewAdmissionService(config.AdmissionConfig{
		MaxPendingPerIdentity: 3,
		PlaceholderFirstName:  "ავტომატური",
		PlaceholderLastName:   "მოთხოვნა",
	}, service.AdmissionDependencies{Requests: store, Dispatcher: dispatcher, Logger: logger, Metrics: metrics})
	approval := service.NewApprovalService(service.ApprovalDependencies{Requests: store, Dispatcher: dispatcher, Logger: logger, Metrics: metrics})
	notifier := service.NewStatusNotifier(service.NotifierDependencies{
		Requests: store, Dispatcher: dispatcher, Logger: logger, PollInterval: 10 * time.Millisecond,
	})

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:    handlers.NewHealthHandler("access-gate", "test", nil),
		Operators: handlers.NewOperatorsHandler(authService),
		AccessRequests: handlers.NewAccessRequestsHandler(handlers.AccessRequestsDependencies{
			Admission: admission,
			Approval:  approval,
			Notifier:  notifier,
			Queue:     service.NewPendingQueue(store),
			MaxWait:   5 * time.Second,
			Serving:   serving,
		}),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), operators),
	})
	return &testServer{app: app, store: store, metrics: metrics}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, 10_000)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func (s *testServer) login(t *testing.T) string {
	t.Helper()
	status, env := s.do(t, fiber.MethodPost, "/auth/operators/login",
		map[string]string{"username": "alice", "password": "s3cret"}, "")
	require.Equal(t, fiber.StatusOK, status)
	var data struct {
		Auth struct {
			Token string `json:"token"`
		} `json:"auth"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Auth.Token)
	return data.Auth.Token
}

type submitted struct {
	ID               string `json:"id"`
	VerificationCode string `json:"verification_code"`
	Status           string `json:"status"`
}

func (s *testServer) submit(t *testing.T, first, last string) (int, submitted, envelope) {
	t.Helper()
	status, env := s.do(t, fiber.MethodPost, "/access-requests",
		map[string]string{"first_name": first, "last_name": last}, "")
	var out submitted
	if status == fiber.StatusCreated {
		require.NoError(t, json.Unmarshal(env.Data, &out))
	}
	return status, out, env
}

type statusBody struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Decided  bool   `json:"decided"`
	Approved bool   `json:"approved"`
}

func TestSubmitAndThrottle(t *testing.T) {
	s := newTestServer(t)

	for i := 0; i < 3; i++ {
		status, body, _ := s.submit(t, "ana", "beridze")
		require.Equal(t, fiber.StatusCreated, status)
		assert.Len(t, body.VerificationCode, 5)
		assert.Equal(t, "pending", body.Status)
	}

	status, _, env := s.submit(t, "ana", "beridze")
	assert.Equal(t, fiber.StatusTooManyRequests, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "THROTTLE_EXCEEDED", env.Error.Code)
	assert.Equal(t, "ana", env.Error.Details["first_name"])
	assert.Equal(t, 3, s.store.Len())
}

func TestSubmitWithoutBodyUsesPlaceholder(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, fiber.MethodPost, "/access-requests", nil, "")
	require.Equal(t, fiber.StatusCreated, status)
	var body submitted
	require.NoError(t, json.Unmarshal(env.Data, &body))

	token := s.login(t)
	status, env = s.do(t, fiber.MethodGet, "/access-requests/pending", nil, token)
	require.Equal(t, fiber.StatusOK, status)
	var items []struct {
		ID        string `json:"id"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &items))
	require.Len(t, items, 1)
	assert.Equal(t, body.ID, items[0].ID)
	assert.Equal(t, "ავტომატური", items[0].FirstName)
	assert.Equal(t, "მოთხოვნა", items[0].LastName)
}

func TestStatusEndpoints(t *testing.T) {
	s := newTestServer(t)
	_, sub, _ := s.submit(t, "ana", "beridze")

	status, env := s.do(t, fiber.MethodGet, "/access-requests/"+sub.ID+"/status", nil, "")
	require.Equal(t, fiber.StatusOK, status)
	var body statusBody
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, "pending", body.Status)
	assert.False(t, body.Decided)

	status, env = s.do(t, fiber.MethodGet, "/access-requests/by-code/"+sub.VerificationCode+"/status", nil, "")
	require.Equal(t, fiber.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, sub.ID, body.ID)

	status, env = s.do(t, fiber.MethodGet, "/access-requests/unknown/status", nil, "")
	assert.Equal(t, fiber.StatusNotFound, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestOperatorRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, fiber.MethodGet, "/access-requests/pending", nil, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	status, _ = s.do(t, fiber.MethodPost, "/access-requests/x/decision",
		map[string]string{"action": "approve"}, "not-a-jwt")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = s.do(t, fiber.MethodPost, "/auth/operators/login",
		map[string]string{"username": "alice", "password": "nope"}, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestDecisionFlow(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)
	_, sub, _ := s.submit(t, "ana", "beridze")

	status, env := s.do(t, fiber.MethodPost, "/access-requests/"+sub.ID+"/decision",
		map[string]string{"action": "escalate"}, token)
	assert.Equal(t, fiber.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)

	status, env = s.do(t, fiber.MethodPost, "/access-requests/"+sub.ID+"/decision",
		map[string]string{"action": "approve"}, token)
	require.Equal(t, fiber.StatusOK, status)
	var decided struct {
		Status    string  `json:"status"`
		DecidedBy *string `json:"decided_by"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &decided))
	assert.Equal(t, "approved", decided.Status)
	require.NotNil(t, decided.DecidedBy)
	assert.Equal(t, "alice", *decided.DecidedBy)

	status, env = s.do(t, fiber.MethodPost, "/access-requests/"+sub.ID+"/decision",
		map[string]string{"action": "reject"}, token)
	assert.Equal(t, fiber.StatusConflict, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_TRANSITION", env.Error.Code)

	status, _ = s.do(t, fiber.MethodPost, "/access-requests/missing/decision",
		map[string]string{"action": "reject"}, token)
	assert.Equal(t, fiber.StatusConflict, status)

	assert.Equal(t, int64(1), s.metrics.Snapshot().Decisions["approve|ok"])
}

func TestWaitEndpoint(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)
	_, sub, _ := s.submit(t, "ana", "beridze")

	status, env := s.do(t, fiber.MethodGet, "/access-requests/"+sub.ID+"/status/wait?mode=sse", nil, "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	require.NotNil(t, env.Error)

	status, env = s.do(t, fiber.MethodGet, "/access-requests/"+sub.ID+"/status/wait?timeout=1", nil, "")
	assert.Equal(t, fiber.StatusRequestTimeout, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "TIMEOUT", env.Error.Code)

	decided := make(chan int, 1)
	go func() {
		time.Sleep(50 * time.Millisecond)
		req := httptest.NewRequest(fiber.MethodPost, "/access-requests/"+sub.ID+"/decision",
			bytes.NewReader([]byte(`{"action":"reject"}`)))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := s.app.Test(req, 5_000)
		if err != nil {
			decided <- 0
			return
		}
		resp.Body.Close()
		decided <- resp.StatusCode
	}()

	status, env = s.do(t, fiber.MethodGet, "/access-requests/"+sub.ID+"/status/wait?mode=push&timeout=5", nil, "")
	require.Equal(t, fiber.StatusOK, status)
	var body statusBody
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, "rejected", body.Status)
	assert.True(t, body.Decided)
	assert.False(t, body.Approved)
	assert.Equal(t, fiber.StatusOK, <-decided)

	status, env = s.do(t, fiber.MethodGet, "/access-requests/"+sub.ID+"/status/wait?mode=poll", nil, "")
	require.Equal(t, fiber.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, "rejected", body.Status)
}

func TestWaitEndsOnShutdown(t *testing.T) {
	serving, stopServing := context.WithCancel(context.Background())
	defer stopServing()
	s := newServingTestServer(t, serving)
	_, sub, _ := s.submit(t, "ana", "beridze")

	type result struct {
		status int
		code   string
	}
	wait := func(mode string) <-chan result {
		done := make(chan result, 1)
		go func() {
			req := httptest.NewRequest(fiber.MethodGet,
				"/access-requests/"+sub.ID+"/status/wait?mode="+mode+"&timeout=5", nil)
			resp, err := s.app.Test(req, 10_000)
			if err != nil {
				done <- result{}
				return
			}
			defer resp.Body.Close()
			var env envelope
			_ = json.NewDecoder(resp.Body).Decode(&env)
			res := result{status: resp.StatusCode}
			if env.Error != nil {
				res.code = env.Error.Code
			}
			done <- res
		}()
		return done
	}

	polling := wait("poll")
	pushing := wait("push")
	time.Sleep(50 * time.Millisecond)
	stopServing()

	for name, done := range map[string]<-chan result{"poll": polling, "push": pushing} {
		select {
		case res := <-done:
			assert.Equal(t, fiber.StatusServiceUnavailable, res.status, name)
			assert.Equal(t, "SERVICE_UNAVAILABLE", res.code, name)
		case <-time.After(2 * time.Second):
			t.Fatalf("%s wait outlived shutdown", name)
		}
	}
}

func TestHealthAndUnknownRoute(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, fiber.MethodGet, "/health/live", nil, "")
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = s.do(t, fiber.MethodGet, "/health/ready", nil, "")
	assert.Equal(t, fiber.StatusOK, status)

	status, env := s.do(t, fiber.MethodGet, "/nope", nil, "")
	assert.Equal(t, fiber.StatusNotFound, status)
	require.NotNil(t, env.Error)
}
