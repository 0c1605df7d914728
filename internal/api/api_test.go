package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ai-health-navigator/internal/app"
	"ai-health-navigator/internal/config"
	"ai-health-navigator/internal/llm"
	"ai-health-navigator/internal/notify"
	"ai-health-navigator/internal/recovery"
	"ai-health-navigator/internal/shared"
	"ai-health-navigator/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
)

var testSecret = []byte("test-secret")

type MockTextGenerator struct {
	err error
}

func (m *MockTextGenerator) GenerateContent(ctx context.Context, prompt string) (llm.ContentResponse, error) {
	if m.err != nil {
		return llm.ContentResponse{}, m.err
	}
	if strings.Contains(prompt, "spoken text") {
		return llm.ContentResponse{Content: "Stress Level: High Stress\nEmotion: overwhelmed\nConfidence: 65\nMessage: Talk to someone you trust."}, nil
	}
	if strings.Contains(prompt, "Classify symptoms") {
		return llm.ContentResponse{Content: "Visit a Doctor"}, nil
	}
	return llm.ContentResponse{Content: `[{"id":1,"text":"Sip water","category":"diet"},{"id":2,"text":"Sleep early","category":"rest"}]`}, nil
}

type testServer struct {
	router *gin.Engine
	token  string
}

func newTestServer(t *testing.T, gen llm.TextGenerator) *testServer {
	t.Helper()
	inbox := notify.NewInbox(10)
	cfg := &config.Config{AutoAdvanceDelay: time.Hour}
	application := app.NewApp(cfg, gen, storage.NewMemoryStore(), nil, inbox)

	token, err := SignToken(testSecret, "web-user", time.Hour)
	if err != nil {
		t.Fatalf("SignToken failed: %v", err)
	}
	return &testServer{router: NewRouter(application, inbox, testSecret), token: token}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) gjson.Result {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("Expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
	return gjson.ParseBytes(rec.Body.Bytes())
}

func TestAuth(t *testing.T) {
	srv := newTestServer(t, &MockTextGenerator{})

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected health 200, got %d", rec.Code)
	}

	otherToken, _ := SignToken([]byte("other-secret"), "web-user", time.Hour)
	expired, _ := SignToken(testSecret, "web-user", -time.Minute)
	noSubject, _ := SignToken(testSecret, "", time.Hour)

	for name, header := range map[string]string{
		"missing":      "",
		"not bearer":   "Token " + srv.token,
		"wrong secret": "Bearer " + otherToken,
		"expired":      "Bearer " + expired,
		"no subject":   "Bearer " + noSubject,
		"garbage":      "Bearer abc.def.ghi",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/plan", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			srv.router.ServeHTTP(rec, req)
			body := expectStatus(t, rec, http.StatusUnauthorized)
			if body.Get("error.code").String() != "unauthorized" {
				t.Errorf("Unexpected body %s", rec.Body.String())
			}
		})
	}
}

func TestPlanLifecycle(t *testing.T) {
	srv := newTestServer(t, &MockTextGenerator{})

	body := expectStatus(t, srv.do(t, http.MethodPost, "/v1/intake", `{"symptoms":"   "}`), http.StatusBadRequest)
	if body.Get("error.code").String() != "invalid_input" {
		t.Errorf("Unexpected error body: %s", body.Raw)
	}

	body = expectStatus(t, srv.do(t, http.MethodPost, "/v1/intake", `{"symptoms":"mild headache","age":"25"}`), http.StatusCreated)
	if body.Get("day").Int() != 1 || len(body.Get("todos").Array()) != 2 {
		t.Fatalf("Unexpected plan: %s", body.Raw)
	}

	body = expectStatus(t, srv.do(t, http.MethodGet, "/v1/plan", ""), http.StatusOK)
	if body.Get("state").String() != string(recovery.StateActive) || body.Get("plan.day").Int() != 1 {
		t.Errorf("Unexpected session: %s", body.Raw)
	}

	expectStatus(t, srv.do(t, http.MethodPost, "/v1/plan/tasks/abc/toggle", ""), http.StatusBadRequest)
	expectStatus(t, srv.do(t, http.MethodPost, "/v1/plan/tasks/1/toggle", ""), http.StatusOK)
	body = expectStatus(t, srv.do(t, http.MethodPost, "/v1/plan/tasks/2/toggle", ""), http.StatusOK)
	if !body.Get("advancePending").Bool() || body.Get("plan.todos.#(completed==true)#").Get("#").Int() != 2 {
		t.Errorf("Expected a completed plan with a pending advance: %s", body.Raw)
	}

	body = expectStatus(t, srv.do(t, http.MethodPost, "/v1/plan/next", ""), http.StatusOK)
	if body.Get("day").Int() != 2 {
		t.Errorf("Expected day 2, got %s", body.Raw)
	}

	body = expectStatus(t, srv.do(t, http.MethodPost, "/v1/condition", `{"condition":"worse"}`), http.StatusOK)
	if body.Get("state").String() != string(recovery.StateCollecting) ||
		!strings.HasPrefix(body.Get("draftSymptoms").String(), recovery.ConditionWorse.LeadIn()) {
		t.Errorf("Unexpected session after condition: %s", body.Raw)
	}

	body = expectStatus(t, srv.do(t, http.MethodGet, "/v1/notices", ""), http.StatusOK)
	if body.Get("notices.#").Int() != 1 || body.Get("notices.0.title").String() != "Update Required" {
		t.Errorf("Unexpected notices: %s", body.Raw)
	}

	body = expectStatus(t, srv.do(t, http.MethodPost, "/v1/plan/next", ""), http.StatusNotFound)
	if body.Get("error.code").String() != "not_found" {
		t.Errorf("Unexpected error body: %s", body.Raw)
	}

	expectStatus(t, srv.do(t, http.MethodPost, "/v1/condition", `{"condition":"meh"}`), http.StatusBadRequest)
}

func TestModelFailure(t *testing.T) {
	srv := newTestServer(t, &MockTextGenerator{err: &llm.RemoteServiceError{Provider: "gemini", Status: 503, Message: "overloaded"}})

	body := expectStatus(t, srv.do(t, http.MethodPost, "/v1/intake", `{"symptoms":"cough"}`), http.StatusBadGateway)
	if body.Get("error.code").String() != "model_unavailable" {
		t.Errorf("Unexpected error body: %s", body.Raw)
	}
	expectStatus(t, srv.do(t, http.MethodPost, "/v1/symptoms", `{"symptoms":"cough"}`), http.StatusBadGateway)
	expectStatus(t, srv.do(t, http.MethodPost, "/v1/voice", `{"transcript":"I feel tense"}`), http.StatusBadGateway)
}

func TestTriageRoutes(t *testing.T) {
	srv := newTestServer(t, &MockTextGenerator{})

	body := expectStatus(t, srv.do(t, http.MethodPost, "/v1/symptoms", `{"symptoms":"chest pain"}`), http.StatusOK)
	if body.Get("advice").String() != "Visit a Doctor" {
		t.Errorf("Unexpected advice: %s", body.Raw)
	}
	expectStatus(t, srv.do(t, http.MethodPost, "/v1/symptoms", `{"symptoms":""}`), http.StatusBadRequest)

	body = expectStatus(t, srv.do(t, http.MethodPost, "/v1/voice", `{"transcript":"deadlines everywhere and no sleep"}`), http.StatusOK)
	if body.Get("stressLevel").String() != "High Stress" || body.Get("emotion").String() != "overwhelmed" || body.Get("confidence").Int() != 65 {
		t.Errorf("Unexpected voice analysis: %s", body.Raw)
	}
	body = expectStatus(t, srv.do(t, http.MethodPost, "/v1/voice", `{"transcript":"ugh"}`), http.StatusBadRequest)
	if body.Get("error.code").String() != "invalid_input" {
		t.Errorf("Unexpected error body: %s", body.Raw)
	}

	expectStatus(t, srv.do(t, http.MethodPost, "/v1/checkins", `{"mood":"ok"}`), http.StatusBadRequest)
	expectStatus(t, srv.do(t, http.MethodPost, "/v1/checkins", `{"sleep":25}`), http.StatusBadRequest)
	expectStatus(t, srv.do(t, http.MethodPost, "/v1/checkins", `{"sleep":7.5,"stress":"low"}`), http.StatusCreated)
	expectStatus(t, srv.do(t, http.MethodPost, "/v1/checkins", `not json`), http.StatusBadRequest)
}

func TestWriteError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		err  error
		want int
	}{
		{&shared.ValidationError{Field: "symptoms", Message: "required"}, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", recovery.ErrInvalidDay), http.StatusBadRequest},
		{recovery.ErrNotFound, http.StatusNotFound},
		{recovery.ErrNoActivePlan, http.StatusNotFound},
		{recovery.ErrGenerationInProgress, http.StatusConflict},
		{&recovery.GenerationFailedError{Day: 2, Err: &llm.NoCandidatesError{Provider: "groq"}}, http.StatusBadGateway},
		{fmt.Errorf("failed to check symptoms: %w", &llm.RemoteServiceError{Provider: "groq", Status: 429}), http.StatusBadGateway},
		{&shared.PersistenceError{Op: "save check-in", Err: errors.New("disk full")}, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		c.Request = httptest.NewRequest(http.MethodGet, "/v1/plan", nil)
		writeError(c, tt.err)
		if rec.Code != tt.want {
			t.Errorf("writeError(%v) = %d, want %d", tt.err, rec.Code, tt.want)
		}
		var resp ErrorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Error.Code == "" {
			t.Errorf("Expected an error body for %v, got %s", tt.err, rec.Body.String())
		}
	}
}
