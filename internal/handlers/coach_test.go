package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stridefit/coach-api/internal/coach"
	"github.com/stridefit/coach-api/internal/middleware"
	"github.com/stridefit/coach-api/internal/models"
)

type fakeCoachService struct {
	chatResp   *coach.ChatResponse
	chatErr    error
	streamErr  error
	events     []coach.StreamEvent
	plan       *coach.WeeklyPlan
	planErr    error
	insights   *coach.InsightsResponse
	session    *models.Session
	gotMessage string
	gotTier    models.ModelTier
	gotStart   time.Time
}

func (f *fakeCoachService) Chat(_ context.Context, _ uuid.UUID, message string, _ *uuid.UUID, tier models.ModelTier) (*coach.ChatResponse, error) {
	f.gotMessage = message
	f.gotTier = tier
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	return f.chatResp, nil
}

func (f *fakeCoachService) ChatStream(_ context.Context, _ uuid.UUID, message string, _ *uuid.UUID, _ models.ModelTier, emit func(coach.StreamEvent)) error {
	f.gotMessage = message
	for _, ev := range f.events {
		emit(ev)
	}
	return f.streamErr
}

func (f *fakeCoachService) GenerateWeeklyPlan(_ context.Context, _ uuid.UUID, startDate time.Time, _ map[string]any) (*coach.WeeklyPlan, error) {
	f.gotStart = startDate
	if f.planErr != nil {
		return nil, f.planErr
	}
	return f.plan, nil
}

func (f *fakeCoachService) GetInsights(context.Context, uuid.UUID) (*coach.InsightsResponse, error) {
	return f.insights, nil
}

func (f *fakeCoachService) GetActiveSession(context.Context, uuid.UUID) (*models.Session, error) {
	return f.session, nil
}

func authedRequest(method, path, body string) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	}
	return r.WithContext(middleware.WithUserID(r.Context(), uuid.New()))
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestChat_Unauthorized(t *testing.T) {
	t.Parallel()

	h := NewCoachHandler(&fakeCoachService{}, zap.NewNop())
	w := httptest.NewRecorder()
	h.Chat(w, httptest.NewRequest("POST", "/coach/chat", strings.NewReader(`{"message":"hi"}`)))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestChat_RejectsBadBodies(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		body string
	}{
		{"not json", "{"},
		{"missing message", `{}`},
		{"blank message", `{"message":"   "}`},
		{"unknown tier", `{"message":"hi","tier":"platinum"}`},
		{"oversized message", `{"message":"` + strings.Repeat("a", 4001) + `"}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := NewCoachHandler(&fakeCoachService{}, zap.NewNop())
			w := httptest.NewRecorder()
			h.Chat(w, authedRequest("POST", "/coach/chat", tt.body))

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			if body := decodeEnvelope(t, w); body["success"] != false {
				t.Errorf("body = %v", body)
			}
		})
	}
}

func TestChat_HappyPath(t *testing.T) {
	t.Parallel()

	svc := &fakeCoachService{
		chatResp: &coach.ChatResponse{
			Message:    "Nice work this week.",
			SessionID:  uuid.New(),
			Confidence: 0.75,
			TokensUsed: 42,
		},
	}
	h := NewCoachHandler(svc, zap.NewNop())
	w := httptest.NewRecorder()
	h.Chat(w, authedRequest("POST", "/coach/chat", `{"message":"  how am I doing?  ","tier":"premium"}`))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if svc.gotMessage != "how am I doing?" {
		t.Errorf("message not sanitized: %q", svc.gotMessage)
	}
	if svc.gotTier != models.TierPremium {
		t.Errorf("tier = %q", svc.gotTier)
	}

	body := decodeEnvelope(t, w)
	if body["success"] != true {
		t.Fatalf("body = %v", body)
	}
	data, ok := body["data"].(map[string]any)
	if !ok || data["message"] != "Nice work this week." {
		t.Errorf("data = %v", body["data"])
	}
}

func TestChat_MapsProviderErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"rate limited", &coach.APIError{StatusCode: 429, Type: "rate_limit_error"}, http.StatusTooManyRequests},
		{"quota exhausted", &coach.APIError{StatusCode: 429, Code: "insufficient_quota", IsPermanent: true}, http.StatusServiceUnavailable},
		{"other failure", context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := NewCoachHandler(&fakeCoachService{chatErr: tt.err}, zap.NewNop())
			w := httptest.NewRecorder()
			h.Chat(w, authedRequest("POST", "/coach/chat", `{"message":"hi"}`))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestChatStream_WritesSSE(t *testing.T) {
	t.Parallel()

	svc := &fakeCoachService{
		events: []coach.StreamEvent{
			coach.TokenEvent("Keep "),
			coach.TokenEvent("going."),
			{Type: coach.EventDone, Data: map[string]any{"finish_reason": "stop"}},
		},
	}
	h := NewCoachHandler(svc, zap.NewNop())
	w := httptest.NewRecorder()
	h.ChatStream(w, authedRequest("POST", "/coach/chat/stream", `{"message":"hi"}`))

	if got := w.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q", got)
	}

	frames := strings.Split(strings.TrimSpace(w.Body.String()), "\n\n")
	if len(frames) != 3 {
		t.Fatalf("got %d frames: %q", len(frames), w.Body.String())
	}
	for i, frame := range frames {
		if !strings.HasPrefix(frame, "data: ") {
			t.Fatalf("frame %d missing data prefix: %q", i, frame)
		}
	}

	var last coach.StreamEvent
	if err := json.Unmarshal([]byte(strings.TrimPrefix(frames[2], "data: ")), &last); err != nil {
		t.Fatalf("decode final frame: %v", err)
	}
	if last.Type != coach.EventDone {
		t.Errorf("final event = %q, want done", last.Type)
	}
}

func TestChatStream_EmitsErrorEvent(t *testing.T) {
	t.Parallel()

	svc := &fakeCoachService{streamErr: context.DeadlineExceeded}
	h := NewCoachHandler(svc, zap.NewNop())
	w := httptest.NewRecorder()
	h.ChatStream(w, authedRequest("POST", "/coach/chat/stream", `{"message":"hi"}`))

	if !strings.Contains(w.Body.String(), `"type":"error"`) {
		t.Errorf("no error event in stream: %q", w.Body.String())
	}
}

func TestGeneratePlan(t *testing.T) {
	t.Parallel()

	t.Run("explicit week start", func(t *testing.T) {
		t.Parallel()
		svc := &fakeCoachService{plan: &coach.WeeklyPlan{PlanID: uuid.New(), Confidence: 0.8}}
		h := NewCoachHandler(svc, zap.NewNop())
		w := httptest.NewRecorder()
		h.GeneratePlan(w, authedRequest("POST", "/coach/plan", `{"week_start":"2026-09-07"}`))

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		want := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
		if !svc.gotStart.Equal(want) {
			t.Errorf("week start = %v, want %v", svc.gotStart, want)
		}
	})

	t.Run("defaults to today", func(t *testing.T) {
		t.Parallel()
		svc := &fakeCoachService{plan: &coach.WeeklyPlan{PlanID: uuid.New()}}
		h := NewCoachHandler(svc, zap.NewNop())
		w := httptest.NewRecorder()
		h.GeneratePlan(w, authedRequest("POST", "/coach/plan", `{}`))

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		if time.Since(svc.gotStart) > 48*time.Hour || svc.gotStart.After(time.Now()) {
			t.Errorf("default week start = %v", svc.gotStart)
		}
	})

	t.Run("rejects bad date", func(t *testing.T) {
		t.Parallel()
		h := NewCoachHandler(&fakeCoachService{}, zap.NewNop())
		w := httptest.NewRecorder()
		h.GeneratePlan(w, authedRequest("POST", "/coach/plan", `{"week_start":"next monday"}`))

		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})
}

func TestGetInsights(t *testing.T) {
	t.Parallel()

	svc := &fakeCoachService{
		insights: &coach.InsightsResponse{
			GeneratedAt:      time.Now().UTC(),
			Insights:         []coach.Insight{{Type: "trend", Title: "Weight trending down"}},
			DataQualityScore: 0.9,
		},
	}
	h := NewCoachHandler(svc, zap.NewNop())
	w := httptest.NewRecorder()
	h.GetInsights(w, authedRequest("GET", "/coach/insights", ""))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decodeEnvelope(t, w)
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("data = %v", body["data"])
	}
	if data["data_quality_score"] != 0.9 {
		t.Errorf("data_quality_score = %v", data["data_quality_score"])
	}
}

func TestGetSession(t *testing.T) {
	t.Parallel()

	t.Run("active session", func(t *testing.T) {
		t.Parallel()
		svc := &fakeCoachService{
			session: &models.Session{
				ID:     uuid.New(),
				UserID: uuid.New(),
				Status: models.SessionActive,
			},
		}
		h := NewCoachHandler(svc, zap.NewNop())
		w := httptest.NewRecorder()
		h.GetSession(w, authedRequest("GET", "/coach/session", ""))

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		body := decodeEnvelope(t, w)
		data, ok := body["data"].(map[string]any)
		if !ok || data["status"] != "active" {
			t.Errorf("data = %v", body["data"])
		}
	})

	t.Run("no active session", func(t *testing.T) {
		t.Parallel()
		h := NewCoachHandler(&fakeCoachService{}, zap.NewNop())
		w := httptest.NewRecorder()
		h.GetSession(w, authedRequest("GET", "/coach/session", ""))

		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})
}

func TestHealthCheck_BasicMode(t *testing.T) {
	t.Parallel()

	h := NewHealthChecker(nil, nil)
	w := httptest.NewRecorder()
	h.HealthCheck(w, httptest.NewRequest("GET", "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "healthy" || resp.Checks != nil {
		t.Errorf("resp = %+v", resp)
	}
}
