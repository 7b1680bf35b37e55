package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/stridefit/coach-api/internal/coach"
	"github.com/stridefit/coach-api/internal/middleware"
	"github.com/stridefit/coach-api/internal/models"
	"github.com/stridefit/coach-api/internal/validation"
)

// CoachService is the slice of the coach service the HTTP layer uses.
type CoachService interface {
	Chat(ctx context.Context, userID uuid.UUID, message string, sessionID *uuid.UUID, tier models.ModelTier) (*coach.ChatResponse, error)
	ChatStream(ctx context.Context, userID uuid.UUID, message string, sessionID *uuid.UUID, tier models.ModelTier, emit func(coach.StreamEvent)) error
	GenerateWeeklyPlan(ctx context.Context, userID uuid.UUID, startDate time.Time, preferences map[string]any) (*coach.WeeklyPlan, error)
	GetInsights(ctx context.Context, userID uuid.UUID) (*coach.InsightsResponse, error)
	GetActiveSession(ctx context.Context, userID uuid.UUID) (*models.Session, error)
}

// CoachHandler handles coaching requests
type CoachHandler struct {
	service CoachService
	logger  *zap.Logger
}

// NewCoachHandler creates a new coach handler
func NewCoachHandler(service CoachService, logger *zap.Logger) *CoachHandler {
	return &CoachHandler{service: service, logger: logger}
}

// RegisterRoutes registers coach routes
func (h *CoachHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/coach/chat", h.Chat).Methods("POST")
	r.HandleFunc("/coach/chat/stream", h.ChatStream).Methods("POST")
	r.HandleFunc("/coach/plan", h.GeneratePlan).Methods("POST")
	r.HandleFunc("/coach/insights", h.GetInsights).Methods("GET")
	r.HandleFunc("/coach/session", h.GetSession).Methods("GET")
}

// ChatMessageRequest represents a chat message request
type ChatMessageRequest struct {
	Message   string     `json:"message"              validate:"required,min=1,max=4000"`
	SessionID *uuid.UUID `json:"session_id,omitempty"`
	Tier      string     `json:"tier,omitempty"       validate:"omitempty,model_tier"`
}

// PlanRequest represents a weekly plan generation request
type PlanRequest struct {
	WeekStart   string         `json:"week_start,omitempty"`
	Preferences map[string]any `json:"preferences,omitempty"`
}

// decodeChatRequest parses and validates the chat body shared by the
// sync and streaming endpoints.
func decodeChatRequest(r *http.Request) (*ChatMessageRequest, error) {
	var req ChatMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid request body")
	}
	req.Message = validation.SanitizeText(req.Message)
	if err := validation.Validate.Struct(&req); err != nil {
		return nil, fmt.Errorf("message is required and must be at most 4000 characters")
	}
	return &req, nil
}

// turnContext tags the request context so model-call logs carry the
// user and request identity.
func turnContext(ctx context.Context, userID uuid.UUID) context.Context {
	ctx = context.WithValue(ctx, coach.UserIDContextKey(), userID.String())
	return context.WithValue(ctx, coach.RequestIDContextKey(), uuid.New().String())
}

// Chat handles one synchronous coaching turn
func (h *CoachHandler) Chat(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	req, err := decodeChatRequest(r)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	ctx := turnContext(r.Context(), userID)
	resp, err := h.service.Chat(ctx, userID, req.Message, req.SessionID, models.ModelTier(req.Tier))
	if err != nil {
		h.respondChatError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// ChatStream handles one coaching turn over SSE
func (h *CoachHandler) ChatStream(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	req, err := decodeChatRequest(r)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	emit := func(event coach.StreamEvent) {
		payload, err := json.Marshal(event)
		if err != nil {
			h.logger.Error("failed to marshal stream event", zap.Error(err))
			return
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return
		}
		flusher.Flush()
	}

	ctx := turnContext(r.Context(), userID)
	if err := h.service.ChatStream(ctx, userID, req.Message, req.SessionID, models.ModelTier(req.Tier), emit); err != nil {
		h.logger.Error("chat stream failed", zap.Error(err))
		emit(coach.StreamEvent{
			Type: coach.EventError,
			Data: map[string]any{"message": "Failed to process message"},
		})
	}
}

// GeneratePlan handles weekly plan generation
func (h *CoachHandler) GeneratePlan(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	var req PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}

	weekStart := time.Now().UTC().Truncate(24 * time.Hour)
	if req.WeekStart != "" {
		parsed, err := time.Parse("2006-01-02", req.WeekStart)
		if err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "week_start must be YYYY-MM-DD")
			return
		}
		weekStart = parsed
	}

	ctx := turnContext(r.Context(), userID)
	plan, err := h.service.GenerateWeeklyPlan(ctx, userID, weekStart, req.Preferences)
	if err != nil {
		h.respondChatError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, plan)
}

// GetInsights handles deterministic insight generation
func (h *CoachHandler) GetInsights(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	insights, err := h.service.GetInsights(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to compute insights", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to compute insights")
		return
	}

	respondJSON(w, http.StatusOK, insights)
}

// GetSession returns the caller's active session and its transcript
func (h *CoachHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	session, err := h.service.GetActiveSession(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load session", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load session")
		return
	}
	if session == nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", "No active session")
		return
	}

	respondJSON(w, http.StatusOK, session)
}

// respondChatError maps provider failures to HTTP statuses without
// leaking provider error bodies to the client.
func (h *CoachHandler) respondChatError(w http.ResponseWriter, err error) {
	switch {
	case coach.IsQuotaError(err):
		h.logger.Error("model quota exhausted", zap.Error(err))
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "The coach is temporarily unavailable. Please try again later.")
	case coach.IsRateLimitError(err):
		h.logger.Warn("model rate limited", zap.Error(err))
		respondJSONError(w, http.StatusTooManyRequests, "Too Many Requests", "The coach is busy. Please try again in a moment.")
	default:
		h.logger.Error("coach turn failed", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to process message")
	}
}
