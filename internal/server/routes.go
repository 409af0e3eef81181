package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/unfoldindia/unfold/internal/engine"
	"github.com/unfoldindia/unfold/internal/insight"
	"github.com/unfoldindia/unfold/internal/retention"
	"github.com/unfoldindia/unfold/internal/route"
	"github.com/unfoldindia/unfold/internal/store"
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 200
	maxBodyBytes        = 1 << 20
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if s.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "chat not configured")
		return
	}

	reply, err := s.engine.Chat(r.Context(), ownerFrom(r.Context()), req.Message)
	if errors.Is(err, engine.ErrEmptyMessage) {
		writeError(w, http.StatusBadRequest, "message required")
		return
	}
	if err != nil {
		s.log.WithError(err).Error("chat")
		writeError(w, http.StatusInternalServerError, "chat failed")
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

type messageView struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"`
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	limit := defaultMessageLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxMessageLimit)
	}

	msgs, err := s.db.ListMessages(r.Context(), ownerFrom(r.Context()), limit)
	if err != nil {
		s.log.WithError(err).Error("list messages")
		writeError(w, http.StatusInternalServerError, "could not load messages")
		return
	}

	out := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageView{ID: m.ID, Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt})
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": out})
}

type policyView struct {
	Period    string `json:"period"`
	UpdatedAt int64  `json:"updated_at,omitempty"`
}

func (s *Server) handleGetRetention(w http.ResponseWriter, r *http.Request) {
	p, err := s.db.GetPolicy(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		s.log.WithError(err).Error("get retention policy")
		writeError(w, http.StatusInternalServerError, "could not load policy")
		return
	}
	if p == nil {
		writeJSON(w, http.StatusOK, policyView{Period: store.DefaultPeriod})
		return
	}
	writeJSON(w, http.StatusOK, policyView{Period: p.Period, UpdatedAt: p.UpdatedAt})
}

func (s *Server) handleSetRetention(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Period string `json:"period"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	period, ok := retention.ParsePeriod(req.Period)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "unknown retention period",
			"allowed": retention.Periods,
		})
		return
	}

	p, err := s.db.SetPolicy(r.Context(), ownerFrom(r.Context()), string(period))
	if err != nil {
		s.log.WithError(err).Error("set retention policy")
		writeError(w, http.StatusInternalServerError, "could not save policy")
		return
	}
	writeJSON(w, http.StatusOK, policyView{Period: p.Period, UpdatedAt: p.UpdatedAt})
}

func (s *Server) handleInsight(w http.ResponseWriter, r *http.Request) {
	category, ok := insight.ParseCategory(chi.URLParam(r, "category"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown insight category")
		return
	}
	if s.insights == nil {
		writeError(w, http.StatusServiceUnavailable, "insights not configured")
		return
	}

	var snapshot map[string]any
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&snapshot); err != nil || snapshot == nil {
		writeError(w, http.StatusBadRequest, "snapshot must be a JSON object")
		return
	}

	out, err := s.insights.GetOrGenerate(r.Context(), ownerFrom(r.Context()), category, snapshot)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, out)
	case errors.Is(err, insight.ErrInvalidSnapshot):
		writeError(w, http.StatusBadRequest, "invalid snapshot")
	case errors.Is(err, insight.ErrUnknownCategory):
		writeError(w, http.StatusNotFound, "unknown insight category")
	default:
		s.log.WithError(err).Error("insight")
		writeError(w, http.StatusInternalServerError, "insight failed")
	}
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Origin      string `json:"origin"`
		Destination string `json:"destination"`
		Mode        string `json:"mode"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if s.planner == nil {
		writeError(w, http.StatusServiceUnavailable, "routing not configured")
		return
	}

	mode, err := route.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	plan, err := s.planner.Plan(r.Context(), req.Origin, req.Destination, mode)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, plan)
	case errors.Is(err, route.ErrMissingPlace), errors.Is(err, route.ErrInvalidMode), errors.Is(err, route.ErrPlaceNotFound):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, route.ErrUpstream):
		s.log.WithError(err).Warn("route upstream")
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.log.WithError(err).Error("route")
		writeError(w, http.StatusInternalServerError, "route failed")
	}
}
