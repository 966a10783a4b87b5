package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/levelup-learning/levelup/internal/app/engagement"
	"github.com/levelup-learning/levelup/internal/domain"
	"github.com/levelup-learning/levelup/internal/infra/metrics"
)

// ─── Request bodies ─────────────────────────────────────────────────────────

type userRequest struct {
	UserID string `json:"userId" validate:"required,max=128"`
}

type activityRequest struct {
	UserID         string     `json:"userId" validate:"required,max=128"`
	ActivityID     string     `json:"activityId" validate:"omitempty,max=128"`
	ActivityType   string     `json:"activityType" validate:"required,oneof=video_watch video_like quiz_complete challenge_complete course_complete"`
	OccurredAt     *time.Time `json:"occurredAt"`
	IsFirstTime    bool       `json:"isFirstTime"`
	Score          *int       `json:"score" validate:"omitempty,min=0,max=100"`
	CompletionRate *int       `json:"completionRate" validate:"omitempty,min=0,max=100"`
	Duration       *int64     `json:"duration" validate:"omitempty,min=0"`
	contentFields
}

// contentFields place an activity in a course.
type contentFields struct {
	CourseID string `json:"courseId" validate:"omitempty,max=128"`
	ModuleID string `json:"moduleId" validate:"omitempty,max=128"`
	VideoID  string `json:"videoId" validate:"omitempty,max=128"`
}

func (c contentFields) toDomain() domain.ContentRef {
	return domain.ContentRef{CourseID: c.CourseID, ModuleID: c.ModuleID, VideoID: c.VideoID}
}

type awardRequest struct {
	UserID     string `json:"userId" validate:"required,max=128"`
	ActivityID string `json:"activityId" validate:"omitempty,max=128"`
	XP         int64  `json:"xp" validate:"required,min=1,max=1000"`
	Reason     string `json:"reason" validate:"max=200"`
	contentFields
}

type moduleRequest struct {
	CourseID string   `json:"courseId" validate:"omitempty,max=128"`
	Title    string   `json:"title" validate:"max=200"`
	VideoIDs []string `json:"videoIds" validate:"dive,required,max=128"`
}

func (a activityRequest) toDomain() engagement.ActivityRequest {
	ev := domain.ActivityEvent{
		Kind:                  domain.ActivityKind(a.ActivityType),
		IsFirstTimeForSubject: a.IsFirstTime,
		ScorePercent:          a.Score,
		CompletionRatePercent: a.CompletionRate,
		DurationSeconds:       a.Duration,
	}
	if a.OccurredAt != nil {
		ev.OccurredAt = *a.OccurredAt
	}
	return engagement.ActivityRequest{
		UserID:     a.UserID,
		ActivityID: a.ActivityID,
		Event:      ev,
		Content:    a.contentFields.toDomain(),
	}
}

// decode reads a JSON body into v and validates it. On failure the error
// response has already been written.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body: "+err.Error())
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", validationMessage(err))
		return false
	}
	return true
}

// allow applies the per-user rate limit. On refusal the 429 has already
// been written.
func (s *Server) allow(w http.ResponseWriter, userID string) bool {
	if s.limiter == nil || s.limiter.Allow(userID, time.Now()) {
		return true
	}
	metrics.ActivitiesRejected.WithLabelValues("rate_limited").Inc()
	writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests for this user, slow down")
	return false
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, len(verrs))
	for i, fe := range verrs {
		if fe.Param() != "" {
			parts[i] = fmt.Sprintf("%s: failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
		} else {
			parts[i] = fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag())
		}
	}
	return strings.Join(parts, "; ")
}

// ─── Users ──────────────────────────────────────────────────────────────────

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.svc.CreateUser(r.Context(), req.UserID); err != nil {
		s.writeDomainError(w, err)
		return
	}
	state, err := s.svc.User(r.Context(), req.UserID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, userView(req.UserID, *state))
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	state, err := s.svc.User(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userView(id, *state))
}

func userView(id string, state domain.UserProgressionState) map[string]any {
	return map[string]any{
		"user_id": id,
		"state":   state,
		"level":   engagement.LevelForTotalXP(state.TotalXP),
	}
}

func (s *Server) handleUserAchievements(w http.ResponseWriter, r *http.Request) {
	progress, err := s.svc.Achievements(r.Context(), chi.URLParam(r, "id"), nil)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"catalog_version": s.svc.Engine().Catalog().Version,
		"achievements":    progress,
	})
}

// ─── Progress ───────────────────────────────────────────────────────────────

func (s *Server) handleRecordActivity(w http.ResponseWriter, r *http.Request) {
	var req activityRequest
	if !s.decode(w, r, &req) {
		metrics.ActivitiesRejected.WithLabelValues("invalid").Inc()
		return
	}
	if !s.allow(w, req.UserID) {
		return
	}

	out, err := s.svc.RecordActivity(r.Context(), req.toDomain())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleAwardXP(w http.ResponseWriter, r *http.Request) {
	var req awardRequest
	if !s.decode(w, r, &req) {
		metrics.ActivitiesRejected.WithLabelValues("invalid").Inc()
		return
	}
	if !s.allow(w, req.UserID) {
		return
	}

	out, err := s.svc.AwardXP(r.Context(), engagement.AwardRequest{
		UserID:     req.UserID,
		ActivityID: req.ActivityID,
		Amount:     req.XP,
		Reason:     req.Reason,
		Content:    req.contentFields.toDomain(),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleXPStatus(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing userId parameter")
		return
	}
	st, err := s.svc.Status(r.Context(), userID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ─── Modules ────────────────────────────────────────────────────────────────

func (s *Server) handlePutModule(w http.ResponseWriter, r *http.Request) {
	var req moduleRequest
	if !s.decode(w, r, &req) {
		return
	}
	m, err := s.svc.RegisterModule(r.Context(), domain.Module{
		ID:       chi.URLParam(r, "moduleId"),
		CourseID: req.CourseID,
		Title:    req.Title,
		VideoIDs: req.VideoIDs,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleModuleStats(w http.ResponseWriter, r *http.Request) {
	rep, err := s.svc.ModuleStats(r.Context(), chi.URLParam(r, "moduleId"), r.URL.Query().Get("userId"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// ─── Catalog & levels ───────────────────────────────────────────────────────

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Engine().Catalog())
}

func (s *Server) handleLevel(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("xp")
	xp, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || xp < 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "xp must be a non-negative integer")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_xp":         xp,
		"level":            engagement.LevelForTotalXP(xp),
		"xp_to_next_level": engagement.XPToNextLevel(xp),
		"max_level":        engagement.MaxLevel,
	})
}

// ─── Notifications ──────────────────────────────────────────────────────────

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	pending, err := s.svc.PendingNotifications(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if pending == nil {
		pending = []domain.StoredNotification{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": pending})
}

func (s *Server) handleNotificationShown(w http.ResponseWriter, r *http.Request) {
	nid, err := strconv.ParseInt(chi.URLParam(r, "nid"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "notification id must be an integer")
		return
	}
	if err := s.svc.MarkNotificationShown(r.Context(), chi.URLParam(r, "id"), nid); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "shown"})
}

func (s *Server) handleDemo(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !s.decode(w, r, &req) {
		return
	}
	if !s.allow(w, req.UserID) {
		return
	}
	if _, err := s.svc.User(r.Context(), req.UserID); err != nil {
		s.writeDomainError(w, err)
		return
	}
	events := s.svc.PublishDemo(req.UserID)
	writeJSON(w, http.StatusAccepted, map[string]any{"queued": len(events)})
}
