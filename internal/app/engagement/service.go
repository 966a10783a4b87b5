package engagement

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/levelup-learning/levelup/internal/domain"
	"github.com/levelup-learning/levelup/internal/infra/metrics"
)

// Publisher accepts an ordered batch of notifications for playback.
// Implemented by notify.Queue.
type Publisher interface {
	EnqueueBatch(events []domain.NotificationEvent)
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	// CreateIfMissing starts unknown users from a zero state instead of
	// failing with domain.ErrStateUnavailable.
	CreateIfMissing bool
	// RecentLimit caps ledger entries in status views. Default 10.
	RecentLimit int
	// Now overrides the clock. Default time.Now.
	Now func() time.Time
	Logger *logrus.Entry
}

// Service records activities for users: it serializes per user, loads
// the snapshot, runs the engine, persists the result and publishes the
// notifications.
type Service struct {
	store  domain.ProgressStore
	inbox  domain.NotificationInbox
	engine *Engine
	pub    Publisher
	opts   ServiceOptions
	log    *logrus.Entry
	locks  userLocks
}

// NewService creates a progress service. inbox may be nil when no inbox
// sink is configured.
func NewService(store domain.ProgressStore, inbox domain.NotificationInbox, engine *Engine, pub Publisher, opts ServiceOptions) *Service {
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = 10
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Service{
		store:  store,
		inbox:  inbox,
		engine: engine,
		pub:    pub,
		opts:   opts,
		log:    log.WithField("component", "progress"),
		locks:  userLocks{m: make(map[string]*userLock)},
	}
}

// Engine returns the engine the service scores with.
func (s *Service) Engine() *Engine {
	return s.engine
}

// ActivityRequest is one activity submitted for a user.
type ActivityRequest struct {
	UserID string
	// ActivityID makes a submission idempotent. Generated when empty.
	ActivityID string
	Event      domain.ActivityEvent
	// Content places the activity in a course; recorded on the ledger.
	Content domain.ContentRef
}

// AwardRequest is a flat XP credit, e.g. for completing a section.
type AwardRequest struct {
	UserID     string
	ActivityID string
	Amount     int64
	Reason     string
	Content    domain.ContentRef
}

// Outcome is a recorded activity with its notifications.
type Outcome struct {
	Result
	ActivityID    string                     `json:"activity_id"`
	TransactionID string                     `json:"transaction_id"`
	Level         domain.LevelInfo           `json:"level"`
	Notifications []domain.NotificationEvent `json:"notifications"`
}

// RecordActivity scores and persists one activity. Duplicate activity
// ids fail with domain.ErrDuplicateActivity and change nothing.
func (s *Service) RecordActivity(ctx context.Context, req ActivityRequest) (*Outcome, error) {
	start := s.opts.Now()
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidActivity)
	}
	if err := ValidateEvent(req.Event); err != nil {
		metrics.ActivitiesRejected.WithLabelValues("invalid").Inc()
		return nil, err
	}
	if req.ActivityID == "" {
		req.ActivityID = uuid.NewString()
	}
	if req.Event.OccurredAt.IsZero() {
		req.Event.OccurredAt = start
	}

	unlock := s.locks.lock(req.UserID)
	defer unlock()

	before, unlocked, err := s.snapshot(ctx, req.UserID, start)
	if err != nil {
		return nil, err
	}

	res, err := s.engine.CompleteActivity(req.Event, *before, unlocked)
	if err != nil {
		return nil, err
	}

	tx := domain.XPTransaction{
		Kind:    req.Event.Kind,
		Content: req.Content,
		BaseXP:  res.Award.BaseXP,
		BonusXP: res.Award.BonusXP(),
		TotalXP: res.Award.TotalXP,
	}
	out, err := s.commit(ctx, req.UserID, req.ActivityID, res, tx, start, func(r Result) []domain.NotificationEvent {
		return Notifications(req.Event.Kind, r)
	})
	if err != nil {
		return nil, err
	}

	s.observe(string(req.Event.Kind), out.Result, start)
	s.log.WithFields(logrus.Fields{
		"user_id":      req.UserID,
		"kind":         req.Event.Kind,
		"module_id":    req.Content.ModuleID,
		"xp":           out.Award.TotalXP,
		"achievements": len(out.NewAchievements),
	}).Info("activity recorded")
	return out, nil
}

// AwardXP credits a flat amount with a reason. It shares the activity id
// namespace with RecordActivity, so a replayed award is a duplicate.
func (s *Service) AwardXP(ctx context.Context, req AwardRequest) (*Outcome, error) {
	start := s.opts.Now()
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidActivity)
	}
	if req.ActivityID == "" {
		req.ActivityID = uuid.NewString()
	}

	unlock := s.locks.lock(req.UserID)
	defer unlock()

	before, unlocked, err := s.snapshot(ctx, req.UserID, start)
	if err != nil {
		return nil, err
	}

	res, err := s.engine.AwardFlat(req.Amount, *before, unlocked)
	if err != nil {
		metrics.ActivitiesRejected.WithLabelValues("invalid").Inc()
		return nil, err
	}

	tx := domain.XPTransaction{
		Reason:  req.Reason,
		Content: req.Content,
		BaseXP:  res.Award.BaseXP,
		TotalXP: res.Award.TotalXP,
	}
	out, err := s.commit(ctx, req.UserID, req.ActivityID, res, tx, start, func(r Result) []domain.NotificationEvent {
		return FlatAwardNotifications(req.Reason, r)
	})
	if err != nil {
		return nil, err
	}

	s.observe("flat_award", out.Result, start)
	s.log.WithFields(logrus.Fields{
		"user_id": req.UserID,
		"reason":  req.Reason,
		"xp":      out.Award.TotalXP,
	}).Info("xp awarded")
	return out, nil
}

// snapshot loads the user's state and unlocked achievement set. Callers
// hold the user's lock.
func (s *Service) snapshot(ctx context.Context, userID string, at time.Time) (*domain.UserProgressionState, map[string]bool, error) {
	before, err := s.loadState(ctx, userID, at)
	if err != nil {
		return nil, nil, err
	}
	list, err := s.store.ListUnlockedAchievements(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("list achievements: %w", err)
	}
	unlocked := make(map[string]bool, len(list))
	for _, u := range list {
		unlocked[u.ID] = true
	}
	return before, unlocked, nil
}

// commit persists res with its ledger entry, then publishes the events
// translate builds from the achievements persistence actually inserted.
func (s *Service) commit(ctx context.Context, userID, activityID string, res Result, tx domain.XPTransaction, at time.Time,
	translate func(Result) []domain.NotificationEvent) (*Outcome, error) {
	tx.ID = uuid.NewString()
	tx.UserID = userID
	tx.ActivityID = activityID
	tx.CreatedAt = at

	ids := make([]string, len(res.NewAchievements))
	for i, a := range res.NewAchievements {
		ids[i] = a.ID
	}
	inserted, err := s.store.ApplyProgress(ctx, domain.ProgressRecord{
		UserID:       userID,
		ActivityID:   activityID,
		StateAfter:   res.StateAfter,
		Achievements: ids,
		Transaction:  tx,
		At:           at,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateActivity) {
			metrics.ActivitiesRejected.WithLabelValues("duplicate").Inc()
		}
		return nil, err
	}
	res.NewAchievements = keepInserted(res.NewAchievements, inserted)

	events := translate(res)
	for i := range events {
		events[i].UserID = userID
	}
	if s.pub != nil {
		s.pub.EnqueueBatch(events)
	}

	return &Outcome{
		Result:        res,
		ActivityID:    activityID,
		TransactionID: tx.ID,
		Level:         LevelForTotalXP(res.StateAfter.TotalXP),
		Notifications: events,
	}, nil
}

func (s *Service) loadState(ctx context.Context, userID string, at time.Time) (*domain.UserProgressionState, error) {
	state, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if state != nil {
		return state, nil
	}
	if !s.opts.CreateIfMissing {
		return nil, fmt.Errorf("%w: %s", domain.ErrStateUnavailable, userID)
	}
	if err := s.store.CreateUser(ctx, userID, at); err != nil && !errors.Is(err, domain.ErrUserExists) {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &domain.UserProgressionState{}, nil
}

// keepInserted drops achievements persistence already had, so a replayed
// unlock is never celebrated twice.
func keepInserted(all []domain.Achievement, inserted []string) []domain.Achievement {
	if len(all) == 0 {
		return nil
	}
	ok := make(map[string]bool, len(inserted))
	for _, id := range inserted {
		ok[id] = true
	}
	out := all[:0]
	for _, a := range all {
		if ok[a.ID] {
			out = append(out, a)
		}
	}
	return out
}

func (s *Service) observe(kind string, res Result, start time.Time) {
	metrics.ActivitiesCompleted.WithLabelValues(kind).Inc()
	metrics.XPAwarded.WithLabelValues("base").Add(float64(res.Award.BaseXP))
	metrics.XPAwarded.WithLabelValues("bonus").Add(float64(res.Award.BonusXP()))
	if res.LevelUp() {
		metrics.LevelUps.Inc()
	}
	for _, a := range res.NewAchievements {
		metrics.AchievementsUnlocked.WithLabelValues(string(a.Category)).Inc()
	}
	metrics.ActivityLatency.Observe(s.opts.Now().Sub(start).Seconds())
}

// ─── Users ──────────────────────────────────────────────────────────────────

// CreateUser registers a user with zero counters.
func (s *Service) CreateUser(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrInvalidActivity)
	}
	return s.store.CreateUser(ctx, userID, s.opts.Now())
}

// User returns a user's snapshot or domain.ErrStateUnavailable.
func (s *Service) User(ctx context.Context, userID string) (*domain.UserProgressionState, error) {
	state, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrStateUnavailable, userID)
	}
	return state, nil
}

// UserCount reports how many users are registered.
func (s *Service) UserCount(ctx context.Context) (int, error) {
	return s.store.UserCount(ctx)
}

// ─── Modules ────────────────────────────────────────────────────────────────

// minutesPerVideo is the per-video time estimate in module stats.
const minutesPerVideo = 15

// RegisterModule creates or replaces a module's ordered video list.
func (s *Service) RegisterModule(ctx context.Context, m domain.Module) (*domain.Module, error) {
	if m.ID == "" {
		return nil, fmt.Errorf("%w: module id is required", domain.ErrInvalidModule)
	}
	seen := make(map[string]bool, len(m.VideoIDs))
	for _, v := range m.VideoIDs {
		if v == "" {
			return nil, fmt.Errorf("%w: empty video id", domain.ErrInvalidModule)
		}
		if seen[v] {
			return nil, fmt.Errorf("%w: duplicate video id %q", domain.ErrInvalidModule, v)
		}
		seen[v] = true
	}
	if m.VideoIDs == nil {
		m.VideoIDs = []string{}
	}
	if err := s.store.SaveModule(ctx, m, s.opts.Now()); err != nil {
		return nil, fmt.Errorf("save module: %w", err)
	}
	s.log.WithFields(logrus.Fields{"module_id": m.ID, "videos": len(m.VideoIDs)}).Info("module registered")
	return &m, nil
}

// ModuleReport is a module with completion stats for one user.
type ModuleReport struct {
	Module       domain.Module            `json:"module"`
	Stats        domain.ModuleStats       `json:"stats"`
	UserProgress []domain.VideoCompletion `json:"user_progress"`
}

// ModuleStats reports how much of a module userID has watched. With an
// empty userID only the totals are filled in.
func (s *Service) ModuleStats(ctx context.Context, moduleID, userID string) (*ModuleReport, error) {
	m, err := s.store.GetModule(ctx, moduleID)
	if err != nil {
		return nil, fmt.Errorf("load module: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrModuleNotFound, moduleID)
	}

	done := []domain.VideoCompletion{}
	if userID != "" {
		list, err := s.store.ListVideoCompletions(ctx, userID, moduleID)
		if err != nil {
			return nil, fmt.Errorf("video completions: %w", err)
		}
		if list != nil {
			done = list
		}
	}

	total := len(m.VideoIDs)
	stats := domain.ModuleStats{
		TotalVideos:      total,
		CompletedVideos:  len(done),
		EstimatedMinutes: total * minutesPerVideo,
	}
	if total > 0 {
		stats.ProgressPercentage = float64(len(done)) / float64(total) * 100
	}
	return &ModuleReport{Module: *m, Stats: stats, UserProgress: done}, nil
}

// ─── Status ─────────────────────────────────────────────────────────────────

// AchievementSummary counts unlocked achievements.
type AchievementSummary struct {
	Total    int                          `json:"total"`
	Unlocked int                          `json:"unlocked"`
	Recent   []domain.AchievementProgress `json:"recent"`
}

// Status is the polled progression view of one user.
type Status struct {
	UserID             string                      `json:"user_id"`
	State              domain.UserProgressionState `json:"state"`
	Level              domain.LevelInfo            `json:"level"`
	XPToNextLevel      int64                       `json:"xp_to_next_level"`
	StreakActive       bool                        `json:"streak_active"`
	Achievements       AchievementSummary          `json:"achievements"`
	RecentTransactions []domain.XPTransaction      `json:"recent_transactions"`
	LastUpdated        time.Time                   `json:"last_updated"`
}

// recentAchievements is how many unlocks Status lists.
const recentAchievements = 5

// Status builds the progression view clients poll.
func (s *Service) Status(ctx context.Context, userID string) (*Status, error) {
	state, err := s.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	progress, err := s.Achievements(ctx, userID, state)
	if err != nil {
		return nil, err
	}
	txs, err := s.store.RecentTransactions(ctx, userID, s.opts.RecentLimit)
	if err != nil {
		return nil, fmt.Errorf("recent transactions: %w", err)
	}

	var unlocked []domain.AchievementProgress
	for _, p := range progress {
		if p.Unlocked {
			unlocked = append(unlocked, p)
		}
	}
	sort.SliceStable(unlocked, func(i, j int) bool {
		return unlocked[i].UnlockedAt.After(*unlocked[j].UnlockedAt)
	})
	summary := AchievementSummary{Total: len(progress), Unlocked: len(unlocked)}
	if len(unlocked) > recentAchievements {
		unlocked = unlocked[:recentAchievements]
	}
	summary.Recent = unlocked

	now := s.opts.Now()
	return &Status{
		UserID:             userID,
		State:              *state,
		Level:              LevelForTotalXP(state.TotalXP),
		XPToNextLevel:      XPToNextLevel(state.TotalXP),
		StreakActive:       state.CurrentStreakDays > 0 && !StreakBroken(state.LastActiveAt, now, s.engine.loc),
		Achievements:       summary,
		RecentTransactions: txs,
		LastUpdated:        now,
	}, nil
}

// Achievements returns per-achievement progress. state may be nil, in
// which case it is loaded.
func (s *Service) Achievements(ctx context.Context, userID string, state *domain.UserProgressionState) ([]domain.AchievementProgress, error) {
	if state == nil {
		var err error
		if state, err = s.User(ctx, userID); err != nil {
			return nil, err
		}
	}
	unlocked, err := s.store.ListUnlockedAchievements(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	return s.engine.Evaluator().Progress(*state, unlocked), nil
}

// ─── Inbox ──────────────────────────────────────────────────────────────────

// PendingNotifications returns delivered notifications the user has not
// seen yet.
func (s *Service) PendingNotifications(ctx context.Context, userID string, limit int) ([]domain.StoredNotification, error) {
	if s.inbox == nil {
		return nil, domain.ErrSinkUnavailable
	}
	return s.inbox.ListPendingNotifications(ctx, userID, limit)
}

// MarkNotificationShown acknowledges one inbox notification.
func (s *Service) MarkNotificationShown(ctx context.Context, userID string, id int64) error {
	if s.inbox == nil {
		return domain.ErrSinkUnavailable
	}
	return s.inbox.MarkNotificationShown(ctx, userID, id)
}

// PublishDemo enqueues the demo sequence addressed to userID.
func (s *Service) PublishDemo(userID string) []domain.NotificationEvent {
	events := DemoSequence()
	for i := range events {
		events[i].UserID = userID
	}
	if s.pub != nil {
		s.pub.EnqueueBatch(events)
	}
	return events
}

// ─── Per-user locking ───────────────────────────────────────────────────────

// userLocks hands out one mutex per user id and forgets it once no
// caller holds or waits on it.
type userLocks struct {
	mu sync.Mutex
	m  map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func (l *userLocks) lock(id string) (unlock func()) {
	l.mu.Lock()
	ul, ok := l.m[id]
	if !ok {
		ul = &userLock{}
		l.m[id] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()
	return func() {
		ul.mu.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.m, id)
		}
		l.mu.Unlock()
	}
}
