package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"fitquiz-assignment-service/internal/clock"
	"fitquiz-assignment-service/internal/domain"
	"github.com/sirupsen/logrus"
)

// SweepReport summarizes one AutoAssignQuizzes run.
type SweepReport struct {
	AssignedCount  int `json:"assignedCount"`
	UsersScanned   int `json:"usersScanned"`
	QuizzesScanned int `json:"quizzesScanned"`
	Failures       int `json:"failures"`
}

// AutoAssignQuizzes makes every due, active time-interval quiz pending for
// every user that has not seen it yet. Running it again without time
// passing assigns nothing.
func (s *Service) AutoAssignQuizzes(ctx context.Context) (SweepReport, error) {
	started := s.sched.Now()
	report := SweepReport{}

	quizzes, err := s.activeIntervalQuizzes(ctx)
	if err != nil {
		return report, err
	}
	report.QuizzesScanned = len(quizzes)
	if len(quizzes) == 0 {
		return report, nil
	}

	users, err := s.users.FindUsers(ctx, domain.UserFilter{Role: domain.RoleUser})
	if err != nil {
		return report, fmt.Errorf("list users: %w", err)
	}
	actor := s.resolveSystemActor(ctx)

	for i := range users {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		user := &users[i]
		report.UsersScanned++
		assigned, err := s.sweepUser(ctx, user, quizzes, actor)
		report.AssignedCount += assigned
		if err != nil {
			report.Failures++
			s.log.WithError(err).WithField("user_id", user.ID).Error("auto-assign failed for user")
			continue
		}
	}

	elapsed := s.sched.Now().Sub(started)
	s.recorder.SweepFinished(report.AssignedCount, report.Failures, elapsed)
	s.log.WithFields(logrus.Fields{
		"assigned": report.AssignedCount,
		"users":    report.UsersScanned,
		"quizzes":  report.QuizzesScanned,
		"failures": report.Failures,
	}).Info("auto-assign sweep finished")
	return report, nil
}

// sweepUser adds due quizzes to one user. The listed copy only picks the
// candidate; the user is re-read before deciding, and each entry is appended
// by the store only if the quiz is still untouched, so a submission racing
// the sweep is never overwritten.
func (s *Service) sweepUser(ctx context.Context, listed *domain.User, quizzes []domain.Quiz, actor string) (int, error) {
	user, err := s.users.FindUserByID(ctx, listed.ID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reload user: %w", err)
	}

	now := s.sched.Now()
	log := s.log.WithField("user_id", user.ID)
	assigned := 0
	for i := range quizzes {
		quiz := &quizzes[i]
		if !sameTenant(user, quiz) || user.Handled(quiz.ID) {
			continue
		}
		trigger := TriggerDate(user, quiz)
		if now.Before(trigger) {
			continue
		}
		// Unlike the display path, the sweep enforces the timeframe policy.
		if !PassesTimeFrame(user, quiz, now) {
			continue
		}
		entry := domain.PendingQuiz{
			QuizID:         quiz.ID,
			AssignedAt:     now,
			AssignedBy:     actor,
			AssignmentType: domain.AssignmentTimeInterval,
			ScheduledFor:   &trigger,
			IsAvailable:    true,
		}
		added, err := s.users.AddPendingQuiz(ctx, user.ID, entry)
		if err != nil {
			return assigned, fmt.Errorf("add pending quiz %s: %w", quiz.ID, err)
		}
		if !added {
			log.WithField("quiz_id", quiz.ID).Debug("quiz handled concurrently, not assigned")
			continue
		}
		assigned++
		log.WithField("quiz_id", quiz.ID).Info("quiz auto-assigned")
		publish(ctx, s.publisher, log, EventPendingAssigned, pendingEvent(user.ID, entry))
	}
	return assigned, nil
}

func (s *Service) resolveSystemActor(ctx context.Context) string {
	if s.systemActor != "" {
		return s.systemActor
	}
	admins, err := s.users.FindUsers(ctx, domain.UserFilter{Role: domain.RoleAdmin})
	if err != nil {
		s.log.WithError(err).Warn("resolve system actor failed, using fallback")
		return fallbackSystemActor
	}
	if len(admins) == 0 {
		return fallbackSystemActor
	}
	return admins[0].ID
}

// Sweeper runs AutoAssignQuizzes once shortly after start and then on a
// fixed interval. A run that would overlap a running one is skipped.
type Sweeper struct {
	service      *Service
	sched        clock.Scheduler
	log          logrus.FieldLogger
	interval     time.Duration
	initialDelay time.Duration
	timeout      time.Duration

	running atomic.Bool
	// runMu is held for the length of a run so Stop can wait for it.
	runMu  sync.Mutex
	mu     sync.Mutex
	timers []clock.Timer
}

// SweeperConfig tunes the periodic loop. Zero values fall back to defaults.
type SweeperConfig struct {
	Interval     time.Duration
	InitialDelay time.Duration
	// Timeout bounds one run.
	Timeout time.Duration
}

func NewSweeper(service *Service, cfg SweeperConfig) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 10 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = cfg.Interval
	}
	return &Sweeper{
		service:      service,
		sched:        service.sched,
		log:          service.log,
		interval:     cfg.Interval,
		initialDelay: cfg.InitialDelay,
		timeout:      cfg.Timeout,
	}
}

// Start schedules the initial and periodic runs.
func (w *Sweeper) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.timers = append(w.timers,
		w.sched.After(w.initialDelay, w.tick),
		w.sched.Every(w.interval, w.tick),
	)
	w.log.WithFields(logrus.Fields{
		"interval":      w.interval,
		"initial_delay": w.initialDelay,
	}).Info("auto-assign sweeper started")
}

// Stop cancels future runs and waits for a run already in progress.
func (w *Sweeper) Stop() {
	w.mu.Lock()
	for _, t := range w.timers {
		t.Stop()
	}
	w.timers = nil
	w.mu.Unlock()

	w.runMu.Lock()
	w.runMu.Unlock()
}

func (w *Sweeper) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	if _, ran, err := w.RunOnce(ctx); ran && err != nil {
		w.log.WithError(err).Error("auto-assign sweep failed")
	}
}

// RunOnce performs a single sweep unless one is already running. ran is
// false when the call was skipped.
func (w *Sweeper) RunOnce(ctx context.Context) (report SweepReport, ran bool, err error) {
	if !w.running.CompareAndSwap(false, true) {
		w.log.Warn("auto-assign sweep still running, skipping")
		return SweepReport{}, false, nil
	}
	defer w.running.Store(false)
	w.runMu.Lock()
	defer w.runMu.Unlock()
	report, err = w.service.AutoAssignQuizzes(ctx)
	return report, true, err
}
