package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"fitquiz-assignment-service/internal/app"
	"fitquiz-assignment-service/internal/clock"
	"fitquiz-assignment-service/internal/domain"
	"fitquiz-assignment-service/internal/infra/memory"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store    *memory.Store
	users    *flakyUsers
	clock    *clock.Fake
	svc      *app.Service
	hook     *logtest.Hook
	events   *recordingPublisher
	recorder *countingRecorder
}

type fixtureOption func(*app.Options)

func withoutSystemActor() fixtureOption {
	return func(o *app.Options) { o.SystemActorID = "" }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	store := memory.NewStore()
	users := &flakyUsers{Store: store, failSaveFor: map[string]bool{}}
	fake := clock.NewFake(t0)
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	events := &recordingPublisher{}
	recorder := &countingRecorder{}

	ids := 0
	options := app.Options{
		Scheduler:     fake,
		Logger:        logger,
		Publisher:     events,
		Recorder:      recorder,
		SystemActorID: "admin-1",
		NewID: func() string {
			ids++
			return fmt.Sprintf("id-%d", ids)
		},
	}
	for _, opt := range opts {
		opt(&options)
	}

	store.PutUser(domain.User{ID: "u1", Name: "Alice", Role: domain.RoleUser, CreatedAt: t0})
	store.PutCollection(domain.Collection{
		ID:           "starter",
		Name:         "Starter Pack",
		Description:  "First steps",
		Image:        "starter.png",
		DisplayOrder: 2,
		IsPublic:     true,
	})
	store.PutCollection(domain.Collection{ID: "advanced", Name: "Advanced"})

	return &fixture{
		store:    store,
		users:    users,
		clock:    fake,
		svc:      app.NewService(users, store, store, options),
		hook:     hook,
		events:   events,
		recorder: recorder,
	}
}

func (f *fixture) addQuiz(t *testing.T, quiz *domain.Quiz) {
	t.Helper()
	if err := f.store.SaveQuiz(context.Background(), quiz); err != nil {
		t.Fatalf("seed quiz: %v", err)
	}
}

func (f *fixture) user(t *testing.T, id string) *domain.User {
	t.Helper()
	user, err := f.store.FindUserByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load user %s: %v", id, err)
	}
	return user
}

func (f *fixture) sweep(t *testing.T) app.SweepReport {
	t.Helper()
	report, err := f.svc.AutoAssignQuizzes(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	return report
}

func (f *fixture) hasLog(level logrus.Level, msg string) bool {
	for _, e := range f.hook.AllEntries() {
		if e.Level == level && e.Message == msg {
			return true
		}
	}
	return false
}

func intPtr(v int) *int { return &v }

// onboardingQuiz becomes due one day after registration and grants
// "starter" for the strength answer.
func onboardingQuiz() *domain.Quiz {
	return &domain.Quiz{
		ID:                 "onboarding",
		Name:               "Onboarding",
		TriggerType:        domain.TriggerTimeInterval,
		TriggerStartFrom:   domain.StartFromRegistration,
		TriggerDelayAmount: intPtr(1),
		TriggerDelayUnit:   domain.UnitDays,
		IsActive:           true,
		CreatedAt:          t0,
		Questions: []domain.Question{
			{
				ID:           "goal",
				Type:         domain.QuestionMultipleChoice,
				QuestionText: "What is your main goal?",
				Options: []domain.Option{
					{ID: "strength", Text: "Build strength", AssignCollection: "starter"},
					{ID: "cardio", Text: "Improve cardio"},
				},
			},
		},
	}
}

func manualQuiz(id, name string) *domain.Quiz {
	return &domain.Quiz{
		ID:        id,
		Name:      name,
		IsActive:  true,
		CreatedAt: t0,
		Questions: []domain.Question{
			{
				ID:           "q1",
				Type:         domain.QuestionTrueFalse,
				QuestionText: "Do you train weekly?",
				Options: []domain.Option{
					{ID: "yes", Text: "Yes", AssignCollection: "starter"},
					{ID: "no", Text: "No"},
				},
			},
		},
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return nil
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e == eventType {
			n++
		}
	}
	return n
}

type countingRecorder struct {
	mu             sync.Mutex
	sweeps         int
	granted        map[string]int
	deferredFailed int
}

func (r *countingRecorder) SweepFinished(int, int, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweeps++
}

func (r *countingRecorder) CollectionsGranted(mode string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.granted == nil {
		r.granted = map[string]int{}
	}
	r.granted[mode] += n
}

func (r *countingRecorder) DeferredGrantFailed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deferredFailed++
}

var errStoreDown = errors.New("store unavailable")

// flakyUsers fails selected user operations on demand.
type flakyUsers struct {
	*memory.Store
	mu          sync.Mutex
	failFind    bool
	failSaveFor map[string]bool
}

func (u *flakyUsers) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	u.mu.Lock()
	fail := u.failFind
	u.mu.Unlock()
	if fail {
		return nil, errStoreDown
	}
	return u.Store.FindUserByID(ctx, id)
}

func (u *flakyUsers) SaveUser(ctx context.Context, user *domain.User) error {
	u.mu.Lock()
	fail := u.failSaveFor[user.ID]
	u.mu.Unlock()
	if fail {
		return errStoreDown
	}
	return u.Store.SaveUser(ctx, user)
}

func (u *flakyUsers) AddPendingQuiz(ctx context.Context, userID string, entry domain.PendingQuiz) (bool, error) {
	u.mu.Lock()
	fail := u.failSaveFor[userID]
	u.mu.Unlock()
	if fail {
		return false, errStoreDown
	}
	return u.Store.AddPendingQuiz(ctx, userID, entry)
}
