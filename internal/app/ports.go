package app

import (
	"context"
	"time"

	"fitquiz-assignment-service/internal/domain"
)

// UserStore persists user documents. SaveUser writes the assignment
// sub-documents only (pending, results, skipped, assigned collections) so
// concurrent writers of unrelated profile fields are not clobbered.
type UserStore interface {
	FindUserByID(ctx context.Context, id string) (*domain.User, error)
	FindUsers(ctx context.Context, filter domain.UserFilter) ([]domain.User, error)
	SaveUser(ctx context.Context, user *domain.User) error
	// AddPendingQuiz appends entry to the user's pending quizzes unless the
	// quiz is already pending, completed or skipped, and reports whether it
	// was added. Nothing else on the document is written.
	AddPendingQuiz(ctx context.Context, userID string, entry domain.PendingQuiz) (bool, error)
}

// QuizStore loads and persists quizzes (from cache/backing store).
type QuizStore interface {
	FindQuizByID(ctx context.Context, id string) (*domain.Quiz, error)
	FindQuizzes(ctx context.Context, filter domain.QuizFilter) ([]domain.Quiz, error)
	SaveQuiz(ctx context.Context, quiz *domain.Quiz) error
	DeleteQuiz(ctx context.Context, id string) error
}

// CollectionStore resolves collections referenced by quizzes.
type CollectionStore interface {
	FindCollectionByID(ctx context.Context, id string) (*domain.Collection, error)
}

// Publisher emits domain events. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// Recorder receives operational measurements.
type Recorder interface {
	SweepFinished(assigned, failures int, elapsed time.Duration)
	CollectionsGranted(mode string, n int)
	DeferredGrantFailed()
}

const (
	EventPendingAssigned   = "quiz.pending.assigned"
	EventQuizSubmitted     = "quiz.submitted"
	EventCollectionGranted = "collection.granted"
	EventQuizSkipped       = "quiz.skipped"
)

const (
	GrantImmediate = "immediate"
	GrantDeferred  = "deferred"
)

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, any) error { return nil }

type nopRecorder struct{}

func (nopRecorder) SweepFinished(int, int, time.Duration) {}
func (nopRecorder) CollectionsGranted(string, int)        {}
func (nopRecorder) DeferredGrantFailed()                  {}
