package app

import (
	"sort"
	"time"

	"fitquiz-assignment-service/internal/domain"
)

// Eligibility is the outcome of evaluating one pending quiz for display.
type Eligibility struct {
	Due bool
	// OutsideTimeFrame is informational: the quiz wants RESPECT_TIMEFRAME and
	// the user is outside their window. It never hides the quiz.
	OutsideTimeFrame bool
}

// IsQuizDue decides whether a pending quiz should be presented at now.
func IsQuizDue(user *domain.User, quiz *domain.Quiz, now time.Time) bool {
	return Evaluate(user, quiz, now).Due
}

// Evaluate runs the display-path eligibility checks for quiz.
func Evaluate(user *domain.User, quiz *domain.Quiz, now time.Time) Eligibility {
	if quiz == nil || quiz.Name == "" {
		return Eligibility{}
	}
	if quiz.IsTimeInterval() && now.Before(TriggerDate(user, quiz)) {
		return Eligibility{}
	}

	// The display path only flags timeframe membership while the sweep hard
	// gates on it (PassesTimeFrame). Keep the two apart until product
	// decides otherwise.
	outside := quiz.Handling() == domain.HandlingRespectTimeFrame && !user.TimeFrame.Contains(now)
	return Eligibility{Due: true, OutsideTimeFrame: outside}
}

// PassesTimeFrame is the sweep's hard timeframe gate.
func PassesTimeFrame(user *domain.User, quiz *domain.Quiz, now time.Time) bool {
	within := user.TimeFrame.Contains(now)
	switch quiz.Handling() {
	case domain.HandlingRespectTimeFrame:
		return within
	case domain.HandlingOutsideTimeFrameOnly:
		return !within
	default:
		return true
	}
}

// sortedPending returns a copy of the user's pending entries ordered by
// AssignedAt, keeping list order for ties.
func sortedPending(user *domain.User) []domain.PendingQuiz {
	pending := make([]domain.PendingQuiz, len(user.PendingQuizzes))
	copy(pending, user.PendingQuizzes)
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].AssignedAt.Before(pending[j].AssignedAt)
	})
	return pending
}
