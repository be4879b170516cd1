package app_test

import (
	"testing"
	"time"

	"fitquiz-assignment-service/internal/app"
	"fitquiz-assignment-service/internal/domain"
)

func TestIsQuizDueRejectsMissingOrNamelessQuiz(t *testing.T) {
	user := &domain.User{CreatedAt: t0}
	if app.IsQuizDue(user, nil, t0) {
		t.Fatalf("nil quiz must not be due")
	}
	if app.IsQuizDue(user, &domain.Quiz{ID: "x"}, t0) {
		t.Fatalf("nameless quiz must not be due")
	}
}

func TestIsQuizDueTimeInterval(t *testing.T) {
	user := &domain.User{CreatedAt: t0}
	quiz := onboardingQuiz()

	if app.IsQuizDue(user, quiz, t0.Add(23*time.Hour)) {
		t.Fatalf("quiz due too early")
	}
	if !app.IsQuizDue(user, quiz, t0.Add(24*time.Hour)) {
		t.Fatalf("quiz should be due exactly at trigger date")
	}
}

func TestIsQuizDueManualHasNoTimeGate(t *testing.T) {
	user := &domain.User{CreatedAt: t0}
	if !app.IsQuizDue(user, manualQuiz("m", "Manual"), t0.Add(-time.Hour)) {
		t.Fatalf("manual quiz should always be due once pending")
	}
}

func TestEvaluateFlagsButDoesNotHideOutsideTimeFrame(t *testing.T) {
	user := &domain.User{CreatedAt: t0}
	quiz := manualQuiz("m", "Manual")
	quiz.TimeFrameHandling = domain.HandlingRespectTimeFrame

	el := app.Evaluate(user, quiz, t0)
	if !el.Due {
		t.Fatalf("timeframe must not hide a pending quiz")
	}
	if !el.OutsideTimeFrame {
		t.Fatalf("expected outside-timeframe flag")
	}
}

func TestPassesTimeFrame(t *testing.T) {
	now := t0.Add(10 * 24 * time.Hour)
	start, end := t0, t0.Add(30*24*time.Hour)
	inside := &domain.User{TimeFrame: &domain.TimeFrame{StartDate: &start, EndDate: &end}}
	expired := &domain.User{TimeFrame: &domain.TimeFrame{StartDate: &start, EndDate: &start}}
	flagged := &domain.User{TimeFrame: &domain.TimeFrame{IsWithinTimeFrame: true}}
	none := &domain.User{}

	cases := []struct {
		name     string
		user     *domain.User
		handling domain.TimeFrameHandling
		legacy   bool
		want     bool
	}{
		{"respect inside", inside, domain.HandlingRespectTimeFrame, false, true},
		{"respect expired", expired, domain.HandlingRespectTimeFrame, false, false},
		{"respect no frame", none, domain.HandlingRespectTimeFrame, false, false},
		{"respect flag only", flagged, domain.HandlingRespectTimeFrame, false, true},
		{"outside only inside", inside, domain.HandlingOutsideTimeFrameOnly, false, false},
		{"outside only expired", expired, domain.HandlingOutsideTimeFrameOnly, false, true},
		{"all users", expired, domain.HandlingAllUsers, false, true},
		{"legacy respect", expired, "", true, false},
		{"legacy off", expired, "", false, true},
		{"explicit wins over legacy", expired, domain.HandlingAllUsers, true, true},
	}
	for _, tc := range cases {
		quiz := &domain.Quiz{Name: "q", TimeFrameHandling: tc.handling, RespectUserTimeFrame: tc.legacy}
		if got := app.PassesTimeFrame(tc.user, quiz, now); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}
