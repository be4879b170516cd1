package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fitquiz-assignment-service/internal/app"
	"fitquiz-assignment-service/internal/clock"
	"fitquiz-assignment-service/internal/domain"
	"fitquiz-assignment-service/internal/infra/memory"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type testServer struct {
	store   *memory.Store
	clock   *clock.Fake
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.NewStore()
	store.PutUser(domain.User{ID: "u1", Role: domain.RoleUser, CreatedAt: t0})
	store.PutCollection(domain.Collection{ID: "starter", Name: "Starter Pack"})
	delay := 1
	if err := store.SaveQuiz(context.Background(), &domain.Quiz{
		ID:                 "onboarding",
		Name:               "Onboarding",
		TriggerType:        domain.TriggerTimeInterval,
		TriggerDelayAmount: &delay,
		TriggerDelayUnit:   domain.UnitDays,
		IsActive:           true,
		Questions: []domain.Question{{
			ID:      "goal",
			Type:    domain.QuestionMultipleChoice,
			Options: []domain.Option{{ID: "strength", Text: "Strength", AssignCollection: "starter"}},
		}},
	}); err != nil {
		t.Fatalf("seed quiz: %v", err)
	}

	fake := clock.NewFake(t0)
	logger, _ := logtest.NewNullLogger()
	svc := app.NewService(store, store, store, app.Options{Scheduler: fake, Logger: logger, SystemActorID: "admin-1"})
	sweeper := app.NewSweeper(svc, app.SweeperConfig{})
	return &testServer{store: store, clock: fake, handler: NewHandler(svc, sweeper, logger).Routes()}
}

func (s *testServer) do(t *testing.T, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func TestAutoAssignThenSubmit(t *testing.T) {
	s := newTestServer(t)

	if rec := s.do(t, http.MethodGet, "/users/u1/active-quiz", nil, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("expected no active quiz, got %d", rec.Code)
	}

	s.clock.Set(t0.Add(25 * time.Hour))
	rec := s.do(t, http.MethodPost, "/admin/quizzes/auto-assign", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("auto-assign: %d %s", rec.Code, rec.Body)
	}
	var report app.SweepReport
	_ = json.NewDecoder(rec.Body).Decode(&report)
	if report.AssignedCount != 1 {
		t.Fatalf("expected one assignment, got %+v", report)
	}

	rec = s.do(t, http.MethodGet, "/users/u1/active-quiz", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("active quiz: %d", rec.Code)
	}
	var active app.ActiveQuiz
	_ = json.NewDecoder(rec.Body).Decode(&active)
	if active.Quiz == nil || active.Quiz.ID != "onboarding" {
		t.Fatalf("unexpected active quiz %+v", active)
	}

	rec = s.do(t, http.MethodPost, "/users/u1/quizzes/onboarding/answers", submitRequest{
		Answers: []domain.Answer{{QuestionID: "goal", OptionID: "strength"}},
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit: %d %s", rec.Code, rec.Body)
	}
	var sub app.Submission
	_ = json.NewDecoder(rec.Body).Decode(&sub)
	if len(sub.Collections) != 1 || sub.Collections[0].CollectionID != "starter" {
		t.Fatalf("unexpected submission %+v", sub)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	s := newTestServer(t)
	actor := map[string]string{ActorHeader: "boss"}

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		header map[string]string
		want   int
	}{
		{"unknown user", http.MethodGet, "/users/ghost/active-quiz", nil, nil, http.StatusNotFound},
		{"missing actor", http.MethodPost, "/admin/users/u1/pending-quizzes/onboarding", nil, nil, http.StatusBadRequest},
		{"assign", http.MethodPost, "/admin/users/u1/pending-quizzes/onboarding", nil, actor, http.StatusCreated},
		{"assign twice", http.MethodPost, "/admin/users/u1/pending-quizzes/onboarding", nil, actor, http.StatusConflict},
		{"empty answers", http.MethodPost, "/users/u1/quizzes/onboarding/answers", submitRequest{}, nil, http.StatusBadRequest},
		{"unassign", http.MethodDelete, "/admin/users/u1/pending-quizzes/onboarding", nil, nil, http.StatusNoContent},
		{"unassign missing", http.MethodDelete, "/admin/users/u1/pending-quizzes/onboarding", nil, nil, http.StatusNotFound},
		{"clear pending", http.MethodDelete, "/admin/users/u1/pending-quizzes", nil, nil, http.StatusNoContent},
		{"unknown quiz", http.MethodGet, "/admin/quizzes/missing", nil, nil, http.StatusNotFound},
		{"bad filter", http.MethodGet, "/admin/quizzes?active=maybe", nil, nil, http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := s.do(t, tc.method, tc.path, tc.body, tc.header)
		if rec.Code != tc.want {
			t.Fatalf("%s: got %d want %d (%s)", tc.name, rec.Code, tc.want, rec.Body)
		}
	}
}

func TestFutureQuizzesAndSkip(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/admin/users/u1/future-quizzes", nil, nil)
	var future []app.FutureAssignment
	_ = json.NewDecoder(rec.Body).Decode(&future)
	if rec.Code != http.StatusOK || len(future) != 1 {
		t.Fatalf("expected one future quiz, got %d %+v", rec.Code, future)
	}

	rec = s.do(t, http.MethodPost, "/admin/users/u1/future-quizzes/onboarding/skip", skipRequest{Reason: "not relevant"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("skip without actor: %d", rec.Code)
	}
	if user, _ := s.store.FindUserByID(context.Background(), "u1"); len(user.SkippedQuizzes) != 0 {
		t.Fatalf("skip without actor was stored: %+v", user.SkippedQuizzes)
	}

	rec = s.do(t, http.MethodPost, "/admin/users/u1/future-quizzes/onboarding/skip", skipRequest{Reason: "not relevant"}, map[string]string{ActorHeader: "boss"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("skip: %d %s", rec.Code, rec.Body)
	}
	rec = s.do(t, http.MethodPost, "/admin/users/u1/future-quizzes/onboarding/skip", nil, map[string]string{ActorHeader: "boss"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("second skip: %d", rec.Code)
	}

	user, _ := s.store.FindUserByID(context.Background(), "u1")
	if len(user.SkippedQuizzes) != 1 || user.SkippedQuizzes[0].Reason != "not relevant" || user.SkippedQuizzes[0].SkippedBy != "boss" {
		t.Fatalf("unexpected skipped list %+v", user.SkippedQuizzes)
	}
}

func TestQuizCRUD(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/admin/quizzes", app.QuizDraft{Name: "Weekly", IsActive: true}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body)
	}
	var created domain.Quiz
	_ = json.NewDecoder(rec.Body).Decode(&created)

	rec = s.do(t, http.MethodPut, "/admin/quizzes/"+created.ID, app.QuizDraft{Name: "Weekly v2"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: %d %s", rec.Code, rec.Body)
	}

	rec = s.do(t, http.MethodGet, "/admin/quizzes?active=false", nil, nil)
	var inactive []domain.Quiz
	_ = json.NewDecoder(rec.Body).Decode(&inactive)
	if len(inactive) != 1 || inactive[0].Name != "Weekly v2" {
		t.Fatalf("unexpected inactive list %+v", inactive)
	}

	if rec := s.do(t, http.MethodDelete, "/admin/quizzes/"+created.ID, nil, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/admin/quizzes/"+created.ID, nil, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected deleted quiz to be gone, got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodPost, "/admin/quizzes", app.QuizDraft{}, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected nameless draft rejected, got %d", rec.Code)
	}
}
