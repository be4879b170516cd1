package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"fitquiz-assignment-service/internal/domain"
	"fitquiz-assignment-service/internal/infra/memory"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestQuizCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	backend := &countingStore{Store: memory.NewStore()}
	_ = backend.SaveQuiz(ctx, sampleQuiz())
	cache := NewQuizCache(newClient(mr), backend, time.Minute)

	quiz, err := cache.FindQuizByID(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if backend.finds != 1 {
		t.Fatalf("expected backend called once, got %d", backend.finds)
	}
	if !mr.Exists("quiz:quiz-1") {
		t.Fatalf("expected redis key to be set")
	}

	// Second call should hit cache, backend not incremented.
	cached, err := cache.FindQuizByID(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("get cached quiz: %v", err)
	}
	if backend.finds != 1 {
		t.Fatalf("expected cache hit, backend calls=%d", backend.finds)
	}
	if cached.Name != quiz.Name || len(cached.Questions) != 1 || cached.Questions[0].Options[0].AssignCollection != "col-strength" {
		t.Fatalf("cached quiz lost content: %+v", cached)
	}
}

func TestQuizCacheDropsKeyOnWrite(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	cache := NewQuizCache(newClient(mr), memory.NewStore(), time.Minute)
	if err := cache.SaveQuiz(ctx, sampleQuiz()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := cache.FindQuizByID(ctx, "quiz-1"); err != nil {
		t.Fatalf("get: %v", err)
	}

	if err := cache.DeleteQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists("quiz:quiz-1") {
		t.Fatalf("expected redis key to be removed")
	}
	if _, err := cache.FindQuizByID(ctx, "quiz-1"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestQuizCacheSetsTTL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	backend := memory.NewStore()
	_ = backend.SaveQuiz(ctx, sampleQuiz())
	cache := NewQuizCache(newClient(mr), backend, time.Minute)
	_, _ = cache.FindQuizByID(ctx, "quiz-1")

	ttl := mr.TTL("quiz:quiz-1")
	if ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("expected ttl within jitter bounds, got %v", ttl)
	}
}

type countingStore struct {
	*memory.Store
	finds int
}

func (s *countingStore) FindQuizByID(ctx context.Context, id string) (*domain.Quiz, error) {
	s.finds++
	return s.Store.FindQuizByID(ctx, id)
}

func sampleQuiz() *domain.Quiz {
	return &domain.Quiz{
		ID:   "quiz-1",
		Name: "Onboarding",
		Questions: []domain.Question{
			{
				ID:           "q1",
				Type:         domain.QuestionMultipleChoice,
				QuestionText: "What is your goal?",
				Options: []domain.Option{
					{ID: "o1", Text: "Strength", AssignCollection: "col-strength"},
					{ID: "o2", Text: "Mobility"},
				},
			},
		},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
