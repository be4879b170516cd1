package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"fitquiz-assignment-service/internal/app"
	"fitquiz-assignment-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuizCache keeps quiz documents in Redis and falls back to the backing
// store on a miss. Each quiz is stored as JSON under quiz:{id}.
// Listing bypasses the cache; writes through the cache delete the key.
type QuizCache struct {
	client  *redis.Client
	backend app.QuizStore
	ttl     time.Duration
	sf      singleflight.Group
	rnd     *rand.Rand
	rndMu   sync.Mutex
}

func NewQuizCache(client *redis.Client, backend app.QuizStore, ttl time.Duration) *QuizCache {
	return &QuizCache{
		client:  client,
		backend: backend,
		ttl:     ttl,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizCache) FindQuizByID(ctx context.Context, id string) (*domain.Quiz, error) {
	if quiz, ok := r.fromCache(ctx, id); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(id, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := r.fromCache(ctx, id); ok {
			return quiz, nil
		}
		quiz, err := r.backend.FindQuizByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(quiz); err == nil {
			// best effort: a failed fill only costs a future miss
			_ = r.client.Set(ctx, r.key(id), data, r.ttlWithJitter()).Err()
		}
		return quiz, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.Quiz), nil
}

func (r *QuizCache) fromCache(ctx context.Context, id string) (*domain.Quiz, bool) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		return nil, false
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(data, &quiz); err != nil {
		return nil, false
	}
	return &quiz, true
}

func (r *QuizCache) FindQuizzes(ctx context.Context, filter domain.QuizFilter) ([]domain.Quiz, error) {
	return r.backend.FindQuizzes(ctx, filter)
}

func (r *QuizCache) SaveQuiz(ctx context.Context, quiz *domain.Quiz) error {
	if err := r.backend.SaveQuiz(ctx, quiz); err != nil {
		return err
	}
	return r.Invalidate(ctx, quiz.ID)
}

func (r *QuizCache) DeleteQuiz(ctx context.Context, id string) error {
	if err := r.backend.DeleteQuiz(ctx, id); err != nil {
		return err
	}
	return r.Invalidate(ctx, id)
}

// Invalidate removes the cached copy of id.
func (r *QuizCache) Invalidate(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

func (r *QuizCache) key(id string) string {
	return "quiz:" + id
}

func (r *QuizCache) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
