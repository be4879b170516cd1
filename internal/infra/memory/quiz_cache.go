package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"fitquiz-assignment-service/internal/app"
	"fitquiz-assignment-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuizCache caches quizzes by id with TTL to avoid repeated store hits.
// Listing always goes to the backing store; writes invalidate the entry.
type QuizCache struct {
	backend app.QuizStore
	ttl     time.Duration
	clock   func() time.Time
	sf      singleflight.Group
	rnd     *rand.Rand
	rndMu   sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedQuiz
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

func NewQuizCache(backend app.QuizStore, ttl time.Duration) *QuizCache {
	return &QuizCache{
		backend: backend,
		ttl:     ttl,
		clock:   time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:   make(map[string]cachedQuiz),
	}
}

func (r *QuizCache) FindQuizByID(ctx context.Context, id string) (*domain.Quiz, error) {
	if quiz, ok := r.lookup(id); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(id, func() (interface{}, error) {
		if quiz, ok := r.lookup(id); ok {
			return *quiz, nil
		}
		quiz, err := r.backend.FindQuizByID(ctx, id)
		if err != nil {
			return domain.Quiz{}, err
		}

		r.mu.Lock()
		r.cache[id] = cachedQuiz{
			quiz:      clone(*quiz),
			expiresAt: r.clock().Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return *quiz, nil
	})
	if err != nil {
		return nil, err
	}
	quiz := clone(result.(domain.Quiz))
	return &quiz, nil
}

func (r *QuizCache) lookup(id string) (*domain.Quiz, bool) {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[id]
	if !ok || !entry.expiresAt.After(now) {
		return nil, false
	}
	quiz := clone(entry.quiz)
	return &quiz, true
}

func (r *QuizCache) FindQuizzes(ctx context.Context, filter domain.QuizFilter) ([]domain.Quiz, error) {
	return r.backend.FindQuizzes(ctx, filter)
}

func (r *QuizCache) SaveQuiz(ctx context.Context, quiz *domain.Quiz) error {
	defer r.Invalidate(quiz.ID)
	return r.backend.SaveQuiz(ctx, quiz)
}

func (r *QuizCache) DeleteQuiz(ctx context.Context, id string) error {
	defer r.Invalidate(id)
	return r.backend.DeleteQuiz(ctx, id)
}

// Invalidate drops the cached copy of id.
func (r *QuizCache) Invalidate(id string) {
	r.mu.Lock()
	delete(r.cache, id)
	r.mu.Unlock()
}

func (r *QuizCache) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
