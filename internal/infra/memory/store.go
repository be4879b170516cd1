package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"fitquiz-assignment-service/internal/domain"
)

// Store is an in-memory document store for users, quizzes and collections.
// Documents are copied on the way in and out, so callers never share state
// with the store (useful for tests/demos).
type Store struct {
	mu          sync.RWMutex
	users       map[string]domain.User
	quizzes     map[string]domain.Quiz
	collections map[string]domain.Collection
}

func NewStore() *Store {
	return &Store{
		users:       make(map[string]domain.User),
		quizzes:     make(map[string]domain.Quiz),
		collections: make(map[string]domain.Collection),
	}
}

// PutUser inserts or fully replaces a user document.
func (s *Store) PutUser(user domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = clone(user)
}

// PutCollection inserts or replaces a collection.
func (s *Store) PutCollection(c domain.Collection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[c.ID] = c
}

func (s *Store) FindUserByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	out := clone(user)
	return &out, nil
}

func (s *Store) FindUsers(_ context.Context, filter domain.UserFilter) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.TenantID != "" && u.TenantID != filter.TenantID {
			continue
		}
		users = append(users, clone(u))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// SaveUser writes the assignment sub-documents of user onto the stored record.
func (s *Store) SaveUser(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.users[user.ID]
	if !ok {
		return domain.ErrUserNotFound
	}
	in := clone(*user)
	stored.PendingQuizzes = in.PendingQuizzes
	stored.QuizResults = in.QuizResults
	stored.SkippedQuizzes = in.SkippedQuizzes
	stored.AssignedCollections = in.AssignedCollections
	s.users[user.ID] = stored
	return nil
}

func (s *Store) AddPendingQuiz(_ context.Context, userID string, entry domain.PendingQuiz) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.users[userID]
	if !ok {
		return false, domain.ErrUserNotFound
	}
	if stored.Handled(entry.QuizID) {
		return false, nil
	}
	stored.PendingQuizzes = append(stored.PendingQuizzes, clone(entry))
	s.users[userID] = stored
	return true, nil
}

func (s *Store) FindQuizByID(_ context.Context, id string) (*domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[id]
	if !ok {
		return nil, domain.ErrQuizNotFound
	}
	out := clone(quiz)
	return &out, nil
}

func (s *Store) FindQuizzes(_ context.Context, filter domain.QuizFilter) ([]domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quizzes := make([]domain.Quiz, 0, len(s.quizzes))
	for _, q := range s.quizzes {
		if filter.IsActive != nil && q.IsActive != *filter.IsActive {
			continue
		}
		if filter.TriggerType != "" && q.TriggerType != filter.TriggerType {
			continue
		}
		if filter.TenantID != "" && q.TenantID != filter.TenantID {
			continue
		}
		quizzes = append(quizzes, clone(q))
	}
	sort.Slice(quizzes, func(i, j int) bool {
		if !quizzes[i].CreatedAt.Equal(quizzes[j].CreatedAt) {
			return quizzes[i].CreatedAt.Before(quizzes[j].CreatedAt)
		}
		return quizzes[i].ID < quizzes[j].ID
	})
	return quizzes, nil
}

func (s *Store) SaveQuiz(_ context.Context, quiz *domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quizzes[quiz.ID] = clone(*quiz)
	return nil
}

func (s *Store) DeleteQuiz(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[id]; !ok {
		return domain.ErrQuizNotFound
	}
	delete(s.quizzes, id)
	return nil
}

func (s *Store) FindCollectionByID(_ context.Context, id string) (*domain.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[id]
	if !ok {
		return nil, domain.ErrCollectionNotFound
	}
	return &c, nil
}

// clone deep-copies a document through its JSON form.
func clone[T any](v T) T {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	return out
}
