package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fitquiz-assignment-service/internal/clock"
	"fitquiz-assignment-service/internal/domain"
	"github.com/sirupsen/logrus"
)

const quizAssignmentTag = "quiz-assignment"

// ApplyGrants merges collections into the user's assigned collections and
// returns how many were added. Collections already present are left alone.
// The user grants to themselves, so assignedBy is the user's own id.
func ApplyGrants(user *domain.User, collections []domain.Collection, quizName string, now time.Time, log logrus.FieldLogger) int {
	added := 0
	for _, c := range collections {
		if user.HasCollection(c.ID) {
			log.WithFields(logrus.Fields{
				"user_id":       user.ID,
				"collection_id": c.ID,
			}).Info("collection already assigned, skipping")
			continue
		}
		user.AssignedCollections = append(user.AssignedCollections, domain.AssignedCollection{
			CollectionID: c.ID,
			Name:         c.Name,
			Description:  c.Description,
			Image:        c.Image,
			DisplayOrder: c.DisplayOrder,
			IsPublic:     c.IsPublic,
			AssignedAt:   now,
			AssignedBy:   user.ID,
			Notes:        "Assigned via quiz: " + quizName,
			Status:       "active",
			Tags:         []string{quizAssignmentTag},
		})
		added++
	}
	return added
}

// Applier runs delayed collection grants. A scheduled grant lives only in
// memory: it is lost if the process stops before it fires.
type Applier struct {
	users     UserStore
	sched     clock.Scheduler
	log       logrus.FieldLogger
	recorder  Recorder
	publisher Publisher
	timeout   time.Duration

	mu      sync.Mutex
	seq     int
	pending map[int]scheduledGrant
	wg      sync.WaitGroup
}

type scheduledGrant struct {
	userID string
	quizID string
	timer  clock.Timer
}

func newApplier(users UserStore, sched clock.Scheduler, log logrus.FieldLogger, recorder Recorder, publisher Publisher, timeout time.Duration) *Applier {
	return &Applier{
		users:     users,
		sched:     sched,
		log:       log,
		recorder:  recorder,
		publisher: publisher,
		timeout:   timeout,
		pending:   make(map[int]scheduledGrant),
	}
}

// Schedule grants collections to userID after delay.
func (a *Applier) Schedule(userID string, quiz *domain.Quiz, collections []domain.Collection, delay time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.seq++
	id := a.seq
	quizID, quizName := quiz.ID, quiz.Name
	a.wg.Add(1)
	timer := a.sched.After(delay, func() {
		defer a.wg.Done()
		a.mu.Lock()
		_, live := a.pending[id]
		delete(a.pending, id)
		a.mu.Unlock()
		if !live {
			return
		}
		a.run(userID, quizID, quizName, collections)
	})
	a.pending[id] = scheduledGrant{userID: userID, quizID: quizID, timer: timer}
}

// Cancel stops every not-yet-fired grant for userID and quizID.
func (a *Applier) Cancel(userID, quizID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	cancelled := 0
	for id, g := range a.pending {
		if g.userID != userID || g.quizID != quizID {
			continue
		}
		if g.timer.Stop() {
			a.wg.Done()
		}
		delete(a.pending, id)
		cancelled++
	}
	return cancelled
}

// Pending returns the number of grants waiting to fire.
func (a *Applier) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// Wait blocks until every fired or scheduled grant has finished.
func (a *Applier) Wait() {
	a.wg.Wait()
}

func (a *Applier) run(userID, quizID, quizName string, collections []domain.Collection) {
	log := a.log.WithFields(logrus.Fields{"user_id": userID, "quiz_id": quizID})
	defer func() {
		if r := recover(); r != nil {
			a.recorder.DeferredGrantFailed()
			log.WithField("panic", r).Error("delayed collection grant panicked")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	added, err := a.apply(ctx, userID, quizName, collections, log)
	if err != nil {
		a.recorder.DeferredGrantFailed()
		log.WithError(err).Error("delayed collection grant failed")
		return
	}
	if added == 0 {
		return
	}
	a.recorder.CollectionsGranted(GrantDeferred, added)
	publish(ctx, a.publisher, log, EventCollectionGranted, grantEvent(userID, quizID, GrantDeferred, collections))
	log.WithField("added", added).Info("delayed collections granted")
}

// apply re-reads the user right before writing; the submission-time copy is
// never reused across the delay.
func (a *Applier) apply(ctx context.Context, userID, quizName string, collections []domain.Collection, log logrus.FieldLogger) (int, error) {
	user, err := a.users.FindUserByID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("reload user: %w", err)
	}
	added := ApplyGrants(user, collections, quizName, a.sched.Now(), log)
	if added == 0 {
		return 0, nil
	}
	if err := a.users.SaveUser(ctx, user); err != nil {
		return 0, fmt.Errorf("save user: %w", err)
	}
	return added, nil
}

type grantPayload struct {
	UserID        string   `json:"userId"`
	QuizID        string   `json:"quizId"`
	Mode          string   `json:"mode"`
	CollectionIDs []string `json:"collectionIds"`
}

func grantEvent(userID, quizID, mode string, collections []domain.Collection) grantPayload {
	ids := make([]string, 0, len(collections))
	for _, c := range collections {
		ids = append(ids, c.ID)
	}
	return grantPayload{UserID: userID, QuizID: quizID, Mode: mode, CollectionIDs: ids}
}

func publish(ctx context.Context, p Publisher, log logrus.FieldLogger, eventType string, payload any) {
	if err := p.Publish(ctx, eventType, payload); err != nil {
		log.WithError(err).WithField("event", eventType).Warn("publish event failed")
	}
}
