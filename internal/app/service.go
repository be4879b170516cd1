package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"fitquiz-assignment-service/internal/clock"
	"fitquiz-assignment-service/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	defaultCompletionMessage = "Thank you for completing the quiz!"
	defaultSkipReason        = "Removed by admin"
	fallbackSystemActor      = "system"
)

// Options carries the optional collaborators of a Service.
type Options struct {
	Scheduler clock.Scheduler
	Logger    logrus.FieldLogger
	Publisher Publisher
	Recorder  Recorder
	// SystemActorID is recorded as assignedBy for sweep assignments. When
	// empty the first admin user is used, then "system".
	SystemActorID string
	// GrantTimeout bounds the store calls of one delayed grant.
	GrantTimeout time.Duration
	NewID        func() string
}

// Service holds the quiz assignment use cases.
type Service struct {
	users       UserStore
	quizzes     QuizStore
	collections CollectionStore
	applier     *Applier
	sched       clock.Scheduler
	log         logrus.FieldLogger
	publisher   Publisher
	recorder    Recorder
	validate    *validator.Validate
	systemActor string
	newID       func() string
}

func NewService(users UserStore, quizzes QuizStore, collections CollectionStore, opts Options) *Service {
	if opts.Scheduler == nil {
		opts.Scheduler = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Publisher == nil {
		opts.Publisher = nopPublisher{}
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.GrantTimeout <= 0 {
		opts.GrantTimeout = 10 * time.Second
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Service{
		users:       users,
		quizzes:     quizzes,
		collections: collections,
		applier:     newApplier(users, opts.Scheduler, opts.Logger, opts.Recorder, opts.Publisher, opts.GrantTimeout),
		sched:       opts.Scheduler,
		log:         opts.Logger,
		publisher:   opts.Publisher,
		recorder:    opts.Recorder,
		validate:    validator.New(),
		systemActor: opts.SystemActorID,
		newID:       opts.NewID,
	}
}

// Applier exposes the delayed grant queue.
func (s *Service) Applier() *Applier {
	return s.applier
}

// Submission is returned to the user after answering a quiz.
type Submission struct {
	CompletionMessage string                    `json:"completionMessage"`
	DelaySeconds      int                       `json:"delaySeconds"`
	Collections       []domain.ResultCollection `json:"collections"`
}

type submissionInput struct {
	Answers []domain.Answer `validate:"required,min=1,dive"`
}

// SubmitQuizAnswers records a result, removes the quiz from the pending list
// and grants the earned collections, now or after the quiz's delay.
func (s *Service) SubmitQuizAnswers(ctx context.Context, userID, quizID string, answers []domain.Answer) (Submission, error) {
	if err := s.validate.Struct(submissionInput{Answers: answers}); err != nil {
		return Submission{}, validationError(err)
	}

	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		return Submission{}, err
	}
	quiz, err := s.quizzes.FindQuizByID(ctx, quizID)
	if err != nil {
		return Submission{}, err
	}
	collections, err := s.resolveCollections(ctx, quiz, answers)
	if err != nil {
		return Submission{}, err
	}

	log := s.log.WithFields(logrus.Fields{"user_id": user.ID, "quiz_id": quiz.ID})
	now := s.sched.Now()

	result := BuildResultRecord(quiz, answers, now)
	result.AssignedCollections = resultCollections(collections)
	user.QuizResults = append(user.QuizResults, result)
	user.RemovePending(quiz.ID)

	delay := time.Duration(quiz.AssignmentDelaySeconds) * time.Second
	added := 0
	if delay <= 0 {
		added = ApplyGrants(user, collections, quiz.Name, now, log)
	}
	if err := s.users.SaveUser(ctx, user); err != nil {
		return Submission{}, fmt.Errorf("save quiz result: %w", err)
	}

	if delay > 0 && len(collections) > 0 {
		s.applier.Schedule(user.ID, quiz, collections, delay)
		log.WithField("delay", delay).Info("collection grant scheduled")
	}
	if added > 0 {
		s.recorder.CollectionsGranted(GrantImmediate, added)
		publish(ctx, s.publisher, log, EventCollectionGranted, grantEvent(user.ID, quiz.ID, GrantImmediate, collections))
	}
	publish(ctx, s.publisher, log, EventQuizSubmitted, result)

	message := quiz.CompletionMessage
	if message == "" {
		message = defaultCompletionMessage
	}
	delaySeconds := quiz.AssignmentDelaySeconds
	if delaySeconds < 0 {
		delaySeconds = 0
	}
	return Submission{
		CompletionMessage: message,
		DelaySeconds:      delaySeconds,
		Collections:       result.AssignedCollections,
	}, nil
}

// resolveCollections loads every earned collection before anything is
// written, so a dangling reference fails the whole submission.
func (s *Service) resolveCollections(ctx context.Context, quiz *domain.Quiz, answers []domain.Answer) ([]domain.Collection, error) {
	ids := ResolveCollectionIDs(quiz, answers)
	collections := make([]domain.Collection, 0, len(ids))
	for _, id := range ids {
		c, err := s.collections.FindCollectionByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("resolve collection %s: %w", id, err)
		}
		collections = append(collections, *c)
	}
	return collections, nil
}

func resultCollections(collections []domain.Collection) []domain.ResultCollection {
	out := make([]domain.ResultCollection, 0, len(collections))
	for _, c := range collections {
		out = append(out, domain.ResultCollection{CollectionID: c.ID, Name: c.Name})
	}
	return out
}

// ActiveQuiz is the quiz a user should answer next.
type ActiveQuiz struct {
	Quiz             *domain.Quiz       `json:"quiz"`
	Pending          domain.PendingQuiz `json:"pending"`
	OutsideTimeFrame bool               `json:"outsideTimeFrame"`
}

// GetActiveQuizForUser returns the earliest assigned pending quiz that is due,
// or nil. Pending entries whose quiz was deleted are pruned on the way.
func (s *Service) GetActiveQuizForUser(ctx context.Context, userID string) (*ActiveQuiz, error) {
	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	resolved, err := s.repairPending(ctx, user)
	if err != nil {
		return nil, err
	}

	now := s.sched.Now()
	for _, p := range sortedPending(user) {
		quiz := resolved[p.QuizID]
		if quiz.Name == "" {
			s.log.WithFields(logrus.Fields{"user_id": user.ID, "quiz_id": p.QuizID}).Warn("pending quiz has no name, ignoring")
			continue
		}
		el := Evaluate(user, quiz, now)
		if el.Due {
			return &ActiveQuiz{Quiz: quiz, Pending: p, OutsideTimeFrame: el.OutsideTimeFrame}, nil
		}
	}
	return nil, nil
}

// repairPending resolves every pending quiz and drops entries whose quiz no
// longer exists. Persisting the repair is best effort.
func (s *Service) repairPending(ctx context.Context, user *domain.User) (map[string]*domain.Quiz, error) {
	resolved := make(map[string]*domain.Quiz, len(user.PendingQuizzes))
	var orphans []string
	for _, p := range user.PendingQuizzes {
		if _, ok := resolved[p.QuizID]; ok {
			continue
		}
		quiz, err := s.quizzes.FindQuizByID(ctx, p.QuizID)
		if errors.Is(err, domain.ErrQuizNotFound) {
			orphans = append(orphans, p.QuizID)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolve pending quiz %s: %w", p.QuizID, err)
		}
		resolved[p.QuizID] = quiz
	}
	if len(orphans) == 0 {
		return resolved, nil
	}

	for _, id := range orphans {
		user.RemovePending(id)
	}
	log := s.log.WithFields(logrus.Fields{"user_id": user.ID, "quiz_ids": orphans})
	log.Warn("pruned pending quizzes referencing deleted quizzes")
	if err := s.users.SaveUser(ctx, user); err != nil {
		log.WithError(err).Warn("persist pending quiz repair failed")
	}
	return resolved, nil
}

// AssignQuizToUser makes quizID pending for userID on an admin's behalf,
// bypassing all scheduling rules.
func (s *Service) AssignQuizToUser(ctx context.Context, userID, quizID, actorID string) error {
	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		return err
	}
	quiz, err := s.quizzes.FindQuizByID(ctx, quizID)
	if err != nil {
		return err
	}
	if user.HasPending(quiz.ID) {
		return domain.ErrQuizAlreadyPending
	}

	entry := domain.PendingQuiz{
		QuizID:         quiz.ID,
		AssignedAt:     s.sched.Now(),
		AssignedBy:     actorID,
		AssignmentType: domain.AssignmentAdminManual,
		IsAvailable:    true,
	}
	user.PendingQuizzes = append(user.PendingQuizzes, entry)
	if err := s.users.SaveUser(ctx, user); err != nil {
		return fmt.Errorf("save pending quiz: %w", err)
	}

	log := s.log.WithFields(logrus.Fields{"user_id": user.ID, "quiz_id": quiz.ID, "actor_id": actorID})
	log.Info("quiz assigned manually")
	publish(ctx, s.publisher, log, EventPendingAssigned, pendingEvent(user.ID, entry))
	return nil
}

// UnassignQuizFromUser removes quizID from the pending list, or clears the
// whole list when quizID is empty.
func (s *Service) UnassignQuizFromUser(ctx context.Context, userID, quizID string) error {
	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if quizID == "" {
		user.PendingQuizzes = []domain.PendingQuiz{}
	} else if !user.RemovePending(quizID) {
		return domain.ErrPendingQuizNotFound
	}
	if err := s.users.SaveUser(ctx, user); err != nil {
		return fmt.Errorf("save pending quizzes: %w", err)
	}
	s.log.WithFields(logrus.Fields{"user_id": user.ID, "quiz_id": quizID}).Info("quiz unassigned")
	return nil
}

// FutureAssignment previews a time-interval quiz that is not due yet.
type FutureAssignment struct {
	QuizID            string                   `json:"quizId"`
	QuizName          string                   `json:"quizName"`
	ScheduledFor      time.Time                `json:"scheduledFor"`
	TriggerStartFrom  domain.StartFrom         `json:"triggerStartFrom"`
	TimeFrameHandling domain.TimeFrameHandling `json:"timeFrameHandling"`
}

// GetFutureQuizAssignments lists, without mutating anything, the active
// time-interval quizzes the sweep will assign to userID later.
func (s *Service) GetFutureQuizAssignments(ctx context.Context, userID string) ([]FutureAssignment, error) {
	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	quizzes, err := s.activeIntervalQuizzes(ctx)
	if err != nil {
		return nil, err
	}

	now := s.sched.Now()
	future := []FutureAssignment{}
	for i := range quizzes {
		quiz := &quizzes[i]
		if !sameTenant(user, quiz) || user.Handled(quiz.ID) {
			continue
		}
		trigger := TriggerDate(user, quiz)
		if !now.Before(trigger) {
			continue
		}
		future = append(future, FutureAssignment{
			QuizID:            quiz.ID,
			QuizName:          quiz.Name,
			ScheduledFor:      trigger,
			TriggerStartFrom:  quiz.TriggerStartFrom,
			TimeFrameHandling: quiz.Handling(),
		})
	}
	sort.SliceStable(future, func(i, j int) bool {
		return future[i].ScheduledFor.Before(future[j].ScheduledFor)
	})
	return future, nil
}

// RemoveFutureQuizAssignment stops the sweep from ever assigning quizID to
// userID. Entries that are already pending are left untouched.
func (s *Service) RemoveFutureQuizAssignment(ctx context.Context, userID, quizID, actorID, reason string) error {
	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		return err
	}
	quiz, err := s.quizzes.FindQuizByID(ctx, quizID)
	if err != nil {
		return err
	}
	if user.HasSkipped(quiz.ID) {
		return domain.ErrQuizAlreadySkipped
	}
	if reason == "" {
		reason = defaultSkipReason
	}
	skipped := domain.SkippedQuiz{
		QuizID:    quiz.ID,
		SkippedAt: s.sched.Now(),
		SkippedBy: actorID,
		Reason:    reason,
	}
	user.SkippedQuizzes = append(user.SkippedQuizzes, skipped)
	if err := s.users.SaveUser(ctx, user); err != nil {
		return fmt.Errorf("save skipped quiz: %w", err)
	}

	log := s.log.WithFields(logrus.Fields{"user_id": user.ID, "quiz_id": quiz.ID, "actor_id": actorID})
	log.Info("future quiz assignment removed")
	publish(ctx, s.publisher, log, EventQuizSkipped, skippedPayload{UserID: user.ID, SkippedQuiz: skipped})
	return nil
}

func (s *Service) activeIntervalQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	active := true
	quizzes, err := s.quizzes.FindQuizzes(ctx, domain.QuizFilter{IsActive: &active, TriggerType: domain.TriggerTimeInterval})
	if err != nil {
		return nil, fmt.Errorf("list time-interval quizzes: %w", err)
	}
	return quizzes, nil
}

// sameTenant keeps tenant-scoped quizzes away from users of other tenants.
// Quizzes without a tenant apply everywhere.
func sameTenant(user *domain.User, quiz *domain.Quiz) bool {
	return quiz.TenantID == "" || quiz.TenantID == user.TenantID
}

type pendingPayload struct {
	UserID string `json:"userId"`
	domain.PendingQuiz
}

func pendingEvent(userID string, p domain.PendingQuiz) pendingPayload {
	return pendingPayload{UserID: userID, PendingQuiz: p}
}

type skippedPayload struct {
	UserID string `json:"userId"`
	domain.SkippedQuiz
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return domain.Invalid(fe.Namespace(), "failed "+fe.Tag()+" check")
	}
	return domain.Invalid("", err.Error())
}
