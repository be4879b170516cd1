package domain

import "time"

// AssignmentType records how a quiz became pending for a user.
type AssignmentType string

const (
	AssignmentAdminManual  AssignmentType = "ADMIN_MANUAL"
	AssignmentTimeInterval AssignmentType = "TIME_INTERVAL"
)

// TriggerType controls how a quiz becomes pending. Empty means ADMIN_MANUAL.
type TriggerType string

const (
	TriggerAdminManual  TriggerType = "ADMIN_MANUAL"
	TriggerTimeInterval TriggerType = "TIME_INTERVAL"
)

// DelayUnit is the unit of Quiz.TriggerDelayAmount.
type DelayUnit string

const (
	UnitSeconds DelayUnit = "seconds"
	UnitMinutes DelayUnit = "minutes"
	UnitHours   DelayUnit = "hours"
	UnitDays    DelayUnit = "days"
	UnitWeeks   DelayUnit = "weeks"
)

// StartFrom selects the reference date a trigger delay is measured from.
type StartFrom string

const (
	StartFromRegistration StartFrom = "REGISTRATION"
	StartFromFirstQuiz    StartFrom = "FIRST_QUIZ"
	StartFromLastQuiz     StartFrom = "LAST_QUIZ"
)

// TimeFrameHandling decides which users the sweep may assign a quiz to.
type TimeFrameHandling string

const (
	HandlingRespectTimeFrame     TimeFrameHandling = "RESPECT_TIMEFRAME"
	HandlingAllUsers             TimeFrameHandling = "ALL_USERS"
	HandlingOutsideTimeFrameOnly TimeFrameHandling = "OUTSIDE_TIMEFRAME_ONLY"
)

// QuestionType is the kind of a quiz question.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple-choice"
	QuestionTrueFalse      QuestionType = "true-false"
	QuestionText           QuestionType = "text"
)

// Grants reports whether answers to this question type may assign collections.
func (t QuestionType) Grants() bool {
	return t == QuestionMultipleChoice || t == QuestionTrueFalse
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the subset of the user document owned by the assignment engine.
type User struct {
	ID                  string               `json:"id" bson:"_id"`
	Name                string               `json:"name" bson:"name"`
	Email               string               `json:"email" bson:"email"`
	Role                string               `json:"role" bson:"role"`
	TenantID            string               `json:"tenantId,omitempty" bson:"tenantId,omitempty"`
	CreatedAt           time.Time            `json:"createdAt" bson:"createdAt"`
	TimeFrame           *TimeFrame           `json:"timeFrame,omitempty" bson:"timeFrame,omitempty"`
	PendingQuizzes      []PendingQuiz        `json:"pendingQuizzes" bson:"pendingQuizzes"`
	QuizResults         []QuizResult         `json:"quizResults" bson:"quizResults"`
	SkippedQuizzes      []SkippedQuiz        `json:"skippedQuizzes" bson:"skippedQuizzes"`
	AssignedCollections []AssignedCollection `json:"assignedCollections" bson:"assignedCollections"`
}

// PendingQuiz is a quiz assigned to a user and not yet completed.
type PendingQuiz struct {
	QuizID         string         `json:"quizId" bson:"quizId"`
	AssignedAt     time.Time      `json:"assignedAt" bson:"assignedAt"`
	AssignedBy     string         `json:"assignedBy" bson:"assignedBy"`
	AssignmentType AssignmentType `json:"assignmentType" bson:"assignmentType"`
	ScheduledFor   *time.Time     `json:"scheduledFor,omitempty" bson:"scheduledFor,omitempty"`
	IsAvailable    bool           `json:"isAvailable" bson:"isAvailable"`
}

// QuizResult is an append-only record of one submission.
type QuizResult struct {
	QuizID              string             `json:"quizId" bson:"quizId"`
	QuizName            string             `json:"quizName" bson:"quizName"`
	Answers             []RecordedAnswer   `json:"answers" bson:"answers"`
	SubmittedAt         time.Time          `json:"submittedAt" bson:"submittedAt"`
	AssignedCollections []ResultCollection `json:"assignedCollections" bson:"assignedCollections"`
}

// RecordedAnswer is the human readable form of one answer.
type RecordedAnswer struct {
	Question     string       `json:"question" bson:"question"`
	Answer       string       `json:"answer" bson:"answer"`
	QuestionType QuestionType `json:"questionType" bson:"questionType"`
}

// ResultCollection names a collection granted by a submission.
type ResultCollection struct {
	CollectionID string `json:"collectionId" bson:"collectionId"`
	Name         string `json:"name" bson:"name"`
}

// SkippedQuiz suppresses automatic (re)assignment of a quiz.
type SkippedQuiz struct {
	QuizID    string    `json:"quizId" bson:"quizId"`
	SkippedAt time.Time `json:"skippedAt" bson:"skippedAt"`
	SkippedBy string    `json:"skippedBy" bson:"skippedBy"`
	Reason    string    `json:"reason" bson:"reason"`
}

// AssignedCollection is a denormalized snapshot of a granted collection.
type AssignedCollection struct {
	CollectionID   string     `json:"collectionId" bson:"collectionId"`
	Name           string     `json:"name" bson:"name"`
	Description    string     `json:"description" bson:"description"`
	Image          string     `json:"image" bson:"image"`
	DisplayOrder   int        `json:"displayOrder" bson:"displayOrder"`
	IsPublic       bool       `json:"isPublic" bson:"isPublic"`
	AssignedAt     time.Time  `json:"assignedAt" bson:"assignedAt"`
	AssignedBy     string     `json:"assignedBy" bson:"assignedBy"`
	LastAccessedAt *time.Time `json:"lastAccessedAt,omitempty" bson:"lastAccessedAt,omitempty"`
	AccessCount    int        `json:"accessCount" bson:"accessCount"`
	Notes          string     `json:"notes" bson:"notes"`
	Status         string     `json:"status" bson:"status"`
	Tags           []string   `json:"tags" bson:"tags"`
}

// TimeFrame is a user-level eligibility window.
type TimeFrame struct {
	StartDate         *time.Time `json:"startDate,omitempty" bson:"startDate,omitempty"`
	EndDate           *time.Time `json:"endDate,omitempty" bson:"endDate,omitempty"`
	Duration          int        `json:"duration" bson:"duration"`
	DurationType      string     `json:"durationType" bson:"durationType"`
	IsWithinTimeFrame bool       `json:"isWithinTimeFrame" bson:"isWithinTimeFrame"`
	TimeFrameSetAt    *time.Time `json:"timeFrameSetAt,omitempty" bson:"timeFrameSetAt,omitempty"`
	TimeFrameSetBy    string     `json:"timeFrameSetBy,omitempty" bson:"timeFrameSetBy,omitempty"`
}

// Contains reports whether now falls inside the window. With both bounds set
// the dates decide; otherwise the stored flag does.
func (tf *TimeFrame) Contains(now time.Time) bool {
	if tf == nil {
		return false
	}
	if tf.StartDate != nil && tf.EndDate != nil {
		return !now.Before(*tf.StartDate) && !now.After(*tf.EndDate)
	}
	return tf.IsWithinTimeFrame
}

// HasPending reports whether quizID is already in PendingQuizzes.
func (u *User) HasPending(quizID string) bool {
	for _, p := range u.PendingQuizzes {
		if p.QuizID == quizID {
			return true
		}
	}
	return false
}

// HasCompleted reports whether a result for quizID was recorded.
func (u *User) HasCompleted(quizID string) bool {
	for _, r := range u.QuizResults {
		if r.QuizID == quizID {
			return true
		}
	}
	return false
}

// HasSkipped reports whether an admin suppressed quizID for this user.
func (u *User) HasSkipped(quizID string) bool {
	for _, s := range u.SkippedQuizzes {
		if s.QuizID == quizID {
			return true
		}
	}
	return false
}

// Handled reports whether quizID is pending, completed or skipped. Any of
// them keeps the sweep away from the quiz.
func (u *User) Handled(quizID string) bool {
	return u.HasPending(quizID) || u.HasCompleted(quizID) || u.HasSkipped(quizID)
}

// HasCollection reports whether collectionID is already assigned.
func (u *User) HasCollection(collectionID string) bool {
	for _, c := range u.AssignedCollections {
		if c.CollectionID == collectionID {
			return true
		}
	}
	return false
}

// RemovePending drops the entry for quizID and reports whether one existed.
func (u *User) RemovePending(quizID string) bool {
	kept := u.PendingQuizzes[:0]
	removed := false
	for _, p := range u.PendingQuizzes {
		if p.QuizID == quizID {
			removed = true
			continue
		}
		kept = append(kept, p)
	}
	u.PendingQuizzes = kept
	return removed
}

// Option is a possible answer for a question.
type Option struct {
	ID               string `json:"id" bson:"id"`
	Text             string `json:"text" bson:"text"`
	AssignCollection string `json:"assignCollection,omitempty" bson:"assignCollection,omitempty"`
}

// Question belongs to a quiz. Only multiple-choice and true-false carry options.
type Question struct {
	ID           string       `json:"id" bson:"id"`
	Type         QuestionType `json:"type" bson:"type" validate:"oneof=multiple-choice true-false text"`
	QuestionText string       `json:"questionText" bson:"questionText"`
	Options      []Option     `json:"options" bson:"options" validate:"dive"`
}

// RuleCondition requires the answer to QuestionID to equal OptionID.
type RuleCondition struct {
	QuestionID string `json:"questionId" bson:"questionId" validate:"required"`
	OptionID   string `json:"optionId" bson:"optionId" validate:"required"`
}

// AssignmentRule grants AssignCollection when every condition holds.
type AssignmentRule struct {
	ID               string          `json:"id" bson:"id"`
	Conditions       []RuleCondition `json:"conditions" bson:"conditions" validate:"dive"`
	AssignCollection string          `json:"assignCollection" bson:"assignCollection" validate:"required"`
}

// Quiz is an admin-authored questionnaire with scheduling configuration.
type Quiz struct {
	ID                     string            `json:"id" bson:"_id"`
	Name                   string            `json:"name" bson:"name"`
	Description            string            `json:"description" bson:"description"`
	CompletionMessage      string            `json:"completionMessage,omitempty" bson:"completionMessage,omitempty"`
	Questions              []Question        `json:"questions" bson:"questions"`
	AssignmentRules        []AssignmentRule  `json:"assignmentRules" bson:"assignmentRules"`
	TriggerType            TriggerType       `json:"triggerType,omitempty" bson:"triggerType,omitempty"`
	TriggerDelayAmount     *int              `json:"triggerDelayAmount,omitempty" bson:"triggerDelayAmount,omitempty"`
	TriggerDelayUnit       DelayUnit         `json:"triggerDelayUnit,omitempty" bson:"triggerDelayUnit,omitempty"`
	TriggerDelayDays       int               `json:"triggerDelayDays,omitempty" bson:"triggerDelayDays,omitempty"`
	TriggerStartFrom       StartFrom         `json:"triggerStartFrom,omitempty" bson:"triggerStartFrom,omitempty"`
	TimeFrameHandling      TimeFrameHandling `json:"timeFrameHandling,omitempty" bson:"timeFrameHandling,omitempty"`
	RespectUserTimeFrame   bool              `json:"respectUserTimeFrame,omitempty" bson:"respectUserTimeFrame,omitempty"`
	AssignmentDelaySeconds int               `json:"assignmentDelaySeconds" bson:"assignmentDelaySeconds"`
	IsActive               bool              `json:"isActive" bson:"isActive"`
	TenantID               string            `json:"tenantId,omitempty" bson:"tenantId,omitempty"`
	CreatedAt              time.Time         `json:"createdAt" bson:"createdAt"`
	UpdatedAt              time.Time         `json:"updatedAt" bson:"updatedAt"`
}

// Handling returns the effective timeframe policy, honoring the legacy flag.
func (q *Quiz) Handling() TimeFrameHandling {
	switch q.TimeFrameHandling {
	case HandlingRespectTimeFrame, HandlingAllUsers, HandlingOutsideTimeFrameOnly:
		return q.TimeFrameHandling
	}
	if q.RespectUserTimeFrame {
		return HandlingRespectTimeFrame
	}
	return HandlingAllUsers
}

// IsTimeInterval reports whether the sweep is responsible for this quiz.
func (q *Quiz) IsTimeInterval() bool {
	return q.TriggerType == TriggerTimeInterval
}

// Question returns the question with the given id, or nil.
func (q *Quiz) Question(id string) *Question {
	for i := range q.Questions {
		if q.Questions[i].ID == id {
			return &q.Questions[i]
		}
	}
	return nil
}

// Option returns the option with the given id, or nil.
func (q *Question) Option(id string) *Option {
	for i := range q.Options {
		if q.Options[i].ID == id {
			return &q.Options[i]
		}
	}
	return nil
}

// Collection is a catalog grouping referenced by quizzes. Never mutated here.
type Collection struct {
	ID           string `json:"id" bson:"_id"`
	Name         string `json:"name" bson:"name"`
	Description  string `json:"description" bson:"description"`
	Image        string `json:"image" bson:"image"`
	DisplayOrder int    `json:"displayOrder" bson:"displayOrder"`
	IsPublic     bool   `json:"isPublic" bson:"isPublic"`
}

// Answer is one submitted answer. OptionID is used by choice questions,
// TextAnswer by text questions.
type Answer struct {
	QuestionID string `json:"questionId" validate:"required"`
	OptionID   string `json:"optionId,omitempty"`
	TextAnswer string `json:"textAnswer,omitempty"`
}

// Value is the raw answer compared by assignment rules.
func (a Answer) Value() string {
	if a.OptionID != "" {
		return a.OptionID
	}
	return a.TextAnswer
}

// QuizFilter narrows FindQuizzes. Nil fields are not filtered on.
type QuizFilter struct {
	IsActive    *bool
	TriggerType TriggerType
	TenantID    string
}

// UserFilter narrows FindUsers. Empty fields are not filtered on.
type UserFilter struct {
	Role     string
	TenantID string
}
