package app

import (
	"context"
	"fmt"
	"strings"

	"fitquiz-assignment-service/internal/domain"
	"github.com/sirupsen/logrus"
)

// TempIDPrefix marks ids minted by the admin client for unsaved questions,
// options and rules. They are replaced on save.
const TempIDPrefix = "temp_"

// QuizDraft is the full editable content of a quiz. Updates replace the
// stored quiz with the draft.
type QuizDraft struct {
	Name                   string                   `json:"name" validate:"required"`
	Description            string                   `json:"description"`
	CompletionMessage      string                   `json:"completionMessage"`
	Questions              []domain.Question        `json:"questions" validate:"dive"`
	AssignmentRules        []domain.AssignmentRule  `json:"assignmentRules" validate:"dive"`
	TriggerType            domain.TriggerType       `json:"triggerType" validate:"omitempty,oneof=ADMIN_MANUAL TIME_INTERVAL"`
	TriggerDelayAmount     *int                     `json:"triggerDelayAmount" validate:"omitempty,min=0"`
	TriggerDelayUnit       domain.DelayUnit         `json:"triggerDelayUnit" validate:"omitempty,oneof=seconds minutes hours days weeks"`
	TriggerDelayDays       int                      `json:"triggerDelayDays" validate:"min=0"`
	TriggerStartFrom       domain.StartFrom         `json:"triggerStartFrom" validate:"omitempty,oneof=REGISTRATION FIRST_QUIZ LAST_QUIZ"`
	TimeFrameHandling      domain.TimeFrameHandling `json:"timeFrameHandling" validate:"omitempty,oneof=RESPECT_TIMEFRAME ALL_USERS OUTSIDE_TIMEFRAME_ONLY"`
	RespectUserTimeFrame   bool                     `json:"respectUserTimeFrame"`
	AssignmentDelaySeconds int                      `json:"assignmentDelaySeconds" validate:"min=0"`
	IsActive               bool                     `json:"isActive"`
	TenantID               string                   `json:"tenantId"`
}

// CreateQuiz stores a new quiz built from draft.
func (s *Service) CreateQuiz(ctx context.Context, draft QuizDraft) (*domain.Quiz, error) {
	quiz, err := s.buildQuiz(draft)
	if err != nil {
		return nil, err
	}
	quiz.ID = s.newID()
	quiz.CreatedAt = s.sched.Now()
	quiz.UpdatedAt = quiz.CreatedAt
	if err := s.quizzes.SaveQuiz(ctx, quiz); err != nil {
		return nil, fmt.Errorf("save quiz: %w", err)
	}
	s.log.WithFields(logrus.Fields{"quiz_id": quiz.ID, "name": quiz.Name}).Info("quiz created")
	return quiz, nil
}

// UpdateQuiz replaces the content of quizID with draft.
func (s *Service) UpdateQuiz(ctx context.Context, quizID string, draft QuizDraft) (*domain.Quiz, error) {
	existing, err := s.quizzes.FindQuizByID(ctx, quizID)
	if err != nil {
		return nil, err
	}
	quiz, err := s.buildQuiz(draft)
	if err != nil {
		return nil, err
	}
	quiz.ID = existing.ID
	quiz.CreatedAt = existing.CreatedAt
	quiz.UpdatedAt = s.sched.Now()
	if err := s.quizzes.SaveQuiz(ctx, quiz); err != nil {
		return nil, fmt.Errorf("save quiz: %w", err)
	}
	s.log.WithField("quiz_id", quiz.ID).Info("quiz updated")
	return quiz, nil
}

// DeleteQuiz removes quizID for good. Users still holding it as pending are
// repaired the next time their active quiz is looked up.
func (s *Service) DeleteQuiz(ctx context.Context, quizID string) error {
	if _, err := s.quizzes.FindQuizByID(ctx, quizID); err != nil {
		return err
	}
	if err := s.quizzes.DeleteQuiz(ctx, quizID); err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	s.log.WithField("quiz_id", quizID).Info("quiz deleted")
	return nil
}

func (s *Service) GetQuiz(ctx context.Context, quizID string) (*domain.Quiz, error) {
	return s.quizzes.FindQuizByID(ctx, quizID)
}

func (s *Service) ListQuizzes(ctx context.Context, filter domain.QuizFilter) ([]domain.Quiz, error) {
	return s.quizzes.FindQuizzes(ctx, filter)
}

func (s *Service) buildQuiz(draft QuizDraft) (*domain.Quiz, error) {
	draft.Name = strings.TrimSpace(draft.Name)
	if err := s.validate.Struct(draft); err != nil {
		return nil, validationError(err)
	}
	questions, rules := AssignIDs(draft.Questions, draft.AssignmentRules, s.newID)
	return &domain.Quiz{
		Name:                   draft.Name,
		Description:            draft.Description,
		CompletionMessage:      draft.CompletionMessage,
		Questions:              questions,
		AssignmentRules:        rules,
		TriggerType:            draft.TriggerType,
		TriggerDelayAmount:     draft.TriggerDelayAmount,
		TriggerDelayUnit:       draft.TriggerDelayUnit,
		TriggerDelayDays:       draft.TriggerDelayDays,
		TriggerStartFrom:       draft.TriggerStartFrom,
		TimeFrameHandling:      draft.TimeFrameHandling,
		RespectUserTimeFrame:   draft.RespectUserTimeFrame,
		AssignmentDelaySeconds: draft.AssignmentDelaySeconds,
		IsActive:               draft.IsActive,
		TenantID:               draft.TenantID,
	}, nil
}

func needsID(id string) bool {
	return id == "" || strings.HasPrefix(id, TempIDPrefix)
}

// processedQuestion remembers the ids a question and its options arrived with.
type processedQuestion struct {
	originalID        string
	originalOptionIDs []string
}

// AssignIDs replaces empty and temporary ids with fresh ones and rewrites rule
// conditions to match. Pass one builds the old->new map; pass two rewrites
// conditions, falling back to scanning the processed questions when the map
// has no usable answer (for example the same temp id reused by two
// questions).
func AssignIDs(questions []domain.Question, rules []domain.AssignmentRule, newID func() string) ([]domain.Question, []domain.AssignmentRule) {
	idMap := make(map[string]string)
	outQuestions := make([]domain.Question, len(questions))
	processed := make([]processedQuestion, len(questions))

	for i, q := range questions {
		p := processedQuestion{originalID: q.ID}
		if needsID(q.ID) {
			q.ID = newID()
			if p.originalID != "" {
				idMap[p.originalID] = q.ID
			}
		}
		options := make([]domain.Option, len(q.Options))
		for j, opt := range q.Options {
			p.originalOptionIDs = append(p.originalOptionIDs, opt.ID)
			if needsID(opt.ID) {
				original := opt.ID
				opt.ID = newID()
				if original != "" {
					idMap[original] = opt.ID
				}
			}
			options[j] = opt
		}
		q.Options = options
		outQuestions[i] = q
		processed[i] = p
	}

	outRules := make([]domain.AssignmentRule, len(rules))
	for i, rule := range rules {
		if needsID(rule.ID) {
			rule.ID = newID()
		}
		conditions := make([]domain.RuleCondition, len(rule.Conditions))
		for j, cond := range rule.Conditions {
			conditions[j] = remapCondition(cond, idMap, outQuestions, processed)
		}
		rule.Conditions = conditions
		outRules[i] = rule
	}
	return outQuestions, outRules
}

func remapCondition(cond domain.RuleCondition, idMap map[string]string, questions []domain.Question, processed []processedQuestion) domain.RuleCondition {
	qi := findQuestion(cond, questions, processed)
	if qi < 0 {
		if mapped, ok := idMap[cond.QuestionID]; ok {
			cond.QuestionID = mapped
		}
		if mapped, ok := idMap[cond.OptionID]; ok {
			cond.OptionID = mapped
		}
		return cond
	}

	q := questions[qi]
	cond.QuestionID = q.ID
	if mapped, ok := idMap[cond.OptionID]; ok && q.Option(mapped) != nil {
		cond.OptionID = mapped
		return cond
	}
	if q.Option(cond.OptionID) != nil {
		return cond
	}
	for j, original := range processed[qi].originalOptionIDs {
		if original == cond.OptionID {
			cond.OptionID = q.Options[j].ID
			break
		}
	}
	return cond
}

// findQuestion returns the index of the question a condition refers to, or -1.
// When the question id is unknown or shared by several questions, the
// question owning the referenced option wins.
func findQuestion(cond domain.RuleCondition, questions []domain.Question, processed []processedQuestion) int {
	var matches []int
	for i := range questions {
		if questions[i].ID == cond.QuestionID || (cond.QuestionID != "" && processed[i].originalID == cond.QuestionID) {
			matches = append(matches, i)
		}
	}
	if len(matches) == 1 {
		return matches[0]
	}
	candidates := matches
	if len(candidates) == 0 {
		candidates = make([]int, len(questions))
		for i := range questions {
			candidates[i] = i
		}
	}
	for _, i := range candidates {
		for j, original := range processed[i].originalOptionIDs {
			if original == cond.OptionID || questions[i].Options[j].ID == cond.OptionID {
				return i
			}
		}
	}
	if len(matches) > 0 {
		return matches[0]
	}
	return -1
}
