package app

import (
	"time"

	"fitquiz-assignment-service/internal/domain"
)

// ResolveCollectionIDs returns the collections earned by answers, in the
// order they were first earned. Direct option grants come first, then rules.
func ResolveCollectionIDs(quiz *domain.Quiz, answers []domain.Answer) []string {
	answerMap := make(map[string]string, len(answers))
	for _, a := range answers {
		answerMap[a.QuestionID] = a.Value()
	}

	var ids []string
	seen := make(map[string]struct{})
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	for _, q := range quiz.Questions {
		if !q.Type.Grants() {
			continue
		}
		selected, ok := answerMap[q.ID]
		if !ok {
			continue
		}
		if opt := q.Option(selected); opt != nil {
			add(opt.AssignCollection)
		}
	}

	for _, rule := range quiz.AssignmentRules {
		if ruleMatches(rule, answerMap) {
			add(rule.AssignCollection)
		}
	}
	return ids
}

// ruleMatches requires every condition to hold. A rule without conditions
// never fires.
func ruleMatches(rule domain.AssignmentRule, answerMap map[string]string) bool {
	if len(rule.Conditions) == 0 {
		return false
	}
	for _, cond := range rule.Conditions {
		if answer, ok := answerMap[cond.QuestionID]; !ok || answer != cond.OptionID {
			return false
		}
	}
	return true
}

// BuildResultRecord renders answers into the immutable result entry.
func BuildResultRecord(quiz *domain.Quiz, answers []domain.Answer, submittedAt time.Time) domain.QuizResult {
	recorded := make([]domain.RecordedAnswer, 0, len(answers))
	for _, a := range answers {
		entry := domain.RecordedAnswer{Question: "N/A", Answer: a.Value()}
		if q := quiz.Question(a.QuestionID); q != nil {
			entry.Question = q.QuestionText
			entry.QuestionType = q.Type
			if q.Type == domain.QuestionText {
				entry.Answer = a.TextAnswer
			} else if opt := q.Option(a.OptionID); opt != nil {
				entry.Answer = opt.Text
			}
		}
		recorded = append(recorded, entry)
	}
	return domain.QuizResult{
		QuizID:      quiz.ID,
		QuizName:    quiz.Name,
		Answers:     recorded,
		SubmittedAt: submittedAt,
	}
}
