package service

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/domain/entity"
	apperrors "github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/pkg/errors"
)

// ValidationError перечисляет все нарушения схемы. errors.Is(err, apperrors.ErrValidation) == true.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", apperrors.ErrValidation.Error(), strings.Join(e.Issues, "; "))
}

func (e *ValidationError) Unwrap() error {
	return apperrors.ErrValidation
}

var (
	questionKeys    = []string{"question", "options", "answer", "difficulty", "explanation"}
	keyEntitiesKeys = []string{"people", "organizations", "locations"}
)

// validator накапливает нарушения с путём поля
type validator struct {
	issues []string
}

func (v *validator) addf(format string, args ...interface{}) {
	v.issues = append(v.issues, fmt.Sprintf(format, args...))
}

// ValidateCandidate строго преобразует Candidate в QuizOutput.
// Типы не приводятся: любое несоответствие схеме - ошибка ValidationError.
func ValidateCandidate(candidate Candidate) (*entity.QuizOutput, error) {
	v := &validator{}
	out := &entity.QuizOutput{}
	obj := map[string]interface{}(candidate)

	if obj == nil {
		v.addf("quiz object is missing")
		return nil, &ValidationError{Issues: v.issues}
	}

	v.checkFields("", obj, RequiredKeys, RequiredKeys)

	if raw, ok := obj["summary"]; ok {
		out.Summary = v.str("summary", raw)
	}
	if raw, ok := obj["key_entities"]; ok {
		out.KeyEntities = v.keyEntities(raw)
	}
	if raw, ok := obj["sections"]; ok {
		out.Sections = v.strList("sections", raw)
	}
	if raw, ok := obj["quiz"]; ok {
		out.Quiz = v.questions(raw)
	}
	if raw, ok := obj["related_topics"]; ok {
		out.RelatedTopics = v.strList("related_topics", raw)
	}

	if len(v.issues) > 0 {
		return nil, &ValidationError{Issues: v.issues}
	}
	return out, nil
}

// DecodePayload восстанавливает QuizOutput из сохранённого JSON с повторной валидацией
func DecodePayload(payload string) (*entity.QuizOutput, error) {
	var candidate Candidate
	if err := json.Unmarshal([]byte(payload), &candidate); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrCorruptRecord, err)
	}
	out, err := ValidateCandidate(candidate)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrCorruptRecord, err)
	}
	return out, nil
}

// EncodePayload сериализует QuizOutput для колонки full_quiz_data
func EncodePayload(out *entity.QuizOutput) (string, error) {
	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("%w: encode quiz: %w", apperrors.ErrPersistence, err)
	}
	return string(data), nil
}

// ConsistencyWarnings находит вопросы, где ответа нет среди вариантов
// или варианты повторяются. Такие вопросы не отклоняются.
func ConsistencyWarnings(out *entity.QuizOutput) []string {
	var warnings []string
	for i := range out.Quiz {
		q := &out.Quiz[i]
		if !q.HasAnswerInOptions() {
			warnings = append(warnings, fmt.Sprintf("quiz[%d]: answer %q is not among the options", i, q.Answer))
		}
		if q.HasDuplicateOptions() {
			warnings = append(warnings, fmt.Sprintf("quiz[%d]: options contain duplicates", i))
		}
	}
	return warnings
}

func (v *validator) checkFields(path string, obj map[string]interface{}, allowed, required []string) {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, k := range allowed {
		allowedSet[k] = struct{}{}
	}

	for _, k := range required {
		if _, ok := obj[k]; !ok {
			v.addf("%s: field is required", joinPath(path, k))
		}
	}

	var unknown []string
	for k := range obj {
		if _, ok := allowedSet[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		v.addf("%s: unknown field", joinPath(path, k))
	}
}

func (v *validator) str(path string, raw interface{}) string {
	s, ok := raw.(string)
	if !ok {
		v.addf("%s: expected string, got %s", path, typeName(raw))
	}
	return s
}

func (v *validator) strList(path string, raw interface{}) []string {
	items, ok := raw.([]interface{})
	if !ok {
		v.addf("%s: expected list of strings, got %s", path, typeName(raw))
		return []string{}
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			v.addf("%s[%d]: expected string, got %s", path, i, typeName(item))
			continue
		}
		out = append(out, s)
	}
	return out
}

// keyEntities: отсутствующий список считается пустым, лишние ключи запрещены
func (v *validator) keyEntities(raw interface{}) entity.KeyEntities {
	ke := entity.KeyEntities{People: []string{}, Organizations: []string{}, Locations: []string{}}

	obj, ok := raw.(map[string]interface{})
	if !ok {
		v.addf("key_entities: expected object, got %s", typeName(raw))
		return ke
	}
	v.checkFields("key_entities", obj, keyEntitiesKeys, nil)

	if list, ok := obj["people"]; ok {
		ke.People = v.strList("key_entities.people", list)
	}
	if list, ok := obj["organizations"]; ok {
		ke.Organizations = v.strList("key_entities.organizations", list)
	}
	if list, ok := obj["locations"]; ok {
		ke.Locations = v.strList("key_entities.locations", list)
	}
	return ke
}

func (v *validator) questions(raw interface{}) []entity.QuizQuestion {
	items, ok := raw.([]interface{})
	if !ok {
		v.addf("quiz: expected list of questions, got %s", typeName(raw))
		return []entity.QuizQuestion{}
	}
	if n := len(items); n < entity.MinQuestions || n > entity.MaxQuestions {
		v.addf("quiz: expected %d to %d questions, got %d", entity.MinQuestions, entity.MaxQuestions, n)
	}

	out := make([]entity.QuizQuestion, 0, len(items))
	for i, item := range items {
		path := fmt.Sprintf("quiz[%d]", i)
		obj, ok := item.(map[string]interface{})
		if !ok {
			v.addf("%s: expected object, got %s", path, typeName(item))
			continue
		}
		v.checkFields(path, obj, questionKeys, questionKeys)

		var q entity.QuizQuestion
		if raw, ok := obj["question"]; ok {
			q.Question = v.str(path+".question", raw)
		}
		if raw, ok := obj["options"]; ok {
			q.Options = v.strList(path+".options", raw)
			if list, isList := raw.([]interface{}); isList && len(list) != entity.OptionsPerQuestion {
				v.addf("%s.options: expected exactly %d options, got %d", path, entity.OptionsPerQuestion, len(list))
			}
		}
		if raw, ok := obj["answer"]; ok {
			q.Answer = v.str(path+".answer", raw)
		}
		if raw, ok := obj["difficulty"]; ok {
			d := entity.Difficulty(v.str(path+".difficulty", raw))
			if _, isStr := raw.(string); isStr && !d.IsValid() {
				v.addf("%s.difficulty: %q is not one of easy, medium, hard", path, string(d))
			}
			q.Difficulty = d
		}
		if raw, ok := obj["explanation"]; ok {
			q.Explanation = v.str(path+".explanation", raw)
		}
		out = append(out, q)
	}
	return out
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func typeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64, json.Number:
		return "number"
	case bool:
		return "boolean"
	case []interface{}:
		return "list"
	case map[string]interface{}:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
