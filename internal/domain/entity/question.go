package entity

// Difficulty - уровень сложности вопроса
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Границы размера викторины и число вариантов ответа
const (
	MinQuestions       = 5
	MaxQuestions       = 10
	OptionsPerQuestion = 4
)

// IsValid проверяет, что значение входит в перечисление
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// KeyEntities - сущности, упомянутые в статье
type KeyEntities struct {
	People        []string `json:"people"`
	Organizations []string `json:"organizations"`
	Locations     []string `json:"locations"`
}

// QuizQuestion - один вопрос с четырьмя вариантами ответа
type QuizQuestion struct {
	Question    string     `json:"question"`
	Options     []string   `json:"options"`
	Answer      string     `json:"answer"`
	Difficulty  Difficulty `json:"difficulty"`
	Explanation string     `json:"explanation"`
}

// IsCorrect сравнивает выбранный вариант с правильным ответом
func (q *QuizQuestion) IsCorrect(selected string) bool {
	return selected == q.Answer
}

// HasAnswerInOptions проверяет, что правильный ответ есть среди вариантов
func (q *QuizQuestion) HasAnswerInOptions() bool {
	for _, opt := range q.Options {
		if opt == q.Answer {
			return true
		}
	}
	return false
}

// HasDuplicateOptions проверяет варианты на повторы
func (q *QuizQuestion) HasDuplicateOptions() bool {
	seen := make(map[string]struct{}, len(q.Options))
	for _, opt := range q.Options {
		if _, ok := seen[opt]; ok {
			return true
		}
		seen[opt] = struct{}{}
	}
	return false
}

// QuizOutput - результат генерации после строгой валидации.
// Хранится в Quiz.FullQuizData как JSON и восстанавливается при чтении.
type QuizOutput struct {
	Summary       string         `json:"summary"`
	KeyEntities   KeyEntities    `json:"key_entities"`
	Sections      []string       `json:"sections"`
	Quiz          []QuizQuestion `json:"quiz"`
	RelatedTopics []string       `json:"related_topics"`
}

// Score считает правильные ответы. Ключи answers - индексы вопросов в виде строк.
func (o *QuizOutput) Score(answers AnswerMap) (correct, total int) {
	total = len(o.Quiz)
	for i := range o.Quiz {
		if selected, ok := answers.Get(i); ok && o.Quiz[i].IsCorrect(selected) {
			correct++
		}
	}
	return correct, total
}
