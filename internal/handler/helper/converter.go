package helper

import (
	"strconv"

	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/domain/entity"
)

// optionLetters - подписи вариантов в экспорте
var optionLetters = []string{"A", "B", "C", "D", "E", "F"}

// QuestionRow - строка таблицы экспорта
type QuestionRow struct {
	Number      int
	Question    string
	Options     []string
	Answer      string
	Difficulty  string
	Explanation string
	UserAnswer  string
	Correct     string
}

// ConvertQuestionsToRows раскладывает вопросы викторины в строки экспорта.
// Варианты получают префикс "A) ", ответ пользователя берётся по индексу вопроса.
func ConvertQuestionsToRows(questions []entity.QuizQuestion, answers entity.AnswerMap) []QuestionRow {
	rows := make([]QuestionRow, len(questions))
	for i, q := range questions {
		options := make([]string, len(q.Options))
		for j, opt := range q.Options {
			options[j] = OptionLabel(j) + ") " + opt
		}

		row := QuestionRow{
			Number:      i + 1,
			Question:    q.Question,
			Options:     options,
			Answer:      q.Answer,
			Difficulty:  string(q.Difficulty),
			Explanation: q.Explanation,
		}
		if selected, ok := answers.Get(i); ok {
			row.UserAnswer = selected
			row.Correct = "no"
			if q.IsCorrect(selected) {
				row.Correct = "yes"
			}
		}
		rows[i] = row
	}
	return rows
}

// OptionLabel возвращает букву варианта по 0-based индексу
func OptionLabel(i int) string {
	if i >= 0 && i < len(optionLetters) {
		return optionLetters[i]
	}
	return strconv.Itoa(i + 1)
}
