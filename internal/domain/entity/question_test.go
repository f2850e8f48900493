package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleQuestion() QuizQuestion {
	return QuizQuestion{
		Question:    "В каком году Тьюринг опубликовал статью о вычислимых числах?",
		Options:     []string{"1936", "1940", "1950", "1954"},
		Answer:      "1936",
		Difficulty:  DifficultyMedium,
		Explanation: "Статья On Computable Numbers вышла в 1936 году.",
	}
}

func TestDifficulty_IsValid(t *testing.T) {
	assert.True(t, DifficultyEasy.IsValid())
	assert.True(t, DifficultyMedium.IsValid())
	assert.True(t, DifficultyHard.IsValid())

	assert.False(t, Difficulty("Easy").IsValid(), "Регистр имеет значение")
	assert.False(t, Difficulty("expert").IsValid())
	assert.False(t, Difficulty("").IsValid())
}

func TestQuizQuestion_IsCorrect(t *testing.T) {
	// Arrange
	q := sampleQuestion()

	// Act & Assert
	assert.True(t, q.IsCorrect("1936"), "IsCorrect должен вернуть true для правильного ответа")
	assert.False(t, q.IsCorrect("1950"), "IsCorrect должен вернуть false для неправильного ответа")
	assert.False(t, q.IsCorrect(""), "Пустой ответ не считается правильным")
}

func TestQuizQuestion_ConsistencyChecks(t *testing.T) {
	q := sampleQuestion()
	assert.True(t, q.HasAnswerInOptions())
	assert.False(t, q.HasDuplicateOptions())

	q.Answer = "1937"
	assert.False(t, q.HasAnswerInOptions())

	q.Options = []string{"1936", "1936", "1950", "1954"}
	assert.True(t, q.HasDuplicateOptions())
}

func TestQuizOutput_Score(t *testing.T) {
	// Arrange
	out := QuizOutput{Quiz: []QuizQuestion{sampleQuestion(), sampleQuestion(), sampleQuestion()}}
	out.Quiz[1].Answer = "1950"

	answers := AnswerMap{"0": "1936", "1": "1936", "7": "1936"}

	// Act
	correct, total := out.Score(answers)

	// Assert
	assert.Equal(t, 1, correct, "Засчитывается только вопрос 0")
	assert.Equal(t, 3, total)
}

func TestQuizOutput_Score_NoAnswers(t *testing.T) {
	out := QuizOutput{Quiz: []QuizQuestion{sampleQuestion()}}

	correct, total := out.Score(nil)

	assert.Equal(t, 0, correct)
	assert.Equal(t, 1, total)
}

func TestAnswerMap_ScanAndValue(t *testing.T) {
	tests := []struct {
		name    string
		input   interface{}
		want    AnswerMap
		wantErr error
	}{
		{name: "NULL", input: nil, want: nil},
		{name: "bytes", input: []byte(`{"0":"Paris"}`), want: AnswerMap{"0": "Paris"}},
		{name: "string", input: `{"1":"Lyon","2":"Nice"}`, want: AnswerMap{"1": "Lyon", "2": "Nice"}},
		{name: "empty", input: []byte{}, want: nil},
		{name: "broken json", input: []byte(`{"0":`), wantErr: ErrInvalidAnswers},
		{name: "not json", input: "not-json", wantErr: ErrInvalidAnswers},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m AnswerMap
			err := m.Scan(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m)
		})
	}
}

func TestAnswerMap_Scan_UnsupportedType(t *testing.T) {
	var m AnswerMap
	err := m.Scan(42)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidAnswers)
}

func TestAnswerMap_Value_NilIsNull(t *testing.T) {
	var m AnswerMap
	v, err := m.Value()
	require.NoError(t, err)
	assert.Nil(t, v, "Отсутствующие ответы пишутся как NULL")

	v, err = AnswerMap{"0": "A"}.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"0":"A"}`, v.(string))
}
