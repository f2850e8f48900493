package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidAnswers - в колонке user_answers лежит не JSON-объект строк
var ErrInvalidAnswers = errors.New("invalid user_answers")

// AnswerMap - ответы пользователя: индекс вопроса (строкой) -> текст выбранного варианта.
// Хранится в колонке user_answers как JSON. nil означает, что ответы ещё не отправлялись.
type AnswerMap map[string]string

// Get возвращает ответ на вопрос с индексом i
func (a AnswerMap) Get(i int) (string, bool) {
	v, ok := a[strconv.Itoa(i)]
	return v, ok
}

// GormDataType совпадает с типом колонки user_answers в migrations/
func (AnswerMap) GormDataType() string {
	return "text"
}

// Scan реализует интерфейс sql.Scanner для AnswerMap.
// NULL из базы даёт nil (ответов нет).
func (a *AnswerMap) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("failed to scan user_answers: unsupported type %T", value)
	}

	if len(data) == 0 {
		*a = nil
		return nil
	}

	m := AnswerMap{}
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAnswers, err)
	}
	*a = m
	return nil
}

// Value реализует интерфейс driver.Valuer для AnswerMap
func (a AnswerMap) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	data, err := json.Marshal(map[string]string(a))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
