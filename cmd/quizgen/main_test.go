package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/domain/entity"
)

func TestIsYes(t *testing.T) {
	for _, in := range []string{"y\n", "Y", " yes ", "YES\r\n"} {
		assert.True(t, isYes(in), in)
	}
	for _, in := range []string{"", "n", "no", "yep"} {
		assert.False(t, isYes(in), in)
	}
}

func TestPrintQuiz(t *testing.T) {
	quiz := &entity.QuizOutput{
		Summary:     "English mathematician.",
		KeyEntities: entity.KeyEntities{People: []string{"Alan Turing"}},
		Sections:    []string{"Early life"},
		Quiz: []entity.QuizQuestion{{
			Question:    "Where was Turing born?",
			Options:     []string{"London", "Paris", "Rome", "Berlin"},
			Answer:      "London",
			Difficulty:  entity.DifficultyEasy,
			Explanation: "Maida Vale, London.",
		}},
		RelatedTopics: []string{"Enigma"},
	}

	var buf bytes.Buffer
	printQuiz(&buf, "Alan Turing", quiz)
	out := buf.String()

	assert.Contains(t, out, "Alan Turing\n")
	assert.Contains(t, out, "Summary: English mathematician.")
	assert.Contains(t, out, "People: Alan Turing")
	assert.Contains(t, out, "Q1 [easy] Where was Turing born?")
	assert.Contains(t, out, "  * A) London")
	assert.Contains(t, out, "    B) Paris")
	assert.Contains(t, out, "Related topics: Enigma")
	assert.NotContains(t, out, "Organizations:")
}
