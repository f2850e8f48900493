package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("generate stage: %w", fmt.Errorf("%w: missing keys", ErrGeneration))

	assert.Equal(t, ErrGeneration, KindOf(wrapped))
	assert.Equal(t, ErrNotFound, KindOf(ErrNotFound))
	assert.Nil(t, KindOf(errors.New("boom")))
	assert.Nil(t, KindOf(nil))
}

func TestKindName(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%w: bad host", ErrInvalidURL), "invalid_url"},
		{fmt.Errorf("%w: status 404", ErrFetch), "fetch_error"},
		{ErrExtraction, "extraction_error"},
		{ErrGeneration, "generation_error"},
		{ErrValidation, "validation_error"},
		{ErrPersistence, "persistence_error"},
		{ErrNotFound, "not_found"},
		{ErrCorruptRecord, "corrupt_record"},
		{errors.New("unexpected"), "internal"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, KindName(tt.err))
	}
}

func TestKindNames_CoverAllKinds(t *testing.T) {
	for _, kind := range Kinds {
		assert.NotEmpty(t, kindNames[kind], "нет имени для %v", kind)
	}
}
