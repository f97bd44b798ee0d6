package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"unauthorized", ErrUnauthorized, "IMP001"},
		{"wrapped exhaustion", fmt.Errorf("%w: step 3 starts at row 60 of 45", ErrSourceExhausted), "IMP002"},
		{"invalid step", fmt.Errorf("%w: step=-1", ErrInvalidStep), "IMP003"},
		{"unknown entity", fmt.Errorf("%w: widgets", ErrUnknownEntity), "IMP004"},
		{"step in progress", ErrStepInProgress, "IMP005"},
		{"too many steps", ErrTooManySteps, "IMP006"},
		{"session not found", errors.New("import session not found: abc"), "IMP007"},
		{"store wins over timeout text", fmt.Errorf("%w: read current count: i/o timeout", ErrStoreUnavailable), "STORE001"},
		{"duplicate key", errors.New("ERROR: duplicate key value violates unique constraint"), "DB001"},
		{"foreign key", errors.New("violates foreign key constraint"), "DB003"},
		{"connection refused", errors.New("dial tcp: connection refused"), "DB004"},
		{"timeout", errors.New("context deadline exceeded (timeout)"), "DB006"},
		{"file too large", errors.New("file too large: 200MB exceeds limit"), "FILE001"},
		{"invalid csv", errors.New("invalid csv: wrong number of fields"), "FILE002"},
		{"no file", errors.New("no file provided"), "FILE004"},
		{"empty file", errors.New("empty file"), "FILE005"},
		{"mapping", errors.New("mapping entry 2: empty column name"), "FILE006"},
		{"rate limit", errors.New("rate limit exceeded"), "RATE001"},
		{"case insensitive", errors.New("CONNECTION REFUSED"), "DB004"},
		{"unknown falls back", errors.New("something odd"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, MapError(tt.err).Code)
		})
	}
}

func TestFormatUserError(t *testing.T) {
	assert.Equal(t, "", FormatUserError(nil))
	assert.Equal(t,
		"Too many imports in progress (Code: IMP006). Please wait a moment and try again",
		FormatUserError(ErrTooManySteps))
}

func TestIsUserFacing(t *testing.T) {
	assert.False(t, IsUserFacing(nil))
	assert.False(t, IsUserFacing(errors.New("something odd")))
	assert.True(t, IsUserFacing(ErrUnauthorized))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(fmt.Errorf("%w: write", ErrStoreUnavailable)))
	assert.True(t, IsRetryable(ErrStepInProgress))
	assert.False(t, IsRetryable(ErrUnauthorized))
	assert.False(t, IsRetryable(ErrSourceExhausted))
}
