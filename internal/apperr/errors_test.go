package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain", errors.New("boom"), 1},
		{"exit", Exit(2, "usage"), 2},
		{"wrapped", fmt.Errorf("ctx: %w", Exit(3, "x")), 3},
		{"non-positive", Exit(0, "x"), 1},
		{"reported", Reported(1, ErrFindings), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCodeOf(tt.err))
		})
	}
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "boom", Message(errors.New("boom")))
	assert.Equal(t, "bad flag", Message(Exit(2, "bad flag")))
	assert.Equal(t, "", Message(Reported(1, ErrFindings)))
}

func TestReportedUnwraps(t *testing.T) {
	err := Reported(1, fmt.Errorf("target public: %w", ErrFindings))
	assert.ErrorIs(t, err, ErrFindings)
	assert.Equal(t, "target public: findings reported", err.Error())
}
