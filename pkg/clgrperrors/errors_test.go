package clgrperrors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"nil", nil, false},
		{"missing input", fmt.Errorf("verify: %w", ErrMissingInput), true},
		{"too few processes", ErrTooFewProcesses, true},
		{"undersized table", fmt.Errorf("line 3: %w", ErrTableUndersized), true},
		{"prime table", ErrPrimeTableTooSmall, true},
		{"input unavailable", fmt.Errorf("open: %w", ErrInputUnavailable), false},
		{"oracle timeout", ErrStructureTimedOut, false},
		{"order mismatch", ErrOrderMismatch, false},
		{"context", context.Canceled, false},
		{"worker fatal", fmt.Errorf("worker 2: %w", ErrWorkerFatal), true},
		{"protocol", ErrProtocol, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.fatal, IsFatal(tt.err))
		})
	}
}
