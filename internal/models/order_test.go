package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPaid, StatusPrinting, true},
		{StatusPrinting, StatusCompleted, true},
		{StatusPrinting, StatusFailed, true},

		{StatusPaid, StatusCompleted, false},
		{StatusPaid, StatusFailed, false},
		{StatusPrinting, StatusPaid, false},
		{StatusCompleted, StatusPaid, false},
		{StatusCompleted, StatusPrinting, false},
		{StatusFailed, StatusPrinting, false},
		{StatusFailed, StatusCompleted, false},
		{Status("Pending"), StatusPrinting, false},
		{Status("Cancelled"), StatusPaid, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestCheckTransitionWrapsSentinel(t *testing.T) {
	err := CheckTransition(StatusCompleted, StatusPrinting)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Contains(t, err.Error(), `"Completed" -> "Printing"`)

	assert.NoError(t, CheckTransition(StatusPaid, StatusPrinting))
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.False(t, StatusPaid.IsTerminal())
	assert.False(t, StatusPrinting.IsTerminal())
	assert.False(t, Status("Cancelled").IsTerminal())
}

func TestOrderDefaults(t *testing.T) {
	var o Order
	assert.Equal(t, "order_abc123.pdf", o.FileNameOrDefault("abc123"))
	assert.Equal(t, "Standard", o.PaperTypeOrDefault())

	o = Order{FileName: "doc.pdf", PaperType: "A4"}
	assert.Equal(t, "doc.pdf", o.FileNameOrDefault("abc123"))
	assert.Equal(t, "A4", o.PaperTypeOrDefault())
}

func TestChangeKindString(t *testing.T) {
	assert.Equal(t, "ADDED", ChangeAdded.String())
	assert.Equal(t, "MODIFIED", ChangeModified.String())
	assert.Equal(t, "REMOVED", ChangeRemoved.String())
	assert.Equal(t, "ChangeKind(9)", ChangeKind(9).String())
}
