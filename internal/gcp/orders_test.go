package gcp

import (
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"

	"github.com/Lllllllleong/printerbridge/internal/models"
)

func TestChangeKind(t *testing.T) {
	tests := []struct {
		in     firestore.DocumentChangeKind
		want   models.ChangeKind
		wantOK bool
	}{
		{firestore.DocumentAdded, models.ChangeAdded, true},
		{firestore.DocumentModified, models.ChangeModified, true},
		{firestore.DocumentRemoved, models.ChangeRemoved, true},
		{firestore.DocumentChangeKind(42), 0, false},
	}
	for _, tt := range tests {
		got, ok := changeKind(tt.in)
		assert.Equal(t, tt.wantOK, ok)
		assert.Equal(t, tt.want, got)
	}
}

func TestToUpdatesSortedAndExact(t *testing.T) {
	updates := toUpdates(map[string]any{
		"status":   "Failed",
		"errorMsg": "printer offline",
	})

	assert.Equal(t, []firestore.Update{
		{Path: "errorMsg", Value: "printer offline"},
		{Path: "status", Value: "Failed"},
	}, updates)
}

func TestToChangeBatchEmpty(t *testing.T) {
	batch := toChangeBatch(nil, time.Time{})
	assert.Empty(t, batch.Changes)
}

func TestGetEnv(t *testing.T) {
	t.Setenv("PRINTER_BRIDGE_TEST_KEY", "value")
	assert.Equal(t, "value", GetEnv("PRINTER_BRIDGE_TEST_KEY", "fallback"))
	assert.Equal(t, "fallback", GetEnv("PRINTER_BRIDGE_TEST_KEY_UNSET", "fallback"))
}
