package importjob_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/costline/costline/modules/estimation/domain/importjob"
)

func TestTerminal(t *testing.T) {
	require.True(t, importjob.Terminal(importjob.StatusCompleted))
	require.True(t, importjob.Terminal(importjob.StatusFailed))
	require.True(t, importjob.Terminal(importjob.StatusCancelled))
	require.False(t, importjob.Terminal(importjob.StatusPending))
	require.False(t, importjob.Terminal(importjob.StatusParsing))
}

func TestProgressFor(t *testing.T) {
	cases := []struct {
		name     string
		status   string
		fraction float64
		want     float64
	}{
		{"uploading start", importjob.StatusUploading, 0, 0},
		{"uploading done", importjob.StatusUploading, 1, 10},
		{"parsing halfway", importjob.StatusParsing, 0.5, 30},
		{"creating start", importjob.StatusCreatingRecords, 0, 50},
		{"creating done", importjob.StatusCreatingRecords, 1, 90},
		{"completed is always full", importjob.StatusCompleted, 0, 100},
		{"fraction clamped low", importjob.StatusParsing, -1, 10},
		{"fraction clamped high", importjob.StatusParsing, 2, 50},
		{"unknown status", "weird", 0.5, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.InDelta(t, tc.want, importjob.ProgressFor(tc.status, tc.fraction), 1e-9)
		})
	}
}
