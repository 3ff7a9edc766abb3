package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobPayloadRoundTrip(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	payload, err := encodeJob(Job{Name: JobStart, AnalysisID: "a1", EnqueuedAt: at})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"start","analysisId":"a1","enqueuedAt":"2025-03-01T12:00:00Z"}`, payload)

	job, err := decodeJob(payload)
	require.NoError(t, err)
	assert.Equal(t, "a1", job.AnalysisID)
	assert.Equal(t, at, job.EnqueuedAt)
}

func TestDecodeJob_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", "start:a1"},
		{"missing id", `{"name":"start"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeJob(tt.payload)
			assert.ErrorIs(t, err, ErrInvalidJob)
		})
	}
}

func TestDecodeJob_DefaultsName(t *testing.T) {
	job, err := decodeJob(`{"analysisId":"a2"}`)
	require.NoError(t, err)
	assert.Equal(t, JobStart, job.Name)
}
