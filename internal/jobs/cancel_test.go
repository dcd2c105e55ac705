package jobs

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/kiranshivaraju/geoharvest/internal/appeears"
	"github.com/kiranshivaraju/geoharvest/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancel_RunningJob(t *testing.T) {
	gw := newFakeGateway().withTask("t1", "running")
	gw.responses["DELETE task/t1"] = ``

	out, err := NewCanceller(gw, newTestTracker(gw)).Cancel(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", out.JobID)
	assert.Equal(t, models.JobStatusCancelled, out.JobStatus)
	assert.Equal(t, 1, gw.count("DELETE task/t1"))
}

func TestCancel_TerminalJobMakesNoDelete(t *testing.T) {
	for _, status := range []string{"done", "failed", "cancelled"} {
		t.Run(status, func(t *testing.T) {
			gw := newFakeGateway().withTask("t1", status)

			_, err := NewCanceller(gw, newTestTracker(gw)).Cancel(context.Background(), "t1")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrAlreadyTerminal))
			assert.Zero(t, gw.count("DELETE "))
		})
	}
}

func TestCancelKnown_TerminalMakesNoCallAtAll(t *testing.T) {
	gw := newFakeGateway()

	_, err := NewCanceller(gw, newTestTracker(gw)).CancelKnown(context.Background(), "t1", models.JobStatusCompleted)
	assert.True(t, errors.Is(err, ErrAlreadyTerminal))
	assert.Empty(t, gw.calls)
}

func TestCancel_MethodNotAllowedIsUnsupported(t *testing.T) {
	gw := newFakeGateway().withTask("t1", "pending")
	gw.errs["DELETE task/t1"] = &appeears.RemoteCallError{Method: "DELETE", Path: "task/t1", StatusCode: http.StatusMethodNotAllowed}

	_, err := NewCanceller(gw, newTestTracker(gw)).Cancel(context.Background(), "t1")
	assert.True(t, errors.Is(err, ErrCancellationUnsupported))
}

func TestCancel_OtherRemoteErrorsPassThrough(t *testing.T) {
	gw := newFakeGateway().withTask("t1", "pending")
	gw.errs["DELETE task/t1"] = &appeears.RemoteCallError{Method: "DELETE", Path: "task/t1", StatusCode: http.StatusInternalServerError}

	_, err := NewCanceller(gw, newTestTracker(gw)).Cancel(context.Background(), "t1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrCancellationUnsupported))
	assert.Equal(t, http.StatusInternalServerError, appeears.StatusCode(err))
}

func TestCancel_StatusFailure(t *testing.T) {
	gw := newFakeGateway()

	_, err := NewCanceller(gw, newTestTracker(gw)).Cancel(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not check job status")
	assert.Zero(t, gw.count("DELETE "))
}
