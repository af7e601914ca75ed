package persistence

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlowError_WrapsSentinel(t *testing.T) {
	err := NewFlowError("GetByID", "flow-1", ErrFlowNotFound)

	assert.True(t, IsFlowNotFound(err))
	assert.True(t, errors.Is(err, ErrFlowNotFound))
	assert.Contains(t, err.Error(), "GetByID")
	assert.Contains(t, err.Error(), "flow-1")

	var flowErr *FlowError

	require.ErrorAs(t, err, &flowErr)
	assert.Equal(t, "flow-1", flowErr.FlowID)
}

func TestExecutionError_WrapsSentinel(t *testing.T) {
	err := NewExecutionError("Save", "exec-1", ErrExecutionNotFound)

	assert.True(t, IsExecutionNotFound(err))
	assert.False(t, IsFlowNotFound(err))
	assert.Contains(t, err.Error(), "exec-1")
}
