package verification

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sensorledger/integrity/model/commitment"
)

func TestErrorKinds(t *testing.T) {
	missing := fmt.Errorf("resolve: %w", NewMissingConfigurationError(ConfigSensor, 205))
	assert.True(t, IsMissingConfigurationError(missing))
	assert.False(t, IsUnmatchedDataError(missing))
	assert.Contains(t, missing.Error(), "sensor")
	assert.Contains(t, missing.Error(), "205")

	unmatched := fmt.Errorf("correlate: %w", NewUnmatchedDataError([]commitment.Reading{
		{BlockNumber: 100}, {BlockNumber: 300},
	}))
	assert.True(t, IsUnmatchedDataError(unmatched))
	assert.Contains(t, unmatched.Error(), "100, 300")

	var target *UnmatchedDataError
	require.True(t, errors.As(unmatched, &target))
	assert.Len(t, target.Readings, 2)

	cause := errors.New("gateway timeout")
	fetch := fmt.Errorf("normalize: %w", NewStorageFetchError("bafy", cause))
	assert.True(t, IsStorageFetchError(fetch))
	assert.ErrorIs(t, fetch, cause)
	assert.False(t, IsMissingConfigurationError(fetch))
}
