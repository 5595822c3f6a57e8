package rdawerr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesOutermostKind(t *testing.T) {
	base := New(NotFound, "track 1 not found")
	wrapped := Wrap(base, InvalidId, "resolving parent track")

	assert.Equal(t, InvalidId, wrapped.Kind())
	assert.True(t, wrapped.Is(NotFound))
	assert.Contains(t, wrapped.Error(), "resolving parent track")
	assert.Contains(t, wrapped.Error(), "track 1 not found")
}

func TestKindOfNonCoreError(t *testing.T) {
	require.Equal(t, Other, KindOf(assertErr{}))
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
