package qvl

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCode_MapsWrappedSentinel(t *testing.T) {
	wrapped := fmt.Errorf("outer context: %w", ErrUntrustedRoot)

	cs, code, ok := Code(wrapped)
	require.True(t, ok)
	require.Equal(t, codespace, cs)
	require.Equal(t, uint32(8), code)
}

func TestCode_UnrecognizedError(t *testing.T) {
	_, _, ok := Code(fmt.Errorf("some other failure"))
	require.False(t, ok)
}
