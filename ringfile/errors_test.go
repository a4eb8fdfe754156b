package ringfile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPtrOfEmptyIsZero(t *testing.T) {
	require.Equal(t, uintptr(0), ptrOf(nil))
	require.Equal(t, uintptr(0), ptrOf([]byte{}))
}

func TestPtrOfNonEmptyIsNonZero(t *testing.T) {
	buf := []byte{1, 2, 3}
	require.NotZero(t, ptrOf(buf))
}
