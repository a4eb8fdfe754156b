package ringnet

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestResolveTCPv4(t *testing.T) {
	addr, err := resolveTCP("127.0.0.1:8080")
	require.NoError(t, err)
	require.Equal(t, unix.AF_INET, addr.domain)

	sa := addr.raw.(*unix.RawSockaddrInet4)
	require.Equal(t, uint16(unix.AF_INET), sa.Family)
	require.Equal(t, [4]byte{127, 0, 0, 1}, sa.Addr)
}

func TestHtons(t *testing.T) {
	// port 8080 = 0x1F90; network order swaps the bytes.
	require.Equal(t, uint16(0x901F), htons(0x1F90))
}

func TestResolveTCPRejectsGarbage(t *testing.T) {
	_, err := resolveTCP("not-an-address")
	require.Error(t, err)
}
