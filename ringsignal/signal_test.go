package ringsignal

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestSignumAcceptsSyscallSignal(t *testing.T) {
	n, err := signum(syscall.SIGINT)
	require.NoError(t, err)
	require.Equal(t, int(syscall.SIGINT), n)
}

func TestSignumAcceptsUnixSignal(t *testing.T) {
	n, err := signum(unix.SIGTERM)
	require.NoError(t, err)
	require.Equal(t, int(unix.SIGTERM), n)
}

func TestSignumRejectsUnknownType(t *testing.T) {
	_, err := signum(fakeSignal{})
	require.Error(t, err)
}

type fakeSignal struct{}

func (fakeSignal) String() string { return "fake" }
func (fakeSignal) Signal()        {}

func TestAddSignalSetsExpectedBit(t *testing.T) {
	var set unix.Sigset_t
	addSignal(&set, int(syscall.SIGINT))
	require.NotZero(t, set.Val[0])
}
