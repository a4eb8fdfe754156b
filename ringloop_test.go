package ringloop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBlockOnReturnsEntryResult(t *testing.T) {
	got, err := BlockOn(Options{}, func(rt *Runtime) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, got)
}

func TestSpawnAndJoinChild(t *testing.T) {
	got, err := BlockOn(Options{}, func(rt *Runtime) (int, error) {
		h := rt.Spawn(func(rt *Runtime) (any, error) {
			return 7, nil
		})
		v, err := h.Join()
		if err != nil {
			return 0, err
		}
		return v.(int), nil
	})
	require.NoError(t, err)
	require.Equal(t, 7, got)
}

func TestYieldNowRunsOtherReadyFibers(t *testing.T) {
	var order []int

	_, err := BlockOn(Options{}, func(rt *Runtime) (any, error) {
		h1 := rt.Spawn(func(rt *Runtime) (any, error) {
			order = append(order, 1)
			rt.YieldNow()
			order = append(order, 3)
			return nil, nil
		})
		h2 := rt.Spawn(func(rt *Runtime) (any, error) {
			order = append(order, 2)
			return nil, nil
		})
		_, _ = h1.Join()
		_, _ = h2.Join()
		return nil, nil
	})
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, order)
}

func TestParentWaitsForChildBeforeFinishing(t *testing.T) {
	finishedChild := false

	_, err := BlockOn(Options{}, func(rt *Runtime) (any, error) {
		rt.Spawn(func(rt *Runtime) (any, error) {
			rt.YieldNow()
			finishedChild = true
			return nil, nil
		})
		return nil, nil
	})
	require.NoError(t, err)
	require.True(t, finishedChild, "parent fiber must not finish before its spawned child")
}

func TestPanicInChildSurfacesToJoiner(t *testing.T) {
	_, err := BlockOn(Options{}, func(rt *Runtime) (any, error) {
		h := rt.Spawn(func(rt *Runtime) (any, error) {
			panic("boom")
		})
		_, joinErr := h.Join()
		return nil, joinErr
	})
	require.Error(t, err)
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, "boom", pe.Value)
}

func TestCancelPropagatesToChildren(t *testing.T) {
	childCancelled := false

	_, err := BlockOn(Options{}, func(rt *Runtime) (any, error) {
		h := rt.Spawn(func(rt *Runtime) (any, error) {
			for i := 0; i < 5; i++ {
				if err := rt.YieldNow(); err != nil {
					childCancelled = true
					return nil, err
				}
			}
			return nil, nil
		})
		rt.YieldNow()
		h.Cancel()
		_, _ = h.Join()
		return nil, nil
	})
	require.NoError(t, err)
	require.True(t, childCancelled)
}

func TestSleepAdvancesAndReturns(t *testing.T) {
	// A positive duration is essential here: Sleep(0) (and anything <= 0)
	// short-circuits straight to YieldNow and never touches the reactor at
	// all, so it wouldn't exercise the IORING_OP_TIMEOUT round trip this
	// test is meant to cover.
	_, err := BlockOn(Options{}, func(rt *Runtime) (any, error) {
		return nil, rt.Sleep(time.Millisecond)
	})
	require.NoError(t, err)
}

// asProgrammingError unwraps a *PanicError's recovered value, which for the
// panics this package raises internally is always a *ProgrammingError, not
// an error-wrapped one — panic(&ProgrammingError{...}) stores the value
// itself, not an error chain ErrorAs could walk.
func asProgrammingError(t *testing.T, err error) *ProgrammingError {
	t.Helper()
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	progErr, ok := pe.Value.(*ProgrammingError)
	require.True(t, ok, "panic value %#v is not a *ProgrammingError", pe.Value)
	return progErr
}

func TestSecondConcurrentJoinerPanics(t *testing.T) {
	_, err := BlockOn(Options{}, func(rt *Runtime) (any, error) {
		child := rt.Spawn(func(rt *Runtime) (any, error) {
			for i := 0; i < 3; i++ {
				rt.YieldNow()
			}
			return nil, nil
		})

		joiner1 := rt.Spawn(func(rt *Runtime) (any, error) {
			return child.Join()
		})
		rt.YieldNow() // let joiner1 register itself as child's sole joiner

		joiner2 := rt.Spawn(func(rt *Runtime) (any, error) {
			return child.Join()
		})
		rt.YieldNow() // let joiner2 attempt to join while joiner1 still waits

		_, joiner2Err := joiner2.Join()
		progErr := asProgrammingError(t, joiner2Err)
		require.Contains(t, progErr.Msg, "already has a joiner")

		// joiner1 is still legitimately waiting on child; only it may join
		// child, so drain through joiner1 rather than touching child again.
		_, _ = joiner1.Join()
		return nil, nil
	})
	require.NoError(t, err)
}

func TestCancelOnFinishedFiberPanics(t *testing.T) {
	_, err := BlockOn(Options{}, func(rt *Runtime) (any, error) {
		child := rt.Spawn(func(rt *Runtime) (any, error) {
			return nil, nil
		})
		// Let child run to completion without ever Joining it, so its table
		// entry remains Finished rather than being Removed — cancelling it
		// afterwards must hit the already-finished panic, not the stale one.
		rt.YieldNow()

		watcher := rt.Spawn(func(rt *Runtime) (any, error) {
			child.Cancel()
			return nil, nil
		})
		_, watcherErr := watcher.Join()
		progErr := asProgrammingError(t, watcherErr)
		require.Contains(t, progErr.Msg, "already finished")

		_, _ = child.Join()
		return nil, nil
	})
	require.NoError(t, err)
}

func TestJoinOnStaleHandlePanics(t *testing.T) {
	_, err := BlockOn(Options{}, func(rt *Runtime) (any, error) {
		child := rt.Spawn(func(rt *Runtime) (any, error) {
			return nil, nil
		})
		_, _ = child.Join() // consumes the result and removes the table entry

		watcher := rt.Spawn(func(rt *Runtime) (any, error) {
			return child.Join()
		})
		_, watcherErr := watcher.Join()
		progErr := asProgrammingError(t, watcherErr)
		require.Contains(t, progErr.Msg, "stale fiber handle")
		return nil, nil
	})
	require.NoError(t, err)
}

func TestCancelOnStaleHandlePanics(t *testing.T) {
	_, err := BlockOn(Options{}, func(rt *Runtime) (any, error) {
		child := rt.Spawn(func(rt *Runtime) (any, error) {
			return nil, nil
		})
		_, _ = child.Join() // consumes the result and removes the table entry

		watcher := rt.Spawn(func(rt *Runtime) (any, error) {
			child.Cancel()
			return nil, nil
		})
		_, watcherErr := watcher.Join()
		progErr := asProgrammingError(t, watcherErr)
		require.Contains(t, progErr.Msg, "stale fiber handle")
		return nil, nil
	})
	require.NoError(t, err)
}
