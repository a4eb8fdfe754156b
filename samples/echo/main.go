// Command echo runs a TCP echo server on a single ringloop Runtime: one
// fiber accepts connections and spawns a child fiber per connection, each
// child looping read-then-write until the peer closes the socket.
//
// A second fiber waits on SIGINT/SIGTERM through ringsignal and cancels the
// accept loop when one arrives, demonstrating the graceful-shutdown
// scenario the runtime is designed around: cancelling a fiber cancels its
// entire child scope, so every connection still being served is cancelled
// right along with the accept loop, and BlockOn does not return until all
// of them have actually finished unwinding.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"syscall"

	"github.com/ringloop/ringloop"
	"github.com/ringloop/ringloop/ringnet"
	"github.com/ringloop/ringloop/ringsignal"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:9000", "address to listen on")
	flag.Parse()

	_, err := ringloop.BlockOn(ringloop.Options{}, func(rt *ringloop.Runtime) (any, error) {
		serverDone := false
		server := rt.Spawn(func(rt *ringloop.Runtime) (any, error) {
			defer func() { serverDone = true }()
			return nil, runServer(rt, *addr)
		})

		watcherDone := false
		watcher := rt.Spawn(func(rt *ringloop.Runtime) (any, error) {
			defer func() { watcherDone = true }()
			return nil, watchForShutdown(rt, server, &serverDone)
		})

		_, serverErr := server.Join()
		if !watcherDone {
			watcher.Cancel()
		}
		_, _ = watcher.Join()

		if serverErr != nil && !errors.Is(serverErr, ringloop.ErrCancelled) {
			return nil, serverErr
		}
		return nil, nil
	})
	if err != nil {
		log.Fatal(err)
	}
}

// runServer accepts connections on addr until the calling fiber is
// cancelled or Accept fails outright, spawning one child fiber per
// connection to serve it.
func runServer(rt *ringloop.Runtime, addr string) error {
	ln, err := ringnet.Listen(rt, addr, ringnet.DefaultOptions)
	if err != nil {
		return err
	}
	defer ln.Close()

	log.Printf("echo: listening on %s", addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		rt.Spawn(func(rt *ringloop.Runtime) (any, error) {
			return nil, serveConn(conn)
		})
	}
}

// watchForShutdown blocks for SIGINT or SIGTERM and cancels server once
// one arrives. serverDone guards against cancelling server after it has
// already finished on its own (e.g. a listener error), which would panic:
// cancelling an already-finished fiber is a programming error, not a race
// to silently ignore.
func watchForShutdown(rt *ringloop.Runtime, server *ringloop.FiberHandle, serverDone *bool) error {
	seq, err := ringsignal.Signals(rt, syscall.SIGINT, syscall.SIGTERM)
	if err != nil {
		return err
	}
	defer seq.Close()

	sig, err := seq.Wait()
	if err != nil {
		return err
	}

	log.Printf("echo: received %s, shutting down", sig)
	if !*serverDone {
		server.Cancel()
	}
	return nil
}

func serveConn(conn *ringnet.Conn) error {
	defer conn.Close()

	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if _, err := conn.Write(buf[:n]); err != nil {
			return fmt.Errorf("echo: write: %w", err)
		}
	}
}
