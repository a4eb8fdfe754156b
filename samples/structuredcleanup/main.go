// Command structuredcleanup demonstrates the structured-concurrency
// invariant that a fiber cannot finish while it still has live children:
// the parent here returns immediately, but the runtime keeps it draining
// until both of its children have actually finished their (slower) work.
package main

import (
	"flag"
	"log"
	"time"

	"github.com/ringloop/ringloop"
)

func main() {
	flag.Parse()
	var cleanedUp [2]bool

	_, err := ringloop.BlockOn(ringloop.Options{}, func(rt *ringloop.Runtime) (any, error) {
		for i := range cleanedUp {
			i := i
			rt.Spawn(func(rt *ringloop.Runtime) (any, error) {
				if err := rt.Sleep(time.Duration(i+1) * time.Millisecond); err != nil {
					return nil, err
				}
				cleanedUp[i] = true
				return nil, nil
			})
		}
		// Returns without ever calling Join: structured concurrency still
		// forces the runtime to wait for both children before BlockOn can
		// return, since they are part of this fiber's scope whether or
		// not anyone explicitly joins them.
		return nil, nil
	})
	if err != nil {
		log.Fatal(err)
	}

	for i, done := range cleanedUp {
		if !done {
			log.Fatalf("structuredcleanup: child %d did not run to completion before BlockOn returned", i)
		}
	}
	log.Println("structuredcleanup: both children ran to completion before the runtime tore down")
}
