// Command panicprop demonstrates panic propagation through Join: a child
// fiber panics, its parent observes the panic as an ordinary error from
// Join, and a second, sibling fiber spawned alongside it is still allowed
// to run to completion before the parent's own scope closes.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/ringloop/ringloop"
)

func main() {
	flag.Parse()
	result, err := ringloop.BlockOn(ringloop.Options{}, func(rt *ringloop.Runtime) (string, error) {
		boom := rt.Spawn(func(rt *ringloop.Runtime) (any, error) {
			panic("simulated failure in worker fiber")
		})
		sibling := rt.Spawn(func(rt *ringloop.Runtime) (any, error) {
			return "sibling completed normally", nil
		})

		siblingResult, siblingErr := sibling.Join()
		if siblingErr != nil {
			return "", siblingErr
		}
		fmt.Println(siblingResult)

		_, boomErr := boom.Join()

		var pe *ringloop.PanicError
		if errors.As(boomErr, &pe) {
			return "", fmt.Errorf("worker panicked with: %v", pe.Value)
		}
		return "", boomErr
	})
	if err != nil {
		log.Printf("panicprop: %v (result=%q)", err, result)
		return
	}
	log.Printf("panicprop: unexpectedly succeeded with %q", result)
}
