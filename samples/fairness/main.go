// Command fairness demonstrates the scheduler's FIFO ready queue: N fibers
// that each yield in a loop make progress round-robin, rather than one
// running to completion while the others starve.
package main

import (
	"flag"
	"log"

	"github.com/ringloop/ringloop"
)

const (
	fiberCount = 4
	rounds     = 3
)

func main() {
	flag.Parse()
	progress := make([][]int, fiberCount)

	_, err := ringloop.BlockOn(ringloop.Options{}, func(rt *ringloop.Runtime) (any, error) {
		handles := make([]*ringloop.FiberHandle, fiberCount)
		for i := range handles {
			i := i
			handles[i] = rt.Spawn(func(rt *ringloop.Runtime) (any, error) {
				for r := 0; r < rounds; r++ {
					progress[i] = append(progress[i], r)
					if err := rt.YieldNow(); err != nil {
						return nil, err
					}
				}
				return nil, nil
			})
		}
		for _, h := range handles {
			if _, err := h.Join(); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		log.Fatal(err)
	}

	// Round-robin fairness means every fiber should have reached round r
	// before any fiber reaches round r+1.
	for r := 0; r < rounds; r++ {
		for i := 0; i < fiberCount; i++ {
			if len(progress[i]) <= r || progress[i][r] != r {
				log.Fatalf("fairness: fiber %d did not reach round %d in lockstep with its peers", i, r)
			}
		}
	}
	log.Println("fairness: all fibers advanced round-robin as expected")
}
