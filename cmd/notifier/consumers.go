package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/go-collab-notify/internal/transport/queue"
)

// consumerSet runs one consumer per queue and reports readiness while all of
// them are running.
type consumerSet struct {
	wg      sync.WaitGroup
	total   int32
	running atomic.Int32
}

// start launches c for queue name. onFailure is called if the consumer stops
// with an error; a consumer whose channel died cannot resume.
func (s *consumerSet) start(ctx context.Context, name string, c *queue.Consumer, onFailure func()) {
	s.total++
	s.running.Add(1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Add(-1)
		if err := c.Run(ctx); err != nil {
			log.Printf("ERROR: consumer %s stopped: %v", name, err)
			onFailure()
		}
	}()
}

func (s *consumerSet) Ready() error {
	if n := s.running.Load(); n < s.total {
		return fmt.Errorf("%d of %d consumers running", n, s.total)
	}
	return nil
}

func (s *consumerSet) wait() { s.wg.Wait() }
