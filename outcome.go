package soundcheck

import (
	"fmt"
	"sync"
)

// Outcome reports how a streaming run ended.
type Outcome int32

const (
	// OutcomePending means the run has not settled yet.
	OutcomePending Outcome = iota
	// OutcomeSuccess means the run streamed the full switch target.
	OutcomeSuccess
	// OutcomeFailure means a real-time error ended the run early.
	OutcomeFailure
)

var outcomeNames = map[Outcome]string{
	OutcomePending: "Pending",
	OutcomeSuccess: "Success",
	OutcomeFailure: "Failure",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}

	return fmt.Sprintf("Outcome(%d)", int32(o))
}

// completion settles a streaming run exactly once. The first settle wins;
// later calls are ignored so racing callbacks cannot flip the verdict.
type completion struct {
	mu      sync.Mutex
	outcome Outcome
	cause   error
	done    chan struct{}
}

func newCompletion() *completion {
	return &completion{done: make(chan struct{})}
}

// settle records the outcome and wakes waiters. It reports whether this
// call was the one that settled the run.
func (c *completion) settle(o Outcome, cause error) bool {
	if o == OutcomePending {
		panic(bugf("cannot settle a run back to %v", o))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.outcome != OutcomePending {
		return false
	}

	c.outcome = o
	c.cause = cause
	close(c.done)

	return true
}

// wait blocks until the run settles.
func (c *completion) wait() (Outcome, error) {
	<-c.done

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.outcome, c.cause
}

// settled peeks at the outcome without blocking.
func (c *completion) settled() (Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.outcome, c.outcome != OutcomePending
}
