package negotiation

import (
	"github.com/gammazero/deque"
	"github.com/pion/apprtc-direct/pkg/rtc"
)

// CandidateQueue holds remote candidates until both descriptions are applied.
// It is owned by a Machine and only touched from its executor.
type CandidateQueue struct {
	q deque.Deque
}

// Push appends c.
func (c *CandidateQueue) Push(cand rtc.Candidate) {
	c.q.PushBack(cand)
}

// Len returns the number of queued candidates.
func (c *CandidateQueue) Len() int {
	return c.q.Len()
}

// Drain pops candidates in arrival order and hands them to fn. It stops at the
// first error, leaving the remaining candidates queued, and returns how many
// candidates fn accepted.
func (c *CandidateQueue) Drain(fn func(rtc.Candidate) error) (int, error) {
	n := 0
	for c.q.Len() > 0 {
		cand := c.q.PopFront().(rtc.Candidate)
		if err := fn(cand); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
