package oracle

import (
	"context"
	"sync"

	"github.com/solatis/dialectc/internal/types"
)

// Call records one Chat invocation on a Scripted oracle.
type Call struct {
	Messages    []types.Message
	Temperature float64
}

// Scripted is an Oracle that returns queued replies in order. Once the
// queue is drained it returns types.ErrOracleEmpty. It is used by tests and
// by offline runs that replay recorded replies.
type Scripted struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	calls   []Call
}

// NewScripted creates an oracle that answers with replies in order.
func NewScripted(replies ...string) *Scripted {
	return &Scripted{replies: replies, errs: make([]error, len(replies))}
}

// Push queues a reply.
func (s *Scripted) Push(reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, reply)
	s.errs = append(s.errs, nil)
}

// PushError queues a failing call.
func (s *Scripted) PushError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, "")
	s.errs = append(s.errs, err)
}

// Chat implements Oracle.
func (s *Scripted) Chat(ctx context.Context, msgs []types.Message, temperature float64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, Call{
		Messages:    append([]types.Message(nil), msgs...),
		Temperature: temperature,
	})
	if len(s.replies) == 0 {
		return "", types.ErrOracleEmpty
	}
	reply, err := s.replies[0], s.errs[0]
	s.replies, s.errs = s.replies[1:], s.errs[1:]
	return reply, err
}

// Calls returns a copy of the recorded invocations.
func (s *Scripted) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Pending returns the number of queued replies not yet consumed.
func (s *Scripted) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.replies)
}
