package provider

import (
	"context"
	"sync"

	"github.com/relayq/relayq/app/entity"
)

// Mock is a scriptable in-process sender used in tests and local mode.
// Errors are returned in order; once the script is exhausted every send
// succeeds. A nil script means every send succeeds.
type Mock struct {
	name string

	mu         sync.Mutex
	script     []error
	failAlways error
	calls      int
	sent       []entity.Email
}

// NewMock constructs a named mock sender with an optional error script.
func NewMock(name string, script ...error) *Mock {
	return &Mock{name: name, script: script}
}

// NewAlwaysFailing constructs a mock sender that fails every send with err.
func NewAlwaysFailing(name string, err error) *Mock {
	return &Mock{name: name, failAlways: err}
}

func (p *Mock) Name() string { return p.name }

func (p *Mock) SendEmail(_ context.Context, email *entity.Email) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	if p.failAlways != nil {
		return p.failAlways
	}
	if len(p.script) > 0 {
		err := p.script[0]
		p.script = p.script[1:]
		if err != nil {
			return err
		}
	}
	p.sent = append(p.sent, *email)
	return nil
}

// Calls returns how many sends were attempted.
func (p *Mock) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Sent returns copies of the emails that went through.
func (p *Mock) Sent() []entity.Email {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]entity.Email, len(p.sent))
	copy(out, p.sent)
	return out
}
