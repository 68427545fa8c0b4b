package llm

import (
	"context"
	"sync"
)

// scriptedTransport replies with the queued contents in order and records
// every request it receives.
type scriptedTransport struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []ChatRequest
}

func (s *scriptedTransport) Name() string { return "scripted" }

func (s *scriptedTransport) Send(_ context.Context, req *ChatRequest) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *req
	cp.Messages = append([]Message(nil), req.Messages...)
	s.requests = append(s.requests, cp)
	if s.err != nil {
		return nil, s.err
	}
	i := len(s.requests) - 1
	if i >= len(s.replies) {
		i = len(s.replies) - 1
	}
	return &Response{Content: s.replies[i], Model: req.Model}, nil
}

type answer struct {
	Answer     string  `json:"answer"`
	Confidence float64 `json:"confidence"`
}

type positive struct {
	N int `json:"n"`
}

func (p *positive) Validate() error {
	if p.N <= 0 {
		return errNotPositive
	}
	return nil
}

// named rejects the name "bad"; Note is optional.
type named struct {
	Name string `json:"name"`
	Note string `json:"note,omitempty"`
}

func (n *named) Validate() error {
	if n.Name == "bad" {
		return errBadName
	}
	return nil
}
