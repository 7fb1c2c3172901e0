package llm

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrNoMessages      = errors.New("llm: no messages")
	ErrEmptyCompletion = errors.New("llm: empty upstream completion")
)

const (
	RoleSystem = "system"
	RoleUser   = "user"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one chat completion call. Zero Temperature and MaxTokens
// mean "engine default".
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Client returns the raw completion text for a request.
type Client interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// Prompt builds a request with an optional system message and one user
// message.
func Prompt(model, system, user string) Request {
	msgs := make([]Message, 0, 2)
	if s := strings.TrimSpace(system); s != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: s})
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: user})
	return Request{Model: model, Messages: msgs}
}

// PromptText flattens the request messages, for engines that take a single
// text part.
func (r Request) PromptText() string {
	var b strings.Builder
	for i, m := range r.Messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.Content)
	}
	return b.String()
}

func (r Request) Valid() error {
	for _, m := range r.Messages {
		if strings.TrimSpace(m.Content) != "" {
			return nil
		}
	}
	return ErrNoMessages
}
