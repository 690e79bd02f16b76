package chatui

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
)

const (
	ThinkingText   = "Thinking..."
	NoResponseText = "Sorry, no response received."
	FailureText    = "Failed to get response from server."
)

type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

type Message struct {
	Sender  Sender
	Text    string
	Pending bool
}

// Transcript is the append-only list of messages shown to the user. Only the
// pending placeholder is ever rewritten, and only once.
type Transcript struct {
	mu       sync.Mutex
	messages []Message
}

func (t *Transcript) append(m Message) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, m)
	return len(t.messages) - 1
}

func (t *Transcript) settle(idx int, text string) Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages[idx].Text = text
	t.messages[idx].Pending = false
	return t.messages[idx]
}

// Messages returns a copy of the transcript.
func (t *Transcript) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// View renders transcript changes. Scroll is called after every append and
// after every settle.
type View interface {
	Appended(idx int, m Message)
	Settled(idx int, m Message)
	Scroll()
}

type sender interface {
	Send(ctx context.Context, text string) (string, error)
}

// Session drives the submit, pending and settle cycle.
type Session struct {
	Transcript *Transcript
	client     sender
	view       View
}

func NewSession(client sender, view View) *Session {
	return &Session{
		Transcript: &Transcript{},
		client:     client,
		view:       view,
	}
}

// Submit sends input as a one-shot conversation. Blank input is ignored and
// reports false. The pending placeholder is always settled before returning.
func (s *Session) Submit(ctx context.Context, input string) bool {
	text := strings.TrimSpace(input)
	if text == "" {
		return false
	}

	s.add(Message{Sender: SenderUser, Text: text})
	idx := s.add(Message{Sender: SenderBot, Text: ThinkingText, Pending: true})

	reply := FailureText
	result, err := s.client.Send(ctx, text)
	if err == nil {
		reply = result
		if reply == "" {
			reply = NoResponseText
		}
	}

	m := s.Transcript.settle(idx, reply)
	s.view.Settled(idx, m)
	s.view.Scroll()
	return true
}

func (s *Session) add(m Message) int {
	idx := s.Transcript.append(m)
	s.view.Appended(idx, m)
	s.view.Scroll()
	return idx
}

// ReadInput reads one message. A line ending in a backslash continues onto
// the next line; the backslash is replaced by a newline. io.EOF is returned
// only when nothing was read.
func ReadInput(r *bufio.Reader) (string, error) {
	var b strings.Builder
	for {
		line, err := r.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		eof := err != nil

		line = strings.TrimRight(line, "\r\n")
		if strings.HasSuffix(line, `\`) && !eof {
			b.WriteString(strings.TrimSuffix(line, `\`))
			b.WriteByte('\n')
			continue
		}
		b.WriteString(line)

		if eof && b.Len() == 0 {
			return "", io.EOF
		}
		return b.String(), nil
	}
}
