package lineproto

import (
	"errors"
	"strings"
)

const (
	VerbRequest = "REQ"
	StatusOK    = "OK"
	StatusErr   = "ERR"
)

// ErrEmptyLine is returned by Decode for a blank line.
var ErrEmptyLine = errors.New("empty line")

// Field is one key/value pair of a message.
type Field struct {
	Key   string
	Value string
}

// Message is a decoded protocol line. Requests carry the verb REQ,
// responses carry OK or ERR. Fields keep insertion order.
type Message struct {
	Verb   string
	fields []Field
}

// NewRequest builds a request with the given id and command.
func NewRequest(id, cmd string) *Message {
	m := &Message{Verb: VerbRequest}
	m.Set("id", id)
	m.Set("cmd", cmd)
	return m
}

// NewResponse starts an OK response echoing the request id.
func NewResponse(reqID string) *Message {
	m := &Message{Verb: StatusOK}
	m.Set("req", reqID)
	return m
}

// Decode parses `VERB k=v;k=v`. Fragments without '=' are skipped.
// A repeated key replaces the earlier value in place.
func Decode(line string) (*Message, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, ErrEmptyLine
	}
	m := &Message{Verb: line}
	i := strings.IndexAny(line, " \t")
	if i < 0 {
		return m, nil
	}
	m.Verb = line[:i]
	rest := line[i+1:]
	for _, frag := range splitFields(strings.TrimLeft(rest, " \t")) {
		if strings.TrimSpace(frag) == "" {
			continue
		}
		k, v, ok := strings.Cut(frag, "=")
		if !ok {
			continue
		}
		m.Set(k, Unescape(v))
	}
	return m, nil
}

// DecodeResponse is Decode for client use; it rejects unknown statuses.
func DecodeResponse(line string) (*Message, error) {
	m, err := Decode(line)
	if err != nil {
		return nil, err
	}
	if m.Verb != StatusOK && m.Verb != StatusErr {
		return nil, errors.New("unexpected status " + m.Verb)
	}
	return m, nil
}

// Get returns the value for key or "".
func (m *Message) Get(key string) string {
	v, _ := m.Lookup(key)
	return v
}

// Lookup reports whether key is present.
func (m *Message) Lookup(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	for _, f := range m.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Set replaces an existing key in place or appends it.
func (m *Message) Set(key, value string) *Message {
	for i := range m.fields {
		if m.fields[i].Key == key {
			m.fields[i].Value = value
			return m
		}
	}
	m.fields = append(m.fields, Field{Key: key, Value: value})
	return m
}

// Fields returns a copy of the fields in order.
func (m *Message) Fields() []Field {
	out := make([]Field, len(m.fields))
	copy(out, m.fields)
	return out
}

// OK reports whether the message is a success response.
func (m *Message) OK() bool { return m != nil && m.Verb == StatusOK }

// Fail turns the message into an ERR response carrying code.
func (m *Message) Fail(code Code) *Message {
	m.Verb = StatusErr
	return m.Set("msg", string(code))
}

// Encode renders the message as one line. Keys starting with '_' are internal
// and never written. No trailing separator is emitted.
func (m *Message) Encode() string {
	var b strings.Builder
	b.WriteString(m.Verb)
	first := true
	for _, f := range m.fields {
		if strings.HasPrefix(f.Key, "_") {
			continue
		}
		if first {
			b.WriteByte(' ')
			first = false
		} else {
			b.WriteByte(';')
		}
		b.WriteString(f.Key)
		b.WriteByte('=')
		b.WriteString(Escape(f.Value))
	}
	return b.String()
}

func (m *Message) String() string { return m.Encode() }
