/*
Package messages renders engine error keys into human-readable text.

PURPOSE:
  The template and line-item validators never build user-facing strings.
  They return a Message (a key plus interpolation parameters) and leave
  rendering to a Lookup. This package defines that contract and ships a
  YAML-backed implementation with locale matching.

BUNDLES:
  bundles/<locale>.yaml holds a flat key -> text map. Parameters are
  written as ${name} and replaced verbatim.

    template.column.labelTooShort: "Label must be at least ${min} characters"

FALLBACKS:
  - Unknown locale: the catalog's default bundle (en)
  - Unknown key:    the key itself, so a missing translation is visible
                    but never fails a request

USAGE:
  cat := messages.MustLoad()
  text := messages.Render(cat.ForLocale("fr-CA"), msg)

SEE ALSO:
  - template/validation.go: Template message keys
  - requisition/validation.go: Line-item message keys
*/
package messages

import (
	"sort"
	"strings"
)

// Message is a rendered-later validation outcome.
type Message struct {
	Key    string            `json:"key"`
	Params map[string]string `json:"params,omitempty"`
}

// New builds a message from a key and alternating name/value pairs.
// A trailing name without a value is ignored.
func New(key string, pairs ...string) *Message {
	m := &Message{Key: key}
	if len(pairs) >= 2 {
		m.Params = make(map[string]string, len(pairs)/2)
		for i := 0; i+1 < len(pairs); i += 2 {
			m.Params[pairs[i]] = pairs[i+1]
		}
	}
	return m
}

// Param returns the named parameter, or "" when absent.
func (m *Message) Param(name string) string {
	if m == nil {
		return ""
	}
	return m.Params[name]
}

func (m *Message) String() string {
	if m == nil {
		return ""
	}
	if len(m.Params) == 0 {
		return m.Key
	}
	names := make([]string, 0, len(m.Params))
	for n := range m.Params {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = n + "=" + m.Params[n]
	}
	return m.Key + "(" + strings.Join(parts, ", ") + ")"
}

// Lookup resolves a key and its parameters into display text.
type Lookup interface {
	Get(key string, params map[string]string) string
}

// Render renders msg through l. A nil message renders as "".
func Render(l Lookup, msg *Message) string {
	if msg == nil {
		return ""
	}
	if l == nil {
		return msg.String()
	}
	return l.Get(msg.Key, msg.Params)
}

func interpolate(text string, params map[string]string) string {
	if len(params) == 0 || !strings.Contains(text, "${") {
		return text
	}
	pairs := make([]string, 0, len(params)*2)
	for k, v := range params {
		pairs = append(pairs, "${"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
