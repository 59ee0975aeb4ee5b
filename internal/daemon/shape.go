package daemon

import (
	"errors"

	"github.com/tidwall/gjson"
)

// Kind is the top-level shape of a decoded reply.
type Kind int

const (
	KindAbsent Kind = iota
	KindNull
	KindObject
	KindArray
	KindString
	KindNumber
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return "absent"
	}
}

// Reply is a daemon reply whose shape has not been trusted yet. Field access
// goes through the shape helpers below, which never panic.
type Reply struct {
	raw gjson.Result
}

// ParseReply validates body as JSON and wraps it. An empty body yields an
// absent reply rather than an error.
func ParseReply(body []byte) (Reply, error) {
	if len(body) == 0 {
		return Reply{}, nil
	}
	if !gjson.ValidBytes(body) {
		return Reply{}, errors.New("reply is not valid JSON")
	}
	return Reply{raw: gjson.ParseBytes(body)}, nil
}

// Kind classifies the reply.
func (r Reply) Kind() Kind { return kindOf(r.raw) }

func kindOf(v gjson.Result) Kind {
	switch {
	case !v.Exists():
		return KindAbsent
	case v.Type == gjson.Null:
		return KindNull
	case v.IsObject():
		return KindObject
	case v.IsArray():
		return KindArray
	case v.Type == gjson.String:
		return KindString
	case v.Type == gjson.Number:
		return KindNumber
	case v.Type == gjson.True || v.Type == gjson.False:
		return KindBool
	}
	return KindAbsent
}

// Has reports whether the reply is an object with a top-level field.
func (r Reply) Has(field string) bool {
	return r.Kind() == KindObject && r.raw.Get(gjson.Escape(field)).Exists()
}

// String returns a top-level string field of an object reply.
func (r Reply) String(field string) (string, bool) {
	if r.Kind() != KindObject {
		return "", false
	}
	v := r.raw.Get(gjson.Escape(field))
	if v.Type != gjson.String {
		return "", false
	}
	return v.Str, true
}

// Raw returns the reply JSON as received.
func (r Reply) Raw() string { return r.raw.Raw }

// MessageContent extracts message.content when the reply has the chat shape
// {"message": {"content": "..."}}.
func (r Reply) MessageContent() (string, bool) {
	return messageContent(r.raw)
}

func messageContent(v gjson.Result) (string, bool) {
	if kindOf(v) != KindObject {
		return "", false
	}
	msg := v.Get("message")
	if kindOf(msg) != KindObject {
		return "", false
	}
	content := msg.Get("content")
	if content.Type != gjson.String {
		return "", false
	}
	return content.Str, true
}
