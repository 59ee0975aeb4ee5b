package daemon

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/tidwall/gjson"
)

// Stream is a single streamed chat exchange. Its fragments are produced lazily
// and can be consumed only once.
type Stream struct {
	c     *Client
	ctx   context.Context
	req   ChatRequest
	used  atomic.Bool
	mu    sync.Mutex
	err   error
	frags int
}

// StreamChat prepares a streaming chat exchange with model. No request is sent
// until the fragments are ranged over.
func (c *Client) StreamChat(ctx context.Context, model string, msgs []Message) *Stream {
	return &Stream{
		c:   c,
		ctx: ctx,
		req: ChatRequest{Model: model, Messages: append([]Message(nil), msgs...), Stream: true},
	}
}

// ErrorMarker formats the terminal fragment emitted when a stream fails.
func ErrorMarker(err error) string { return fmt.Sprintf("\n[Error: %v]", err) }

// Fragments yields each chunk's message.content in arrival order. Chunks
// without that field are skipped. A transport or daemon error ends the
// sequence with one ErrorMarker fragment instead of propagating; Err reports
// it afterwards. Ranging a second time yields nothing.
func (s *Stream) Fragments() iter.Seq[string] {
	return func(yield func(string) bool) {
		if !s.used.CompareAndSwap(false, true) {
			return
		}
		s.run(yield)
	}
}

// Err returns the failure that terminated the stream, if any.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Count returns how many fragments were yielded, excluding an error marker.
func (s *Stream) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frags
}

func (s *Stream) fail(err error, yield func(string) bool) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	streamErrorsTotal.Inc()
	s.c.log.Warn().Err(err).Str("model", s.req.Model).Msg("chat stream failed")
	yield(ErrorMarker(err))
}

func (s *Stream) run(yield func(string) bool) {
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if s.c.streamTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.c.streamTimeout)
		defer cancel()
	}

	resp, err := s.c.post(ctx, "/api/chat", s.req)
	if err != nil {
		s.fail(err, yield)
		return
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		s.fail(err, yield)
		return
	}

	r := bufio.NewReader(resp.Body)
	for {
		line, readErr := r.ReadBytes('\n')
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			if !gjson.ValidBytes(line) {
				s.c.log.Debug().Bytes("line", line).Msg("skipping non-JSON stream line")
			} else {
				chunk := gjson.ParseBytes(line)
				if e := chunk.Get("error"); e.Exists() && kindOf(chunk) == KindObject {
					s.fail(replyError{msg: e.String()}, yield)
					return
				}
				if text, ok := messageContent(chunk); ok && text != "" {
					s.mu.Lock()
					s.frags++
					s.mu.Unlock()
					streamFragmentsTotal.Inc()
					if !yield(text) {
						return
					}
				}
				if chunk.Get("done").Bool() {
					return
				}
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return
			}
			if ctx.Err() != nil {
				readErr = ctx.Err()
			}
			s.fail(readErr, yield)
			return
		}
	}
}
