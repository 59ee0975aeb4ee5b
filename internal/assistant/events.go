package assistant

import (
	"context"
	"iter"
	"strings"

	"taskpilot/internal/daemon"
	"taskpilot/internal/recovery"
	"taskpilot/pkg/types"
)

// StreamSuggestions streams task suggestions for topic. See streamEvents for
// the event contract. The complete event's result is always an array.
func (s *Session) StreamSuggestions(ctx context.Context, topic string) iter.Seq[types.Event] {
	return s.streamEvents(ctx, "suggestions", SuggestionMessages(topic), suggestionsResult)
}

// StreamAnalysis streams a pattern analysis of ts. The complete event's result
// is always an object; a degraded one carries the placeholder categories.
func (s *Session) StreamAnalysis(ctx context.Context, ts []types.Task) iter.Seq[types.Event] {
	return s.streamEvents(ctx, "analysis", AnalysisMessages(ts), analysisResult)
}

// streamEvents yields one streaming event per fragment, one error event if the
// stream broke, and always finishes with a single complete event built from
// the recovered reply. A session that is not ready yields only an error event.
func (s *Session) streamEvents(ctx context.Context, kind string, msgs []daemon.Message, shape func(res recovery.Result, raw string) (any, string)) iter.Seq[types.Event] {
	return func(yield func(types.Event) bool) {
		model, ok := s.readyModel()
		if !ok {
			yield(types.Event{Status: types.EventError, Message: ErrNotReady.Error()})
			return
		}
		log := s.log.With().Str("model", model).Str("kind", kind).Logger()

		stream := s.client.StreamChat(ctx, model, msgs)
		var full strings.Builder
		for frag := range stream.Fragments() {
			if err := stream.Err(); err != nil {
				if !yield(types.Event{Status: types.EventError, Message: err.Error()}) {
					return
				}
				continue
			}
			full.WriteString(frag)
			if !yield(types.Event{Status: types.EventStreaming, Chunk: frag}) {
				return
			}
		}

		res := recovery.Recover(full.String())
		value, reason := shape(res, full.String())
		ev := types.Event{Status: types.EventComplete, Result: value}
		if reason != "" {
			ev.Degraded = true
			ev.Reason = reason
			log.Warn().Str("reason", ev.Reason).Int("chars", full.Len()).Msg("returning degraded result")
		} else {
			log.Debug().Str("tier", string(res.Tier)).Int("fragments", stream.Count()).Msg("reply recovered")
		}
		yield(ev)
	}
}

// suggestionsResult returns the suggestion list and, when degraded, why.
func suggestionsResult(res recovery.Result, _ string) (any, string) {
	if !res.Parsed() {
		return []any{}, res.Reason
	}
	switch v := res.Value.(type) {
	case []any:
		return v, ""
	case map[string]any:
		for _, key := range []string{"suggestions", "tasks"} {
			if list, ok := v[key].([]any); ok {
				return list, ""
			}
		}
		return []any{v}, ""
	default:
		return []any{}, "suggestions reply is not a JSON array or object"
	}
}

func analysisResult(res recovery.Result, raw string) (any, string) {
	if !res.Parsed() {
		return res.Value, res.Reason
	}
	if m, ok := res.Value.(map[string]any); ok {
		return m, ""
	}
	return recovery.Placeholder(raw), "analysis reply is not a JSON object"
}

// WordCount counts whitespace-separated words across every string value in v.
func WordCount(v any) int {
	switch t := v.(type) {
	case string:
		return len(strings.Fields(t))
	case map[string]any:
		n := 0
		for _, x := range t {
			n += WordCount(x)
		}
		return n
	case []any:
		n := 0
		for _, x := range t {
			n += WordCount(x)
		}
		return n
	default:
		return 0
	}
}
