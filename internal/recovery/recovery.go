// Package recovery turns accumulated model output into structured JSON, falling
// back to progressively looser extraction and finally to a fixed placeholder.
package recovery

import (
	"iter"
	"regexp"
	"strings"
	"unicode/utf8"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tidwall/gjson"
)

// Kind tags a Result.
type Kind int

const (
	Degraded Kind = iota
	Parsed
)

func (k Kind) String() string {
	if k == Parsed {
		return "parsed"
	}
	return "degraded"
}

// Tier names which extraction step produced a Parsed result.
type Tier string

const (
	TierDirect Tier = "direct"
	TierFenced Tier = "fenced"
	TierBraces Tier = "braces"
	TierNone   Tier = "none"
)

// MaxRawContent bounds the rawContent field of a degraded result, in characters.
const MaxRawContent = 1000

// RawContentKey is the placeholder field holding the truncated input.
const RawContentKey = "rawContent"

// Categories are the analysis sections the placeholder reports on.
var Categories = []string{
	"Priority Distribution",
	"Status Patterns",
	"Time Management",
	"Task Relationships",
	"Content Analysis",
}

// Result is either Parsed(Value) or Degraded(RawContent, Reason). For degraded
// results Value holds the placeholder object.
type Result struct {
	Kind       Kind
	Tier       Tier
	Value      any
	RawContent string
	Reason     string
}

// Parsed reports whether structured recovery succeeded.
func (r Result) Parsed() bool { return r.Kind == Parsed }

var fenced = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)\\s*```")

var recoveryResults = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "taskpilot",
		Subsystem: "recovery",
		Name:      "results_total",
		Help:      "Structured recovery results by extraction tier",
	},
	[]string{"tier"},
)

func init() {
	prometheus.MustRegister(recoveryResults)
}

// Recover parses fullText as JSON, then the first fenced code block, then the
// span between the first '{' and the last '}'. If none parse it returns a
// Degraded result. It never panics.
func Recover(fullText string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = degrade(fullText, "recovery panicked")
		}
		recoveryResults.WithLabelValues(string(res.Tier)).Inc()
	}()

	if v, ok := decode(fullText); ok {
		return Result{Kind: Parsed, Tier: TierDirect, Value: v}
	}
	if m := fenced.FindStringSubmatch(fullText); m != nil {
		if v, ok := decode(m[1]); ok {
			return Result{Kind: Parsed, Tier: TierFenced, Value: v}
		}
	}
	start := strings.Index(fullText, "{")
	end := strings.LastIndex(fullText, "}")
	if start >= 0 && end > start {
		if v, ok := decode(fullText[start : end+1]); ok {
			return Result{Kind: Parsed, Tier: TierBraces, Value: v}
		}
	}
	return degrade(fullText, "no valid JSON found in response")
}

// Accumulate drains a fragment sequence into one string.
func Accumulate(seq iter.Seq[string]) string {
	var b strings.Builder
	for frag := range seq {
		b.WriteString(frag)
	}
	return b.String()
}

// Placeholder builds the fixed-shape object used for degraded results.
func Placeholder(raw string) map[string]any {
	out := make(map[string]any, len(Categories)+1)
	for _, c := range Categories {
		out[c] = "Could not analyze " + strings.ToLower(c) + " due to parsing error."
	}
	out[RawContentKey] = Truncate(raw, MaxRawContent)
	return out
}

// Truncate keeps at most n characters of s, appending "..." when it cut anything.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos] + "..."
		}
		i++
	}
	return s
}

func degrade(raw, reason string) Result {
	return Result{
		Kind:       Degraded,
		Tier:       TierNone,
		Value:      Placeholder(raw),
		RawContent: Truncate(raw, MaxRawContent),
		Reason:     reason,
	}
}

func decode(s string) (any, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	// the decoder tolerates some malformed input such as leading zeros
	if !gjson.Valid(s) {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return v, true
}
