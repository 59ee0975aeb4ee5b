package daemon

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"taskpilot/internal/cascade"
)

// Method identifies which verification check succeeded.
type Method int

const (
	MethodNone Method = iota
	MethodDirectGenerate
	MethodModelInfo
	MethodChatEcho
	MethodGenerateEcho
)

func (m Method) String() string {
	switch m {
	case MethodDirectGenerate:
		return "direct_generate"
	case MethodModelInfo:
		return "model_info"
	case MethodChatEcho:
		return "chat_echo"
	case MethodGenerateEcho:
		return "generate_echo"
	default:
		return "none"
	}
}

// MarshalText encodes the method by name.
func (m Method) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// VerificationOutcome is the result of one Verify call. When Verified is true,
// Method is the first check in cascade order that succeeded.
type VerificationOutcome struct {
	ModelName string `json:"model"`
	Verified  bool   `json:"verified"`
	Method    Method `json:"method"`
}

// DefaultVerifyTimeout bounds each individual verification check.
const DefaultVerifyTimeout = 10 * time.Second

const verifyPrompt = "Test."

// Verify proves model is loadable and responsive by trying, in order, a direct
// generate call, a model info lookup, a chat echo and a generate echo through
// the reply-decoding client path. It stops at the first success. Every failure
// is absorbed; when all checks fail the outcome is unverified with MethodNone.
func (c *Client) Verify(ctx context.Context, model string, timeout time.Duration) VerificationOutcome {
	if timeout <= 0 {
		timeout = DefaultVerifyTimeout
	}
	checks := []struct {
		method Method
		fn     func(context.Context, string) error
	}{
		{MethodDirectGenerate, c.checkDirectGenerate},
		{MethodModelInfo, c.checkModelInfo},
		{MethodChatEcho, c.checkChatEcho},
		{MethodGenerateEcho, c.checkGenerateEcho},
	}
	chain := make([]cascade.Strategy[string, Method], 0, len(checks))
	for _, ch := range checks {
		chain = append(chain, cascade.Func[string, Method]{
			Label: ch.method.String(),
			Fn: func(ctx context.Context, model string) (Method, error) {
				ctx, cancel := context.WithTimeout(ctx, timeout)
				defer cancel()
				if err := ch.fn(ctx, model); err != nil {
					return MethodNone, err
				}
				return ch.method, nil
			},
		})
	}

	log := c.log.With().Str("model", model).Logger()
	res := cascade.First(ctx, model, func(name string, err error) {
		verifyAttemptsTotal.WithLabelValues(name, resultLabel(err)).Inc()
		if err != nil {
			log.Debug().Str("method", name).Err(err).Msg("verification check failed")
		}
	}, chain...)

	if !res.OK() {
		log.Warn().Err(res.Err()).Msg("model failed every verification check")
		return VerificationOutcome{ModelName: model, Method: MethodNone}
	}
	log.Info().Str("method", res.Strategy).Msg("model verified")
	return VerificationOutcome{ModelName: model, Verified: true, Method: res.Value}
}

func (c *Client) checkDirectGenerate(ctx context.Context, model string) error {
	resp, err := c.post(ctx, "/api/generate", GenerateRequest{Model: model, Prompt: verifyPrompt})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}
	return nil
}

func (c *Client) checkModelInfo(ctx context.Context, model string) error {
	resp, err := c.post(ctx, "/api/show", map[string]string{"name": model})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if !gjson.ValidBytes(body) {
		return errors.New("show reply is not valid JSON")
	}
	mf := gjson.GetBytes(body, "modelfile")
	if mf.Type != gjson.String || mf.Str == "" {
		return errors.New("show reply has no modelfile")
	}
	return nil
}

func (c *Client) checkChatEcho(ctx context.Context, model string) error {
	reply, err := c.Chat(ctx, ChatRequest{
		Model:    model,
		Messages: []Message{{Role: "user", Content: verifyPrompt}},
	})
	if err != nil {
		return err
	}
	if _, ok := reply.MessageContent(); !ok {
		return errors.New("chat reply has unexpected shape: " + reply.Kind().String())
	}
	return nil
}

func (c *Client) checkGenerateEcho(ctx context.Context, model string) error {
	reply, err := c.Generate(ctx, GenerateRequest{Model: model, Prompt: verifyPrompt})
	if err != nil {
		return err
	}
	if !reply.Has("response") {
		return errors.New("generate reply has no response field: " + reply.Kind().String())
	}
	return nil
}
