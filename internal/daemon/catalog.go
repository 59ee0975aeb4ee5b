package daemon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/tidwall/gjson"
)

// ModelDescriptor is one installed model as shown to a caller. Size and
// Modified are display strings only.
type ModelDescriptor struct {
	Name     string `json:"name"`
	Size     string `json:"size"`
	Modified string `json:"modified"`
}

const unknownField = "Unknown"

// ListModels returns the installed models. It asks the daemon API first and
// falls back to the command-line tool. Only when both channels fail does it
// return a *ModelDiscoveryError; an empty slice means nothing is installed.
func (c *Client) ListModels(ctx context.Context) ([]ModelDescriptor, error) {
	var errs []error

	models, err := c.listFromAPI(ctx)
	catalogLookupsTotal.WithLabelValues("api", resultLabel(err)).Inc()
	if err == nil {
		return dedupeByName(models), nil
	}
	c.log.Debug().Err(err).Msg("catalog api channel failed, trying cli")
	errs = append(errs, fmt.Errorf("api /api/tags: %w", err))

	models, err = c.listFromCLI(ctx)
	catalogLookupsTotal.WithLabelValues("cli", resultLabel(err)).Inc()
	if err == nil {
		return dedupeByName(models), nil
	}
	c.log.Debug().Err(err).Msg("catalog cli channel failed")
	errs = append(errs, fmt.Errorf("cli %s list: %w", c.cliPath, err))

	return nil, &ModelDiscoveryError{Errors: errs}
}

// HasModel reports whether name (or name:latest) is installed.
func (c *Client) HasModel(ctx context.Context, name string) (bool, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return false, err
	}
	return FindModel(models, name) >= 0, nil
}

// FindModel returns the index of name in models, treating a bare name as
// name:latest. It returns -1 when absent.
func FindModel(models []ModelDescriptor, name string) int {
	if name == "" {
		return -1
	}
	alt := name
	if !strings.Contains(name, ":") {
		alt = name + ":latest"
	}
	for i, m := range models {
		if m.Name == name || m.Name == alt {
			return i
		}
	}
	return -1
}

func (c *Client) listFromAPI(ctx context.Context) ([]ModelDescriptor, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()
	body, err := c.getJSON(ctx, "/api/tags")
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, errors.New("malformed tags reply")
	}
	list := gjson.GetBytes(body, "models")
	if !list.IsArray() {
		return nil, errors.New("tags reply has no models array")
	}
	now := time.Now()
	var out []ModelDescriptor
	list.ForEach(func(_, m gjson.Result) bool {
		name := m.Get("name")
		if name.Type != gjson.String || name.Str == "" {
			return true
		}
		out = append(out, ModelDescriptor{
			Name:     name.Str,
			Size:     formatSize(m.Get("size")),
			Modified: formatModified(m.Get("modified_at"), now),
		})
		return true
	})
	return out, nil
}

func (c *Client) listFromCLI(ctx context.Context) ([]ModelDescriptor, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()
	out, err := c.run(ctx, c.cliPath, "list")
	if err != nil {
		return nil, err
	}
	return ParseModelList(string(out)), nil
}

// ParseModelList parses the tabular output of `ollama list`:
//
//	NAME ID SIZE_VALUE SIZE_UNIT [MODIFIED...]
//
// The header line is skipped, as are blank lines and lines with fewer than
// four columns.
func ParseModelList(output string) []ModelDescriptor {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) <= 1 {
		return nil
	}
	var models []ModelDescriptor
	for _, line := range lines[1:] {
		parts := strings.Fields(line)
		if len(parts) < 4 {
			continue
		}
		modified := unknownField
		if len(parts) > 4 {
			modified = strings.Join(parts[4:], " ")
		}
		models = append(models, ModelDescriptor{
			Name:     parts[0],
			Size:     parts[2] + parts[3],
			Modified: modified,
		})
	}
	return models
}

func dedupeByName(models []ModelDescriptor) []ModelDescriptor {
	seen := make(map[string]struct{}, len(models))
	out := make([]ModelDescriptor, 0, len(models))
	for _, m := range models {
		if _, ok := seen[m.Name]; ok {
			continue
		}
		seen[m.Name] = struct{}{}
		out = append(out, m)
	}
	return out
}

// formatSize renders a byte count the way the CLI does, without the space ("2.0GB").
func formatSize(v gjson.Result) string {
	if v.Type != gjson.Number || v.Num < 0 {
		return unknownField
	}
	return strings.ReplaceAll(humanize.Bytes(v.Uint()), " ", "")
}

func formatModified(v gjson.Result, now time.Time) string {
	if v.Type != gjson.String {
		return unknownField
	}
	t, err := time.Parse(time.RFC3339Nano, v.Str)
	if err != nil {
		return unknownField
	}
	return humanize.RelTime(t, now, "ago", "from now")
}
