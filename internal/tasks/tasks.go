// Package tasks loads task files for the assistant.
package tasks

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	json "github.com/goccy/go-json"

	"taskpilot/pkg/types"
)

// ErrEmpty is returned when a task file holds no tasks.
var ErrEmpty = errors.New("no tasks found")

// LoadFile reads a task file. The file may be a bare JSON array of tasks or
// an object with a "tasks" array.
func LoadFile(path string) ([]types.Task, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ts, err := Decode(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ts, nil
}

// Decode parses task file contents.
func Decode(b []byte) ([]types.Task, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, ErrEmpty
	}
	var out []types.Task
	switch b[0] {
	case '[':
		if err := json.Unmarshal(b, &out); err != nil {
			return nil, fmt.Errorf("decode task list: %w", err)
		}
	case '{':
		var doc struct {
			Tasks []types.Task `json:"tasks"`
		}
		if err := json.Unmarshal(b, &doc); err != nil {
			return nil, fmt.Errorf("decode task document: %w", err)
		}
		out = doc.Tasks
	default:
		return nil, errors.New("task file must be a JSON array or an object with a tasks array")
	}
	if len(out) == 0 {
		return nil, ErrEmpty
	}
	for i := range out {
		if out[i].Status == "" {
			out[i].Status = "pending"
		}
		if out[i].Priority == 0 {
			out[i].Priority = 1
		}
	}
	return out, nil
}
