package types

// Task is one entry of a task file as exchanged with the assistant.
type Task struct {
	// example: task-001
	ID string `json:"id,omitempty" example:"task-001"`
	// example: Write quarterly report
	Title string `json:"title" example:"Write quarterly report"`
	// example: Collect numbers from finance and draft the summary.
	Description string `json:"description" example:"Collect numbers from finance and draft the summary."`
	// Titles of tasks this one depends on.
	Dependencies []string `json:"dependencies,omitempty"`
	// example: pending
	Status string `json:"status,omitempty" example:"pending"`
	// 1 (low) to 5 (urgent).
	// example: 3
	Priority int `json:"priority,omitempty" example:"3"`
	// ISO-8601 timestamps, kept as written in the task file.
	CreatedDate string `json:"created_date,omitempty"`
	DueDate     string `json:"due_date,omitempty"`
}

// Model describes one model installed on the daemon. Size and Modified are
// display strings.
type Model struct {
	// example: llama3.2:latest
	Name string `json:"name" example:"llama3.2:latest"`
	// example: 2.0GB
	Size string `json:"size" example:"2.0GB"`
	// example: 38 hours ago
	Modified string `json:"modified" example:"38 hours ago"`
}

// Event statuses.
const (
	EventStreaming = "streaming"
	EventComplete  = "complete"
	EventError     = "error"
)

// Event is one step of a suggestions or analysis stream, written as one NDJSON line.
type Event struct {
	// streaming, complete or error.
	Status string `json:"status"`
	// Text fragment for streaming events.
	Chunk string `json:"chunk,omitempty"`
	// Final result for complete events.
	Result any `json:"result,omitempty"`
	// True when the result is a placeholder built from unparseable output.
	Degraded bool `json:"degraded,omitempty"`
	// Why recovery fell back, for degraded results.
	Reason string `json:"reason,omitempty"`
	// Error message for error events.
	Message string `json:"message,omitempty"`
}
