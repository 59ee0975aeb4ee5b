package daemon

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const sampleList = `
NAME                    ID              SIZE   MODIFIED
llama3.2:latest        a80c4f17acd5    2.0    GB     38 hours ago
gemma3:latest          a2af6cc3eb7f    3.3    GB     2 weeks ago
`

func TestParseModelList(t *testing.T) {
	got := ParseModelList(sampleList)
	want := []ModelDescriptor{
		{Name: "llama3.2:latest", Size: "2.0GB", Modified: "38 hours ago"},
		{Name: "gemma3:latest", Size: "3.3GB", Modified: "2 weeks ago"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestParseModelList_EdgeCases(t *testing.T) {
	if got := ParseModelList(""); len(got) != 0 {
		t.Fatalf("empty output: %v", got)
	}
	if got := ParseModelList("NAME ID SIZE MODIFIED\n"); len(got) != 0 {
		t.Fatalf("header only: %v", got)
	}
	out := "NAME ID SIZE UNIT MODIFIED\n\nshort line\nmistral:7b abc 4.1 GB\n   \n"
	got := ParseModelList(out)
	want := []ModelDescriptor{{Name: "mistral:7b", Size: "4.1GB", Modified: "Unknown"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func failingRunner(t *testing.T) CommandRunner {
	return func(context.Context, string, ...string) ([]byte, error) {
		t.Fatalf("cli fallback should not run")
		return nil, nil
	}
}

func TestListModels_API(t *testing.T) {
	modified := time.Now().Add(-38 * time.Hour).UTC().Format(time.RFC3339Nano)
	fd := newFakeDaemon(t, map[string]http.HandlerFunc{
		"/api/tags": jsonHandler(http.StatusOK, `{"models":[
			{"name":"llama3.2:latest","size":2019393189,"modified_at":"`+modified+`"},
			{"name":"llama3.2:latest","size":1,"modified_at":"`+modified+`"},
			{"name":"nomic-embed-text:latest"},
			{"size":5}
		]}`),
	})
	c := New(Options{BaseURL: fd.URL, Runner: failingRunner(t)})
	models, err := c.ListModels(testCtx(t))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected deduped list of 2, got %+v", models)
	}
	if models[0].Name != "llama3.2:latest" || models[0].Size != "2.0GB" {
		t.Fatalf("first=%+v", models[0])
	}
	if !strings.HasSuffix(models[0].Modified, " ago") {
		t.Fatalf("modified=%q", models[0].Modified)
	}
	if models[1].Size != "Unknown" || models[1].Modified != "Unknown" {
		t.Fatalf("second=%+v", models[1])
	}
}

func TestListModels_EmptyCatalogIsValid(t *testing.T) {
	fd := newFakeDaemon(t, map[string]http.HandlerFunc{
		"/api/tags": jsonHandler(http.StatusOK, `{"models":[]}`),
	})
	c := New(Options{BaseURL: fd.URL, Runner: failingRunner(t)})
	models, err := c.ListModels(testCtx(t))
	if err != nil || len(models) != 0 {
		t.Fatalf("models=%v err=%v", models, err)
	}
}

func TestListModels_FallsBackToCLI(t *testing.T) {
	for name, handler := range map[string]http.HandlerFunc{
		"http error":  jsonHandler(http.StatusInternalServerError, `{"error":"boom"}`),
		"malformed":   jsonHandler(http.StatusOK, `not json`),
		"wrong shape": jsonHandler(http.StatusOK, `{"unexpected":"structure"}`),
	} {
		t.Run(name, func(t *testing.T) {
			fd := newFakeDaemon(t, map[string]http.HandlerFunc{"/api/tags": handler})
			var gotName string
			var gotArgs []string
			c := New(Options{BaseURL: fd.URL, CLIPath: "/opt/bin/ollama", Runner: func(_ context.Context, name string, args ...string) ([]byte, error) {
				gotName, gotArgs = name, args
				return []byte(sampleList + "llama3.2:latest a80c4f17acd5 2.0 GB 38 hours ago\n"), nil
			}})
			models, err := c.ListModels(testCtx(t))
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if gotName != "/opt/bin/ollama" || strings.Join(gotArgs, " ") != "list" {
				t.Fatalf("ran %s %v", gotName, gotArgs)
			}
			if len(models) != 2 {
				t.Fatalf("expected deduped cli models, got %+v", models)
			}
		})
	}
}

func TestListModels_BothChannelsFail(t *testing.T) {
	c := New(Options{
		BaseURL:        "http://127.0.0.1:1",
		RequestTimeout: time.Second,
		Runner: func(context.Context, string, ...string) ([]byte, error) {
			return nil, errors.New("exec: \"ollama\": executable file not found in $PATH")
		},
	})
	models, err := c.ListModels(testCtx(t))
	if err == nil {
		t.Fatalf("expected error, got %v", models)
	}
	var de *ModelDiscoveryError
	if !errors.As(err, &de) || !IsModelDiscovery(err) {
		t.Fatalf("expected ModelDiscoveryError, got %T", err)
	}
	if len(de.Errors) != 2 {
		t.Fatalf("errors=%v", de.Errors)
	}
	msg := err.Error()
	if !strings.Contains(msg, "api /api/tags") || !strings.Contains(msg, "executable file not found") {
		t.Fatalf("message=%q", msg)
	}
}

func TestHasModelAndFindModel(t *testing.T) {
	fd := newFakeDaemon(t, map[string]http.HandlerFunc{
		"/api/tags": jsonHandler(http.StatusOK, `{"models":[{"name":"mistral:latest"},{"name":"phi3:mini"}]}`),
	})
	c := fd.client(t)
	for name, want := range map[string]bool{"mistral": true, "mistral:latest": true, "phi3:mini": true, "phi3": false, "": false} {
		got, err := c.HasModel(testCtx(t), name)
		if err != nil || got != want {
			t.Fatalf("HasModel(%q)=%v err=%v want %v", name, got, err, want)
		}
	}
}
