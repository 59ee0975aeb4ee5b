package blackbox

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"testing"
	"time"

	json "github.com/goccy/go-json"
)

// findFreePort picks an available TCP port on localhost.
func findFreePort(t *testing.T) (int, func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil { t.Fatalf("listen: %v", err) }
	addr := ln.Addr().String()
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil { t.Fatalf("split: %v", err) }
	cleanup := func(){ _ = ln.Close() }
	var port int
	fmt.Sscanf(portStr, "%d", &port)
	return port, cleanup
}

func projectRootFromThisFile(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok { t.Fatal("runtime.Caller failed") }
	// this file: <root>/tests/blackbox/blackbox_test.go
	bbDir := filepath.Dir(thisFile)
	root := filepath.Dir(filepath.Dir(bbDir))
	return root
}

func buildBinary(t *testing.T) string {
	t.Helper()
	if testing.Short() { t.Skip("blackbox tests build the binary; skipped in -short") }
	root := projectRootFromThisFile(t)
	outDir := t.TempDir()
	binPath := filepath.Join(outDir, "taskpilot")
	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/taskpilot")
	cmd.Dir = root
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("go build failed: %v\n%s", err, string(out))
	}
	return binPath
}

// fakeDaemon answers the Ollama endpoints the assistant uses.
func fakeDaemon(t *testing.T) *httptest.Server {
	t.Helper()
	reply := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, body)
		}
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/version", reply(`{"version":"0.6.2"}`))
	mux.HandleFunc("/api/tags", reply(`{"models":[{"name":"alpha:latest","size":1073741824},{"name":"beta:latest","size":2147483648}]}`))
	mux.HandleFunc("/api/generate", reply(`{"response":"ok","done":true}`))
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, c := range []string{`[{"title":`, `"Draft agenda"}]`} {
			b, _ := json.Marshal(map[string]any{"message": map[string]string{"role": "assistant", "content": c}})
			_, _ = w.Write(append(b, '\n'))
		}
		_, _ = io.WriteString(w, `{"done":true}`+"\n")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// daemonEnv points the binary at daemonURL and keeps its state in a temp dir.
func daemonEnv(t *testing.T, daemonURL string) []string {
	dir := t.TempDir()
	return append(os.Environ(),
		"OLLAMA_HOST=",
		"TASKPILOT_BASE_URL="+daemonURL,
		"TASKPILOT_CLI_PATH="+filepath.Join(dir, "no-such-ollama"),
		"TASKPILOT_SESSION_FILE="+filepath.Join(dir, "session.json"),
		"TASKPILOT_PROBE_ATTEMPTS=1",
		"TASKPILOT_PROBE_DELAY_MS=10",
		"TASKPILOT_LOG_LEVEL=off",
	)
}

type serverProc struct {
	cmd  *exec.Cmd
	base string // http base URL, e.g. http://127.0.0.1:18088
}

func startServer(t *testing.T, bin, daemonURL string, port int) *serverProc {
	t.Helper()
	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	cmd := exec.Command(bin, "serve", "--addr", fmt.Sprintf("127.0.0.1:%d", port))
	cmd.Dir = t.TempDir()
	cmd.Env = daemonEnv(t, daemonURL)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	// Wait for healthz
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(base + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK { break }
		}
		if time.Now().After(deadline) {
			_ = cmd.Process.Kill()
			t.Fatalf("server did not become healthy in time")
		}
		time.Sleep(50 * time.Millisecond)
	}
	sp := &serverProc{cmd: cmd, base: base}
	t.Cleanup(func(){ _ = cmd.Process.Kill() })
	return sp
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil { t.Fatalf("new req: %v", err) }
	resp, err := http.DefaultClient.Do(req)
	if err != nil { t.Fatalf("do: %v", err) }
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func postJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil { t.Fatalf("new req: %v", err) }
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil { t.Fatalf("do: %v", err) }
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func TestBlackbox_ServeFlow(t *testing.T) {
	bin := buildBinary(t)
	daemon := fakeDaemon(t)
	// Reserve a free port, then release listener before starting the server
	port, release := findFreePort(t)
	release()
	sp := startServer(t, bin, daemon.URL, port)

	// /readyz: startup readiness already ran against the fake daemon
	resp, body := get(t, sp.base+"/readyz")
	if resp.StatusCode != http.StatusOK { t.Fatalf("/readyz %d %s", resp.StatusCode, string(body)) }
	var status struct{ Ready bool `json:"ready"`; Model string `json:"model"` }
	if err := json.Unmarshal(body, &status); err != nil { t.Fatalf("/readyz json: %v body=%s", err, string(body)) }
	if !status.Ready || status.Model != "alpha:latest" { t.Fatalf("/readyz status=%+v", status) }

	// /models
	resp, body = get(t, sp.base+"/models")
	if resp.StatusCode != http.StatusOK { t.Fatalf("/models %d %s", resp.StatusCode, string(body)) }
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") { t.Fatalf("/models content-type=%s", ct) }
	var modelsResp struct{ Models []struct{ Name string `json:"name"`; Size string `json:"size"` } `json:"models"` }
	if err := json.Unmarshal(body, &modelsResp); err != nil { t.Fatalf("/models json: %v body=%s", err, string(body)) }
	if len(modelsResp.Models) != 2 || modelsResp.Models[1].Size != "2.1GB" { t.Fatalf("models=%+v", modelsResp.Models) }

	// /suggestions streams NDJSON and ends with one complete event
	resp, body = postJSON(t, sp.base+"/suggestions", []byte(`{"context":"team offsite"}`))
	if resp.StatusCode != http.StatusOK { t.Fatalf("/suggestions %d %s", resp.StatusCode, string(body)) }
	var last map[string]any
	sc := bufio.NewScanner(bytes.NewReader(body))
	lines := 0
	for sc.Scan() {
		lines++
		last = nil
		if err := json.Unmarshal(sc.Bytes(), &last); err != nil { t.Fatalf("line %q: %v", sc.Text(), err) }
	}
	if lines != 3 || last["status"] != "complete" { t.Fatalf("lines=%d last=%v", lines, last) }

	// graceful shutdown on SIGTERM
	_ = sp.cmd.Process.Signal(syscall.SIGTERM)
	done := make(chan error, 1)
	go func() { done <- sp.cmd.Wait() }()
	select {
	case err := <-done:
		if err != nil { t.Fatalf("server exit: %v", err) }
	case <-time.After(10 * time.Second):
		t.Fatalf("server did not shut down")
	}
}

func TestBlackbox_ServeWithoutDaemon_NotReady(t *testing.T) {
	bin := buildBinary(t)
	port, release := findFreePort(t)
	release()
	dead, dRelease := findFreePort(t)
	dRelease()
	sp := startServer(t, bin, fmt.Sprintf("http://127.0.0.1:%d", dead), port)

	resp, body := get(t, sp.base+"/readyz")
	if resp.StatusCode != http.StatusServiceUnavailable { t.Fatalf("/readyz %d %s", resp.StatusCode, string(body)) }
	resp, body = postJSON(t, sp.base+"/suggestions", []byte(`{"context":"x"}`))
	if resp.StatusCode != http.StatusServiceUnavailable { t.Fatalf("/suggestions %d %s", resp.StatusCode, string(body)) }
}

func TestBlackbox_ModelsCommand(t *testing.T) {
	bin := buildBinary(t)
	daemon := fakeDaemon(t)
	cmd := exec.Command(bin, "models", "--json")
	cmd.Dir = t.TempDir()
	cmd.Env = daemonEnv(t, daemon.URL)
	out, err := cmd.Output()
	if err != nil { t.Fatalf("models: %v", err) }
	var models []map[string]string
	if err := json.Unmarshal(out, &models); err != nil { t.Fatalf("json: %v out=%s", err, string(out)) }
	if len(models) != 2 || models[0]["name"] != "alpha:latest" { t.Fatalf("models=%v", models) }
}
