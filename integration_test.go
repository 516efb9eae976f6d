//go:build integration
// +build integration

package integration_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var (
	binaryPath string
	moduleDir  string
)

func TestMain(m *testing.M) {
	wd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get working dir: %v\n", err)
		os.Exit(1)
	}
	moduleDir = wd

	tmpDir, err := os.MkdirTemp("", "gatewaylink-integration-")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create temp dir: %v\n", err)
		os.Exit(1)
	}

	binaryPath = filepath.Join(tmpDir, "gatewaylink")
	build := exec.Command("go", "build", "-o", binaryPath, "./cmd")
	build.Dir = moduleDir
	out, err := build.CombinedOutput()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build gatewaylink: %v\n%s", err, out)
		_ = os.RemoveAll(tmpDir)
		os.Exit(1)
	}

	code := m.Run()
	_ = os.RemoveAll(tmpDir)
	os.Exit(code)
}

// fakeGateway is a minimal in-process gateway: it accepts the websocket,
// answers the connect handshake with hello-ok, and serves health and
// chat.history requests.
func fakeGateway(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			var req struct {
				Type   string `json:"type"`
				ID     string `json:"id"`
				Method string `json:"method"`
			}
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			res := map[string]interface{}{"type": "res", "id": req.ID, "ok": true}
			switch req.Method {
			case "connect":
				res["payload"] = map[string]interface{}{
					"type":     "hello-ok",
					"protocol": 3,
					"server":   map[string]string{"name": "fake", "version": "0.0.1"},
					"policy":   map[string]int{"tickIntervalMs": 15000},
				}
			case "health":
				res["payload"] = map[string]interface{}{"ok": true}
			case "chat.history":
				res["payload"] = map[string]interface{}{"turns": []interface{}{}}
			default:
				res["ok"] = false
				res["error"] = map[string]string{"code": "INVALID_REQUEST", "message": "unknown method " + req.Method}
			}
			if err := conn.WriteJSON(res); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func runBinary(t *testing.T, timeout time.Duration, args ...string) (string, string, int) {
	t.Helper()
	cmd := exec.Command(binaryPath, args...)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	done := make(chan error, 1)
	if err := cmd.Start(); err != nil {
		t.Fatalf("start %s: %v", binaryPath, err)
	}
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		code := 0
		if exit, ok := err.(*exec.ExitError); ok {
			code = exit.ExitCode()
		} else if err != nil {
			t.Fatalf("wait: %v", err)
		}
		return stdout.String(), stderr.String(), code
	case <-time.After(timeout):
		_ = cmd.Process.Kill()
		t.Fatalf("gatewaylink %s did not exit within %s\nstdout:\n%s\nstderr:\n%s",
			strings.Join(args, " "), timeout, stdout.String(), stderr.String())
		return "", "", -1
	}
}

func TestDoctorAgainstLiveGateway(t *testing.T) {
	srv := fakeGateway(t)
	defer srv.Close()

	store := filepath.Join(t.TempDir(), "test.db")
	stdout, stderr, code := runBinary(t, 30*time.Second,
		"doctor", "--json", "--url", wsURL(srv)+"/ws", "--store", store)
	if code != 0 {
		t.Fatalf("doctor exit = %d\nstdout:\n%s\nstderr:\n%s", code, stdout, stderr)
	}

	var result struct {
		Checks []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"checks"`
		Summary struct {
			Pass int `json:"pass"`
			Fail int `json:"fail"`
		} `json:"summary"`
	}
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		t.Fatalf("doctor output not JSON: %v\n%s", err, stdout)
	}
	if result.Summary.Fail != 0 || result.Summary.Pass != 3 {
		t.Errorf("summary = %+v, want 3 passes", result.Summary)
	}
	for _, c := range result.Checks {
		if c.Status != "pass" {
			t.Errorf("check %s = %s", c.ID, c.Status)
		}
	}
}

func TestDoctorReportsUnreachableGateway(t *testing.T) {
	store := filepath.Join(t.TempDir(), "test.db")
	stdout, _, code := runBinary(t, 60*time.Second,
		"doctor", "--url", "ws://127.0.0.1:1/ws", "--store", store)
	if code != 1 {
		t.Fatalf("doctor exit = %d, want 1\n%s", code, stdout)
	}
	if !strings.Contains(stdout, "FAIL") {
		t.Errorf("expected a failed check in output:\n%s", stdout)
	}
}

func TestVersionFlag(t *testing.T) {
	stdout, _, code := runBinary(t, 10*time.Second, "--version")
	if code != 0 {
		t.Fatalf("exit = %d", code)
	}
	if !strings.Contains(stdout, "gatewaylink") {
		t.Errorf("version output = %q", stdout)
	}
}
