package hooks

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/emdx-dev/emdx/internal/types"
)

func TestNewRunner(t *testing.T) {
	runner := NewRunner("/tmp/hooks")
	if runner == nil {
		t.Fatal("NewRunner returned nil")
	}
	if runner.hooksDir != "/tmp/hooks" {
		t.Errorf("hooksDir = %q, want %q", runner.hooksDir, "/tmp/hooks")
	}
	if runner.timeout != 10*time.Second {
		t.Errorf("timeout = %v, want %v", runner.timeout, 10*time.Second)
	}
}

func TestNewRunnerFromWorkspace(t *testing.T) {
	runner := NewRunnerFromWorkspace("/workspace")
	if runner == nil {
		t.Fatal("NewRunnerFromWorkspace returned nil")
	}
	expected := filepath.Join("/workspace", ".emdx", "hooks")
	if runner.hooksDir != expected {
		t.Errorf("hooksDir = %q, want %q", runner.hooksDir, expected)
	}
}

func TestEventToHook(t *testing.T) {
	tests := []struct {
		event    string
		expected string
	}{
		{EventSave, HookOnSave},
		{EventEdit, HookOnEdit},
		{EventDelete, HookOnDelete},
		{EventRestore, HookOnRestore},
		{"unknown", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			result := eventToHook(tt.event)
			if result != tt.expected {
				t.Errorf("eventToHook(%q) = %q, want %q", tt.event, result, tt.expected)
			}
		})
	}
}

func TestHookExists_NoHook(t *testing.T) {
	tmpDir := t.TempDir()
	runner := NewRunner(tmpDir)

	if runner.HookExists(EventSave) {
		t.Error("HookExists returned true for non-existent hook")
	}
}

func TestHookExists_NotExecutable(t *testing.T) {
	tmpDir := t.TempDir()
	hookPath := filepath.Join(tmpDir, HookOnSave)

	if err := os.WriteFile(hookPath, []byte("#!/bin/sh\necho test"), 0644); err != nil {
		t.Fatalf("Failed to create hook file: %v", err)
	}

	runner := NewRunner(tmpDir)

	if runner.HookExists(EventSave) {
		t.Error("HookExists returned true for non-executable hook")
	}
}

func TestHookExists_Executable(t *testing.T) {
	tmpDir := t.TempDir()
	hookPath := filepath.Join(tmpDir, HookOnSave)

	if err := os.WriteFile(hookPath, []byte("#!/bin/sh\necho test"), 0755); err != nil {
		t.Fatalf("Failed to create hook file: %v", err)
	}

	runner := NewRunner(tmpDir)

	if !runner.HookExists(EventSave) {
		t.Error("HookExists returned false for executable hook")
	}
}

func TestHookExists_Directory(t *testing.T) {
	tmpDir := t.TempDir()
	hookPath := filepath.Join(tmpDir, HookOnSave)

	if err := os.MkdirAll(hookPath, 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	runner := NewRunner(tmpDir)

	if runner.HookExists(EventSave) {
		t.Error("HookExists returned true for directory")
	}
}

func TestRunSync_NoHook(t *testing.T) {
	tmpDir := t.TempDir()
	runner := NewRunner(tmpDir)

	doc := &types.Document{ID: 1, Title: "Test"}

	if err := runner.RunSync(EventSave, doc); err != nil {
		t.Errorf("RunSync returned error for non-existent hook: %v", err)
	}
}

func TestRunSync_NotExecutable(t *testing.T) {
	tmpDir := t.TempDir()
	hookPath := filepath.Join(tmpDir, HookOnSave)

	if err := os.WriteFile(hookPath, []byte("#!/bin/sh\necho test"), 0644); err != nil {
		t.Fatalf("Failed to create hook file: %v", err)
	}

	runner := NewRunner(tmpDir)
	doc := &types.Document{ID: 1, Title: "Test"}

	if err := runner.RunSync(EventSave, doc); err != nil {
		t.Errorf("RunSync returned error for non-executable hook: %v", err)
	}
}

func TestRunSync_Success(t *testing.T) {
	tmpDir := t.TempDir()
	hookPath := filepath.Join(tmpDir, HookOnSave)
	outputFile := filepath.Join(tmpDir, "output.txt")

	hookScript := `#!/bin/sh
echo "$1 $2" > ` + outputFile
	if err := os.WriteFile(hookPath, []byte(hookScript), 0755); err != nil {
		t.Fatalf("Failed to create hook file: %v", err)
	}

	runner := NewRunner(tmpDir)
	doc := &types.Document{ID: 42, Title: "Test Document"}

	if err := runner.RunSync(EventSave, doc); err != nil {
		t.Errorf("RunSync returned error: %v", err)
	}

	output, err := os.ReadFile(outputFile)
	if err != nil {
		t.Fatalf("Failed to read output file: %v", err)
	}

	expected := "42 save\n"
	if string(output) != expected {
		t.Errorf("Hook output = %q, want %q", string(output), expected)
	}
}

func TestRunSync_SetsAutoSaveEnv(t *testing.T) {
	tmpDir := t.TempDir()
	hookPath := filepath.Join(tmpDir, HookOnSave)
	outputFile := filepath.Join(tmpDir, "env.txt")

	hookScript := `#!/bin/sh
echo "$EMDX_AUTO_SAVE" > ` + outputFile
	if err := os.WriteFile(hookPath, []byte(hookScript), 0755); err != nil {
		t.Fatalf("Failed to create hook file: %v", err)
	}

	runner := NewRunner(tmpDir)
	doc := &types.Document{ID: 1, Title: "Test"}

	if err := runner.RunSync(EventSave, doc); err != nil {
		t.Errorf("RunSync returned error: %v", err)
	}

	output, err := os.ReadFile(outputFile)
	if err != nil {
		t.Fatalf("Failed to read output file: %v", err)
	}
	if strings.TrimSpace(string(output)) != "1" {
		t.Errorf("EMDX_AUTO_SAVE = %q, want \"1\"", strings.TrimSpace(string(output)))
	}
}

func TestRunSync_ReceivesJSON(t *testing.T) {
	tmpDir := t.TempDir()
	hookPath := filepath.Join(tmpDir, HookOnSave)
	outputFile := filepath.Join(tmpDir, "stdin.txt")

	hookScript := `#!/bin/sh
cat > ` + outputFile
	if err := os.WriteFile(hookPath, []byte(hookScript), 0755); err != nil {
		t.Fatalf("Failed to create hook file: %v", err)
	}

	runner := NewRunner(tmpDir)
	doc := &types.Document{ID: 1, Title: "Test Document", Project: "emdx"}

	if err := runner.RunSync(EventSave, doc); err != nil {
		t.Errorf("RunSync returned error: %v", err)
	}

	output, err := os.ReadFile(outputFile)
	if err != nil {
		t.Fatalf("Failed to read output file: %v", err)
	}

	if len(output) == 0 || output[0] != '{' {
		t.Errorf("Hook input doesn't look like JSON: %s", string(output))
	}
}

func TestRunSync_Timeout(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping timeout test in short mode")
	}

	tmpDir := t.TempDir()
	hookPath := filepath.Join(tmpDir, HookOnSave)

	hookScript := `#!/bin/sh
sleep 60`
	if err := os.WriteFile(hookPath, []byte(hookScript), 0755); err != nil {
		t.Fatalf("Failed to create hook file: %v", err)
	}

	runner := &Runner{hooksDir: tmpDir, timeout: 500 * time.Millisecond}
	doc := &types.Document{ID: 1, Title: "Test"}

	start := time.Now()
	err := runner.RunSync(EventSave, doc)
	elapsed := time.Since(start)

	if err == nil {
		t.Error("RunSync should have returned error for timeout")
	}
	if elapsed > 5*time.Second {
		t.Errorf("RunSync took too long: %v", elapsed)
	}
}

func TestRunSync_KillsDescendants(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("TestRunSync_KillsDescendants requires Linux /proc")
	}
	if testing.Short() {
		t.Skip("Skipping long-running descendant kill test in short mode")
	}

	tmpDir := t.TempDir()
	hookPath := filepath.Join(tmpDir, HookOnSave)
	pidFile := filepath.Join(tmpDir, "child.pid")

	hookScript := `#!/bin/sh
(sleep 60 & echo $! > ` + pidFile + ` ; wait)`
	if err := os.WriteFile(hookPath, []byte(hookScript), 0755); err != nil {
		t.Fatalf("Failed to create hook file: %v", err)
	}

	runner := &Runner{hooksDir: tmpDir, timeout: 500 * time.Millisecond}
	doc := &types.Document{ID: 1, Title: "Test"}

	if err := runner.RunSync(EventSave, doc); err == nil {
		t.Fatal("Expected RunSync to return an error on timeout")
	}

	data, err := os.ReadFile(pidFile)
	if err != nil {
		t.Fatalf("Failed to read pid file: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatalf("Invalid pid in pid file: %v", err)
	}

	for i := 0; i < 10; i++ {
		if _, err := os.Stat(filepath.Join("/proc", strconv.Itoa(pid))); err != nil {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}

	t.Fatalf("Child process %d still exists after timeout", pid)
}

func TestRunSync_HookFailure(t *testing.T) {
	tmpDir := t.TempDir()
	hookPath := filepath.Join(tmpDir, HookOnEdit)

	hookScript := `#!/bin/sh
exit 1`
	if err := os.WriteFile(hookPath, []byte(hookScript), 0755); err != nil {
		t.Fatalf("Failed to create hook file: %v", err)
	}

	runner := NewRunner(tmpDir)
	doc := &types.Document{ID: 1, Title: "Test"}

	if err := runner.RunSync(EventEdit, doc); err == nil {
		t.Error("RunSync should have returned error for failed hook")
	}
}

func TestRun_Async(t *testing.T) {
	tmpDir := t.TempDir()
	hookPath := filepath.Join(tmpDir, HookOnDelete)
	outputFile := filepath.Join(tmpDir, "async_output.txt")

	hookScript := "#!/bin/sh\n" +
		"echo \"async\" > \"" + outputFile + "\"\n"
	if err := os.WriteFile(hookPath, []byte(hookScript), 0755); err != nil {
		t.Fatalf("Failed to create hook file: %v", err)
	}

	runner := NewRunner(tmpDir)
	doc := &types.Document{ID: 1, Title: "Test"}

	runner.Run(EventDelete, doc)

	var output []byte
	var err error
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		output, err = os.ReadFile(outputFile)
		if err == nil {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	if err != nil {
		t.Fatalf("Failed to read output file after retries: %v", err)
	}

	expected := "async\n"
	if string(output) != expected {
		t.Errorf("Hook output = %q, want %q", string(output), expected)
	}
}

func TestAllHookEvents(t *testing.T) {
	events := []struct {
		event string
		hook  string
	}{
		{EventSave, HookOnSave},
		{EventEdit, HookOnEdit},
		{EventDelete, HookOnDelete},
		{EventRestore, HookOnRestore},
	}

	for _, e := range events {
		t.Run(e.event, func(t *testing.T) {
			result := eventToHook(e.event)
			if result != e.hook {
				t.Errorf("eventToHook(%q) = %q, want %q", e.event, result, e.hook)
			}
		})
	}
}
