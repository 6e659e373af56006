// Package logger provides structured logging setup and crash recovery for TaskPace.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	// CrashLogDir is the crash log directory relative to the data directory.
	CrashLogDir = "crash_logs"

	// MaxCrashLogs is the number of crash logs kept on disk.
	MaxCrashLogs = 10
)

// crashState is what gets written next to the stack trace.
type crashState struct {
	mu       sync.RWMutex
	dataDir  string
	version  string
	command  string
	taskID   string
	exitFunc func(int)
}

var state = &crashState{exitFunc: os.Exit}

// SetDataDir sets the directory under which crash_logs/ is created.
func SetDataDir(dir string) {
	state.mu.Lock()
	defer state.mu.Unlock()
	state.dataDir = dir
}

// SetVersion sets the application version recorded in crash logs.
func SetVersion(version string) {
	state.mu.Lock()
	defer state.mu.Unlock()
	state.version = version
}

// SetCommand records the command line being executed.
func SetCommand(cmd string) {
	state.mu.Lock()
	defer state.mu.Unlock()
	state.command = truncate(strings.TrimSpace(cmd), 500)
}

// SetTask records the task id the current operation acts on.
func SetTask(id string) {
	state.mu.Lock()
	defer state.mu.Unlock()
	state.taskID = id
}

func truncate(value string, maxLen int) string {
	if len(value) <= maxLen {
		return value
	}
	return value[:maxLen] + "... [truncated]"
}

// CrashLog is one recovered panic.
type CrashLog struct {
	Timestamp  time.Time `json:"timestamp"`
	Version    string    `json:"version"`
	Command    string    `json:"command"`
	TaskID     string    `json:"task_id,omitempty"`
	PanicValue string    `json:"panic_value"`
	StackTrace string    `json:"stack_trace"`
	GoVersion  string    `json:"go_version"`
	Platform   string    `json:"platform"`
}

// HandlePanic recovers a panic, writes a crash log and exits with status 1.
// Usage: defer logger.HandlePanic()
func HandlePanic() {
	r := recover()
	if r == nil {
		return
	}
	report(os.Stderr, r)

	state.mu.RLock()
	exit := state.exitFunc
	state.mu.RUnlock()
	exit(1)
}

func report(w io.Writer, r any) {
	entry := newCrashLog(r)
	path, err := writeCrashLog(entry)
	if err != nil {
		fmt.Fprintf(w, "\n[CRASH] could not write crash log: %v\n", err)
		fmt.Fprintf(w, "[CRASH] panic: %v\n%s\n", r, entry.StackTrace)
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "TaskPace stopped unexpectedly.")
	fmt.Fprintln(w, "A crash log has been saved to:")
	fmt.Fprintf(w, "  %s\n\n", path)
	fmt.Fprintln(w, "Please attach it when reporting the issue at:")
	fmt.Fprintln(w, "  https://github.com/josephgoksu/TaskPace/issues")
}

func newCrashLog(panicValue any) CrashLog {
	state.mu.RLock()
	defer state.mu.RUnlock()

	return CrashLog{
		Timestamp:  time.Now(),
		Version:    state.version,
		Command:    state.command,
		TaskID:     state.taskID,
		PanicValue: fmt.Sprintf("%v", panicValue),
		StackTrace: string(debug.Stack()),
		GoVersion:  runtime.Version(),
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func writeCrashLog(entry CrashLog) (string, error) {
	dir := crashLogDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create crash log dir: %w", err)
	}

	path := filepath.Join(dir, crashLogName(entry.Timestamp))
	if err := os.WriteFile(path, []byte(entry.Format()), 0o644); err != nil {
		return "", fmt.Errorf("write crash log: %w", err)
	}

	if err := pruneCrashLogs(dir, MaxCrashLogs); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] failed to prune crash logs: %v\n", err)
	}
	return path, nil
}

func crashLogDir() string {
	state.mu.RLock()
	dir := state.dataDir
	state.mu.RUnlock()
	if dir == "" {
		dir = ".taskpace"
	}
	return filepath.Join(dir, CrashLogDir)
}

func crashLogName(t time.Time) string {
	return fmt.Sprintf("crash_%s.log", t.Format("20060102_150405.000"))
}

func isCrashLog(name string) bool {
	return strings.HasPrefix(name, "crash_") && strings.HasSuffix(name, ".log")
}

// Format renders the crash log as plain text.
func (c CrashLog) Format() string {
	rule := strings.Repeat("=", 80) + "\n"
	section := func(sb *strings.Builder, title, body string) {
		sb.WriteString("\n" + strings.Repeat("-", 80) + "\n")
		sb.WriteString(title + "\n")
		sb.WriteString(strings.Repeat("-", 80) + "\n")
		sb.WriteString(strings.TrimRight(body, "\n") + "\n")
	}

	var sb strings.Builder
	sb.WriteString(rule)
	sb.WriteString("TASKPACE CRASH LOG\n")
	sb.WriteString(rule + "\n")
	fmt.Fprintf(&sb, "Timestamp: %s\n", c.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&sb, "Version:   %s\n", c.Version)
	fmt.Fprintf(&sb, "Command:   %s\n", c.Command)
	if c.TaskID != "" {
		fmt.Fprintf(&sb, "Task:      %s\n", c.TaskID)
	}
	fmt.Fprintf(&sb, "Go:        %s\n", c.GoVersion)
	fmt.Fprintf(&sb, "Platform:  %s\n", c.Platform)

	section(&sb, "PANIC VALUE", c.PanicValue)
	section(&sb, "STACK TRACE", c.StackTrace)

	sb.WriteString("\n" + rule)
	sb.WriteString("END OF CRASH LOG\n")
	sb.WriteString(rule)
	return sb.String()
}

// pruneCrashLogs keeps the newest keep crash logs in dir.
func pruneCrashLogs(dir string, keep int) error {
	logs, err := listCrashLogs(dir)
	if err != nil || len(logs) <= keep {
		return err
	}
	for _, path := range logs[:len(logs)-keep] {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove old crash log %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}

func listCrashLogs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var logs []string
	for _, e := range entries {
		if !e.IsDir() && isCrashLog(e.Name()) {
			logs = append(logs, filepath.Join(dir, e.Name()))
		}
	}
	// Names embed the timestamp, so lexical order is chronological.
	sort.Strings(logs)
	return logs, nil
}

// ListCrashLogs returns crash log paths, oldest first.
func ListCrashLogs() ([]string, error) {
	return listCrashLogs(crashLogDir())
}
