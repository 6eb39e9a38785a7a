package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
)

// resetLogger replaces the singleton with a fresh logger writing to a buffer.
func resetLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	once = sync.Once{}
	loggerInstance = nil

	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(nil) })
	return &buf
}

// =============================================================================
// Logger Tests
// =============================================================================

// TestGetLogger verifies singleton pattern - same instance returned
func TestGetLogger(t *testing.T) {
	logger1 := GetLogger()
	logger2 := GetLogger()

	if logger1 != logger2 {
		t.Error("GetLogger() should return same singleton instance")
	}
}

// TestLoggerDefaultVerboseMode verifies verbose is false by default
func TestLoggerDefaultVerboseMode(t *testing.T) {
	_ = resetLogger(t)

	if GetLogger().IsVerbose() {
		t.Error("Logger should have verbose=false by default")
	}
}

// TestSetVerboseMode verifies SetVerboseMode changes verbose state
func TestSetVerboseMode(t *testing.T) {
	_ = resetLogger(t)

	SetVerboseMode(true)
	logger := GetLogger()
	if !logger.IsVerbose() {
		t.Error("SetVerboseMode(true) should enable verbose mode")
	}

	SetVerboseMode(false)
	if logger.IsVerbose() {
		t.Error("SetVerboseMode(false) should disable verbose mode")
	}
}

// TestDebugOnlyShownWhenVerbose verifies Debug output only when verbose=true
func TestDebugOnlyShownWhenVerbose(t *testing.T) {
	buf := resetLogger(t)

	logger := GetLogger()
	logger.SetVerbose(false)
	logger.Debug("test message")

	if buf.Len() > 0 {
		t.Errorf("Debug should not output when verbose=false, got: %s", buf.String())
	}

	logger.SetVerbose(true)
	logger.Debug("test message verbose")

	if !strings.Contains(buf.String(), "[DEBUG]") {
		t.Errorf("Debug should output [DEBUG] prefix when verbose=true, got: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "test message verbose") {
		t.Errorf("Debug should output message when verbose=true, got: %s", buf.String())
	}
}

// TestLogLevelPrefixes verifies each level has correct prefix
func TestLogLevelPrefixes(t *testing.T) {
	tests := []struct {
		name    string
		logFunc func(*Logger, string)
		prefix  string
		verbose bool
	}{
		{"Debug", func(l *Logger, m string) { l.Debug("%s", m) }, "[DEBUG]", true},
		{"Info", func(l *Logger, m string) { l.Info("%s", m) }, "[INFO]", false},
		{"Warn", func(l *Logger, m string) { l.Warn("%s", m) }, "[WARN]", false},
		{"Error", func(l *Logger, m string) { l.Error("%s", m) }, "[ERROR]", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := resetLogger(t)

			logger := GetLogger()
			logger.SetVerbose(tt.verbose)
			tt.logFunc(logger, "test")

			if !strings.Contains(buf.String(), tt.prefix) {
				t.Errorf("%s should have prefix %s, got: %s", tt.name, tt.prefix, buf.String())
			}
		})
	}
}

// TestConvenienceFunctions verifies global Debugf, Infof, Warnf, Errorf functions
func TestConvenienceFunctions(t *testing.T) {
	tests := []struct {
		name    string
		logFunc func(string, ...interface{})
		prefix  string
	}{
		{"Debugf", Debugf, "[DEBUG]"},
		{"Infof", Infof, "[INFO]"},
		{"Warnf", Warnf, "[WARN]"},
		{"Errorf", Errorf, "[ERROR]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := resetLogger(t)
			SetVerboseMode(true)

			tt.logFunc("formatted %s", "value")

			if !strings.Contains(buf.String(), tt.prefix) {
				t.Errorf("%s should have prefix %s, got: %s", tt.name, tt.prefix, buf.String())
			}
			if !strings.Contains(buf.String(), "formatted value") {
				t.Errorf("%s should format message, got: %s", tt.name, buf.String())
			}
		})
	}
}

// TestSetOutputNilRestoresStderr verifies a nil writer falls back to stderr
func TestSetOutputNilRestoresStderr(t *testing.T) {
	_ = resetLogger(t)

	SetOutput(nil)
	if GetLogger().writer() != os.Stderr {
		t.Error("SetOutput(nil) should restore os.Stderr")
	}
}

// TestLoggerThreadSafety verifies concurrent access is safe
func TestLoggerThreadSafety(t *testing.T) {
	_ = resetLogger(t)
	logger := GetLogger()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			logger.SetVerbose(n%2 == 0)
			logger.Debug("debug %d", n)
		}(i)
	}
	wg.Wait()
}

// TestVerboseTimestampFormat verifies debug lines carry an HH:MM:SS prefix
func TestVerboseTimestampFormat(t *testing.T) {
	buf := resetLogger(t)

	logger := GetLogger()
	logger.SetVerbose(true)
	logger.Debug("format check")

	linePattern := regexp.MustCompile(`^\d{2}:\d{2}:\d{2} \[DEBUG\] format check\n$`)
	if !linePattern.MatchString(buf.String()) {
		t.Errorf("expected output matching 'HH:MM:SS [DEBUG] format check\\n', got: %q", buf.String())
	}
}

// TestNonVerboseNoTimestamp verifies non-debug output has no timestamp
func TestNonVerboseNoTimestamp(t *testing.T) {
	buf := resetLogger(t)

	GetLogger().Info("info without timestamp")
	if !strings.HasPrefix(buf.String(), "[INFO]") {
		t.Errorf("Info output should start with [INFO] (no timestamp), got: %q", buf.String())
	}
}

// =============================================================================
// BackgroundLogger Tests
// =============================================================================

// TestBackgroundLoggerGracefulDegradation verifies fallback to io.Discard
func TestBackgroundLoggerGracefulDegradation(t *testing.T) {
	bl, _ := NewBackgroundLoggerWithPath("/nonexistent/directory/log.txt")

	bl.Printf("This should not panic: %s", "test")
	_, _ = bl.Write([]byte("neither should this"))
	bl.Close()

	if bl.IsEnabled() {
		t.Error("Logger should not be enabled when file creation fails")
	}
}

// TestBackgroundLoggerDisabled verifies the disabled logger discards output
func TestBackgroundLoggerDisabled(t *testing.T) {
	bl, err := NewBackgroundLoggerWithEnabled(false)
	if err != nil {
		t.Fatalf("NewBackgroundLoggerWithEnabled(false) error = %v", err)
	}
	if bl.IsEnabled() {
		t.Error("disabled logger should report IsEnabled() == false")
	}
	if bl.GetLogPath() != "" {
		t.Errorf("disabled logger should have no path, got %q", bl.GetLogPath())
	}
}

// TestBackgroundLoggerBacksGlobalLogger verifies the file can receive global log lines
func TestBackgroundLoggerBacksGlobalLogger(t *testing.T) {
	_ = resetLogger(t)
	customPath := filepath.Join(t.TempDir(), "custom-log.txt")

	bl, err := NewBackgroundLoggerWithPath(customPath)
	if err != nil {
		t.Fatalf("NewBackgroundLoggerWithPath() error = %v", err)
	}

	SetOutput(bl)
	Errorf("monday fetch failed: %s", "boom")
	bl.Close()

	content, err := os.ReadFile(customPath)
	if err != nil {
		t.Fatalf("Failed to read custom log file: %v", err)
	}
	if !strings.Contains(string(content), "[ERROR] monday fetch failed: boom") {
		t.Errorf("log file should contain the error line, got: %s", content)
	}
}
