package cmd_test

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"taskbridge/cmd/taskbridge/cmd"
	"taskbridge/internal/credentials"
)

// cliTest runs the CLI against an isolated config file, views directory
// and in-memory keyring.
type cliTest struct {
	t          *testing.T
	cfg        *cmd.Config
	configPath string
	keyring    *credentials.MockKeyring
	env        map[string]string
}

func newCLITest(t *testing.T, configYAML string) *cliTest {
	t.Helper()
	for _, name := range []string{"TASKBRIDGE_BOARD_ID", "TASKBRIDGE_MONDAY_URL", "TASKBRIDGE_TASKAPI_URL"} {
		t.Setenv(name, "")
	}

	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	c := &cliTest{
		t:          t,
		configPath: filepath.Join(tmpDir, "config.yaml"),
		keyring:    credentials.NewMockKeyring(),
		env:        make(map[string]string),
	}
	if err := os.WriteFile(c.configPath, []byte(configYAML), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	c.cfg = &cmd.Config{
		ConfigPath: c.configPath,
		ViewsPath:  filepath.Join(tmpDir, "views"),
		Stdin:      strings.NewReader(""),
		Credentials: credentials.NewManager(
			credentials.WithKeyring(c.keyring),
			credentials.WithEnv(func(key string) string { return c.env[key] }),
		),
	}
	return c
}

// taskAPIConfig returns a config selecting the REST backend at url
func taskAPIConfig(url string) string {
	return fmt.Sprintf("default_backend: taskapi\nbackends:\n  taskapi:\n    base_url: %s\n", url)
}

// mondayConfig returns a config selecting the board backend
func mondayConfig(mondayURL, boardID, taskAPIURL string) string {
	return fmt.Sprintf(`default_backend: monday
backends:
  monday:
    api_url: %s
    board_id: "%s"
  taskapi:
    base_url: %s
`, mondayURL, boardID, taskAPIURL)
}

// setStdin replaces the prompt input for the next command
func (c *cliTest) setStdin(input string) {
	c.cfg.Stdin = strings.NewReader(input)
}

// Execute runs the CLI and returns stdout, stderr and the exit code
func (c *cliTest) Execute(args ...string) (stdout, stderr string, exitCode int) {
	c.t.Helper()
	var outBuf, errBuf bytes.Buffer
	code := cmd.Execute(args, &outBuf, &errBuf, c.cfg)
	return outBuf.String(), errBuf.String(), code
}

// MustExecute runs the CLI and fails the test on a non-zero exit code
func (c *cliTest) MustExecute(args ...string) string {
	c.t.Helper()
	stdout, stderr, code := c.Execute(args...)
	if code != 0 {
		c.t.Fatalf("command %v failed with exit code %d\nstdout: %s\nstderr: %s", args, code, stdout, stderr)
	}
	return stdout
}

// ExecuteAndFail runs the CLI and fails the test on a zero exit code
func (c *cliTest) ExecuteAndFail(args ...string) (stdout, stderr string) {
	c.t.Helper()
	stdout, stderr, code := c.Execute(args...)
	if code == 0 {
		c.t.Fatalf("command %v should have failed\nstdout: %s\nstderr: %s", args, stdout, stderr)
	}
	return stdout, stderr
}

// assertContains checks that output contains expected
func assertContains(t *testing.T, output, expected string) {
	t.Helper()
	if !strings.Contains(output, expected) {
		t.Errorf("expected output to contain %q, got:\n%s", expected, output)
	}
}

// assertNotContains checks that output does not contain unexpected
func assertNotContains(t *testing.T, output, unexpected string) {
	t.Helper()
	if strings.Contains(output, unexpected) {
		t.Errorf("expected output NOT to contain %q, got:\n%s", unexpected, output)
	}
}

func countRequests(log []string, prefix string) int {
	n := 0
	for _, r := range log {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}
