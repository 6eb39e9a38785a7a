package credentials

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// CLIHandler handles CLI commands for credential management
type CLIHandler struct {
	manager *Manager
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
}

// NewCLIHandler creates a new CLI handler for credential commands
func NewCLIHandler(manager *Manager, stdin io.Reader, stdout, stderr io.Writer) *CLIHandler {
	return &CLIHandler{
		manager: manager,
		stdin:   stdin,
		stdout:  stdout,
		stderr:  stderr,
	}
}

// Set prompts for a token and stores it in the keyring
func (h *CLIHandler) Set(ctx context.Context, backend, account string) error {
	token, err := PromptToken(h.stdin, h.stdout, backend)
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}

	if err := h.manager.Set(ctx, backend, account, token); err != nil {
		if errors.Is(err, ErrKeyringNotAvailable) {
			return h.keyringNotAvailableError(backend)
		}
		return fmt.Errorf("failed to store token: %w", err)
	}

	_, _ = fmt.Fprintf(h.stdout, "Token stored in system keyring\n")
	return nil
}

// keyringNotAvailableError explains the environment variable alternative
func (h *CLIHandler) keyringNotAvailableError(backend string) error {
	return fmt.Errorf(`system keyring not available.

Alternative: set the token in the environment instead:
  export %s="your-api-token"

Run 'taskbridge credentials get %s' to verify it is detected`, EnvVar(backend), backend)
}

// Get displays where a backend's token comes from; the token itself is never printed
func (h *CLIHandler) Get(ctx context.Context, backend, account string, jsonOutput bool) error {
	info, err := h.manager.Get(ctx, backend, account)
	if err != nil {
		return fmt.Errorf("failed to get token: %w", err)
	}

	if jsonOutput {
		jsonBytes, err := info.JSON()
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(h.stdout, string(jsonBytes))
		return nil
	}

	if !info.Found {
		_, _ = fmt.Fprintf(h.stdout, "No token found for %s/%s\n", info.Backend, info.Account)
		_, _ = fmt.Fprintf(h.stdout, "Searched:\n")
		_, _ = fmt.Fprintf(h.stdout, "  - System keyring: Not found\n")
		_, _ = fmt.Fprintf(h.stdout, "  - Environment variable %s: Not set\n", EnvVar(info.Backend))
		_, _ = fmt.Fprintf(h.stdout, "\nSuggestion: Run 'taskbridge credentials set %s'\n", info.Backend)
		return nil
	}

	_, _ = fmt.Fprintf(h.stdout, "Backend: %s\n", info.Backend)
	_, _ = fmt.Fprintf(h.stdout, "Account: %s\n", info.Account)
	_, _ = fmt.Fprintf(h.stdout, "Source: %s\n", info.Source)
	_, _ = fmt.Fprintf(h.stdout, "Token: ******** (hidden)\n")
	return nil
}

// Delete removes a token from the keyring
func (h *CLIHandler) Delete(ctx context.Context, backend, account string) error {
	if err := h.manager.Delete(ctx, backend, account); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}

	_, _ = fmt.Fprintf(h.stdout, "Token removed from system keyring\n")
	return nil
}
