// Package credentials provides API token storage and retrieval for backend
// services using the OS-native keyring with fallback to environment variables.
package credentials

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// DefaultAccount is the keyring account used when none is given
const DefaultAccount = "default"

// Source indicates where a token was retrieved from
type Source string

const (
	SourceKeyring     Source = "keyring"
	SourceEnvironment Source = "environment"
	SourceNone        Source = "none"
)

// CredentialInfo contains credential information returned by Get()
type CredentialInfo struct {
	Source  Source // Where the token came from
	Backend string // Backend name (e.g., "monday")
	Account string // Keyring account
	Token   string // API token (never printed)
	Found   bool   // Whether a token was found
}

// JSON serializes the credential info to JSON (token excluded)
func (c *CredentialInfo) JSON() ([]byte, error) {
	output := struct {
		Backend string `json:"backend"`
		Account string `json:"account"`
		Source  string `json:"source"`
		Found   bool   `json:"found"`
	}{
		Backend: c.Backend,
		Account: c.Account,
		Source:  string(c.Source),
		Found:   c.Found,
	}
	return json.Marshal(output)
}

// Keyring is the interface for keyring operations
type Keyring interface {
	Set(service, account, password string) error
	Get(service, account string) (string, error)
	Delete(service, account string) error
}

// Manager handles credential operations
type Manager struct {
	keyring Keyring
	getenv  func(string) string
}

// ManagerOption is a functional option for Manager
type ManagerOption func(*Manager)

// WithKeyring sets a custom keyring implementation
func WithKeyring(k Keyring) ManagerOption {
	return func(m *Manager) {
		m.keyring = k
	}
}

// WithEnv sets the environment lookup, os.Getenv by default
func WithEnv(getenv func(string) string) ManagerOption {
	return func(m *Manager) {
		m.getenv = getenv
	}
}

// NewManager creates a new credential manager backed by the system keyring
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		keyring: &systemKeyring{},
		getenv:  os.Getenv,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// normalizeBackend normalizes backend names to lowercase
func normalizeBackend(backend string) string {
	return strings.ToLower(strings.TrimSpace(backend))
}

func normalizeAccount(account string) string {
	if account = strings.TrimSpace(account); account == "" {
		return DefaultAccount
	}
	return account
}

// serviceName returns the keyring service name for a backend
func serviceName(backend string) string {
	return fmt.Sprintf("taskbridge-%s", normalizeBackend(backend))
}

// EnvVar returns the environment variable holding a backend's token
func EnvVar(backend string) string {
	return fmt.Sprintf("TASKBRIDGE_%s_TOKEN", strings.ToUpper(normalizeBackend(backend)))
}

// Set stores a token in the keyring
func (m *Manager) Set(ctx context.Context, backend, account, token string) error {
	if strings.TrimSpace(token) == "" {
		return errors.New("token must not be empty")
	}
	return m.keyring.Set(serviceName(backend), normalizeAccount(account), token)
}

// Get retrieves a token from available sources (keyring first, then env vars).
// A missing token is reported through Found, not as an error.
func (m *Manager) Get(ctx context.Context, backend, account string) (*CredentialInfo, error) {
	backend = normalizeBackend(backend)
	account = normalizeAccount(account)

	// Priority 1: keyring
	token, err := m.keyring.Get(serviceName(backend), account)
	if err == nil && token != "" {
		return &CredentialInfo{
			Source:  SourceKeyring,
			Backend: backend,
			Account: account,
			Token:   token,
			Found:   true,
		}, nil
	}

	// Priority 2: environment
	if token := m.getenv(EnvVar(backend)); token != "" {
		return &CredentialInfo{
			Source:  SourceEnvironment,
			Backend: backend,
			Account: account,
			Token:   token,
			Found:   true,
		}, nil
	}

	return &CredentialInfo{
		Source:  SourceNone,
		Backend: backend,
		Account: account,
		Found:   false,
	}, nil
}

// Delete removes a token from the keyring. Deleting a missing token succeeds.
func (m *Manager) Delete(ctx context.Context, backend, account string) error {
	err := m.keyring.Delete(serviceName(backend), normalizeAccount(account))
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// PromptToken asks for a token. When reader is a terminal the input is
// hidden; otherwise one line is read.
func PromptToken(reader io.Reader, writer io.Writer, backend string) (string, error) {
	_, _ = fmt.Fprintf(writer, "Enter API token for %s: ", backend)

	if f, ok := reader.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(writer)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	scanner := bufio.NewScanner(reader)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("no input received")
}
