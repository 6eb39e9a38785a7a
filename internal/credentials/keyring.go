package credentials

import (
	"errors"
	"fmt"
	"sync"

	"github.com/zalando/go-keyring"
)

var (
	// ErrNotFound is returned when no token is stored for a service/account
	ErrNotFound = errors.New("token not found")

	// ErrKeyringNotAvailable is returned when the OS has no usable keyring
	ErrKeyringNotAvailable = errors.New("system keyring not available")
)

// MockKeyring is a test implementation of the Keyring interface
type MockKeyring struct {
	mu    sync.RWMutex
	store map[string]map[string]string // service -> account -> token
}

// NewMockKeyring creates a new mock keyring for testing
func NewMockKeyring() *MockKeyring {
	return &MockKeyring{
		store: make(map[string]map[string]string),
	}
}

// Set stores a token in the mock keyring
func (m *MockKeyring) Set(service, account, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.store[service] == nil {
		m.store[service] = make(map[string]string)
	}
	m.store[service][account] = password
	return nil
}

// Get retrieves a token from the mock keyring
func (m *MockKeyring) Get(service, account string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if password, ok := m.store[service][account]; ok {
		return password, nil
	}
	return "", fmt.Errorf("%s/%s: %w", service, account, ErrNotFound)
}

// Delete removes a token from the mock keyring
func (m *MockKeyring) Delete(service, account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.store[service][account]; ok {
		delete(m.store[service], account)
		return nil
	}
	return fmt.Errorf("%s/%s: %w", service, account, ErrNotFound)
}

// systemKeyring stores tokens in the OS keyring (Secret Service, Keychain,
// Windows Credential Manager) through go-keyring.
type systemKeyring struct{}

func (s *systemKeyring) Set(service, account, password string) error {
	return translateKeyringError(keyring.Set(service, account, password))
}

func (s *systemKeyring) Get(service, account string) (string, error) {
	token, err := keyring.Get(service, account)
	return token, translateKeyringError(err)
}

func (s *systemKeyring) Delete(service, account string) error {
	return translateKeyringError(keyring.Delete(service, account))
}

func translateKeyringError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, keyring.ErrNotFound):
		return ErrNotFound
	}
	return fmt.Errorf("%w: %v", ErrKeyringNotAvailable, err)
}
