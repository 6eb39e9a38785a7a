// Package monday provides a backend implementation for the column-oriented
// GraphQL board API.
package monday

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/tidwall/gjson"

	"taskbridge/backend"
	"taskbridge/internal/utils"
)

const (
	// DefaultAPIURL is the GraphQL endpoint of the board API
	DefaultAPIURL = "https://api.monday.com/v2"

	// DefaultAPIVersion is sent as the API-Version header
	DefaultAPIVersion = "2023-04"

	// DefaultPageSize bounds every item query; later pages are never fetched
	DefaultPageSize = 50
)

// Config holds board API connection settings
type Config struct {
	APIURL     string
	APIToken   string
	BoardID    string
	APIVersion string
	PageSize   int
	Timeout    time.Duration
	HTTPClient *http.Client // Override for testing
}

// ConfigFromEnv creates a Config from environment variables
func ConfigFromEnv() Config {
	return Config{
		APIURL:   os.Getenv("TASKBRIDGE_MONDAY_URL"),
		APIToken: os.Getenv("TASKBRIDGE_MONDAY_TOKEN"),
		BoardID:  os.Getenv("TASKBRIDGE_BOARD_ID"),
	}
}

// client performs GraphQL requests against one endpoint
type client struct {
	http       *http.Client
	apiURL     string
	token      string
	apiVersion string
}

func newClient(cfg Config) (*client, error) {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if _, err := url.ParseRequestURI(apiURL); err != nil {
		return nil, fmt.Errorf("invalid board API URL %q: %w", cfg.APIURL, err)
	}

	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &client{
		http:       httpClient,
		apiURL:     apiURL,
		token:      cfg.APIToken,
		apiVersion: apiVersion,
	}, nil
}

// do posts a GraphQL request and decodes the `data` member into out.
// op names the operation in errors and logs.
func (c *client) do(ctx context.Context, op, query string, vars map[string]interface{}, out interface{}) error {
	payload, err := json.Marshal(map[string]interface{}{
		"query":     query,
		"variables": vars,
	})
	if err != nil {
		return fmt.Errorf("monday %s: encode request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("monday %s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("API-Version", c.apiVersion)
	req.Header.Set("Content-Type", "application/json")

	utils.Debugf("monday %s: POST %s", op, c.apiURL)

	resp, err := c.http.Do(req)
	if err != nil {
		return fail(&backend.TransportError{Backend: backend.KindMonday, Op: op, Err: err})
	}
	defer func() { _ = resp.Body.Close() }()

	if err := backend.CheckStatus(backend.KindMonday, op, resp); err != nil {
		return fail(err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(&backend.TransportError{Backend: backend.KindMonday, Op: op, StatusCode: resp.StatusCode, Err: err})
	}
	if !gjson.ValidBytes(body) {
		return fail(fmt.Errorf("monday %s: response is not JSON", op))
	}

	if msgs := errorMessages(body); len(msgs) > 0 {
		return fail(&backend.BackendError{Backend: backend.KindMonday, Op: op, Messages: msgs})
	}

	data := gjson.GetBytes(body, "data")
	if !data.Exists() || data.Type == gjson.Null {
		return fail(&backend.BackendError{Backend: backend.KindMonday, Op: op, Messages: []string{"response carried no data"}})
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(data.Raw), out); err != nil {
		return fail(fmt.Errorf("monday %s: decode response: %w", op, err))
	}
	return nil
}

// errorMessages collects the GraphQL `errors` array and the legacy
// `error_message` field.
func errorMessages(body []byte) []string {
	var msgs []string
	gjson.GetBytes(body, "errors").ForEach(func(_, e gjson.Result) bool {
		if m := e.Get("message"); m.Exists() {
			msgs = append(msgs, m.String())
		} else {
			msgs = append(msgs, e.Raw)
		}
		return true
	})
	if m := gjson.GetBytes(body, "error_message"); m.Exists() && m.String() != "" {
		msgs = append(msgs, m.String())
	}
	return msgs
}

func fail(err error) error {
	var schema *backend.SchemaUnavailableError
	if errors.As(err, &schema) {
		utils.Warnf("%v", err)
		return err
	}
	utils.Errorf("%v", err)
	return err
}
