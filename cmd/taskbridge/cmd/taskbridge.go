package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"taskbridge/backend"
	"taskbridge/backend/monday"
	"taskbridge/backend/taskapi"
	"taskbridge/internal/config"
	"taskbridge/internal/credentials"
	"taskbridge/internal/shutdown"
	"taskbridge/internal/tasksync"
	"taskbridge/internal/utils"
)

// Version is set at build time
var Version = "dev"

// Result codes for CLI output (used in no-prompt mode)
const (
	ResultActionCompleted = "ACTION_COMPLETED"
	ResultInfoOnly        = "INFO_ONLY"
	ResultError           = "ERROR"
)

// shutdownTimeout bounds how long cleanups may run after a command ends
const shutdownTimeout = 5 * time.Second

// Config holds application configuration
type Config struct {
	NoPrompt     bool
	Verbose      bool
	OutputFormat string
	ConfigPath   string               // Path to config file (for testing)
	ViewsPath    string               // Path to views directory (for testing)
	Stdin        io.Reader            // Prompt input, os.Stdin by default
	Credentials  *credentials.Manager // Token lookup, system keyring by default
	HTTPClient   *http.Client         // Override for testing
}

// app carries the injected IO and shared state of one Execute call
type app struct {
	cfg      *Config
	stdout   io.Writer
	stderr   io.Writer
	shutdown *shutdown.Manager
}

// Execute runs the CLI with the given arguments and IO writers
func Execute(args []string, stdout, stderr io.Writer, cfg *Config) int {
	if cfg == nil {
		cfg = &Config{}
	}
	utils.SetOutput(stderr)

	mgr := shutdown.NewManager(context.Background())
	mgr.ListenForSignals()

	rootCmd := newRootCmd(&app{cfg: cfg, stdout: stdout, stderr: stderr, shutdown: mgr})
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(mgr.Context())

	waitCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	if werr := mgr.Wait(waitCtx); werr != nil {
		utils.Warnf("shutdown: %v", werr)
	}
	cancel()

	if err != nil {
		if sig := mgr.Signal(); sig != nil {
			err = fmt.Errorf("interrupted by %s: %w", sig, err)
		}
		// Check if --json flag was passed to output error as JSON
		if containsJSONFlag(args) {
			outputErrorJSON(err, stdout)
		} else {
			_, _ = fmt.Fprintln(stderr, "Error:", err)
			// Emit ERROR result code in no-prompt mode
			if cfg.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultError)
			}
		}
		return 1
	}
	return 0
}

// containsJSONFlag checks if args contain --json flag
func containsJSONFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--json" {
			return true
		}
	}
	return false
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "taskbridge",
		Short:   "Manage tasks on a board or a tasks API",
		Long:    "taskbridge lists and edits tasks held by a GraphQL board (monday) or a REST tasks API (taskapi).",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Update config from flags
			if noPrompt, _ := cmd.Flags().GetBool("no-prompt"); noPrompt {
				a.cfg.NoPrompt = true
			}
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				a.cfg.Verbose = true
			}
			utils.SetVerboseMode(a.cfg.Verbose)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add global flags
	cmd.PersistentFlags().BoolP("no-prompt", "y", false, "Disable interactive prompts")
	cmd.PersistentFlags().BoolP("verbose", "V", false, "Enable verbose/debug output")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().StringP("backend", "b", "", "Backend to use (monday or taskapi)")
	cmd.PersistentFlags().String("config", "", "Path to the config file")

	cmd.AddCommand(newListCmd(a))
	cmd.AddCommand(newLabelsCmd(a))
	cmd.AddCommand(newAddCmd(a))
	cmd.AddCommand(newUpdateCmd(a))
	cmd.AddCommand(newDeleteCmd(a))
	cmd.AddCommand(newTUICmd(a))
	cmd.AddCommand(newViewsCmd(a))
	cmd.AddCommand(newCredentialsCmd(a))
	cmd.AddCommand(newConfigCmd(a))
	cmd.AddCommand(newVersionCmd(a))

	return cmd
}

// =============================================================================
// Configuration and backend wiring
// =============================================================================

func (a *app) configPath(cmd *cobra.Command) string {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return config.ExpandPath(path)
	}
	if a.cfg.ConfigPath != "" {
		return a.cfg.ConfigPath
	}
	return config.DefaultPath()
}

func (a *app) viewsPath() string {
	if a.cfg.ViewsPath != "" {
		return a.cfg.ViewsPath
	}
	return filepath.Join(config.GetConfigDir(), "views")
}

func (a *app) stdin() io.Reader {
	if a.cfg.Stdin != nil {
		return a.cfg.Stdin
	}
	return os.Stdin
}

func (a *app) credentials() *credentials.Manager {
	if a.cfg.Credentials == nil {
		a.cfg.Credentials = credentials.NewManager()
	}
	return a.cfg.Credentials
}

// loadConfig reads the config file and applies flag overrides
func (a *app) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	conf, err := config.Load(a.configPath(cmd))
	if err != nil {
		return nil, err
	}

	format := a.cfg.OutputFormat
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		format = "json"
	}
	backendName, _ := cmd.Flags().GetString("backend")
	conf.ApplyFlags(a.cfg.NoPrompt, format, backendName)

	if err := conf.Validate(); err != nil {
		return nil, err
	}

	a.cfg.NoPrompt = conf.NoPrompt
	if conf.Logging.Verbose {
		utils.SetVerboseMode(true)
	}
	return conf, nil
}

// session is a loaded facade for one command
type session struct {
	conf   *config.Config
	facade *tasksync.Facade
	kind   backend.Kind
	json   bool
}

// openSession prepares a session and loads the tasks and labels of the
// selected backend.
func (a *app) openSession(cmd *cobra.Command) (*session, error) {
	s, err := a.newSession(cmd)
	if err != nil {
		return nil, err
	}
	if err := s.facade.Load(cmd.Context(), s.kind); err != nil {
		return nil, describeError(err, s.kind)
	}
	return s, nil
}

// newSession builds every usable backend and selects the configured one.
// The facade is closed by the shutdown manager.
func (a *app) newSession(cmd *cobra.Command) (*session, error) {
	conf, err := a.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	kind, err := conf.GetDefaultBackend()
	if err != nil {
		return nil, err
	}

	backends, err := a.buildBackends(cmd.Context(), conf)
	if err != nil {
		return nil, err
	}
	if _, ok := backends[kind]; !ok {
		for _, be := range backends {
			_ = be.Close()
		}
		if !conf.IsMondayConfigured() {
			return nil, utils.ErrBackendNotConfigured(string(kind))
		}
		return nil, utils.ErrCredentialsNotFound(string(kind), credentials.DefaultAccount)
	}

	facade := tasksync.New(backends)
	a.shutdown.RegisterCleanup("backends", func(context.Context) error {
		return facade.Close()
	})

	return &session{
		conf:   conf,
		facade: facade,
		kind:   kind,
		json:   conf.OutputFormat == "json",
	}, nil
}

// buildBackends creates the document backend always and the board backend
// when a board id and a token are both available.
func (a *app) buildBackends(ctx context.Context, conf *config.Config) (map[backend.Kind]backend.Backend, error) {
	timeout := conf.GetHTTPTimeout()
	backends := make(map[backend.Kind]backend.Backend)

	api, err := taskapi.New(taskapi.Config{
		BaseURL:    conf.Backends.TaskAPI.BaseURL,
		Timeout:    timeout,
		HTTPClient: a.cfg.HTTPClient,
	})
	if err != nil {
		return nil, err
	}
	backends[backend.KindTaskAPI] = api

	if !conf.IsMondayConfigured() {
		return backends, nil
	}

	info, err := a.credentials().Get(ctx, string(backend.KindMonday), "")
	if err != nil {
		utils.Warnf("monday credentials: %v", err)
		return backends, nil
	}
	if !info.Found {
		utils.Debugf("monday board %s configured without a token", conf.Backends.Monday.BoardID)
		return backends, nil
	}

	board, err := monday.New(monday.Config{
		APIURL:     conf.Backends.Monday.APIURL,
		APIToken:   info.Token,
		BoardID:    conf.Backends.Monday.BoardID,
		APIVersion: conf.Backends.Monday.APIVersion,
		PageSize:   conf.Backends.Monday.PageSize,
		Timeout:    timeout,
		HTTPClient: a.cfg.HTTPClient,
	})
	if err != nil {
		_ = api.Close()
		return nil, err
	}
	backends[backend.KindMonday] = board
	utils.Debugf("monday token from %s", info.Source)
	return backends, nil
}

// describeError attaches a suggestion to backend failures a user can act on
func describeError(err error, kind backend.Kind) error {
	var transport *backend.TransportError
	var noResults *backend.NoResultsError

	switch {
	case errors.As(err, &noResults):
		return utils.ErrNoTasksOnDate(err, noResults.Date)
	case backend.IsSchemaUnavailable(err):
		return utils.ErrSchemaUnavailable(err)
	case errors.As(err, &transport):
		switch transport.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return utils.ErrAuthenticationFailed(string(kind))
		case 0:
			if errors.Is(err, context.Canceled) {
				return err
			}
			return utils.ErrBackendOffline(string(kind), transport.Err.Error())
		}
	}
	return err
}

// =============================================================================
// Output helpers
// =============================================================================

// isTerminal reports whether w is an interactive terminal
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// actionResponse is the JSON document written for add, update and delete
type actionResponse struct {
	Action string       `json:"action"`
	Task   backend.Task `json:"task"`
	Result string       `json:"result"`
}

// errorResponse is the JSON document written for failures
type errorResponse struct {
	Error  string `json:"error"`
	Code   int    `json:"code"`
	Result string `json:"result"`
}

// outputActionJSON outputs a completed action in JSON format
func outputActionJSON(action string, task backend.Task, stdout io.Writer) error {
	jsonBytes, err := json.Marshal(actionResponse{
		Action: action,
		Task:   task,
		Result: ResultActionCompleted,
	})
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(stdout, string(jsonBytes))
	return nil
}

// outputErrorJSON outputs error in JSON format
func outputErrorJSON(err error, stdout io.Writer) {
	jsonBytes, _ := json.Marshal(errorResponse{
		Error:  err.Error(),
		Code:   1,
		Result: ResultError,
	})
	_, _ = fmt.Fprintln(stdout, string(jsonBytes))
}

// completed prints the result code of a finished action in no-prompt mode
func (a *app) completed() {
	if a.cfg.NoPrompt {
		_, _ = fmt.Fprintln(a.stdout, ResultActionCompleted)
	}
}

// infoOnly prints the result code of a read-only command in no-prompt mode
func (a *app) infoOnly() {
	if a.cfg.NoPrompt {
		_, _ = fmt.Fprintln(a.stdout, ResultInfoOnly)
	}
}
