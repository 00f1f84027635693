package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/Iron-Ham/merges/internal/config"
	"github.com/Iron-Ham/merges/internal/logging"
	"github.com/Iron-Ham/merges/internal/pr"
	"github.com/Iron-Ham/merges/internal/state"
	"github.com/Iron-Ham/merges/internal/tui/styles"
	"github.com/Iron-Ham/merges/internal/worktree"
)

// Wrappers so tests can replace interactivity and prompting.
var (
	isInteractive = func() bool {
		return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
	}
	confirmPrompt = runConfirm
	inputPrompt   = runInput
)

// env is what every command needs: the main repository root, the git
// adapter, the loaded configuration and a logger.
type env struct {
	root   string
	repo   *worktree.CLIRepository
	cfg    *config.Config
	logger *logging.Logger
	out    io.Writer
}

// openEnv locates the repository from the working directory. From inside a
// chunk worktree it resolves to the main working tree.
func openEnv(out io.Writer) (*env, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	root, err := worktree.FindMainRoot(cwd)
	if err != nil {
		return nil, err
	}

	cfg := config.Get()
	logger := logging.NopLogger()
	if cfg.Logging.Enabled {
		l, err := logging.NewLogger(config.LogDir(root), cfg.Logging.Level)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to open debug log: %v\n", err)
		} else {
			logger = l
		}
	}

	return &env{
		root:   root,
		repo:   worktree.NewCLIRepository(),
		cfg:    cfg,
		logger: logger,
		out:    out,
	}, nil
}

func (e *env) close() {
	_ = e.logger.Close()
}

func (e *env) loadState() (*state.MergesState, error) {
	return state.Load(e.root)
}

func (e *env) saveState(st *state.MergesState) error {
	return st.Save(e.root)
}

// prService returns the gh-backed PR service for the state's repository.
func (e *env) prService(st *state.MergesState) pr.Service {
	return pr.NewGHService(worktree.NewCLICommandExecutor(), e.root, st.RepoOwner, st.RepoName)
}

func (e *env) printf(format string, args ...any) {
	fmt.Fprintf(e.out, format, args...)
}

func (e *env) ok(format string, args ...any) {
	fmt.Fprintf(e.out, "%s %s\n", styles.OK, fmt.Sprintf(format, args...))
}

func (e *env) warn(format string, args ...any) {
	fmt.Fprintf(e.out, "%s %s\n", styles.Warn, fmt.Sprintf(format, args...))
}

func (e *env) fail(format string, args ...any) {
	fmt.Fprintf(e.out, "%s %s\n", styles.Fail, fmt.Sprintf(format, args...))
}

func (e *env) step(format string, args ...any) {
	fmt.Fprintf(e.out, "%s %s\n", styles.Step, fmt.Sprintf(format, args...))
}

func huhTheme() *huh.Theme {
	t := *huh.ThemeCharm()
	t.Focused.FocusedButton = t.Focused.FocusedButton.Background(styles.PrimaryColor)
	t.Focused.Next = t.Focused.FocusedButton
	return &t
}

func runConfirm(title, description string) (bool, error) {
	var result bool
	confirm := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Yes").
		Negative("No").
		Value(&result)

	err := huh.NewForm(huh.NewGroup(confirm)).
		WithTheme(huhTheme()).
		WithShowHelp(false).
		Run()
	return result, err
}

func runInput(title, initial string) (string, error) {
	value := initial
	input := huh.NewInput().
		Title(title).
		Inline(true).
		Value(&value).
		Validate(func(v string) error {
			if v == "" {
				return fmt.Errorf("a value is required")
			}
			return nil
		})

	err := huh.NewForm(huh.NewGroup(input)).
		WithTheme(huhTheme()).
		WithShowHelp(false).
		Run()
	return value, err
}
