package adapter

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrNoLink is returned when a result has no identifier to link to
var ErrNoLink = errors.New("result has no identifier")

// Launcher opens result links in the configured browser or the system default
type Launcher struct {
	command      string   // configured browser command, empty for system default
	args         []string // additional arguments for the browser
	linkTemplate string   // e.g. "https://identifiers.org/{id}"
	logger       *slog.Logger

	start func(*exec.Cmd) error
}

// NewLauncher creates a new Launcher
func NewLauncher(command string, args []string, linkTemplate string, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{
		command:      command,
		args:         args,
		linkTemplate: linkTemplate,
		logger:       logger,
		start:        (*exec.Cmd).Start,
	}
}

// LinkFor returns the page for a result identifier such as "CHEBI:45783"
func (l *Launcher) LinkFor(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrNoLink
	}
	if l.linkTemplate == "" || !strings.Contains(l.linkTemplate, "{id}") {
		return "", fmt.Errorf("link template %q has no {id} placeholder", l.linkTemplate)
	}

	link := strings.ReplaceAll(l.linkTemplate, "{id}", url.PathEscape(id))
	if _, err := url.ParseRequestURI(link); err != nil {
		return "", fmt.Errorf("invalid link %q: %w", link, err)
	}
	return link, nil
}

// OpenResult opens the page for a result identifier
func (l *Launcher) OpenResult(id string) (string, error) {
	link, err := l.LinkFor(id)
	if err != nil {
		return "", err
	}
	return link, l.Open(link)
}

// Open opens a URL in the configured browser or system default
func (l *Launcher) Open(link string) error {
	cmd := l.Command(link)
	l.logger.Info("opening link", "command", cmd.Path, "args", cmd.Args[1:])
	if err := l.start(cmd); err != nil {
		return fmt.Errorf("failed to open %s: %w", link, err)
	}
	return nil
}

// Command builds the command that opens link
func (l *Launcher) Command(link string) *exec.Cmd {
	if l.command == "" {
		return l.defaultCommand(link)
	}

	args := append([]string{}, l.args...)

	// On macOS, launch GUI apps with 'open -a' if command not in PATH
	if runtime.GOOS == "darwin" && !strings.ContainsRune(l.command, filepath.Separator) {
		if _, err := exec.LookPath(l.command); err != nil {
			cmdArgs := []string{"-a", l.command}
			if len(args) > 0 {
				cmdArgs = append(cmdArgs, "--args")
				cmdArgs = append(cmdArgs, args...)
			}
			cmdArgs = append(cmdArgs, link)
			return exec.Command("open", cmdArgs...)
		}
	}

	// URL goes at the end
	args = append(args, link)
	return exec.Command(l.command, args...)
}

// defaultCommand opens the URL using the system default handler
func (l *Launcher) defaultCommand(link string) *exec.Cmd {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", link)
	case "windows":
		return exec.Command("cmd", "/c", "start", "", link)
	default:
		// Linux and other Unix-like systems
		return exec.Command("xdg-open", link)
	}
}
