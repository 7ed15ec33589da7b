package player

import (
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
)

// Launcher opens embed URLs in a browser
type Launcher struct {
	command string   // configured browser command, empty for system default
	args    []string // additional arguments placed before the URL
	goos    string
	start   func(name string, args ...string) error
	lookup  func(name string) (string, error)
	logger  *slog.Logger
}

// NewLauncher creates a launcher. command may carry its own arguments,
// e.g. "chromium --app".
func NewLauncher(command string, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	fields := strings.Fields(command)
	l := &Launcher{
		goos:   runtime.GOOS,
		start:  startDetached,
		lookup: exec.LookPath,
		logger: logger,
	}
	if len(fields) > 0 {
		l.command = fields[0]
		l.args = fields[1:]
	}
	return l
}

func startDetached(name string, args ...string) error {
	return exec.Command(name, args...).Start()
}

// Launch opens url in the configured browser or the system default
func (l *Launcher) Launch(url string) error {
	if l.command != "" {
		return l.launchConfigured(url)
	}
	return l.launchDefault(url)
}

func (l *Launcher) launchConfigured(url string) error {
	args := append(append([]string{}, l.args...), url)

	// On macOS, GUI apps are launched with 'open -a' when the command is not in PATH
	if l.goos == "darwin" {
		if _, err := l.lookup(l.command); err != nil {
			openArgs := []string{"-a", l.command}
			if len(l.args) > 0 {
				openArgs = append(openArgs, "--args")
				openArgs = append(openArgs, l.args...)
			}
			openArgs = append(openArgs, url)
			l.logger.Info("using macOS 'open -a' to launch GUI app", "app", l.command, "args", openArgs)
			return l.start("open", openArgs...)
		}
	}

	l.logger.Info("launching browser", "command", l.command, "args", args)
	return l.start(l.command, args...)
}

// launchDefault opens the URL using the system default handler
func (l *Launcher) launchDefault(url string) error {
	l.logger.Info("launching with system default", "os", l.goos, "url", url)

	switch l.goos {
	case "darwin":
		return l.start("open", url)
	case "windows":
		return l.start("cmd", "/c", "start", "", url)
	default:
		return l.start("xdg-open", url)
	}
}
