package gitpanel

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	commandStatusQueued    = "queued"
	commandStatusStarted   = "started"
	commandStatusRetried   = "retried"
	commandStatusSucceeded = "succeeded"
	commandStatusFailed    = "failed"

	maxDiagnosticStderrLength = 1200
)

// commandDiagnosticState acumula a última tentativa de um comando write para
// emissão sanitizada ao frontend. Nenhum caminho absoluto de máquina do
// usuário sai daqui.
type commandDiagnosticState struct {
	commandID string
	repoPath  string
	action    string
	startedAt time.Time
	baseArgs  []string

	mu           sync.Mutex
	lastArgs     []string
	lastStderr   string
	lastExitCode int
	lastAttempt  int
}

func newCommandDiagnosticState(commandID string, repoPath string, action string, args []string, startedAt time.Time) *commandDiagnosticState {
	base := cloneStringSlice(args)
	return &commandDiagnosticState{
		commandID: strings.TrimSpace(commandID),
		repoPath:  strings.TrimSpace(repoPath),
		action:    strings.TrimSpace(action),
		startedAt: startedAt,
		baseArgs:  base,
		lastArgs:  cloneStringSlice(base),
	}
}

func (d *commandDiagnosticState) recordAttempt(args []string, stderr string, exitCode int, attempt int) {
	if d == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if len(args) > 0 {
		d.lastArgs = cloneStringSlice(args)
	}
	d.lastStderr = strings.TrimSpace(stderr)
	d.lastExitCode = exitCode
	if attempt > d.lastAttempt {
		d.lastAttempt = attempt
	}
}

func (q *commandQueue) emitDiagnostic(diag *commandDiagnosticState, status string, err error) {
	if diag == nil || q.backend == nil {
		return
	}

	diag.mu.Lock()
	args := diag.lastArgs
	if len(args) == 0 {
		args = diag.baseArgs
	}
	args = cloneStringSlice(args)
	stderr := diag.lastStderr
	exitCode := diag.lastExitCode
	attempt := diag.lastAttempt
	diag.mu.Unlock()

	result := CommandResultDTO{
		CommandID:       diag.commandID,
		RepoPath:        diag.repoPath,
		Action:          diag.action,
		Args:            sanitizeDiagnosticArgs(diag.repoPath, args),
		DurationMs:      time.Since(diag.startedAt).Milliseconds(),
		ExitCode:        exitCode,
		StderrSanitized: sanitizeDiagnosticStderr(diag.repoPath, stderr),
		Status:          strings.TrimSpace(status),
		Attempt:         attempt,
	}

	if err != nil {
		if bindingErr := AsBindingError(err); bindingErr != nil {
			result.Error = bindingErr.Error()
		} else {
			result.Error = strings.TrimSpace(err.Error())
		}
	}

	q.backend.emit("devscope:git_command_result", result)
}

// sanitizeDiagnosticArgs reescreve tokens com caminhos absolutos usando os
// placeholders <repo>, ~ e <abs-path>.
func sanitizeDiagnosticArgs(repoPath string, args []string) []string {
	if len(args) == 0 {
		return nil
	}

	repoAbs := filepath.Clean(strings.TrimSpace(repoPath))
	homeDir, _ := os.UserHomeDir()
	homeAbs := filepath.Clean(strings.TrimSpace(homeDir))

	sanitized := make([]string, 0, len(args))
	for _, arg := range args {
		token := strings.TrimSpace(arg)
		if token == "" {
			continue
		}

		if repoAbs != "" && repoAbs != "." {
			token = replacePathToken(token, repoAbs, "<repo>")
		}

		if filepath.IsAbs(token) {
			if homeAbs != "" {
				if rel, ok := relativizeUnder(homeAbs, token); ok {
					sanitized = append(sanitized, "~/"+rel)
					continue
				}
			}
			sanitized = append(sanitized, "<abs-path>")
			continue
		}

		if homeAbs != "" && homeAbs != "." {
			token = replacePathToken(token, homeAbs, "~")
		}
		token = strings.ReplaceAll(token, "\n", " ")
		token = strings.ReplaceAll(token, "\r", " ")
		sanitized = append(sanitized, strings.TrimSpace(token))
	}

	return sanitized
}

func sanitizeDiagnosticStderr(repoPath string, stderr string) string {
	trimmed := strings.TrimSpace(stderr)
	if trimmed == "" {
		return ""
	}

	repoAbs := filepath.Clean(strings.TrimSpace(repoPath))
	if repoAbs != "" && repoAbs != "." {
		trimmed = replacePathToken(trimmed, repoAbs, "<repo>")
	}

	homeDir, _ := os.UserHomeDir()
	homeAbs := filepath.Clean(strings.TrimSpace(homeDir))
	if homeAbs != "" && homeAbs != "." {
		trimmed = replacePathToken(trimmed, homeAbs, "~")
	}

	lines := strings.Split(strings.ReplaceAll(trimmed, "\r\n", "\n"), "\n")
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		clean := strings.TrimSpace(line)
		if clean == "" {
			continue
		}
		clean = strings.Map(func(r rune) rune {
			if r < 0x20 && r != '\t' {
				return -1
			}
			return r
		}, clean)
		if clean != "" {
			parts = append(parts, clean)
		}
	}

	sanitized := strings.Join(parts, " | ")
	if len(sanitized) <= maxDiagnosticStderrLength {
		return sanitized
	}
	return strings.TrimSpace(sanitized[:maxDiagnosticStderrLength]) + "... (truncated)"
}

// replacePathToken substitui o caminho nas formas nativa e com barras.
func replacePathToken(text string, path string, placeholder string) string {
	out := strings.ReplaceAll(text, path, placeholder)
	if slashed := filepath.ToSlash(path); slashed != path {
		out = strings.ReplaceAll(out, slashed, placeholder)
	}
	return out
}

func relativizeUnder(base string, candidate string) (string, bool) {
	if strings.TrimSpace(base) == "" || strings.TrimSpace(candidate) == "" {
		return "", false
	}

	rel, err := filepath.Rel(base, candidate)
	if err != nil {
		return "", false
	}
	if rel == "." {
		return ".", true
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}

	return filepath.ToSlash(strings.TrimSpace(rel)), true
}

func cloneStringSlice(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}
