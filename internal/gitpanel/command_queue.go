package gitpanel

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const writeQueueBufferSize = 64

// Backoffs do retry de index.lock. Cada write tem no máximo
// len(writeRetryBackoffs) retries além da tentativa inicial.
var writeRetryBackoffs = []time.Duration{
	80 * time.Millisecond,
	160 * time.Millisecond,
	320 * time.Millisecond,
}

type gitRunner func(ctx context.Context, timeout time.Duration, stdin string, args ...string) (string, string, int, error)
type backoffSleeper func(ctx context.Context, d time.Duration) error

type queuedWriteCommand struct {
	requestCtx context.Context
	timeout    time.Duration
	run        func(context.Context) error
	result     chan error
	diag       *commandDiagnosticState
}

type repoWriteLane struct {
	repoRoot string
	items    chan queuedWriteCommand
}

// commandQueue serializa comandos write por repositório: uma goroutine
// worker por raiz de repositório, criada sob demanda. Leituras nunca passam
// por aqui.
type commandQueue struct {
	backend *CLIBackend

	queueMu sync.Mutex
	lanes   map[string]*repoWriteLane

	workerWG       sync.WaitGroup
	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
	closed         atomic.Bool
	commandSeq     atomic.Uint64
}

func newCommandQueue(backend *CLIBackend) *commandQueue {
	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	return &commandQueue{
		backend:        backend,
		lanes:          make(map[string]*repoWriteLane),
		shutdownCtx:    shutdownCtx,
		shutdownCancel: shutdownCancel,
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// executeWrite enfileira o comando na lane do repositório e bloqueia até o
// resultado, emitindo diagnósticos sanitizados a cada transição de estado.
func (q *commandQueue) executeWrite(ctx context.Context, repoRoot string, action string, args []string, timeout time.Duration, run func(context.Context, *commandDiagnosticState) error) error {
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	if ctx == nil {
		ctx = context.Background()
	}

	commandID := "cmd-" + strconv.FormatUint(q.commandSeq.Add(1), 10)
	diag := newCommandDiagnosticState(commandID, repoRoot, action, args, time.Now())
	if run == nil {
		err := NewBindingError(
			CodeUnknown,
			"Comando write inválido.",
			"A execução interna não foi fornecida.",
		)
		q.emitDiagnostic(diag, commandStatusFailed, err)
		return err
	}

	command := queuedWriteCommand{
		requestCtx: ctx,
		timeout:    timeout,
		run: func(runCtx context.Context) error {
			return run(runCtx, diag)
		},
		result: make(chan error, 1),
		diag:   diag,
	}

	if err := q.dispatch(repoRoot, command); err != nil {
		q.emitDiagnostic(diag, commandStatusFailed, err)
		return err
	}

	q.emitDiagnostic(diag, commandStatusSucceeded, nil)
	return nil
}

func (q *commandQueue) dispatch(repoRoot string, command queuedWriteCommand) error {
	lane, err := q.laneFor(repoRoot)
	if err != nil {
		return err
	}

	select {
	case lane.items <- command:
		q.emitDiagnostic(command.diag, commandStatusQueued, nil)
	case <-command.requestCtx.Done():
		if mapped := queueErrorFromContext(command.requestCtx.Err(), "Comando cancelado antes de entrar na fila."); mapped != nil {
			return mapped
		}
		return command.requestCtx.Err()
	case <-q.shutdownCtx.Done():
		return backendClosedError()
	}

	select {
	case err := <-command.result:
		return err
	case <-command.requestCtx.Done():
		if mapped := queueErrorFromContext(command.requestCtx.Err(), "Comando cancelado enquanto aguardava execução."); mapped != nil {
			return mapped
		}
		return command.requestCtx.Err()
	case <-q.shutdownCtx.Done():
		return backendClosedError()
	}
}

func (q *commandQueue) laneFor(repoRoot string) (*repoWriteLane, error) {
	normalized := filepath.Clean(strings.TrimSpace(repoRoot))
	if normalized == "" || normalized == "." {
		return nil, NewBindingError(
			CodeRepoNotResolved,
			"Repositório não resolvido para comando write.",
			"Informe um caminho de repositório válido.",
		)
	}
	if q.closed.Load() {
		return nil, backendClosedError()
	}

	q.queueMu.Lock()
	defer q.queueMu.Unlock()

	if q.closed.Load() {
		return nil, backendClosedError()
	}

	if lane, ok := q.lanes[normalized]; ok {
		return lane, nil
	}

	lane := &repoWriteLane{
		repoRoot: normalized,
		items:    make(chan queuedWriteCommand, writeQueueBufferSize),
	}
	q.lanes[normalized] = lane

	q.workerWG.Add(1)
	go q.runLaneWorker(lane)
	return lane, nil
}

func (q *commandQueue) runLaneWorker(lane *repoWriteLane) {
	defer q.workerWG.Done()

	for {
		select {
		case <-q.shutdownCtx.Done():
			return
		case command := <-lane.items:
			q.emitDiagnostic(command.diag, commandStatusStarted, nil)

			commandCtx, cancel := buildQueueCommandContext(q.shutdownCtx, command.requestCtx, command.timeout)
			runErr := command.run(commandCtx)
			if runErr == nil {
				if mapped := queueErrorFromContext(commandCtx.Err(), "Comando interrompido por cancelamento."); mapped != nil {
					runErr = mapped
				}
			}
			cancel()

			select {
			case command.result <- runErr:
			default:
			}
		}
	}
}

// buildQueueCommandContext combina shutdown do backend, cancelamento do
// chamador e timeout do comando em um único contexto de execução.
func buildQueueCommandContext(base context.Context, requestCtx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if base == nil {
		base = context.Background()
	}

	ctx := base
	cancelers := make([]func(), 0, 2)

	if requestCtx != nil {
		withRequestCancel, requestCancel := context.WithCancel(ctx)
		stop := context.AfterFunc(requestCtx, requestCancel)
		cancelers = append(cancelers, func() {
			stop()
			requestCancel()
		})
		ctx = withRequestCancel
	}

	if timeout > 0 {
		withTimeout, timeoutCancel := context.WithTimeout(ctx, timeout)
		cancelers = append(cancelers, timeoutCancel)
		ctx = withTimeout
	}

	if len(cancelers) == 0 {
		return ctx, func() {}
	}

	return ctx, func() {
		for i := len(cancelers) - 1; i >= 0; i-- {
			cancelers[i]()
		}
	}
}

// runWriteGitWithRetry executa o git e refaz a tentativa com backoff quando
// o stderr indica disputa de index.lock com outro processo Git.
func (q *commandQueue) runWriteGitWithRetry(ctx context.Context, diag *commandDiagnosticState, stdin string, args ...string) (string, string, int, error) {
	var (
		stdout   string
		stderr   string
		exitCode int
		runErr   error
	)

	for attempt := 0; ; attempt++ {
		attemptTimeout := remainingTimeout(ctx, defaultWriteTimeout)
		stdout, stderr, exitCode, runErr = q.backend.runGit(ctx, attemptTimeout, stdin, args...)
		if diag != nil {
			diag.recordAttempt(args, stderr, exitCode, attempt+1)
		}
		if runErr == nil {
			return stdout, stderr, exitCode, nil
		}

		if mapped := queueErrorFromContext(runErr, "Comando Git interrompido."); mapped != nil {
			return stdout, stderr, exitCode, mapped
		}

		if !isTransientIndexLockError(stderr, runErr) || attempt >= len(writeRetryBackoffs) {
			return stdout, stderr, exitCode, runErr
		}
		q.emitDiagnostic(diag, commandStatusRetried, nil)

		if sleepErr := q.backend.sleep(ctx, writeRetryBackoffs[attempt]); sleepErr != nil {
			if mapped := queueErrorFromContext(sleepErr, "Retry de index.lock interrompido."); mapped != nil {
				return stdout, stderr, exitCode, mapped
			}
			return stdout, stderr, exitCode, sleepErr
		}
	}
}

func remainingTimeout(ctx context.Context, fallback time.Duration) time.Duration {
	if fallback <= 0 {
		fallback = defaultWriteTimeout
	}
	if ctx == nil {
		return fallback
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		return fallback
	}

	remaining := time.Until(deadline)
	if remaining <= 0 {
		return time.Millisecond
	}
	if remaining < fallback {
		return remaining
	}
	return fallback
}

func queueErrorFromContext(err error, details string) error {
	if err == nil {
		return nil
	}

	if bindingErr := AsBindingError(err); bindingErr != nil {
		if bindingErr.Code == CodeTimeout || bindingErr.Code == CodeCanceled {
			return bindingErr
		}
		return nil
	}

	trimmedDetails := strings.TrimSpace(details)
	if errors.Is(err, context.DeadlineExceeded) {
		return NewBindingError(
			CodeTimeout,
			"Comando Git excedeu o tempo limite.",
			trimmedDetails,
		)
	}
	if errors.Is(err, context.Canceled) {
		return NewBindingError(
			CodeCanceled,
			"Comando Git cancelado.",
			trimmedDetails,
		)
	}
	return nil
}

func isTransientIndexLockError(stderr string, runErr error) bool {
	combined := strings.ToLower(strings.TrimSpace(stderr))
	if runErr != nil {
		if combined != "" {
			combined += " | "
		}
		combined += strings.ToLower(runErr.Error())
	}

	return strings.Contains(combined, "index.lock")
}

// wrapWriteCommandError preserva BindingError de timeout/cancel e converte
// qualquer outra falha no código e mensagem fornecidos.
func wrapWriteCommandError(code string, message string, stderr string, exitCode int, runErr error) error {
	if mapped := queueErrorFromContext(runErr, stderr); mapped != nil {
		return mapped
	}
	if bindingErr := AsBindingError(runErr); bindingErr != nil {
		return bindingErr
	}
	return NewBindingError(code, message, formatCommandFailureDetails(stderr, exitCode, runErr))
}

func backendClosedError() error {
	return NewBindingError(
		CodeServiceUnavailable,
		"Backend Git em encerramento.",
		"A fila de comandos write foi cancelada durante o shutdown.",
	)
}

func (q *commandQueue) close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if !q.closed.CompareAndSwap(false, true) {
		return nil
	}

	q.shutdownCancel()

	workersDone := make(chan struct{})
	go func() {
		q.workerWG.Wait()
		close(workersDone)
	}()

	select {
	case <-workersDone:
		return nil
	case <-ctx.Done():
		if mapped := queueErrorFromContext(ctx.Err(), "Timeout aguardando encerramento da fila de comandos."); mapped != nil {
			return mapped
		}
		return ctx.Err()
	}
}
