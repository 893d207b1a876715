package gitpanel

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultReadTimeout  = 8 * time.Second
	defaultWriteTimeout = 12 * time.Second
	pushTimeout         = 60 * time.Second
	defaultHistoryLimit = 200
	maxHistoryLimit     = 500
)

// Backend abstrai o colaborador de VCS que executa o binário git. O motor
// de visualização nunca computa diffs a partir de bytes de arquivo: ele só
// transforma texto que o backend já produziu.
type Backend interface {
	Preflight(ctx context.Context, repoPath string) (PreflightResult, error)
	GetStatus(ctx context.Context, repoPath string) ([]StatusEntryDTO, error)
	GetHistory(ctx context.Context, repoPath string, limit int) ([]CommitDTO, error)
	GetCommitDiff(ctx context.Context, repoPath string, hash string) (string, error)
	GetWorkingDiff(ctx context.Context, repoPath string, filePath string, mode string) (string, error)
	StageFiles(ctx context.Context, repoPath string, paths []string) error
	UnstageFiles(ctx context.Context, repoPath string, paths []string) error
	CreateCommit(ctx context.Context, repoPath string, message string) error
	PushCommits(ctx context.Context, repoPath string, setUpstream bool) error
	DetectIdentity(ctx context.Context, repoPath string) (IdentityDTO, error)
	DetectRepoOwner(ctx context.Context, repoPath string) (IdentityDTO, error)
	CountUnpushed(ctx context.Context, repoPath string) (int, error)
	ListRemotes(ctx context.Context, repoPath string) ([]RemoteDTO, error)
	ListBranches(ctx context.Context, repoPath string) ([]BranchDTO, error)
	ListTags(ctx context.Context, repoPath string) ([]string, error)
	ListStashes(ctx context.Context, repoPath string) ([]StashDTO, error)
}

// CLIBackend implementa Backend invocando o git CLI com timeout por chamada.
// Writes são serializados por repositório através da fila de comandos, com
// retry de index.lock.
type CLIBackend struct {
	runGit gitRunner
	sleep  backoffSleeper
	emit   EventEmitter

	queue *commandQueue
}

// EventEmitter publica eventos runtime para o frontend.
type EventEmitter func(eventName string, data interface{})

func NewCLIBackend(emit EventEmitter) *CLIBackend {
	return newCLIBackendWithDeps(emit, runGitWithInput, sleepWithContext)
}

func newCLIBackendWithDeps(emit EventEmitter, runner gitRunner, sleeper backoffSleeper) *CLIBackend {
	if emit == nil {
		emit = func(string, interface{}) {}
	}
	if runner == nil {
		runner = runGitWithInput
	}
	if sleeper == nil {
		sleeper = sleepWithContext
	}

	backend := &CLIBackend{
		runGit: runner,
		sleep:  sleeper,
		emit:   emit,
	}
	backend.queue = newCommandQueue(backend)
	return backend
}

// Close encerra a fila de comandos write.
func (b *CLIBackend) Close(ctx context.Context) error {
	return b.queue.close(ctx)
}

func (b *CLIBackend) Preflight(ctx context.Context, repoPath string) (PreflightResult, error) {
	result := PreflightResult{}

	if _, err := exec.LookPath("git"); err != nil {
		return result, NewBindingError(
			CodeGitUnavailable,
			"Git CLI não encontrado no ambiente.",
			"Instale o Git e reinicie o DevScope.",
		)
	}
	result.GitAvailable = true

	normalized := strings.TrimSpace(repoPath)
	if normalized == "" {
		return result, NewBindingError(
			CodeRepoNotResolved,
			"Repositório não resolvido.",
			"Selecione um projeto Git antes de operar o painel.",
		)
	}

	absRepoPath, err := filepath.Abs(normalized)
	if err != nil {
		return result, NewBindingError(
			CodeRepoNotFound,
			"Não foi possível resolver o caminho do repositório.",
			err.Error(),
		)
	}
	absRepoPath = filepath.Clean(absRepoPath)

	stat, err := os.Stat(absRepoPath)
	if err != nil {
		return result, NewBindingError(
			CodeRepoNotFound,
			"Caminho do repositório não encontrado.",
			err.Error(),
		)
	}
	if !stat.IsDir() {
		return result, NewBindingError(
			CodeRepoNotFound,
			"Caminho informado não é um diretório.",
			absRepoPath,
		)
	}

	rootOut, rootErrOut, rootExitCode, rootErr := b.runGit(ctx, defaultReadTimeout, "", "-C", absRepoPath, "rev-parse", "--show-toplevel")
	if rootErr != nil {
		return result, NewBindingError(
			CodeRepoNotGit,
			"Caminho informado não é um repositório Git válido.",
			formatCommandFailureDetails(rootErrOut, rootExitCode, rootErr),
		)
	}
	repoRoot := strings.TrimSpace(rootOut)
	if repoRoot == "" {
		return result, NewBindingError(
			CodeRepoNotGit,
			"Não foi possível determinar a raiz do repositório Git.",
			absRepoPath,
		)
	}

	branchOut, _, _, branchErr := b.runGit(ctx, defaultReadTimeout, "", "-C", repoRoot, "rev-parse", "--abbrev-ref", "HEAD")
	branch := strings.TrimSpace(branchOut)
	if branchErr != nil {
		branch = ""
	}

	result.RepoPath = absRepoPath
	result.RepoRoot = repoRoot
	result.Branch = branch

	if _, mergeErr := os.Stat(filepath.Join(repoRoot, ".git", "MERGE_HEAD")); mergeErr == nil {
		result.MergeActive = true
	}

	return result, nil
}

func (b *CLIBackend) GetStatus(ctx context.Context, repoPath string) ([]StatusEntryDTO, error) {
	out, errOut, exitCode, runErr := b.runGit(ctx, defaultReadTimeout, "", "-C", repoPath, "status", "--porcelain=v1", "-z")
	if runErr != nil {
		return nil, NewBindingError(
			CodeCommandFailed,
			"Falha ao obter status do repositório.",
			formatCommandFailureDetails(errOut, exitCode, runErr),
		)
	}

	entries := parsePorcelainEntries(out)

	// Contagens de linhas por hunk, separadas por partição staged/unstaged.
	// Falha aqui não invalida o status: as contagens apenas ficam zeradas.
	if stagedOut, _, _, err := b.runGit(ctx, defaultReadTimeout, "", "-C", repoPath, "diff", "--cached", "--numstat"); err == nil {
		applyNumstatCounts(entries, stagedOut, true)
	}
	if unstagedOut, _, _, err := b.runGit(ctx, defaultReadTimeout, "", "-C", repoPath, "diff", "--numstat"); err == nil {
		applyNumstatCounts(entries, unstagedOut, false)
	}

	return entries, nil
}

func (b *CLIBackend) GetHistory(ctx context.Context, repoPath string, limit int) ([]CommitDTO, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	format := "%H%x1f%h%x1f%P%x1f%an%x1f%ae%x1f%aI%x1f%s%x1e"
	out, errOut, exitCode, runErr := b.runGit(
		ctx,
		defaultReadTimeout,
		"",
		"-C", repoPath,
		"log",
		"--date=iso-strict",
		"--pretty=format:"+format,
		"--numstat",
		"-n", strconv.Itoa(limit),
	)
	if runErr != nil {
		return nil, NewBindingError(
			CodeCommandFailed,
			"Falha ao obter histórico do repositório.",
			formatCommandFailureDetails(errOut, exitCode, runErr),
		)
	}

	return parseHistoryCommits(out), nil
}

func (b *CLIBackend) GetCommitDiff(ctx context.Context, repoPath string, hash string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(hash))
	if normalized == "" || !isHexToken(normalized) {
		return "", NewBindingError(
			CodeInvalidPath,
			"Hash de commit inválido.",
			hash,
		)
	}

	out, errOut, exitCode, runErr := b.runGit(ctx, defaultReadTimeout, "", "-C", repoPath, "show", "--pretty=fuller", "--patch", normalized)
	if runErr != nil {
		return "", NewBindingError(
			CodeCommandFailed,
			"Falha ao obter diff do commit.",
			formatCommandFailureDetails(errOut, exitCode, runErr),
		)
	}
	return out, nil
}

func (b *CLIBackend) GetWorkingDiff(ctx context.Context, repoPath string, filePath string, mode string) (string, error) {
	args := []string{"-C", repoPath, "diff"}
	if strings.EqualFold(strings.TrimSpace(mode), "staged") {
		args = append(args, "--cached")
	}
	if cleanPath := strings.TrimSpace(filePath); cleanPath != "" {
		within, err := ensurePathWithinRepo(repoPath, cleanPath)
		if err != nil {
			return "", err
		}
		args = append(args, "--", within)
	}

	out, errOut, exitCode, runErr := b.runGit(ctx, defaultReadTimeout, "", args...)
	if runErr != nil {
		return "", NewBindingError(
			CodeCommandFailed,
			"Falha ao obter diff de trabalho.",
			formatCommandFailureDetails(errOut, exitCode, runErr),
		)
	}
	return out, nil
}

func (b *CLIBackend) StageFiles(ctx context.Context, repoPath string, paths []string) error {
	cleaned, err := ensurePathsWithinRepo(repoPath, paths)
	if err != nil {
		return err
	}

	args := append([]string{"-C", repoPath, "add", "--"}, cleaned...)
	return b.queue.executeWrite(ctx, repoPath, "stage_files", args, defaultWriteTimeout,
		func(ctx context.Context, diag *commandDiagnosticState) error {
			_, errOut, exitCode, runErr := b.queue.runWriteGitWithRetry(ctx, diag, "", args...)
			if runErr != nil {
				return wrapWriteCommandError(
					CodeCommandFailed,
					"Falha ao adicionar arquivos ao stage.",
					errOut,
					exitCode,
					runErr,
				)
			}
			return nil
		})
}

func (b *CLIBackend) UnstageFiles(ctx context.Context, repoPath string, paths []string) error {
	cleaned, err := ensurePathsWithinRepo(repoPath, paths)
	if err != nil {
		return err
	}

	args := append([]string{"-C", repoPath, "restore", "--staged", "--"}, cleaned...)
	return b.queue.executeWrite(ctx, repoPath, "unstage_files", args, defaultWriteTimeout,
		func(ctx context.Context, diag *commandDiagnosticState) error {
			_, errOut, exitCode, runErr := b.queue.runWriteGitWithRetry(ctx, diag, "", args...)
			if runErr != nil {
				return wrapWriteCommandError(
					CodeCommandFailed,
					"Falha ao remover arquivos do stage.",
					errOut,
					exitCode,
					runErr,
				)
			}
			return nil
		})
}

func (b *CLIBackend) CreateCommit(ctx context.Context, repoPath string, message string) error {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return NewBindingError(
			CodeCommitInvalid,
			"Mensagem de commit obrigatória.",
			"Informe uma mensagem antes de confirmar o commit.",
		)
	}

	args := []string{"-C", repoPath, "commit", "-m", trimmed}
	return b.queue.executeWrite(ctx, repoPath, "create_commit", args, defaultWriteTimeout,
		func(ctx context.Context, diag *commandDiagnosticState) error {
			_, errOut, exitCode, runErr := b.queue.runWriteGitWithRetry(ctx, diag, "", args...)
			if runErr != nil {
				return wrapWriteCommandError(
					CodeCommandFailed,
					"Falha ao criar commit.",
					errOut,
					exitCode,
					runErr,
				)
			}
			return nil
		})
}

func (b *CLIBackend) PushCommits(ctx context.Context, repoPath string, setUpstream bool) error {
	args := []string{"-C", repoPath, "push"}
	if setUpstream {
		branchOut, _, _, branchErr := b.runGit(ctx, defaultReadTimeout, "", "-C", repoPath, "rev-parse", "--abbrev-ref", "HEAD")
		branch := strings.TrimSpace(branchOut)
		if branchErr != nil || branch == "" || branch == "HEAD" {
			return NewBindingError(
				CodeCommandFailed,
				"Não foi possível resolver a branch atual para publicar.",
				formatCommandFailureDetails("", 0, branchErr),
			)
		}
		args = append(args, "-u", "origin", branch)
	}

	return b.queue.executeWrite(ctx, repoPath, "push_commits", args, pushTimeout,
		func(ctx context.Context, diag *commandDiagnosticState) error {
			_, errOut, exitCode, runErr := b.runGit(ctx, pushTimeout, "", args...)
			if diag != nil {
				diag.recordAttempt(args, errOut, exitCode, 1)
			}
			if runErr != nil {
				// Push não usa o retry de index.lock: a classificação
				// transient/permanente é responsabilidade do chamador.
				return wrapWriteCommandError(
					CodeCommandFailed,
					"Falha ao enviar commits para o remote.",
					errOut,
					exitCode,
					runErr,
				)
			}
			return nil
		})
}

func (b *CLIBackend) DetectIdentity(ctx context.Context, repoPath string) (IdentityDTO, error) {
	nameOut, _, _, nameErr := b.runGit(ctx, defaultReadTimeout, "", "-C", repoPath, "config", "user.name")
	emailOut, _, _, emailErr := b.runGit(ctx, defaultReadTimeout, "", "-C", repoPath, "config", "user.email")
	if nameErr != nil && emailErr != nil {
		return IdentityDTO{}, NewBindingError(
			CodeCommandFailed,
			"Falha ao detectar identidade configurada.",
			formatCommandFailureDetails("", 0, nameErr),
		)
	}
	return IdentityDTO{
		Name:  strings.TrimSpace(nameOut),
		Email: strings.TrimSpace(emailOut),
	}, nil
}

// DetectRepoOwner usa o autor do commit mais recente como dono detectado do
// repositório, para o gate interativo de identidade no commit.
func (b *CLIBackend) DetectRepoOwner(ctx context.Context, repoPath string) (IdentityDTO, error) {
	out, errOut, exitCode, runErr := b.runGit(ctx, defaultReadTimeout, "", "-C", repoPath, "log", "-1", "--pretty=%an%x1f%ae")
	if runErr != nil {
		return IdentityDTO{}, NewBindingError(
			CodeCommandFailed,
			"Falha ao detectar o dono do repositório.",
			formatCommandFailureDetails(errOut, exitCode, runErr),
		)
	}

	fields := strings.SplitN(strings.TrimSpace(out), "\x1f", 2)
	identity := IdentityDTO{Name: strings.TrimSpace(fields[0])}
	if len(fields) > 1 {
		identity.Email = strings.TrimSpace(fields[1])
	}
	return identity, nil
}

func (b *CLIBackend) CountUnpushed(ctx context.Context, repoPath string) (int, error) {
	out, errOut, exitCode, runErr := b.runGit(ctx, defaultReadTimeout, "", "-C", repoPath, "rev-list", "--count", "@{upstream}..HEAD")
	if runErr != nil {
		if strings.Contains(strings.ToLower(errOut), "no upstream") {
			return 0, nil
		}
		return 0, NewBindingError(
			CodeCommandFailed,
			"Falha ao contar commits não enviados.",
			formatCommandFailureDetails(errOut, exitCode, runErr),
		)
	}

	count, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil || count < 0 {
		return 0, nil
	}
	return count, nil
}

func (b *CLIBackend) ListRemotes(ctx context.Context, repoPath string) ([]RemoteDTO, error) {
	out, errOut, exitCode, runErr := b.runGit(ctx, defaultReadTimeout, "", "-C", repoPath, "remote", "-v")
	if runErr != nil {
		return nil, NewBindingError(
			CodeCommandFailed,
			"Falha ao listar remotes.",
			formatCommandFailureDetails(errOut, exitCode, runErr),
		)
	}

	remotes := make([]RemoteDTO, 0, 2)
	seen := map[string]struct{}{}
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if _, dup := seen[fields[0]]; dup {
			continue
		}
		seen[fields[0]] = struct{}{}
		remotes = append(remotes, RemoteDTO{Name: fields[0], URL: fields[1]})
	}
	return remotes, nil
}

func (b *CLIBackend) ListBranches(ctx context.Context, repoPath string) ([]BranchDTO, error) {
	out, errOut, exitCode, runErr := b.runGit(ctx, defaultReadTimeout, "", "-C", repoPath, "branch", "--list")
	if runErr != nil {
		return nil, NewBindingError(
			CodeCommandFailed,
			"Falha ao listar branches.",
			formatCommandFailureDetails(errOut, exitCode, runErr),
		)
	}

	branches := make([]BranchDTO, 0, 8)
	for _, line := range strings.Split(out, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		current := strings.HasPrefix(trimmed, "* ")
		name := strings.TrimSpace(strings.TrimPrefix(trimmed, "* "))
		if name == "" || strings.HasPrefix(name, "(") {
			continue
		}
		branches = append(branches, BranchDTO{Name: name, Current: current})
	}
	return branches, nil
}

func (b *CLIBackend) ListTags(ctx context.Context, repoPath string) ([]string, error) {
	out, errOut, exitCode, runErr := b.runGit(ctx, defaultReadTimeout, "", "-C", repoPath, "tag", "--list")
	if runErr != nil {
		return nil, NewBindingError(
			CodeCommandFailed,
			"Falha ao listar tags.",
			formatCommandFailureDetails(errOut, exitCode, runErr),
		)
	}

	tags := make([]string, 0, 8)
	for _, line := range strings.Split(out, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	return tags, nil
}

func (b *CLIBackend) ListStashes(ctx context.Context, repoPath string) ([]StashDTO, error) {
	out, errOut, exitCode, runErr := b.runGit(ctx, defaultReadTimeout, "", "-C", repoPath, "stash", "list", "--format=%gd%x1f%gs")
	if runErr != nil {
		return nil, NewBindingError(
			CodeCommandFailed,
			"Falha ao listar stashes.",
			formatCommandFailureDetails(errOut, exitCode, runErr),
		)
	}

	stashes := make([]StashDTO, 0, 4)
	for _, line := range strings.Split(out, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		fields := strings.SplitN(trimmed, "\x1f", 2)
		stash := StashDTO{Ref: strings.TrimSpace(fields[0])}
		if len(fields) > 1 {
			stash.Message = strings.TrimSpace(fields[1])
		}
		stashes = append(stashes, stash)
	}
	return stashes, nil
}

// parsePorcelainEntries converte a saída de `status --porcelain=v1 -z` em
// entradas normalizadas com os flags staged/unstaged e o rótulo de status
// do painel.
func parsePorcelainEntries(raw string) []StatusEntryDTO {
	entries := make([]StatusEntryDTO, 0, 16)

	records := strings.Split(raw, "\x00")
	for i := 0; i < len(records); i++ {
		record := strings.TrimRight(records[i], "\r\n")
		if strings.TrimSpace(record) == "" {
			continue
		}
		if len(record) < 3 {
			continue
		}

		xy := record[:2]
		path := record[3:]
		if strings.TrimSpace(path) == "" {
			continue
		}

		previousPath := ""
		if porcelainEntryHasSecondaryPath(xy) && i+1 < len(records) {
			previousPath = records[i+1]
			i++
		}

		entry := StatusEntryDTO{
			Path:         NormalizePanelPath(path),
			PreviousPath: NormalizePanelPath(previousPath),
			Status:       statusFromPorcelainXY(xy),
		}

		switch xy {
		case "??":
			entry.Unstaged = true
		case "!!":
			// Ignorado: sem partição.
		default:
			entry.Staged = xy[0] != ' '
			entry.Unstaged = xy[1] != ' '
		}

		entries = append(entries, entry)
	}

	return entries
}

func statusFromPorcelainXY(xy string) string {
	if xy == "??" {
		return StatusUntracked
	}
	if xy == "!!" {
		return StatusIgnored
	}

	switch {
	case strings.ContainsAny(xy, "R"):
		return StatusRenamed
	case strings.ContainsAny(xy, "D"):
		return StatusDeleted
	case strings.ContainsAny(xy, "AC"):
		return StatusAdded
	case strings.ContainsAny(xy, "MUT"):
		return StatusModified
	default:
		return StatusUnknown
	}
}

func porcelainEntryHasSecondaryPath(xy string) bool {
	if len(xy) < 2 {
		return false
	}
	return xy[0] == 'R' || xy[0] == 'C' || xy[1] == 'R' || xy[1] == 'C'
}

// applyNumstatCounts funde a saída de `diff --numstat` (staged ou unstaged)
// nas contagens por entrada.
func applyNumstatCounts(entries []StatusEntryDTO, numstatRaw string, staged bool) {
	counts := map[string][2]int{}
	for _, line := range strings.Split(strings.TrimSpace(numstatRaw), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		parts := strings.SplitN(trimmed, "\t", 3)
		if len(parts) < 3 {
			continue
		}
		path := NormalizePanelPath(numstatPath(parts[2]))
		if path == "" {
			continue
		}
		counts[path] = [2]int{parseNumstatValue(parts[0]), parseNumstatValue(parts[1])}
	}

	for i := range entries {
		count, ok := counts[entries[i].Path]
		if !ok {
			continue
		}
		if staged {
			entries[i].StagedAdditions = count[0]
			entries[i].StagedDeletions = count[1]
		} else {
			entries[i].UnstagedAdditions = count[0]
			entries[i].UnstagedDeletions = count[1]
		}
	}
}

// numstatPath resolve o formato de rename "old => new" (inclusive a forma
// abreviada "a/{b => c}/d") para o caminho de destino.
func numstatPath(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.Contains(trimmed, " => ") {
		return trimmed
	}

	if open := strings.Index(trimmed, "{"); open >= 0 {
		if close := strings.Index(trimmed, "}"); close > open {
			inner := trimmed[open+1 : close]
			if idx := strings.Index(inner, " => "); idx >= 0 {
				inner = inner[idx+4:]
			}
			collapsed := trimmed[:open] + inner + trimmed[close+1:]
			return strings.ReplaceAll(collapsed, "//", "/")
		}
	}

	if idx := strings.Index(trimmed, " => "); idx >= 0 {
		return strings.TrimSpace(trimmed[idx+4:])
	}
	return trimmed
}

func parseNumstatValue(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "-" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0
	}
	return value
}

// parseHistoryCommits converte a saída de `log --pretty --numstat` em
// commits com pais, autor e totais de linhas.
func parseHistoryCommits(raw string) []CommitDTO {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	commits := make([]CommitDTO, 0, 64)
	records := strings.Split(raw, "\x1e")
	for _, record := range records {
		trimmedRecord := strings.Trim(record, "\r\n")
		if trimmedRecord == "" {
			continue
		}

		header := trimmedRecord
		numstatRaw := ""
		if idx := strings.IndexByte(trimmedRecord, '\n'); idx >= 0 {
			header = strings.TrimSpace(trimmedRecord[:idx])
			numstatRaw = strings.TrimSpace(trimmedRecord[idx+1:])
		}
		if header == "" {
			continue
		}

		fields := strings.SplitN(header, "\x1f", 7)
		if len(fields) < 7 {
			continue
		}

		hash := strings.TrimSpace(fields[0])
		shortHash := strings.TrimSpace(fields[1])
		if hash == "" || shortHash == "" {
			continue
		}

		parents := make([]string, 0, 2)
		for _, parent := range strings.Fields(fields[2]) {
			parents = append(parents, strings.TrimSpace(parent))
		}

		additions := 0
		deletions := 0
		if numstatRaw != "" {
			for _, line := range strings.Split(numstatRaw, "\n") {
				parts := strings.SplitN(strings.TrimSpace(line), "\t", 3)
				if len(parts) < 3 {
					continue
				}
				additions += parseNumstatValue(parts[0])
				deletions += parseNumstatValue(parts[1])
			}
		}

		commits = append(commits, CommitDTO{
			Hash:        hash,
			ShortHash:   shortHash,
			Parents:     parents,
			Author:      strings.TrimSpace(fields[3]),
			AuthorEmail: strings.TrimSpace(fields[4]),
			Date:        strings.TrimSpace(fields[5]),
			Message:     strings.TrimRight(fields[6], "\r\n"),
			Additions:   additions,
			Deletions:   deletions,
		})
	}
	return commits
}

func isHexToken(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

func ensurePathsWithinRepo(repoRoot string, paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, NewBindingError(
			CodeInvalidPath,
			"Nenhum caminho informado.",
			"A operação exige ao menos um caminho de arquivo.",
		)
	}

	cleaned := make([]string, 0, len(paths))
	for _, path := range paths {
		within, err := ensurePathWithinRepo(repoRoot, path)
		if err != nil {
			return nil, err
		}
		cleaned = append(cleaned, within)
	}
	return cleaned, nil
}

func ensurePathWithinRepo(repoRoot string, filePath string) (string, error) {
	trimmed := strings.TrimSpace(filePath)
	if trimmed == "" {
		return "", NewBindingError(
			CodeInvalidPath,
			"Caminho de arquivo obrigatório.",
			"Informe um caminho relativo válido ao repositório.",
		)
	}
	if strings.ContainsRune(trimmed, '\x00') {
		return "", NewBindingError(
			CodeInvalidPath,
			"Caminho de arquivo inválido.",
			"Caracter nulo não é permitido no caminho.",
		)
	}
	if filepath.IsAbs(trimmed) {
		return "", NewBindingError(
			CodeInvalidPath,
			"Caminho de arquivo inválido.",
			"Use apenas caminhos relativos dentro do repositório.",
		)
	}

	normalized := NormalizePanelPath(trimmed)
	if normalized == "" || normalized == "." || normalized == ".." ||
		strings.HasPrefix(normalized, "../") || strings.HasPrefix(normalized, "/") {
		return "", NewBindingError(
			CodeInvalidPath,
			"Caminho de arquivo inválido.",
			"Use apenas caminhos relativos dentro do repositório.",
		)
	}

	rootAbs, err := filepath.Abs(repoRoot)
	if err != nil {
		return "", NewBindingError(
			CodeRepoNotFound,
			"Falha ao validar escopo do repositório.",
			err.Error(),
		)
	}
	targetAbs, err := filepath.Abs(filepath.Join(rootAbs, filepath.FromSlash(normalized)))
	if err != nil {
		return "", NewBindingError(
			CodeInvalidPath,
			"Caminho de arquivo inválido.",
			err.Error(),
		)
	}

	relPath, err := filepath.Rel(rootAbs, targetAbs)
	if err != nil {
		return "", NewBindingError(
			CodeInvalidPath,
			"Caminho de arquivo inválido.",
			err.Error(),
		)
	}
	if relPath == "." || relPath == ".." || strings.HasPrefix(relPath, ".."+string(os.PathSeparator)) {
		return "", NewBindingError(
			CodeRepoOutOfScope,
			"Caminho fora do escopo permitido.",
			normalized,
		)
	}

	return normalized, nil
}

func formatCommandFailureDetails(stderr string, exitCode int, err error) string {
	parts := make([]string, 0, 3)

	if trimmed := strings.TrimSpace(stderr); trimmed != "" {
		parts = append(parts, trimmed)
	}
	if exitCode != 0 {
		parts = append(parts, "exit_code="+strconv.Itoa(exitCode))
	}
	if err != nil && strings.TrimSpace(err.Error()) != "" {
		parts = append(parts, err.Error())
	}

	return strings.Join(parts, " | ")
}

func runGitWithInput(ctx context.Context, timeout time.Duration, stdin string, args ...string) (string, string, int, error) {
	if timeout <= 0 {
		timeout = defaultReadTimeout
	}
	if ctx == nil {
		ctx = context.Background()
	}

	childCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(childCtx, "git", args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	runErr := cmd.Run()
	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		if childCtx.Err() == context.DeadlineExceeded {
			return stdout.String(), stderr.String(), exitCode, NewBindingError(
				CodeTimeout,
				"Comando Git excedeu o tempo limite.",
				formatCommandFailureDetails(stderr.String(), exitCode, runErr),
			)
		}
		return stdout.String(), stderr.String(), exitCode, runErr
	}

	return stdout.String(), stderr.String(), exitCode, nil
}
