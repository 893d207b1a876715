package gitpanel

import (
	"context"
	"log"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"devscope/internal/cache"
)

const (
	preflightCacheTTL = 5 * time.Minute
	statusCacheTTL    = 3 * time.Second
	historyCacheTTL   = 30 * time.Second
	diffCacheTTL      = 60 * time.Second
	auxReadCacheTTL   = 60 * time.Second
)

// Service é a fachada de leitura do painel Git: preflight, status com
// overlay, histórico com lanes, diffs parseados e o join leniente de
// refresh. Mutações passam pelo Manager, nunca por aqui.
type Service struct {
	backend     Backend
	emit        EventEmitter
	coordinator *RefreshCoordinator
	view        *RepoView

	preflightCache *cache.Store[PreflightResult]
	statusCache    *cache.Store[[]StatusEntryDTO]
	historyCache   *cache.Store[[]CommitDTO]
	diffCache      *cache.Store[string]
}

func NewService(backend Backend, emit EventEmitter) *Service {
	if emit == nil {
		emit = func(string, interface{}) {}
	}
	return &Service{
		backend:        backend,
		emit:           emit,
		coordinator:    NewRefreshCoordinator(),
		view:           NewRepoView(),
		preflightCache: cache.NewStore[PreflightResult](preflightCacheTTL),
		statusCache:    cache.NewStore[[]StatusEntryDTO](statusCacheTTL),
		historyCache:   cache.NewStore[[]CommitDTO](historyCacheTTL),
		diffCache:      cache.NewStore[string](diffCacheTTL),
	}
}

// View expõe o view model compartilhado com o Manager de staging.
func (s *Service) View() *RepoView {
	return s.view
}

// Coordinator expõe o coordenador de gerações compartilhado.
func (s *Service) Coordinator() *RefreshCoordinator {
	return s.coordinator
}

// Preflight valida o ambiente Git e resolve a raiz do repositório. O
// resultado fica cacheado por caminho.
func (s *Service) Preflight(ctx context.Context, repoPath string) (PreflightResult, error) {
	if s.backend == nil {
		return PreflightResult{}, serviceUnavailableError()
	}

	key := repoCacheKey(repoPath, "preflight")
	if cached, ok := s.preflightCache.Get(key); ok {
		return cached, nil
	}

	result, err := s.backend.Preflight(ctx, repoPath)
	if err != nil {
		return PreflightResult{}, NormalizeBindingError(err)
	}

	s.preflightCache.Set(key, result)
	return result, nil
}

// Status retorna as entradas de status do repositório, atualizando o view
// model sob o contador de geração da classe. Uma resposta superada por um
// refresh mais novo não sobrescreve o view model.
func (s *Service) Status(ctx context.Context, repoPath string) ([]StatusEntryDTO, error) {
	if s.backend == nil {
		return nil, serviceUnavailableError()
	}

	key := repoCacheKey(repoPath, "status")
	if cached, ok := s.statusCache.Get(key); ok {
		return cloneEntries(cached), nil
	}

	generation := s.coordinator.Begin(RefreshStatus)
	entries, err := s.backend.GetStatus(ctx, repoPath)
	if err != nil {
		return nil, NormalizeBindingError(err)
	}

	s.coordinator.Apply(RefreshStatus, generation, func() {
		s.statusCache.Set(key, cloneEntries(entries))
		s.view.SetEntries(entries)
	})

	return entries, nil
}

// Overlay retorna os mapas de decoração da árvore derivados do status mais
// recente aplicado ao view model.
func (s *Service) Overlay(ctx context.Context, repoPath string) (StatusOverlayDTO, error) {
	if _, err := s.Status(ctx, repoPath); err != nil {
		return StatusOverlayDTO{}, err
	}
	return s.view.Overlay(), nil
}

// History retorna a janela de histórico com lanes e conectores prontos para
// renderização.
func (s *Service) History(ctx context.Context, repoPath string, limit int) (HistoryViewDTO, error) {
	if s.backend == nil {
		return HistoryViewDTO{}, serviceUnavailableError()
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	key := repoCacheKey(repoPath, "history", strconv.Itoa(limit))
	if cached, ok := s.historyCache.Get(key); ok {
		lanes := LayoutLanes(cached)
		return HistoryViewDTO{Commits: cached, Lanes: lanes, Edges: LaneConnectors(cached, lanes)}, nil
	}

	generation := s.coordinator.Begin(RefreshHistory)
	commits, err := s.backend.GetHistory(ctx, repoPath, limit)
	if err != nil {
		return HistoryViewDTO{}, NormalizeBindingError(err)
	}

	s.coordinator.Apply(RefreshHistory, generation, func() {
		s.historyCache.Set(key, commits)
		s.view.SetHistory(commits)
	})

	lanes := LayoutLanes(commits)
	return HistoryViewDTO{Commits: commits, Lanes: lanes, Edges: LaneConnectors(commits, lanes)}, nil
}

// WorkingDiff retorna o diff da árvore de trabalho (staged ou unstaged,
// opcionalmente de um único arquivo) segmentado por arquivo.
func (s *Service) WorkingDiff(ctx context.Context, repoPath string, filePath string, mode string) (WorkingDiffDTO, error) {
	if s.backend == nil {
		return WorkingDiffDTO{}, serviceUnavailableError()
	}

	normalizedMode := "unstaged"
	if strings.EqualFold(strings.TrimSpace(mode), "staged") {
		normalizedMode = "staged"
	}

	key := repoCacheKey(repoPath, "workdiff", normalizedMode, NormalizePanelPath(filePath))
	raw, ok := s.diffCache.Get(key)
	if !ok {
		fetched, err := s.backend.GetWorkingDiff(ctx, repoPath, filePath, normalizedMode)
		if err != nil {
			return WorkingDiffDTO{}, NormalizeBindingError(err)
		}
		raw = fetched
		s.diffCache.Set(key, raw)
	}

	return WorkingDiffDTO{
		Mode:  normalizedMode,
		Raw:   raw,
		Files: ParseDiff(raw),
	}, nil
}

// CommitDiff retorna o diff completo de um commit com os metadados extraídos
// do cabeçalho. Campos ausentes no cabeçalho caem para o commit já conhecido
// do histórico.
func (s *Service) CommitDiff(ctx context.Context, repoPath string, hash string) (CommitDiffDTO, error) {
	if s.backend == nil {
		return CommitDiffDTO{}, serviceUnavailableError()
	}

	key := repoCacheKey(repoPath, "commitdiff", strings.ToLower(strings.TrimSpace(hash)))
	raw, ok := s.diffCache.Get(key)
	if !ok {
		fetched, err := s.backend.GetCommitDiff(ctx, repoPath, hash)
		if err != nil {
			return CommitDiffDTO{}, NormalizeBindingError(err)
		}
		raw = fetched
		s.diffCache.Set(key, raw)
	}

	fallback := s.knownCommit(hash)
	return CommitDiffDTO{
		Meta:  ParseCommitHeader(raw, fallback),
		Raw:   raw,
		Files: ParseDiff(raw),
	}, nil
}

// refreshRead executa uma leitura de uma classe sob o contador de geração e
// aplica o resultado no view model apenas se a resposta ainda for a mais
// recente da classe.
func (s *Service) refreshRead(class string, fetch func() (func(), error)) error {
	generation := s.coordinator.Begin(class)
	apply, err := fetch()
	if err != nil {
		return err
	}
	s.coordinator.Apply(class, generation, apply)
	return nil
}

// RefreshAll dispara as leituras do painel em paralelo com join leniente:
// cada classe que falha é registrada no sumário, sem derrubar as demais. O
// sumário também é emitido como evento runtime.
func (s *Service) RefreshAll(ctx context.Context, repoPath string) (RefreshSummaryDTO, error) {
	if s.backend == nil {
		return RefreshSummaryDTO{}, serviceUnavailableError()
	}

	preflight, err := s.Preflight(ctx, repoPath)
	if err != nil {
		return RefreshSummaryDTO{}, err
	}
	repoRoot := preflight.RepoRoot

	type refreshTask struct {
		class string
		run   func() error
	}

	tasks := []refreshTask{
		{RefreshStatus, func() error {
			return s.refreshRead(RefreshStatus, func() (func(), error) {
				entries, err := s.backend.GetStatus(ctx, repoRoot)
				if err != nil {
					return nil, err
				}
				return func() {
					s.statusCache.Set(repoCacheKey(repoRoot, "status"), cloneEntries(entries))
					s.view.SetEntries(entries)
				}, nil
			})
		}},
		{RefreshHistory, func() error {
			return s.refreshRead(RefreshHistory, func() (func(), error) {
				commits, err := s.backend.GetHistory(ctx, repoRoot, defaultHistoryLimit)
				if err != nil {
					return nil, err
				}
				return func() {
					s.historyCache.Set(repoCacheKey(repoRoot, "history", strconv.Itoa(defaultHistoryLimit)), commits)
					s.view.SetHistory(commits)
				}, nil
			})
		}},
		{RefreshUnpushed, func() error {
			return s.refreshRead(RefreshUnpushed, func() (func(), error) {
				count, err := s.backend.CountUnpushed(ctx, repoRoot)
				if err != nil {
					return nil, err
				}
				return func() { s.view.SetUnpushed(count) }, nil
			})
		}},
		{RefreshIdentity, func() error {
			return s.refreshRead(RefreshIdentity, func() (func(), error) {
				identity, err := s.backend.DetectIdentity(ctx, repoRoot)
				if err != nil {
					return nil, err
				}
				return func() { s.view.SetIdentity(identity) }, nil
			})
		}},
		{RefreshRemotes, func() error {
			return s.refreshRead(RefreshRemotes, func() (func(), error) {
				remotes, err := s.backend.ListRemotes(ctx, repoRoot)
				if err != nil {
					return nil, err
				}
				return func() { s.view.SetRemotes(remotes) }, nil
			})
		}},
		{RefreshBranches, func() error {
			return s.refreshRead(RefreshBranches, func() (func(), error) {
				branches, err := s.backend.ListBranches(ctx, repoRoot)
				if err != nil {
					return nil, err
				}
				return func() { s.view.SetBranches(branches) }, nil
			})
		}},
		{RefreshTags, func() error {
			return s.refreshRead(RefreshTags, func() (func(), error) {
				tags, err := s.backend.ListTags(ctx, repoRoot)
				if err != nil {
					return nil, err
				}
				return func() { s.view.SetTags(tags) }, nil
			})
		}},
		{RefreshStashes, func() error {
			return s.refreshRead(RefreshStashes, func() (func(), error) {
				stashes, err := s.backend.ListStashes(ctx, repoRoot)
				if err != nil {
					return nil, err
				}
				return func() { s.view.SetStashes(stashes) }, nil
			})
		}},
	}

	var (
		mu     sync.Mutex
		failed []string
		wg     sync.WaitGroup
	)

	for _, task := range tasks {
		wg.Add(1)
		go func(task refreshTask) {
			defer wg.Done()
			if err := task.run(); err != nil {
				log.Printf("[GitPanel] refresh %s falhou: %v", task.class, err)
				mu.Lock()
				failed = append(failed, task.class)
				mu.Unlock()
			}
		}(task)
	}
	wg.Wait()

	sort.Strings(failed)
	summary := RefreshSummaryDTO{
		RepoPath: repoRoot,
		Partial:  len(failed) > 0,
		Failed:   failed,
	}
	s.emit("devscope:git_refresh_summary", summary)
	return summary, nil
}

// RefreshStatusQuiet recarrega apenas o status, sem propagar erro ao
// chamador. Usado pela reconciliação silenciosa após mutações de staging.
func (s *Service) RefreshStatusQuiet(ctx context.Context, repoPath string) {
	err := s.refreshRead(RefreshStatus, func() (func(), error) {
		entries, err := s.backend.GetStatus(ctx, repoPath)
		if err != nil {
			return nil, err
		}
		return func() {
			s.statusCache.Set(repoCacheKey(repoPath, "status"), cloneEntries(entries))
			s.view.SetEntries(entries)
		}, nil
	})
	if err != nil {
		log.Printf("[GitPanel] refresh silencioso de status falhou: %v", err)
	}
}

// InvalidateRepoCache descarta todo estado cacheado de um repositório, por
// exemplo após eventos do file watcher.
func (s *Service) InvalidateRepoCache(repoPath string) {
	prefix := repoCachePrefix(repoPath)
	s.preflightCache.InvalidatePrefix(prefix)
	s.statusCache.InvalidatePrefix(prefix)
	s.historyCache.InvalidatePrefix(prefix)
	s.diffCache.InvalidatePrefix(prefix)
}

// knownCommit procura o hash na janela de histórico do view model para
// servir de fallback de metadados do cabeçalho.
func (s *Service) knownCommit(hash string) CommitDTO {
	normalized := strings.ToLower(strings.TrimSpace(hash))
	for _, commit := range s.view.History().Commits {
		if strings.ToLower(commit.Hash) == normalized {
			return commit
		}
	}
	return CommitDTO{Hash: strings.TrimSpace(hash)}
}

func repoCachePrefix(repoPath string) string {
	return filepath.Clean(strings.TrimSpace(repoPath)) + "|"
}

func repoCacheKey(repoPath string, parts ...string) string {
	return repoCachePrefix(repoPath) + strings.Join(parts, "|")
}

func serviceUnavailableError() error {
	return NewBindingError(
		CodeServiceUnavailable,
		"Serviço Git Panel indisponível.",
		"O backend Git não foi inicializado.",
	)
}
