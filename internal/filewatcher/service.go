package filewatcher

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Classes de refresh do painel, espelhando internal/gitpanel. Mantidas como
// strings soltas para não criar dependência de pacote invertida.
const (
	ClassStatus   = "status"
	ClassHistory  = "history"
	ClassUnpushed = "unpushed"
	ClassBranches = "branches"
	ClassTags     = "tags"
	ClassStashes  = "stashes"
)

// Service implementa IRepoWatcher usando fsnotify. Cada evento relevante do
// .git é traduzido para as classes de leitura do painel que ele invalida,
// com debounce por caminho e dedupe semântico por janela.
type Service struct {
	mu       sync.RWMutex
	watcher  *fsnotify.Watcher
	handlers []func(RepoEvent)
	debounce map[string]*time.Timer
	recent   map[string]time.Time
	repos    map[string]string // repoPath -> gitDir real monitorado
	loopOn   bool
	done     chan struct{}
	closed   bool
	window   time.Duration

	// Callback para emitir eventos Wails (injetado pelo app.go)
	emitEvent func(eventName string, data interface{})
}

// NewService cria um novo watcher de repositórios
func NewService(emitEvent func(eventName string, data interface{})) (*Service, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Service{
		watcher:   watcher,
		handlers:  make([]func(RepoEvent), 0),
		debounce:  make(map[string]*time.Timer),
		recent:    make(map[string]time.Time),
		repos:     make(map[string]string),
		done:      make(chan struct{}),
		window:    900 * time.Millisecond,
		emitEvent: emitEvent,
	}, nil
}

// Watch inicia o monitoramento do .git de um repositório
func (s *Service) Watch(repoPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("watcher is closed")
	}

	repoPath = filepath.Clean(repoPath)
	if _, alreadyWatching := s.repos[repoPath]; alreadyWatching {
		return nil
	}

	gitDir, err := resolveGitDir(repoPath)
	if err != nil {
		return fmt.Errorf("not a git repository: %s", repoPath)
	}

	for _, p := range collectWatchPaths(repoPath, gitDir) {
		if err := s.watcher.Add(p); err != nil {
			log.Printf("[RepoWatcher] Warning: could not watch %s: %v", p, err)
		}
	}

	s.repos[repoPath] = gitDir
	log.Printf("[RepoWatcher] Watching %s", repoPath)

	if !s.loopOn {
		s.loopOn = true
		go s.eventLoop()
	}

	return nil
}

// Unwatch para o monitoramento de um repositório
func (s *Service) Unwatch(repoPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	repoPath = filepath.Clean(repoPath)
	gitDir, exists := s.repos[repoPath]
	if !exists {
		return nil
	}

	for _, p := range collectWatchPaths(repoPath, gitDir) {
		_ = s.watcher.Remove(p)
	}

	delete(s.repos, repoPath)
	log.Printf("[RepoWatcher] Unwatched %s", repoPath)
	return nil
}

// OnChange registra um handler para receber eventos
func (s *Service) OnChange(handler func(event RepoEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, handler)
}

// Close encerra todos os watchers
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	for _, timer := range s.debounce {
		timer.Stop()
	}

	close(s.done)
	return s.watcher.Close()
}

// === Event Loop ===

func (s *Service) eventLoop() {
	for {
		select {
		case <-s.done:
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}

			// Git atualiza refs via lock+rename; precisamos considerar mais
			// operações além de Write.
			if !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) &&
				!event.Has(fsnotify.Remove) &&
				!event.Has(fsnotify.Chmod) {
				continue
			}

			// Debounce: 200ms por arquivo (path normalizado).
			key := normalizeGitEventPath(event.Name)
			s.mu.Lock()
			if timer, exists := s.debounce[key]; exists {
				timer.Stop()
			}
			ev := event
			s.debounce[key] = time.AfterFunc(200*time.Millisecond, func() {
				s.handleDebouncedEvent(ev)
			})
			s.mu.Unlock()

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[RepoWatcher] Error: %v", err)
		}
	}
}

func (s *Service) handleDebouncedEvent(event fsnotify.Event) {
	// Subpasta nova de refs (ex: refs/heads/feature) ganha watch dinâmico
	// para não perder eventos de branches com slash.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			s.mu.Lock()
			if !s.closed {
				if err := s.watcher.Add(event.Name); err != nil {
					log.Printf("[RepoWatcher] Warning: could not watch new directory %s: %v", event.Name, err)
				}
			}
			s.mu.Unlock()
		}
	}

	normalizedPath := normalizeGitEventPath(event.Name)

	repoPath, gitDir := s.findRepo(normalizedPath)
	if repoPath == "" {
		return
	}

	repoEvent := classifyRepoEvent(normalizedPath, repoPath, gitDir)
	if repoEvent == nil {
		return
	}

	if !s.shouldEmit(*repoEvent) {
		return
	}

	log.Printf("[RepoWatcher] Event: %s (%s)", repoEvent.Type, repoEvent.Path)

	s.mu.RLock()
	handlers := make([]func(RepoEvent), len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.RUnlock()

	for _, handler := range handlers {
		handler(*repoEvent)
	}

	if s.emitEvent != nil {
		s.emitEvent("devscope:repo_changed", repoEvent)
	}
}

func (s *Service) shouldEmit(event RepoEvent) bool {
	key := event.Type + "|" + normalizeGitEventPath(event.Path)
	now := time.Now()
	cutoff := now.Add(-3 * s.window)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ts := range s.recent {
		if ts.Before(cutoff) {
			delete(s.recent, k)
		}
	}

	if last, exists := s.recent[key]; exists && now.Sub(last) <= s.window {
		return false
	}

	s.recent[key] = now
	return true
}

// findRepo encontra o repositório dono do caminho do evento.
func (s *Service) findRepo(eventPath string) (string, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cleanEventPath := filepath.Clean(eventPath)
	for repoPath, gitDir := range s.repos {
		cleanGitDir := filepath.Clean(gitDir)
		if cleanEventPath == cleanGitDir ||
			strings.HasPrefix(cleanEventPath, cleanGitDir+string(os.PathSeparator)) {
			return repoPath, gitDir
		}
		cleanRepo := filepath.Clean(repoPath)
		if cleanEventPath == cleanRepo ||
			strings.HasPrefix(cleanEventPath, cleanRepo+string(os.PathSeparator)) {
			return repoPath, gitDir
		}
	}
	return "", ""
}

// classifyRepoEvent traduz o caminho alterado nas classes de refresh do
// painel afetadas. Eventos sem classe mapeada são descartados.
func classifyRepoEvent(eventPath string, repoPath string, gitDir string) *RepoEvent {
	name := filepath.Base(eventPath)
	now := time.Now()

	insideGitDir := eventPath == gitDir ||
		strings.HasPrefix(eventPath, gitDir+string(os.PathSeparator))

	if !insideGitDir {
		// Mudança na árvore de trabalho: só o status fica obsoleto.
		return &RepoEvent{
			Type:           "worktree",
			RepoPath:       repoPath,
			Path:           eventPath,
			Timestamp:      now,
			RefreshClasses: []string{ClassStatus},
		}
	}

	switch {
	case name == "HEAD" && filepath.Dir(eventPath) == gitDir:
		// Troca de branch muda status, histórico e contagem de unpushed.
		return &RepoEvent{
			Type:           "head",
			RepoPath:       repoPath,
			Path:           eventPath,
			Timestamp:      now,
			RefreshClasses: []string{ClassStatus, ClassHistory, ClassUnpushed, ClassBranches},
		}

	case name == "index":
		return &RepoEvent{
			Type:           "index",
			RepoPath:       repoPath,
			Path:           eventPath,
			Timestamp:      now,
			RefreshClasses: []string{ClassStatus},
		}

	case name == "MERGE_HEAD":
		return &RepoEvent{
			Type:           "merge",
			RepoPath:       repoPath,
			Path:           eventPath,
			Timestamp:      now,
			RefreshClasses: []string{ClassStatus, ClassHistory},
		}

	case strings.Contains(eventPath, filepath.Join("refs", "heads")):
		// Novo commit ou branch local.
		return &RepoEvent{
			Type:           "ref",
			RepoPath:       repoPath,
			Path:           eventPath,
			Timestamp:      now,
			RefreshClasses: []string{ClassHistory, ClassUnpushed, ClassBranches},
		}

	case strings.Contains(eventPath, filepath.Join("refs", "remotes")):
		return &RepoEvent{
			Type:           "remote_ref",
			RepoPath:       repoPath,
			Path:           eventPath,
			Timestamp:      now,
			RefreshClasses: []string{ClassUnpushed},
		}

	case strings.Contains(eventPath, filepath.Join("refs", "tags")):
		return &RepoEvent{
			Type:           "tags",
			RepoPath:       repoPath,
			Path:           eventPath,
			Timestamp:      now,
			RefreshClasses: []string{ClassTags},
		}

	case strings.Contains(eventPath, filepath.Join("refs", "stash")) || name == "stash":
		return &RepoEvent{
			Type:           "stash",
			RepoPath:       repoPath,
			Path:           eventPath,
			Timestamp:      now,
			RefreshClasses: []string{ClassStashes, ClassStatus},
		}
	}

	return nil
}

// === Helper Functions ===

func resolveGitDir(repoPath string) (string, error) {
	gitPath := filepath.Join(repoPath, ".git")
	info, err := os.Stat(gitPath)
	if err != nil {
		return "", err
	}

	// Repo padrão: .git é diretório.
	if info.IsDir() {
		return filepath.Clean(gitPath), nil
	}

	// Worktree/submodule: .git é arquivo com "gitdir: <path>".
	data, err := os.ReadFile(gitPath)
	if err != nil {
		return "", fmt.Errorf("failed to read .git file: %w", err)
	}

	content := strings.TrimSpace(string(data))
	if !strings.HasPrefix(strings.ToLower(content), "gitdir:") {
		return "", fmt.Errorf("invalid .git file format")
	}

	gitDir := strings.TrimSpace(content[len("gitdir:"):])
	if gitDir == "" {
		return "", fmt.Errorf("empty gitdir in .git file")
	}
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(repoPath, gitDir)
	}

	return filepath.Clean(gitDir), nil
}

func collectWatchPaths(repoPath string, gitDir string) []string {
	// A raiz do repositório entra para sinalizar mudanças de árvore de
	// trabalho no primeiro nível; profundidade total seria caro demais.
	paths := []string{gitDir, filepath.Clean(repoPath)}
	candidates := []string{
		filepath.Join(gitDir, "refs", "heads"),
		filepath.Join(gitDir, "refs", "remotes"),
		filepath.Join(gitDir, "refs", "tags"),
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}

		paths = append(paths, candidate)
		entries, _ := os.ReadDir(candidate)
		for _, entry := range entries {
			if entry.IsDir() {
				paths = append(paths, filepath.Join(candidate, entry.Name()))
			}
		}
	}

	unique := make([]string, 0, len(paths))
	seen := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		clean := filepath.Clean(path)
		if _, exists := seen[clean]; exists {
			continue
		}
		seen[clean] = struct{}{}
		unique = append(unique, clean)
	}
	return unique
}

func normalizeGitEventPath(path string) string {
	clean := filepath.Clean(path)
	if strings.HasSuffix(clean, ".lock") {
		return strings.TrimSuffix(clean, ".lock")
	}
	return clean
}
