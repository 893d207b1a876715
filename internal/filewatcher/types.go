package filewatcher

import "time"

// RepoEvent representa uma mudança detectada no repositório monitorado,
// já traduzida para as classes de leitura do painel que ela invalida.
type RepoEvent struct {
	Type      string    `json:"type"` // "index" | "head" | "ref" | "remote_ref" | "merge" | "tags" | "stash" | "worktree"
	RepoPath  string    `json:"repoPath"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`

	// Classes de refresh do gitpanel afetadas por este evento.
	RefreshClasses []string `json:"refreshClasses"`
}

// IRepoWatcher define a interface do monitoramento de repositórios.
type IRepoWatcher interface {
	// Watch inicia o monitoramento do .git (e raiz) de um repositório
	Watch(repoPath string) error

	// Unwatch para o monitoramento de um repositório
	Unwatch(repoPath string) error

	// OnChange registra um handler para receber eventos
	OnChange(handler func(event RepoEvent))

	// Close encerra todos os watchers
	Close() error
}
