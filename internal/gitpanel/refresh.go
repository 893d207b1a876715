package gitpanel

import "sync"

// Classes de operação de refresh. Cada classe carrega um contador de geração
// próprio para supressão de respostas obsoletas.
const (
	RefreshStatus   = "status"
	RefreshHistory  = "history"
	RefreshUnpushed = "unpushed"
	RefreshIdentity = "identity"
	RefreshRemotes  = "remotes"
	RefreshBranches = "branches"
	RefreshTags     = "tags"
	RefreshStashes  = "stashes"
)

// RefreshCoordinator implementa supressão de respostas obsoletas por classe
// de operação: um contador de geração monotônico por classe, comparado no
// momento de aplicar. Não é um token de cancelamento — trabalho em voo não
// é abortado, apenas tem o resultado descartado em silêncio se uma geração
// mais nova já foi emitida (ex.: troca rápida de projeto).
type RefreshCoordinator struct {
	mu     sync.Mutex
	latest map[string]uint64
}

func NewRefreshCoordinator() *RefreshCoordinator {
	return &RefreshCoordinator{
		latest: make(map[string]uint64),
	}
}

// Begin emite uma nova geração para a classe e a torna a mais recente.
func (c *RefreshCoordinator) Begin(class string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.latest[class]++
	return c.latest[class]
}

// Current retorna a geração mais recente emitida para a classe.
func (c *RefreshCoordinator) Current(class string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.latest[class]
}

// Apply executa fn somente se a geração ainda for a mais recente da classe.
// Retorna false quando a resposta foi superada e descartada. A aplicação
// acontece sob o lock do coordenador, serializando mutações de estado
// compartilhado disparadas por respostas concorrentes.
func (c *RefreshCoordinator) Apply(class string, generation uint64, fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.latest[class] != generation {
		return false
	}
	if fn != nil {
		fn()
	}
	return true
}
