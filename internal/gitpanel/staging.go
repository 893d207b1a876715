package gitpanel

import (
	"context"
	"log"
	"strings"
	"sync"
)

// IdentityConfirmer decide interativamente se um commit pode prosseguir
// quando a identidade configurada não bate com o dono detectado do
// repositório. Sem confirmador registrado, o commit é negado.
type IdentityConfirmer func(configured IdentityDTO, detected IdentityDTO) bool

// Manager executa as mutações de staging como transações otimistas sobre o
// view model compartilhado: aplica a mutação local primeiro, confirma com o
// backend e, em falha, restaura o snapshot e devolve uma única falha por
// lote. Transações são serializadas entre si.
type Manager struct {
	backend Backend
	service *Service
	emit    EventEmitter

	confirmIdentity IdentityConfirmer
	sleep           backoffSleeper

	mu sync.Mutex
}

func NewManager(backend Backend, service *Service, emit EventEmitter) *Manager {
	if emit == nil {
		emit = func(string, interface{}) {}
	}
	return &Manager{
		backend: backend,
		service: service,
		emit:    emit,
		sleep:   sleepWithContext,
	}
}

// SetIdentityConfirmer registra o gate interativo de identidade do commit.
func (m *Manager) SetIdentityConfirmer(confirm IdentityConfirmer) {
	m.mu.Lock()
	m.confirmIdentity = confirm
	m.mu.Unlock()
}

// StageFiles move os caminhos para a partição staged.
func (m *Manager) StageFiles(ctx context.Context, repoPath string, paths []string) error {
	return m.runStagingTransaction(ctx, repoPath, paths, true, func(ctx context.Context) error {
		return m.backend.StageFiles(ctx, repoPath, paths)
	})
}

// UnstageFiles devolve os caminhos para a partição unstaged.
func (m *Manager) UnstageFiles(ctx context.Context, repoPath string, paths []string) error {
	return m.runStagingTransaction(ctx, repoPath, paths, false, func(ctx context.Context) error {
		return m.backend.UnstageFiles(ctx, repoPath, paths)
	})
}

// StageAll move todas as entradas com mudanças unstaged para staged.
func (m *Manager) StageAll(ctx context.Context, repoPath string) error {
	paths := m.pathsWithPartition(false)
	if len(paths) == 0 {
		return nil
	}
	return m.StageFiles(ctx, repoPath, paths)
}

// UnstageAll devolve todas as entradas staged para unstaged.
func (m *Manager) UnstageAll(ctx context.Context, repoPath string) error {
	paths := m.pathsWithPartition(true)
	if len(paths) == 0 {
		return nil
	}
	return m.UnstageFiles(ctx, repoPath, paths)
}

// runStagingTransaction é o esqueleto da transação otimista: snapshot,
// mutação local pura, confirmação no backend, rollback integral em falha e
// reconciliação silenciosa em sucesso.
func (m *Manager) runStagingTransaction(ctx context.Context, repoPath string, paths []string, toStaged bool, confirm func(context.Context) error) error {
	if m.backend == nil || m.service == nil {
		return serviceUnavailableError()
	}
	if len(paths) == 0 {
		return NewBindingError(
			CodeInvalidPath,
			"Nenhum caminho informado.",
			"A operação exige ao menos um caminho de arquivo.",
		)
	}

	m.mu.Lock()
	view := m.service.View()
	snapshot := view.Entries()
	view.SetEntries(applyStagingMutation(snapshot, paths, toStaged))

	if err := confirm(ctx); err != nil {
		// Rollback integral: o lote falha como uma única operação, mesmo
		// que o backend tenha recusado apenas parte dos caminhos.
		view.SetEntries(snapshot)
		m.mu.Unlock()
		return NormalizeBindingError(err)
	}
	m.mu.Unlock()

	// Reconciliação agendada fora do lock da transação: o resultado passa
	// pelo contador de geração, então um refresh explícito mais novo nunca
	// é sobrescrito por este.
	go m.service.RefreshStatusQuiet(context.WithoutCancel(ctx), repoPath)
	return nil
}

// applyStagingMutation é a mutação otimista pura: nunca toca o slice de
// entrada, devolve a lista mutada. O rollback restaura o snapshot, então a
// mutação não precisa ser invertível.
func applyStagingMutation(entries []StatusEntryDTO, paths []string, toStaged bool) []StatusEntryDTO {
	wanted := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		if normalized := NormalizePanelPath(path); normalized != "" {
			wanted[normalized] = struct{}{}
		}
	}

	mutated := cloneEntries(entries)
	for i := range mutated {
		if _, ok := wanted[mutated[i].Path]; !ok {
			continue
		}

		if toStaged {
			mutated[i].Staged = true
			mutated[i].Unstaged = false
			if mutated[i].Status == StatusUntracked {
				mutated[i].Status = StatusAdded
			}
			mutated[i].StagedAdditions += mutated[i].UnstagedAdditions
			mutated[i].StagedDeletions += mutated[i].UnstagedDeletions
			mutated[i].UnstagedAdditions = 0
			mutated[i].UnstagedDeletions = 0
		} else {
			mutated[i].Staged = false
			mutated[i].Unstaged = true
			if mutated[i].Status == StatusAdded {
				mutated[i].Status = StatusUntracked
			}
			mutated[i].UnstagedAdditions += mutated[i].StagedAdditions
			mutated[i].UnstagedDeletions += mutated[i].StagedDeletions
			mutated[i].StagedAdditions = 0
			mutated[i].StagedDeletions = 0
		}
	}
	return mutated
}

// SetCommitDraft guarda a mensagem de commit em edição.
func (m *Manager) SetCommitDraft(message string) {
	if m.service == nil {
		return
	}
	m.service.View().SetCommitDraft(message)
}

// Commit cria um commit com as entradas staged atuais. Exige mensagem não
// vazia e ao menos uma entrada staged; quando a identidade configurada não
// corresponde ao dono detectado do repositório, o gate interativo decide.
func (m *Manager) Commit(ctx context.Context, repoPath string, message string) error {
	if m.backend == nil || m.service == nil {
		return serviceUnavailableError()
	}

	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return NewBindingError(
			CodeCommitInvalid,
			"Mensagem de commit obrigatória.",
			"Informe uma mensagem antes de confirmar o commit.",
		)
	}

	m.mu.Lock()
	view := m.service.View()
	if !hasStagedEntry(view.Entries()) {
		m.mu.Unlock()
		return NewBindingError(
			CodeCommitInvalid,
			"Nenhuma alteração em stage para commit.",
			"Adicione arquivos ao stage antes de confirmar o commit.",
		)
	}

	if err := m.checkCommitIdentity(ctx, repoPath); err != nil {
		m.mu.Unlock()
		return err
	}

	if err := m.backend.CreateCommit(ctx, repoPath, trimmed); err != nil {
		m.mu.Unlock()
		return NormalizeBindingError(err)
	}

	view.SetCommitDraft("")
	m.mu.Unlock()

	// O refresh completo roda fora do lock: ele só aplica resultados sob os
	// contadores de geração e não deve represar outras transações.
	m.service.InvalidateRepoCache(repoPath)
	if _, err := m.service.RefreshAll(ctx, repoPath); err != nil {
		log.Printf("[GitPanel] refresh pós-commit falhou: %v", err)
	}
	return nil
}

// checkCommitIdentity compara a identidade configurada com o dono detectado
// do repositório. Divergência sem confirmação explícita bloqueia o commit.
func (m *Manager) checkCommitIdentity(ctx context.Context, repoPath string) error {
	configured, err := m.backend.DetectIdentity(ctx, repoPath)
	if err != nil {
		return NormalizeBindingError(err)
	}

	owner, err := m.backend.DetectRepoOwner(ctx, repoPath)
	if err != nil {
		// Repositório sem commits ainda não tem dono detectável.
		return nil
	}

	if identitiesMatch(configured, owner) {
		return nil
	}

	if m.confirmIdentity != nil && m.confirmIdentity(configured, owner) {
		return nil
	}

	return NewBindingError(
		CodeIdentityDeclined,
		"Commit bloqueado por divergência de identidade.",
		"A identidade configurada não corresponde ao dono detectado do repositório e não houve confirmação.",
	)
}

func identitiesMatch(configured IdentityDTO, detected IdentityDTO) bool {
	configuredEmail := strings.ToLower(strings.TrimSpace(configured.Email))
	detectedEmail := strings.ToLower(strings.TrimSpace(detected.Email))
	if configuredEmail != "" && detectedEmail != "" {
		return configuredEmail == detectedEmail
	}
	return strings.EqualFold(strings.TrimSpace(configured.Name), strings.TrimSpace(detected.Name))
}

func hasStagedEntry(entries []StatusEntryDTO) bool {
	for _, entry := range entries {
		if entry.Staged {
			return true
		}
	}
	return false
}

func (m *Manager) pathsWithPartition(staged bool) []string {
	if m.service == nil {
		return nil
	}

	paths := make([]string, 0, 8)
	for _, entry := range m.service.View().Entries() {
		if entry.Status == StatusIgnored {
			continue
		}
		if (staged && entry.Staged) || (!staged && entry.Unstaged) {
			paths = append(paths, entry.Path)
		}
	}
	return paths
}
