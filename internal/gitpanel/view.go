package gitpanel

import "sync"

// RepoView é o view model compartilhado do repositório ativo: a lista de
// entradas de status (mutada otimisticamente pelo staging), o overlay
// derivado e os dados das demais leituras do join leniente.
type RepoView struct {
	mu sync.RWMutex

	entries []StatusEntryDTO
	overlay StatusOverlayDTO

	history  []CommitDTO
	lanes    map[string]int
	edges    []LaneEdgeDTO
	unpushed int
	identity IdentityDTO
	remotes  []RemoteDTO
	branches []BranchDTO
	tags     []string
	stashes  []StashDTO

	commitDraft string
}

func NewRepoView() *RepoView {
	return &RepoView{
		overlay: StatusOverlayDTO{
			Direct:     map[string]string{},
			Aggregated: map[string]DirStatusDTO{},
		},
		lanes: map[string]int{},
	}
}

// SetEntries substitui a lista de entradas e recomputa o overlay.
func (v *RepoView) SetEntries(entries []StatusEntryDTO) {
	cloned := cloneEntries(entries)
	overlay := BuildOverlay(cloned)

	v.mu.Lock()
	v.entries = cloned
	v.overlay = overlay
	v.mu.Unlock()
}

// Entries retorna uma cópia da lista de entradas.
func (v *RepoView) Entries() []StatusEntryDTO {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return cloneEntries(v.entries)
}

// Overlay retorna o overlay derivado mais recente.
func (v *RepoView) Overlay() StatusOverlayDTO {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.overlay
}

// SetHistory substitui a janela de histórico e recomputa lanes e conectores.
func (v *RepoView) SetHistory(commits []CommitDTO) {
	lanes := LayoutLanes(commits)
	edges := LaneConnectors(commits, lanes)

	v.mu.Lock()
	v.history = commits
	v.lanes = lanes
	v.edges = edges
	v.mu.Unlock()
}

// History retorna a janela de histórico pronta para renderização.
func (v *RepoView) History() HistoryViewDTO {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return HistoryViewDTO{
		Commits: v.history,
		Lanes:   v.lanes,
		Edges:   v.edges,
	}
}

func (v *RepoView) SetUnpushed(count int) {
	v.mu.Lock()
	v.unpushed = count
	v.mu.Unlock()
}

func (v *RepoView) Unpushed() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.unpushed
}

func (v *RepoView) SetIdentity(identity IdentityDTO) {
	v.mu.Lock()
	v.identity = identity
	v.mu.Unlock()
}

func (v *RepoView) Identity() IdentityDTO {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.identity
}

func (v *RepoView) SetRemotes(remotes []RemoteDTO) {
	v.mu.Lock()
	v.remotes = remotes
	v.mu.Unlock()
}

func (v *RepoView) Remotes() []RemoteDTO {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.remotes
}

func (v *RepoView) SetBranches(branches []BranchDTO) {
	v.mu.Lock()
	v.branches = branches
	v.mu.Unlock()
}

func (v *RepoView) Branches() []BranchDTO {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.branches
}

func (v *RepoView) SetTags(tags []string) {
	v.mu.Lock()
	v.tags = tags
	v.mu.Unlock()
}

func (v *RepoView) Tags() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.tags
}

func (v *RepoView) SetStashes(stashes []StashDTO) {
	v.mu.Lock()
	v.stashes = stashes
	v.mu.Unlock()
}

func (v *RepoView) Stashes() []StashDTO {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.stashes
}

// SetCommitDraft guarda a mensagem de commit em edição no painel.
func (v *RepoView) SetCommitDraft(message string) {
	v.mu.Lock()
	v.commitDraft = message
	v.mu.Unlock()
}

func (v *RepoView) CommitDraft() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.commitDraft
}

func cloneEntries(entries []StatusEntryDTO) []StatusEntryDTO {
	if len(entries) == 0 {
		return []StatusEntryDTO{}
	}
	out := make([]StatusEntryDTO, len(entries))
	copy(out, entries)
	return out
}
