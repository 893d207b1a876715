package gitpanel

// Status de arquivo normalizado exposto ao painel.
const (
	StatusModified  = "modified"
	StatusUntracked = "untracked"
	StatusAdded     = "added"
	StatusDeleted   = "deleted"
	StatusRenamed   = "renamed"
	StatusIgnored   = "ignored"
	StatusUnknown   = "unknown"
)

// Classificação por linha de diff para renderização colorida.
const (
	DiffLineAdd     = "add"
	DiffLineDelete  = "delete"
	DiffLineHunk    = "hunk"
	DiffLineMeta    = "meta"
	DiffLineContext = "context"
)

// PreflightResult descreve o estado de runtime para operar Git no painel.
type PreflightResult struct {
	GitAvailable bool   `json:"gitAvailable"`
	RepoPath     string `json:"repoPath"`
	RepoRoot     string `json:"repoRoot"`
	Branch       string `json:"branch,omitempty"`
	MergeActive  bool   `json:"mergeActive"`
}

// CommitDTO representa um commit do histórico (imutável após o fetch).
type CommitDTO struct {
	Hash        string   `json:"hash"`
	ShortHash   string   `json:"shortHash"`
	Parents     []string `json:"parents,omitempty"`
	Author      string   `json:"author"`
	AuthorEmail string   `json:"authorEmail,omitempty"`
	Date        string   `json:"date"`
	Message     string   `json:"message"`
	Additions   int      `json:"additions"`
	Deletions   int      `json:"deletions"`
}

// CommitMetaDTO representa metadados extraídos do cabeçalho de um commit.
type CommitMetaDTO struct {
	Hash        string `json:"hash"`
	Author      string `json:"author"`
	AuthorEmail string `json:"authorEmail,omitempty"`
	AuthorDate  string `json:"authorDate"`
	CommitDate  string `json:"commitDate"`
	Message     string `json:"message"`
}

// DiffFileDTO representa um arquivo segmentado de um diff unificado.
// Raw preserva o texto do bloco na íntegra, incluindo o cabeçalho.
type DiffFileDTO struct {
	Path      string `json:"path"`
	Raw       string `json:"raw"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	LineCount int    `json:"lineCount"`
}

// StatusEntryDTO representa uma entrada de status por caminho.
// Substituída integralmente a cada refresh; mutada apenas por operações
// otimistas de staging pendentes de confirmação do backend.
type StatusEntryDTO struct {
	Path              string `json:"path"`
	PreviousPath      string `json:"previousPath,omitempty"`
	Status            string `json:"status"`
	Staged            bool   `json:"staged"`
	Unstaged          bool   `json:"unstaged"`
	StagedAdditions   int    `json:"stagedAdditions"`
	StagedDeletions   int    `json:"stagedDeletions"`
	UnstagedAdditions int    `json:"unstagedAdditions"`
	UnstagedDeletions int    `json:"unstagedDeletions"`
}

// DirStatusDTO representa o overlay agregado de um diretório ancestral.
type DirStatusDTO struct {
	Status           string `json:"status"`
	HasNestedChanges bool   `json:"hasNestedChanges"`
}

// StatusOverlayDTO representa os dois mapas derivados do status:
// caminho exato → status e diretório ancestral → status agregado.
type StatusOverlayDTO struct {
	Direct     map[string]string       `json:"direct"`
	Aggregated map[string]DirStatusDTO `json:"aggregated"`
}

// LaneEdgeDTO representa um conector entre commit e pai dentro da janela
// renderizada. Pais fora da janela não produzem conector.
type LaneEdgeDTO struct {
	FromHash string `json:"fromHash"`
	ToHash   string `json:"toHash"`
	FromRow  int    `json:"fromRow"`
	ToRow    int    `json:"toRow"`
	FromLane int    `json:"fromLane"`
	ToLane   int    `json:"toLane"`
	Kind     string `json:"kind"` // "straight" | "curved"
}

// HistoryViewDTO representa a janela de histórico pronta para renderização.
type HistoryViewDTO struct {
	Commits []CommitDTO    `json:"commits"`
	Lanes   map[string]int `json:"lanes"`
	Edges   []LaneEdgeDTO  `json:"edges"`
}

// WorkingDiffDTO representa o diff de trabalho parseado para o painel.
type WorkingDiffDTO struct {
	Mode  string        `json:"mode"` // "staged" | "unstaged"
	Raw   string        `json:"raw"`
	Files []DiffFileDTO `json:"files"`
}

// CommitDiffDTO representa o diff de um commit com metadados do cabeçalho.
type CommitDiffDTO struct {
	Meta  CommitMetaDTO `json:"meta"`
	Raw   string        `json:"raw"`
	Files []DiffFileDTO `json:"files"`
}

// IdentityDTO representa uma identidade de autor (committer configurado ou
// dono detectado do repositório).
type IdentityDTO struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// RemoteDTO representa um remote configurado.
type RemoteDTO struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// BranchDTO representa uma branch local.
type BranchDTO struct {
	Name    string `json:"name"`
	Current bool   `json:"current"`
}

// StashDTO representa uma entrada de stash.
type StashDTO struct {
	Ref     string `json:"ref"`
	Message string `json:"message"`
}

// PushReportDTO representa o resultado classificado de um push.
type PushReportDTO struct {
	Mode     string `json:"mode"` // "push" | "publish"
	Ok       bool   `json:"ok"`
	Category string `json:"category,omitempty"` // "transient" | "auth" | "rejected" | "unknown"
	Summary  string `json:"summary,omitempty"`
	Attempts int    `json:"attempts"`
}

// RefreshSummaryDTO representa o desfecho de um join leniente de leituras.
type RefreshSummaryDTO struct {
	RepoPath string   `json:"repoPath"`
	Partial  bool     `json:"partial"`
	Failed   []string `json:"failed,omitempty"`
}

// CommandResultDTO representa resultado de comando emitido por evento runtime.
type CommandResultDTO struct {
	CommandID       string   `json:"commandId"`
	RepoPath        string   `json:"repoPath"`
	Action          string   `json:"action"`
	Args            []string `json:"args,omitempty"`
	DurationMs      int64    `json:"durationMs"`
	ExitCode        int      `json:"exitCode"`
	StderrSanitized string   `json:"stderrSanitized,omitempty"`
	Status          string   `json:"status"`
	Attempt         int      `json:"attempt,omitempty"`
	Error           string   `json:"error,omitempty"`
}
