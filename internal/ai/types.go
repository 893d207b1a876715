package ai

import "context"

// ICommitAssistant define a interface do assistente de mensagens de commit.
type ICommitAssistant interface {
	SuggestCommitMessage(ctx context.Context, req SuggestionRequest) (*Suggestion, error)
	SetProvider(provider AIProvider) error
	ListProviders() []AIProvider
	Cancel(repoPath string) error
}

// AIProvider representa um provedor/modelo de IA configurável.
type AIProvider struct {
	ID       string `json:"id"`                 // "gemini", "openai", "ollama"
	Name     string `json:"name"`               // "Gemini", "GPT-4.1", "Llama 3"
	Model    string `json:"model"`              // "gemini-2.0-flash", "llama3", etc.
	APIKey   string `json:"apiKey,omitempty"`   // Nunca persistir em plaintext
	Endpoint string `json:"endpoint,omitempty"` // URL base (ex.: Ollama local)
	Enabled  bool   `json:"enabled"`            // Disponível para uso imediato
}

// SuggestionRequest carrega o contexto do repositório para gerar a sugestão.
type SuggestionRequest struct {
	RepoPath string `json:"repoPath"`
	Branch   string `json:"branch,omitempty"`

	// Diff do que está no index (git diff --cached).
	StagedDiff string `json:"stagedDiff"`

	// Assuntos de commits recentes, usados para imitar o estilo do repositório.
	RecentSubjects []string `json:"recentSubjects,omitempty"`

	Language string `json:"language,omitempty"` // "pt-BR" | "en"
}

// Suggestion é a mensagem de commit proposta pelo provedor.
type Suggestion struct {
	Subject  string `json:"subject"`
	Body     string `json:"body,omitempty"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// Message devolve a mensagem completa (assunto + corpo) pronta para o commit.
func (s *Suggestion) Message() string {
	if s == nil {
		return ""
	}
	if s.Body == "" {
		return s.Subject
	}
	return s.Subject + "\n\n" + s.Body
}
