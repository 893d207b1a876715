package ai

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

const subjectMaxLength = 72

type providerRegistration struct {
	meta   AIProvider
	client providerClient
}

// KeyReader resolve chaves de API guardadas fora do processo (keychain).
type KeyReader interface {
	APIKeyFor(providerID string) (string, error)
}

// ServiceDeps encapsula dependências do assistente de commit.
type ServiceDeps struct {
	Keys KeyReader
}

// Service implementa ICommitAssistant.
type Service struct {
	mu sync.RWMutex

	providers      map[string]providerRegistration
	activeProvider string
	cancels        map[string]context.CancelFunc

	keys      KeyReader
	sanitizer *SecretSanitizer
}

// NewService cria o assistente e registra os provedores disponíveis.
func NewService(deps ServiceDeps) *Service {
	svc := &Service{
		providers: make(map[string]providerRegistration),
		cancels:   make(map[string]context.CancelFunc),
		keys:      deps.Keys,
		sanitizer: NewSecretSanitizer(),
	}

	svc.bootstrapProviders()
	return svc
}

func (s *Service) bootstrapProviders() {
	// Ollama local funciona sem chave.
	ollama := AIProvider{
		ID:       "ollama",
		Name:     "Ollama (Local)",
		Model:    "llama3",
		Endpoint: "http://localhost:11434",
		Enabled:  true,
	}
	s.providers[ollama.ID] = providerRegistration{
		meta:   ollama,
		client: newOllamaProvider(ollama.Endpoint, ollama.Model),
	}

	geminiKey := s.resolveKey("gemini", "DEVSCOPE_GEMINI_API_KEY", "GOOGLE_API_KEY", "GEMINI_API_KEY")
	gemini := AIProvider{
		ID:      "gemini",
		Name:    "Gemini",
		Model:   "gemini-2.0-flash",
		APIKey:  geminiKey,
		Enabled: geminiKey != "",
	}
	var geminiClient providerClient
	if geminiKey != "" {
		client, err := newGeminiProvider(geminiKey, gemini.Model)
		if err == nil {
			geminiClient = client
		}
	}
	s.providers[gemini.ID] = providerRegistration{
		meta:   gemini,
		client: geminiClient,
	}

	openAIKey := s.resolveKey("openai", "OPENAI_API_KEY", "DEVSCOPE_OPENAI_API_KEY")
	openAI := AIProvider{
		ID:      "openai",
		Name:    "OpenAI",
		Model:   "gpt-4.1-mini",
		APIKey:  openAIKey,
		Enabled: openAIKey != "",
	}
	var openAIClient providerClient
	if openAIKey != "" {
		client, err := newOpenAIProvider(openAIKey, openAI.Model)
		if err == nil {
			openAIClient = client
		}
	}
	s.providers[openAI.ID] = providerRegistration{
		meta:   openAI,
		client: openAIClient,
	}

	// Provider padrão: Gemini > OpenAI > Ollama.
	if geminiClient != nil {
		s.activeProvider = "gemini"
	} else if openAIClient != nil {
		s.activeProvider = "openai"
	} else {
		s.activeProvider = "ollama"
	}
}

// resolveKey busca a chave primeiro no keychain, depois nas variáveis de
// ambiente listadas.
func (s *Service) resolveKey(providerID string, envVars ...string) string {
	if s.keys != nil {
		if key, err := s.keys.APIKeyFor(providerID); err == nil && strings.TrimSpace(key) != "" {
			return strings.TrimSpace(key)
		}
	}
	for _, name := range envVars {
		if key := strings.TrimSpace(os.Getenv(name)); key != "" {
			return key
		}
	}
	return ""
}

// SuggestCommitMessage gera uma mensagem de commit a partir do diff staged.
func (s *Service) SuggestCommitMessage(ctx context.Context, req SuggestionRequest) (*Suggestion, error) {
	if strings.TrimSpace(req.StagedDiff) == "" {
		return nil, fmt.Errorf("não há mudanças staged para sugerir mensagem")
	}

	provider, client, err := s.getActiveProvider()
	if err != nil {
		return nil, err
	}

	prompt := buildCommitPrompt(req)
	prompt = s.sanitizer.Clean(prompt)

	// Uma geração por repositório de cada vez.
	if err := s.Cancel(req.RepoPath); err != nil {
		_ = err
	}

	pctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancels[req.RepoPath] = cancel
	s.mu.Unlock()
	defer s.clearCancel(req.RepoPath)

	raw, err := client.Complete(pctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("provider %s falhou: %w", provider.Name, err)
	}

	subject, body := splitSuggestion(raw)
	if subject == "" {
		return nil, fmt.Errorf("provider %s retornou resposta vazia", provider.Name)
	}

	return &Suggestion{
		Subject:  subject,
		Body:     body,
		Provider: provider.ID,
		Model:    provider.Model,
	}, nil
}

// splitSuggestion limpa a resposta do modelo e separa assunto de corpo.
func splitSuggestion(raw string) (string, string) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if len(lines) == 0 {
		return "", ""
	}

	subject := strings.Trim(strings.TrimSpace(lines[0]), "\"'`")
	if len([]rune(subject)) > subjectMaxLength {
		runes := []rune(subject)
		subject = strings.TrimSpace(string(runes[:subjectMaxLength]))
	}

	body := strings.TrimSpace(strings.Join(lines[1:], "\n"))
	return subject, body
}

// SetProvider configura/ativa o provedor escolhido.
func (s *Service) SetProvider(provider AIProvider) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.ToLower(strings.TrimSpace(provider.ID))
	if id == "" {
		return fmt.Errorf("provider id inválido")
	}

	current, ok := s.providers[id]
	if !ok {
		return fmt.Errorf("provider %q não suportado", id)
	}

	if provider.Model == "" {
		provider.Model = current.meta.Model
	}
	if provider.Name == "" {
		provider.Name = current.meta.Name
	}
	if provider.Endpoint == "" {
		provider.Endpoint = current.meta.Endpoint
	}
	if provider.APIKey == "" {
		provider.APIKey = current.meta.APIKey
	}

	var client providerClient
	switch id {
	case "openai":
		c, err := newOpenAIProvider(provider.APIKey, provider.Model)
		if err != nil {
			return err
		}
		client = c
		provider.Enabled = true
	case "ollama":
		client = newOllamaProvider(provider.Endpoint, provider.Model)
		provider.Enabled = true
	case "gemini":
		c, err := newGeminiProvider(provider.APIKey, provider.Model)
		if err != nil {
			return err
		}
		client = c
		provider.Enabled = true
	default:
		return fmt.Errorf("provider %q não suportado", id)
	}

	s.providers[id] = providerRegistration{
		meta:   provider,
		client: client,
	}
	s.activeProvider = id
	return nil
}

// ListProviders lista provedores disponíveis.
func (s *Service) ListProviders() []AIProvider {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.providers))
	for k := range s.providers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	list := make([]AIProvider, 0, len(keys))
	for _, k := range keys {
		meta := s.providers[k].meta
		meta.APIKey = "" // nunca expor chave ao frontend
		list = append(list, meta)
	}
	return list
}

// Cancel cancela a geração em andamento para um repositório.
func (s *Service) Cancel(repoPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cancel, ok := s.cancels[repoPath]
	if !ok {
		return nil
	}
	cancel()
	delete(s.cancels, repoPath)
	return nil
}

func (s *Service) getActiveProvider() (AIProvider, providerClient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reg, ok := s.providers[s.activeProvider]
	if !ok || reg.client == nil {
		return AIProvider{}, nil, fmt.Errorf("nenhum provider ativo configurado")
	}
	return reg.meta, reg.client, nil
}

func (s *Service) clearCancel(repoPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cancels, repoPath)
}
