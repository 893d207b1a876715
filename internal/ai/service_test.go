package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeProvider struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeProvider) Complete(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func newServiceWithFake(t *testing.T, fake *fakeProvider) *Service {
	t.Helper()
	svc := NewService(ServiceDeps{})
	svc.providers["fake"] = providerRegistration{
		meta:   AIProvider{ID: "fake", Name: "Fake", Model: "fake-1", Enabled: true},
		client: fake,
	}
	svc.activeProvider = "fake"
	return svc
}

func TestSuggestCommitMessageSplitsSubjectAndBody(t *testing.T) {
	fake := &fakeProvider{response: "Adiciona painel de staging\n\nInclui rollback otimista e refresh silencioso."}
	svc := newServiceWithFake(t, fake)

	suggestion, err := svc.SuggestCommitMessage(context.Background(), SuggestionRequest{
		RepoPath:   "/tmp/repo",
		Branch:     "main",
		StagedDiff: "diff --git a/main.go b/main.go\n+func main() {}\n",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if suggestion.Subject != "Adiciona painel de staging" {
		t.Fatalf("unexpected subject: %q", suggestion.Subject)
	}
	if !strings.Contains(suggestion.Body, "rollback otimista") {
		t.Fatalf("unexpected body: %q", suggestion.Body)
	}
	if suggestion.Provider != "fake" || suggestion.Model != "fake-1" {
		t.Fatalf("unexpected provenance: %s/%s", suggestion.Provider, suggestion.Model)
	}
	if got := suggestion.Message(); !strings.HasPrefix(got, "Adiciona painel de staging\n\n") {
		t.Fatalf("unexpected full message: %q", got)
	}
}

func TestSuggestCommitMessageRejectsEmptyDiff(t *testing.T) {
	svc := newServiceWithFake(t, &fakeProvider{response: "x"})

	if _, err := svc.SuggestCommitMessage(context.Background(), SuggestionRequest{RepoPath: "/tmp/repo"}); err == nil {
		t.Fatal("expected error for empty staged diff")
	}
}

func TestSuggestCommitMessagePropagatesProviderFailure(t *testing.T) {
	fake := &fakeProvider{err: errors.New("model offline")}
	svc := newServiceWithFake(t, fake)

	_, err := svc.SuggestCommitMessage(context.Background(), SuggestionRequest{
		RepoPath:   "/tmp/repo",
		StagedDiff: "+x\n",
	})
	if err == nil || !strings.Contains(err.Error(), "model offline") {
		t.Fatalf("expected provider failure, got %v", err)
	}
}

func TestSuggestCommitMessageSanitizesPromptSecrets(t *testing.T) {
	fake := &fakeProvider{response: "Atualiza config"}
	svc := newServiceWithFake(t, fake)

	_, err := svc.SuggestCommitMessage(context.Background(), SuggestionRequest{
		RepoPath:   "/tmp/repo",
		StagedDiff: "diff --git a/.env b/.env\n+API_KEY=super-secret-value\n",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(fake.prompts) != 1 {
		t.Fatalf("expected single prompt, got %d", len(fake.prompts))
	}
	if strings.Contains(fake.prompts[0], "super-secret-value") {
		t.Fatal("expected secret redacted from prompt")
	}
	if !strings.Contains(fake.prompts[0], "[REDACTED]") {
		t.Fatal("expected redaction marker in prompt")
	}
}

func TestSplitSuggestionStripsFencesAndQuotes(t *testing.T) {
	subject, body := splitSuggestion("```\n\"Corrige parser de diff\"\n\nDetalhes do ajuste.\n```")
	if subject != "Corrige parser de diff" {
		t.Fatalf("unexpected subject: %q", subject)
	}
	if body != "Detalhes do ajuste." {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestSplitSuggestionLimitsSubjectLength(t *testing.T) {
	long := strings.Repeat("a", 120)
	subject, _ := splitSuggestion(long)
	if len([]rune(subject)) > subjectMaxLength {
		t.Fatalf("subject not truncated: %d runes", len([]rune(subject)))
	}
}

func TestListProvidersHidesAPIKeys(t *testing.T) {
	svc := NewService(ServiceDeps{})
	svc.providers["gemini"] = providerRegistration{
		meta: AIProvider{ID: "gemini", Name: "Gemini", APIKey: "AIzaFakeKey", Enabled: true},
	}

	for _, p := range svc.ListProviders() {
		if p.APIKey != "" {
			t.Fatalf("expected api key hidden for %s", p.ID)
		}
	}
}

func TestSetProviderRejectsUnknownID(t *testing.T) {
	svc := NewService(ServiceDeps{})
	if err := svc.SetProvider(AIProvider{ID: "bedrock"}); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestSetProviderOllamaWithoutKey(t *testing.T) {
	svc := NewService(ServiceDeps{})
	if err := svc.SetProvider(AIProvider{ID: "ollama", Model: "codellama"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.activeProvider != "ollama" {
		t.Fatalf("expected ollama active, got %q", svc.activeProvider)
	}
}

type fakeKeys struct {
	values map[string]string
}

func (f *fakeKeys) APIKeyFor(providerID string) (string, error) {
	if v, ok := f.values[providerID]; ok {
		return v, nil
	}
	return "", errors.New("not found")
}

func TestResolveKeyPrefersKeychainOverEnv(t *testing.T) {
	t.Setenv("DEVSCOPE_TEST_AI_KEY", "env-key")

	svc := &Service{keys: &fakeKeys{values: map[string]string{"openai": "keychain-key"}}}
	if got := svc.resolveKey("openai", "DEVSCOPE_TEST_AI_KEY"); got != "keychain-key" {
		t.Fatalf("expected keychain key, got %q", got)
	}

	if got := svc.resolveKey("gemini", "DEVSCOPE_TEST_AI_KEY"); got != "env-key" {
		t.Fatalf("expected env fallback, got %q", got)
	}
}
