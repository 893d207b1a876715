package ai

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

const (
	roleBudgetTokens    = 200
	diffBudgetTokens    = 2600
	historyBudgetTokens = 300
	totalBudgetTokens   = 3600

	maxRecentSubjects = 8
)

// buildCommitPrompt monta o prompt de sugestão de commit a partir do diff
// staged e dos assuntos recentes do repositório.
func buildCommitPrompt(req SuggestionRequest) string {
	language := "português do Brasil"
	if strings.EqualFold(req.Language, "en") {
		language = "English"
	}

	role := strings.TrimSpace(fmt.Sprintf(`
[ROLE]
Você escreve mensagens de commit para o diff staged abaixo.
Responda apenas com a mensagem: primeira linha imperativa com até 72
caracteres, linha em branco, e um corpo opcional curto. Sem cercas de
código, sem aspas, sem comentários. Idioma da mensagem: %s.
`, language))
	role = truncateByTokens(role, roleBudgetTokens)

	branch := req.Branch
	if strings.TrimSpace(branch) == "" {
		branch = "unknown"
	}
	repoCtx := fmt.Sprintf("[REPOSITORY]\n- Branch: %s\n", branch)

	var historyCtx string
	if len(req.RecentSubjects) > 0 {
		subjects := req.RecentSubjects
		if len(subjects) > maxRecentSubjects {
			subjects = subjects[:maxRecentSubjects]
		}
		historyCtx = "[RECENT COMMIT SUBJECTS]\n" + strings.Join(subjects, "\n") + "\n"
		historyCtx = truncateByTokens(historyCtx, historyBudgetTokens)
	}

	diff := truncateDiff(req.StagedDiff, diffBudgetTokens)
	diffCtx := "[STAGED DIFF]\n" + diff + "\n"

	prompt := strings.TrimSpace(strings.Join([]string{role, repoCtx, historyCtx, diffCtx}, "\n\n"))
	return truncateByTokens(prompt, totalBudgetTokens)
}

// truncateDiff corta o diff para caber no orçamento, priorizando arquivos de
// código e descartando lockfiles/artefatos gerados.
func truncateDiff(diff string, maxTokens int) string {
	files := parseDiffChunks(diff)
	if len(files) == 0 {
		return truncateByTokens(diff, maxTokens)
	}

	priority := map[string]int{
		".go": 1, ".ts": 1, ".tsx": 1, ".js": 1, ".jsx": 1,
		".py": 2, ".rs": 2, ".java": 2,
		".css": 3, ".html": 3, ".vue": 3,
		".json": 4, ".yaml": 4, ".yml": 4, ".toml": 4,
	}

	ignore := []string{
		"package-lock.json", "yarn.lock", "pnpm-lock.yaml", "go.sum",
		"*.min.js", "*.min.css", "*.map",
	}

	sort.Slice(files, func(i, j int) bool {
		pi := chunkPriority(files[i].name, priority)
		pj := chunkPriority(files[j].name, priority)
		if pi == pj {
			return files[i].name < files[j].name
		}
		return pi < pj
	})

	var result strings.Builder
	tokens := 0

	for _, f := range files {
		if shouldIgnoreChunk(f.name, ignore) {
			continue
		}
		fileTokens := estimateTokens(f.content)
		if fileTokens == 0 {
			continue
		}
		if tokens+fileTokens > maxTokens {
			remaining := maxTokens - tokens
			if remaining <= 0 {
				break
			}
			result.WriteString(truncateByTokens(f.content, remaining))
			tokens = maxTokens
			break
		}
		result.WriteString(f.content)
		if !strings.HasSuffix(f.content, "\n") {
			result.WriteString("\n")
		}
		tokens += fileTokens
	}

	return strings.TrimSpace(result.String())
}

type diffFileChunk struct {
	name    string
	content string
}

func parseDiffChunks(diff string) []diffFileChunk {
	if strings.TrimSpace(diff) == "" {
		return nil
	}

	lines := strings.Split(diff, "\n")
	chunks := make([]diffFileChunk, 0, 16)
	var currentName string
	var currentContent strings.Builder

	flush := func() {
		if currentContent.Len() == 0 {
			return
		}
		chunks = append(chunks, diffFileChunk{
			name:    currentName,
			content: currentContent.String(),
		})
		currentContent.Reset()
	}

	for _, line := range lines {
		if strings.HasPrefix(line, "diff --git ") {
			flush()
			currentName = parseDiffChunkName(line)
		}
		currentContent.WriteString(line)
		currentContent.WriteByte('\n')
	}
	flush()

	// Sem marcador "diff --git": tratar tudo como bloco único.
	if len(chunks) == 1 && chunks[0].name == "" {
		chunks[0].name = "unknown.diff"
	}
	return chunks
}

func parseDiffChunkName(header string) string {
	// Ex: diff --git a/internal/ai/service.go b/internal/ai/service.go
	parts := strings.Split(header, " ")
	if len(parts) < 4 {
		return ""
	}
	raw := strings.TrimPrefix(parts[3], "b/")
	return strings.TrimSpace(raw)
}

func chunkPriority(name string, priorities map[string]int) int {
	ext := strings.ToLower(filepath.Ext(name))
	if p, ok := priorities[ext]; ok {
		return p
	}
	return 5
}

func shouldIgnoreChunk(name string, patterns []string) bool {
	lower := strings.ToLower(name)
	base := strings.ToLower(filepath.Base(name))

	for _, p := range patterns {
		pattern := strings.ToLower(p)
		switch {
		case strings.HasPrefix(pattern, "*"):
			if ok, _ := filepath.Match(pattern, base); ok {
				return true
			}
			if ok, _ := filepath.Match(pattern, lower); ok {
				return true
			}
		default:
			if base == pattern || lower == pattern {
				return true
			}
		}
	}
	return false
}

func truncateByTokens(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	if estimateTokens(text) <= maxTokens {
		return text
	}

	// Aproximação: 1 token ~ 4 chars.
	maxChars := maxTokens * 4
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}

	const suffix = "\n...[TRUNCATED]"
	suffixRunes := []rune(suffix)
	if len(suffixRunes) >= maxChars {
		return string(runes[:maxChars])
	}
	return string(runes[:maxChars-len(suffixRunes)]) + suffix
}

func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	runes := len([]rune(text))
	tokens := runes / 4
	if tokens == 0 {
		return 1
	}
	return tokens
}
