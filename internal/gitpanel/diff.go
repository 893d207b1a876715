package gitpanel

import (
	"regexp"
	"strings"
)

var (
	diffGitHeaderRegex = regexp.MustCompile(`^diff --git a/(.+) b/(.+)$`)
	authorLineRegex    = regexp.MustCompile(`^(.*?)\s*<(.+)>$`)
)

const unknownDiffPath = "unknown"

// ParseDiff segmenta texto livre de diff unificado em arquivos ordenados.
// Cada bloco inicia em "diff --git a/<old> b/<new>"; o caminho de destino
// (b/) é preferido, com fallback literal "unknown" quando o cabeçalho não
// casa com o padrão. Nenhuma linha é descartada: o texto bruto de cada
// arquivo acumula tudo, cabeçalho incluído. Entrada vazia ou sem cabeçalho
// "diff --git" produz lista vazia, nunca erro.
func ParseDiff(raw string) []DiffFileDTO {
	if raw == "" {
		return []DiffFileDTO{}
	}

	lines := strings.Split(raw, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	files := make([]DiffFileDTO, 0, 4)

	var current *DiffFileDTO
	var buffer strings.Builder

	flush := func() {
		if current == nil {
			return
		}
		current.Raw = buffer.String()
		files = append(files, *current)
		current = nil
		buffer.Reset()
	}

	for _, line := range lines {
		if strings.HasPrefix(line, "diff --git") {
			flush()

			path := unknownDiffPath
			if matches := diffGitHeaderRegex.FindStringSubmatch(strings.TrimRight(line, "\r")); matches != nil {
				path = matches[2]
			}
			current = &DiffFileDTO{Path: path}
		}

		if current == nil {
			continue
		}

		buffer.WriteString(line)
		buffer.WriteString("\n")
		current.LineCount++

		switch {
		case strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---"):
			// Marcadores de cabeçalho, nunca contam como alteração.
		case strings.HasPrefix(line, "+"):
			current.Additions++
		case strings.HasPrefix(line, "-"):
			current.Deletions++
		}
	}

	flush()
	return files
}

// ClassifyDiffLine classifica uma linha de diff para renderização,
// consistente com a contagem de ParseDiff: "+++" e "---" são meta,
// não adição/remoção.
func ClassifyDiffLine(line string) string {
	switch {
	case strings.HasPrefix(line, "@@"):
		return DiffLineHunk
	case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		return DiffLineMeta
	case strings.HasPrefix(line, "diff --git"),
		strings.HasPrefix(line, "index "),
		strings.HasPrefix(line, "new file mode"),
		strings.HasPrefix(line, "deleted file mode"),
		strings.HasPrefix(line, "old mode"),
		strings.HasPrefix(line, "new mode"),
		strings.HasPrefix(line, "similarity index"),
		strings.HasPrefix(line, "rename from"),
		strings.HasPrefix(line, "rename to"),
		strings.HasPrefix(line, "copy from"),
		strings.HasPrefix(line, "copy to"),
		strings.HasPrefix(line, "Binary files "),
		strings.HasPrefix(line, "GIT binary patch"),
		strings.HasPrefix(line, `\ No newline`):
		return DiffLineMeta
	case strings.HasPrefix(line, "+"):
		return DiffLineAdd
	case strings.HasPrefix(line, "-"):
		return DiffLineDelete
	default:
		return DiffLineContext
	}
}

// ParseCommitHeader extrai metadados do cabeçalho de um commit no formato
// fuller ("commit ", "Author:", "AuthorDate:", "CommitDate:") mais o corpo
// da mensagem: linhas contíguas indentadas com 4 espaços após a primeira
// linha em branco depois de "CommitDate:". Qualquer campo ausente degrada
// para o commit de fallback fornecido; a função nunca falha.
func ParseCommitHeader(raw string, fallback CommitDTO) CommitMetaDTO {
	meta := CommitMetaDTO{
		Hash:        fallback.Hash,
		Author:      fallback.Author,
		AuthorEmail: fallback.AuthorEmail,
		AuthorDate:  fallback.Date,
		CommitDate:  fallback.Date,
		Message:     fallback.Message,
	}

	lines := strings.Split(raw, "\n")
	commitDateIndex := -1

	for i, rawLine := range lines {
		line := strings.TrimRight(rawLine, "\r")

		switch {
		case strings.HasPrefix(line, "commit "):
			if hash := firstToken(strings.TrimPrefix(line, "commit ")); hash != "" {
				meta.Hash = hash
			}
		case strings.HasPrefix(line, "Author:"):
			value := strings.TrimSpace(strings.TrimPrefix(line, "Author:"))
			if value == "" {
				continue
			}
			if matches := authorLineRegex.FindStringSubmatch(value); matches != nil {
				meta.Author = strings.TrimSpace(matches[1])
				meta.AuthorEmail = strings.TrimSpace(matches[2])
			} else {
				meta.Author = value
				meta.AuthorEmail = ""
			}
		case strings.HasPrefix(line, "AuthorDate:"):
			if value := strings.TrimSpace(strings.TrimPrefix(line, "AuthorDate:")); value != "" {
				meta.AuthorDate = value
			}
		case strings.HasPrefix(line, "CommitDate:"):
			if value := strings.TrimSpace(strings.TrimPrefix(line, "CommitDate:")); value != "" {
				meta.CommitDate = value
			}
			if commitDateIndex < 0 {
				commitDateIndex = i
			}
		}
	}

	if message, ok := extractCommitMessage(lines, commitDateIndex); ok {
		meta.Message = message
	}

	return meta
}

// extractCommitMessage coleta as linhas indentadas com 4 espaços que seguem
// a primeira linha em branco após o índice de "CommitDate:".
func extractCommitMessage(lines []string, commitDateIndex int) (string, bool) {
	if commitDateIndex < 0 {
		return "", false
	}

	start := -1
	for i := commitDateIndex + 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "" {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return "", false
	}

	body := make([]string, 0, 4)
	for i := start; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], "\r")
		if strings.HasPrefix(line, "    ") {
			body = append(body, strings.TrimPrefix(line, "    "))
			continue
		}
		// git indenta até as linhas em branco do corpo com 4 espaços, mas
		// entradas com espaços finais aparados chegam aqui vazias. Uma
		// linha vazia seguida de mais corpo indentado é quebra de parágrafo.
		if strings.TrimSpace(line) == "" && hasIndentedLineAhead(lines, i+1) {
			body = append(body, "")
			continue
		}
		break
	}
	if len(body) == 0 {
		return "", false
	}

	return strings.Join(body, "\n"), true
}

func hasIndentedLineAhead(lines []string, from int) bool {
	for i := from; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		return strings.HasPrefix(line, "    ")
	}
	return false
}

func firstToken(raw string) string {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
