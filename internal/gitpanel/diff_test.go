package gitpanel

import (
	"strings"
	"testing"
)

const sampleTwoFileDiff = `diff --git a/internal/core/main.go b/internal/core/main.go
index 83bc420..9f1c2aa 100644
--- a/internal/core/main.go
+++ b/internal/core/main.go
@@ -1,4 +1,5 @@
 package core
+import "fmt"

-func old() {}
+func renewed() {}
diff --git a/README.md b/README.md
index 1111111..2222222 100644
--- a/README.md
+++ b/README.md
@@ -1 +1,2 @@
 # DevScope
+Painel de trabalho Git.
`

func TestParseDiffSegmentsFilesInOrder(t *testing.T) {
	files := ParseDiff(sampleTwoFileDiff)
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(files))
	}
	if files[0].Path != "internal/core/main.go" {
		t.Fatalf("unexpected first path: %q", files[0].Path)
	}
	if files[1].Path != "README.md" {
		t.Fatalf("unexpected second path: %q", files[1].Path)
	}
}

func TestParseDiffCountsChangesExcludingHeaderMarkers(t *testing.T) {
	files := ParseDiff(sampleTwoFileDiff)

	// Primeiro arquivo: +import, +func renewed; -func old. Os marcadores
	// "+++" e "---" nunca contam.
	if files[0].Additions != 2 {
		t.Fatalf("expected 2 additions in first file, got %d", files[0].Additions)
	}
	if files[0].Deletions != 1 {
		t.Fatalf("expected 1 deletion in first file, got %d", files[0].Deletions)
	}
	if files[1].Additions != 1 || files[1].Deletions != 0 {
		t.Fatalf("unexpected counts in second file: +%d -%d", files[1].Additions, files[1].Deletions)
	}
}

func TestParseDiffPreservesEveryLineInRaw(t *testing.T) {
	files := ParseDiff(sampleTwoFileDiff)

	joined := files[0].Raw + files[1].Raw
	if joined != sampleTwoFileDiff {
		t.Fatal("expected concatenated raw blocks to reproduce the input")
	}

	for _, file := range files {
		gotLines := strings.Count(file.Raw, "\n")
		if gotLines != file.LineCount {
			t.Fatalf("raw line count mismatch for %s: raw has %d, LineCount is %d", file.Path, gotLines, file.LineCount)
		}
	}
}

func TestParseDiffEmptyAndHeaderlessInput(t *testing.T) {
	if files := ParseDiff(""); len(files) != 0 {
		t.Fatalf("expected empty result for empty input, got %d files", len(files))
	}

	// Linhas antes do primeiro "diff --git" não pertencem a arquivo algum.
	files := ParseDiff("warning: LF will be replaced by CRLF\nsome noise\n")
	if len(files) != 0 {
		t.Fatalf("expected empty result for headerless input, got %d files", len(files))
	}
}

func TestParseDiffUnknownPathFallback(t *testing.T) {
	files := ParseDiff("diff --git malformed header\n+added\n")
	if len(files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(files))
	}
	if files[0].Path != "unknown" {
		t.Fatalf("expected fallback path, got %q", files[0].Path)
	}
	if files[0].Additions != 1 {
		t.Fatalf("expected 1 addition, got %d", files[0].Additions)
	}
}

func TestClassifyDiffLine(t *testing.T) {
	cases := []struct {
		line string
		want string
	}{
		{"@@ -1,4 +1,5 @@", DiffLineHunk},
		{"+++ b/main.go", DiffLineMeta},
		{"--- a/main.go", DiffLineMeta},
		{"diff --git a/x b/x", DiffLineMeta},
		{"index 83bc420..9f1c2aa 100644", DiffLineMeta},
		{"rename from old.go", DiffLineMeta},
		{`\ No newline at end of file`, DiffLineMeta},
		{"+added line", DiffLineAdd},
		{"-removed line", DiffLineDelete},
		{" context line", DiffLineContext},
		{"", DiffLineContext},
	}

	for _, tc := range cases {
		if got := ClassifyDiffLine(tc.line); got != tc.want {
			t.Errorf("ClassifyDiffLine(%q) = %q, want %q", tc.line, got, tc.want)
		}
	}
}

// git show --pretty=fuller acolchoa até as linhas em branco do corpo com
// 4 espaços; a fixture é montada linha a linha para o padding ficar visível.
var sampleFullerHeader = strings.Join([]string{
	"commit 4f2d1c0ab9e8d7c6b5a4938271605f4e3d2c1b0a",
	"Author:     Ana Souza <ana@devscope.dev>",
	"AuthorDate: 2026-08-20T10:15:00-03:00",
	"Commit:     Ana Souza <ana@devscope.dev>",
	"CommitDate: 2026-08-21T09:00:00-03:00",
	"",
	"    Ajusta layout do painel",
	"    ",
	"    Segunda linha do corpo.",
	"",
	"diff --git a/a.go b/a.go",
	"",
}, "\n")

func TestParseCommitHeaderExtractsAllFields(t *testing.T) {
	meta := ParseCommitHeader(sampleFullerHeader, CommitDTO{})

	if meta.Hash != "4f2d1c0ab9e8d7c6b5a4938271605f4e3d2c1b0a" {
		t.Fatalf("unexpected hash: %q", meta.Hash)
	}
	if meta.Author != "Ana Souza" || meta.AuthorEmail != "ana@devscope.dev" {
		t.Fatalf("unexpected author: %q <%s>", meta.Author, meta.AuthorEmail)
	}
	if meta.AuthorDate != "2026-08-20T10:15:00-03:00" {
		t.Fatalf("unexpected author date: %q", meta.AuthorDate)
	}
	if meta.CommitDate != "2026-08-21T09:00:00-03:00" {
		t.Fatalf("unexpected commit date: %q", meta.CommitDate)
	}
	wantMessage := "Ajusta layout do painel\n\nSegunda linha do corpo."
	if meta.Message != wantMessage {
		t.Fatalf("unexpected message: %q", meta.Message)
	}
}

func TestParseCommitHeaderKeepsBodyWhenBlankLineLosesPadding(t *testing.T) {
	// Corpo com a linha em branco realmente vazia (padding de 4 espaços
	// aparado na origem): o parágrafo seguinte não pode ser descartado.
	raw := strings.Join([]string{
		"commit abc123",
		"CommitDate: 2026-08-21T09:00:00-03:00",
		"",
		"    Ajusta layout do painel",
		"",
		"    Segunda linha do corpo.",
		"",
		"diff --git a/a.go b/a.go",
		"",
	}, "\n")

	meta := ParseCommitHeader(raw, CommitDTO{})
	want := "Ajusta layout do painel\n\nSegunda linha do corpo."
	if meta.Message != want {
		t.Fatalf("unexpected message: %q", meta.Message)
	}
}

func TestParseCommitHeaderAuthorWithoutEmail(t *testing.T) {
	raw := "commit abc123\nAuthor: Build Bot\nAuthorDate: 2026-01-01\nCommitDate: 2026-01-02\n\n    msg\n"
	meta := ParseCommitHeader(raw, CommitDTO{AuthorEmail: "stale@example.com"})

	if meta.Author != "Build Bot" {
		t.Fatalf("unexpected author: %q", meta.Author)
	}
	// Autor sem <email> limpa o email de fallback em vez de misturar fontes.
	if meta.AuthorEmail != "" {
		t.Fatalf("expected empty email, got %q", meta.AuthorEmail)
	}
}

func TestParseCommitHeaderFallsBackPerField(t *testing.T) {
	fallback := CommitDTO{
		Hash:        "fa11bac0",
		Author:      "Fallback Author",
		AuthorEmail: "fb@devscope.dev",
		Date:        "2026-02-02",
		Message:     "fallback message",
	}

	meta := ParseCommitHeader("texto sem cabeçalho algum\n", fallback)
	if meta.Hash != fallback.Hash {
		t.Fatalf("expected fallback hash, got %q", meta.Hash)
	}
	if meta.Author != fallback.Author || meta.AuthorEmail != fallback.AuthorEmail {
		t.Fatalf("expected fallback author, got %q <%s>", meta.Author, meta.AuthorEmail)
	}
	if meta.AuthorDate != fallback.Date || meta.CommitDate != fallback.Date {
		t.Fatalf("expected fallback dates, got %q / %q", meta.AuthorDate, meta.CommitDate)
	}
	if meta.Message != fallback.Message {
		t.Fatalf("expected fallback message, got %q", meta.Message)
	}

	// Cabeçalho parcial: só o que existe substitui o fallback.
	partial := ParseCommitHeader("commit 1234abcd\n", fallback)
	if partial.Hash != "1234abcd" {
		t.Fatalf("expected parsed hash, got %q", partial.Hash)
	}
	if partial.Message != fallback.Message {
		t.Fatalf("expected fallback message on partial header, got %q", partial.Message)
	}
}

func TestParseCommitHeaderMessageRequiresBlankSeparator(t *testing.T) {
	raw := "commit abc\nCommitDate: 2026-01-01\n    indented without blank line\n"
	meta := ParseCommitHeader(raw, CommitDTO{Message: "kept"})
	if meta.Message != "kept" {
		t.Fatalf("expected fallback message without blank separator, got %q", meta.Message)
	}
}
