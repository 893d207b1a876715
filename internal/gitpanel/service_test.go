package gitpanel

import (
	"context"
	"errors"
	"testing"
)

func TestServiceStatusUpdatesViewAndCache(t *testing.T) {
	calls := 0
	backend := &fakeBackend{
		statusFn: func(string) ([]StatusEntryDTO, error) {
			calls++
			return []StatusEntryDTO{{Path: "src/a.go", Status: StatusModified, Unstaged: true}}, nil
		},
	}
	service := NewService(backend, nil)

	entries, err := service.Status(context.Background(), "/repo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].Path != "src/a.go" {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	// Segunda chamada dentro do TTL vem do cache.
	if _, err := service.Status(context.Background(), "/repo"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 backend call, got %d", calls)
	}

	overlay := service.View().Overlay()
	if overlay.Direct["src/a.go"] != StatusModified {
		t.Fatalf("expected view overlay updated, got %+v", overlay.Direct)
	}
	if agg := overlay.Aggregated["src"]; agg.Status != StatusModified {
		t.Fatalf("expected aggregated ancestor, got %+v", agg)
	}
}

func TestServiceStatusErrorIsNormalized(t *testing.T) {
	backend := &fakeBackend{
		statusFn: func(string) ([]StatusEntryDTO, error) {
			return nil, errors.New("raw failure")
		},
	}
	service := NewService(backend, nil)

	_, err := service.Status(context.Background(), "/repo")
	bindingErr := AsBindingError(err)
	if bindingErr == nil || bindingErr.Code != CodeUnknown {
		t.Fatalf("expected normalized binding error, got %v", err)
	}
}

func TestServiceStaleStatusResponseIsSuppressed(t *testing.T) {
	backend := &fakeBackend{}
	service := NewService(backend, nil)

	// Resposta #1 ainda em voo quando o refresh #2 começa e aplica: a
	// geração de #1 fica obsoleta e sua aplicação é descartada.
	gen1 := service.Coordinator().Begin(RefreshStatus)
	gen2 := service.Coordinator().Begin(RefreshStatus)

	if ok := service.Coordinator().Apply(RefreshStatus, gen2, func() {
		service.View().SetEntries([]StatusEntryDTO{{Path: "newer.go", Status: StatusModified}})
	}); !ok {
		t.Fatal("expected latest generation to apply")
	}

	if ok := service.Coordinator().Apply(RefreshStatus, gen1, func() {
		service.View().SetEntries([]StatusEntryDTO{{Path: "stale.go", Status: StatusModified}})
	}); ok {
		t.Fatal("expected stale generation to be discarded")
	}

	entries := service.View().Entries()
	if len(entries) != 1 || entries[0].Path != "newer.go" {
		t.Fatalf("expected newer entries to win, got %+v", entries)
	}
}

func TestServiceHistoryComputesLanesAndEdges(t *testing.T) {
	backend := &fakeBackend{
		historyFn: func(string, int) ([]CommitDTO, error) {
			return []CommitDTO{
				{Hash: "c3", Parents: []string{"c2", "c1b"}},
				{Hash: "c2", Parents: []string{"c1a"}},
				{Hash: "c1b", Parents: []string{"c1a"}},
				{Hash: "c1a"},
			}, nil
		},
	}
	service := NewService(backend, nil)

	view, err := service.History(context.Background(), "/repo", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(view.Commits) != 4 {
		t.Fatalf("expected 4 commits, got %d", len(view.Commits))
	}
	if view.Lanes["c1b"] != 1 {
		t.Fatalf("expected merge branch on lane 1, got %d", view.Lanes["c1b"])
	}
	if len(view.Edges) != 4 {
		t.Fatalf("expected 4 connectors, got %d", len(view.Edges))
	}
}

func TestServiceCommitDiffUsesHistoryFallback(t *testing.T) {
	backend := &fakeBackend{
		historyFn: func(string, int) ([]CommitDTO, error) {
			return []CommitDTO{{
				Hash:    "abc123",
				Author:  "Ana Souza",
				Date:    "2026-08-20",
				Message: "mensagem conhecida",
			}}, nil
		},
		commitDiffFn: func(_ string, hash string) (string, error) {
			// Saída sem cabeçalho fuller: todos os metadados degradam.
			return "diff --git a/x.go b/x.go\n+linha\n", nil
		},
	}
	service := NewService(backend, nil)

	if _, err := service.History(context.Background(), "/repo", 50); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	diff, err := service.CommitDiff(context.Background(), "/repo", "abc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff.Meta.Author != "Ana Souza" || diff.Meta.Message != "mensagem conhecida" {
		t.Fatalf("expected history fallback metadata, got %+v", diff.Meta)
	}
	if len(diff.Files) != 1 || diff.Files[0].Additions != 1 {
		t.Fatalf("unexpected parsed files: %+v", diff.Files)
	}
}

func TestServiceWorkingDiffNormalizesMode(t *testing.T) {
	var gotMode string
	backend := &fakeBackend{
		workingDiffFn: func(_ string, _ string, mode string) (string, error) {
			gotMode = mode
			return "", nil
		},
	}
	service := NewService(backend, nil)

	diff, err := service.WorkingDiff(context.Background(), "/repo", "", "STAGED")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff.Mode != "staged" || gotMode != "staged" {
		t.Fatalf("expected normalized staged mode, got %q / %q", diff.Mode, gotMode)
	}
	if len(diff.Files) != 0 {
		t.Fatalf("expected empty file list for empty diff, got %d", len(diff.Files))
	}
}

func TestServiceRefreshAllLenientJoin(t *testing.T) {
	backend := &fakeBackend{
		statusFn: func(string) ([]StatusEntryDTO, error) {
			return []StatusEntryDTO{{Path: "a.go", Status: StatusModified, Unstaged: true}}, nil
		},
		unpushedFn: func(string) (int, error) {
			return 3, nil
		},
		remotesFn: func(string) ([]RemoteDTO, error) {
			return nil, NewBindingError(CodeCommandFailed, "remote indisponível", "")
		},
		tagsFn: func(string) ([]string, error) {
			return nil, NewBindingError(CodeTimeout, "timeout", "")
		},
	}

	var emitted []string
	service := NewService(backend, func(event string, _ interface{}) {
		emitted = append(emitted, event)
	})

	summary, err := service.RefreshAll(context.Background(), "/repo")
	if err != nil {
		t.Fatalf("expected lenient join to succeed, got %v", err)
	}

	if !summary.Partial {
		t.Fatal("expected partial summary")
	}
	if len(summary.Failed) != 2 || summary.Failed[0] != RefreshRemotes || summary.Failed[1] != RefreshTags {
		t.Fatalf("unexpected failed classes: %v", summary.Failed)
	}

	// As leituras que funcionaram aplicaram normalmente.
	if service.View().Unpushed() != 3 {
		t.Fatalf("expected unpushed=3, got %d", service.View().Unpushed())
	}
	if len(service.View().Entries()) != 1 {
		t.Fatal("expected status applied despite sibling failures")
	}

	found := false
	for _, event := range emitted {
		if event == "devscope:git_refresh_summary" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected refresh summary event, got %v", emitted)
	}
}

func TestServiceRefreshAllFailsWhenPreflightFails(t *testing.T) {
	backend := &fakeBackend{
		preflightFn: func(string) (PreflightResult, error) {
			return PreflightResult{}, NewBindingError(CodeRepoNotGit, "não é repositório", "")
		},
	}
	service := NewService(backend, nil)

	_, err := service.RefreshAll(context.Background(), "/repo")
	bindingErr := AsBindingError(err)
	if bindingErr == nil || bindingErr.Code != CodeRepoNotGit {
		t.Fatalf("expected preflight error, got %v", err)
	}
}

func TestServiceInvalidateRepoCacheForcesRefetch(t *testing.T) {
	calls := 0
	backend := &fakeBackend{
		statusFn: func(string) ([]StatusEntryDTO, error) {
			calls++
			return []StatusEntryDTO{}, nil
		},
	}
	service := NewService(backend, nil)

	if _, err := service.Status(context.Background(), "/repo"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	service.InvalidateRepoCache("/repo")
	if _, err := service.Status(context.Background(), "/repo"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if calls != 2 {
		t.Fatalf("expected refetch after invalidation, got %d calls", calls)
	}
}
