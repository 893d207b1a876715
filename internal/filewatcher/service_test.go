package filewatcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func fakeRepo(t *testing.T) (string, string) {
	t.Helper()
	repo := t.TempDir()
	gitDir := filepath.Join(repo, ".git")
	for _, dir := range []string{
		gitDir,
		filepath.Join(gitDir, "refs", "heads"),
		filepath.Join(gitDir, "refs", "remotes", "origin"),
		filepath.Join(gitDir, "refs", "tags"),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("failed to create %s: %v", dir, err)
		}
	}
	return repo, gitDir
}

func TestClassifyRepoEventMapsRefreshClasses(t *testing.T) {
	repo, gitDir := fakeRepo(t)

	cases := []struct {
		path        string
		wantType    string
		wantClasses []string
	}{
		{filepath.Join(gitDir, "HEAD"), "head", []string{ClassStatus, ClassHistory, ClassUnpushed, ClassBranches}},
		{filepath.Join(gitDir, "index"), "index", []string{ClassStatus}},
		{filepath.Join(gitDir, "MERGE_HEAD"), "merge", []string{ClassStatus, ClassHistory}},
		{filepath.Join(gitDir, "refs", "heads", "main"), "ref", []string{ClassHistory, ClassUnpushed, ClassBranches}},
		{filepath.Join(gitDir, "refs", "remotes", "origin", "main"), "remote_ref", []string{ClassUnpushed}},
		{filepath.Join(gitDir, "refs", "tags", "v1.0.0"), "tags", []string{ClassTags}},
		{filepath.Join(repo, "main.go"), "worktree", []string{ClassStatus}},
	}

	for _, tc := range cases {
		event := classifyRepoEvent(tc.path, repo, gitDir)
		if event == nil {
			t.Fatalf("expected classification for %s", tc.path)
		}
		if event.Type != tc.wantType {
			t.Errorf("path %s: type = %q, want %q", tc.path, event.Type, tc.wantType)
		}
		if len(event.RefreshClasses) != len(tc.wantClasses) {
			t.Errorf("path %s: classes = %v, want %v", tc.path, event.RefreshClasses, tc.wantClasses)
			continue
		}
		for i, class := range tc.wantClasses {
			if event.RefreshClasses[i] != class {
				t.Errorf("path %s: classes = %v, want %v", tc.path, event.RefreshClasses, tc.wantClasses)
				break
			}
		}
	}
}

func TestClassifyRepoEventIgnoresUnmappedGitFiles(t *testing.T) {
	repo, gitDir := fakeRepo(t)

	if event := classifyRepoEvent(filepath.Join(gitDir, "COMMIT_EDITMSG"), repo, gitDir); event != nil {
		t.Fatalf("expected COMMIT_EDITMSG to be ignored, got %+v", event)
	}
	if event := classifyRepoEvent(filepath.Join(gitDir, "config"), repo, gitDir); event != nil {
		t.Fatalf("expected config to be ignored, got %+v", event)
	}
}

func TestNormalizeGitEventPathStripsLockSuffix(t *testing.T) {
	got := normalizeGitEventPath(filepath.Join("repo", ".git", "index.lock"))
	want := filepath.Join("repo", ".git", "index")
	if got != want {
		t.Fatalf("normalizeGitEventPath = %q, want %q", got, want)
	}
}

func TestResolveGitDirWorktreeFile(t *testing.T) {
	repo := t.TempDir()
	realGitDir := filepath.Join(repo, "real-gitdir")
	if err := os.MkdirAll(realGitDir, 0755); err != nil {
		t.Fatalf("failed to create gitdir: %v", err)
	}

	worktree := t.TempDir()
	if err := os.WriteFile(filepath.Join(worktree, ".git"), []byte("gitdir: "+realGitDir+"\n"), 0644); err != nil {
		t.Fatalf("failed to write .git file: %v", err)
	}

	got, err := resolveGitDir(worktree)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != filepath.Clean(realGitDir) {
		t.Fatalf("resolveGitDir = %q, want %q", got, realGitDir)
	}
}

func TestWatchEmitsDebouncedEvent(t *testing.T) {
	repo, gitDir := fakeRepo(t)
	if err := os.WriteFile(filepath.Join(gitDir, "HEAD"), []byte("ref: refs/heads/main\n"), 0644); err != nil {
		t.Fatalf("failed to seed HEAD: %v", err)
	}

	svc, err := NewService(nil)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer svc.Close()

	events := make(chan RepoEvent, 8)
	svc.OnChange(func(event RepoEvent) {
		events <- event
	})

	if err := svc.Watch(repo); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := os.WriteFile(filepath.Join(gitDir, "index"), []byte("x"), 0644); err != nil {
		t.Fatalf("failed to touch index: %v", err)
	}

	select {
	case event := <-events:
		if event.Type != "index" {
			t.Fatalf("unexpected event type %q", event.Type)
		}
		if event.RepoPath != filepath.Clean(repo) {
			t.Fatalf("unexpected repo path %q", event.RepoPath)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for debounced event")
	}
}

func TestWatchRejectsNonGitDirectory(t *testing.T) {
	svc, err := NewService(nil)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer svc.Close()

	if err := svc.Watch(t.TempDir()); err == nil {
		t.Fatal("expected error for directory without .git")
	}
}
