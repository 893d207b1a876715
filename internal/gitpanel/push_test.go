package gitpanel

import (
	"context"
	"testing"
	"time"
)

func pushManager(backend *fakeBackend) *Manager {
	service := NewService(backend, nil)
	manager := NewManager(backend, service, nil)
	manager.sleep = noopSleeper
	return manager
}

func TestPushSuccessRefreshesUnpushedCount(t *testing.T) {
	backend := &fakeBackend{
		unpushedFn: func(string) (int, error) { return 0, nil },
	}
	manager := pushManager(backend)
	manager.service.View().SetUnpushed(4)

	report, err := manager.Push(context.Background(), "/repo", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Ok || report.Attempts != 1 || report.Mode != "push" {
		t.Fatalf("unexpected report: %+v", report)
	}
	if manager.service.View().Unpushed() != 0 {
		t.Fatalf("expected unpushed reset, got %d", manager.service.View().Unpushed())
	}
}

func TestPushTransientFailureRetriesExactlyOnce(t *testing.T) {
	attempts := 0
	backend := &fakeBackend{
		pushFn: func(string, bool) error {
			attempts++
			if attempts == 1 {
				return NewBindingError(CodeCommandFailed, "Falha ao enviar commits.", "fatal: the remote end hung up unexpectedly")
			}
			return nil
		},
	}
	manager := pushManager(backend)

	report, err := manager.Push(context.Background(), "/repo", false)
	if err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if !report.Ok || report.Attempts != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestPushTransientFailureStopsAfterSecondAttempt(t *testing.T) {
	attempts := 0
	backend := &fakeBackend{
		pushFn: func(string, bool) error {
			attempts++
			return NewBindingError(CodeCommandFailed, "Falha ao enviar commits.", "ssh: connect to host: Connection timed out")
		},
	}
	manager := pushManager(backend)

	report, err := manager.Push(context.Background(), "/repo", false)
	if attempts != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", attempts)
	}
	if report.Ok || report.Category != PushCategoryTransient || report.Attempts != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if bindingErr := AsBindingError(err); bindingErr == nil || bindingErr.Code != CodePushTransient {
		t.Fatalf("expected transient push error, got %v", err)
	}
}

func TestPushAuthFailureIsImmediate(t *testing.T) {
	attempts := 0
	backend := &fakeBackend{
		pushFn: func(string, bool) error {
			attempts++
			return NewBindingError(CodeCommandFailed, "Falha ao enviar commits.", "fatal: Authentication failed for 'https://example.com/repo.git'")
		},
	}
	manager := pushManager(backend)

	report, err := manager.Push(context.Background(), "/repo", false)
	if attempts != 1 {
		t.Fatalf("expected no retry for auth failure, got %d attempts", attempts)
	}
	if report.Category != PushCategoryAuth {
		t.Fatalf("unexpected category: %q", report.Category)
	}
	if bindingErr := AsBindingError(err); bindingErr == nil || bindingErr.Code != CodePushAuth {
		t.Fatalf("expected auth push error, got %v", err)
	}
}

func TestPushRejectedFailureIsImmediate(t *testing.T) {
	attempts := 0
	backend := &fakeBackend{
		pushFn: func(string, bool) error {
			attempts++
			return NewBindingError(CodeCommandFailed, "Falha ao enviar commits.", "! [rejected] main -> main (non-fast-forward)")
		},
	}
	manager := pushManager(backend)

	report, err := manager.Push(context.Background(), "/repo", false)
	if attempts != 1 {
		t.Fatalf("expected no retry for rejected push, got %d attempts", attempts)
	}
	if report.Category != PushCategoryRejected {
		t.Fatalf("unexpected category: %q", report.Category)
	}
	if bindingErr := AsBindingError(err); bindingErr == nil || bindingErr.Code != CodePushRejected {
		t.Fatalf("expected rejected push error, got %v", err)
	}
}

func TestPushPublishModePropagatesUpstreamFlag(t *testing.T) {
	var gotUpstream bool
	backend := &fakeBackend{
		pushFn: func(_ string, setUpstream bool) error {
			gotUpstream = setUpstream
			return nil
		},
	}
	manager := pushManager(backend)

	report, err := manager.Push(context.Background(), "/repo", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Mode != "publish" || !gotUpstream {
		t.Fatalf("expected publish with upstream, got %+v upstream=%v", report, gotUpstream)
	}
}

func TestPushInFlightDoesNotBlockStaging(t *testing.T) {
	pushStarted := make(chan struct{})
	releasePush := make(chan struct{})
	backend := &fakeBackend{
		pushFn: func(string, bool) error {
			close(pushStarted)
			<-releasePush
			return nil
		},
	}
	manager := pushManager(backend)
	manager.service.View().SetEntries([]StatusEntryDTO{
		{Path: "a.go", Status: StatusModified, Unstaged: true},
	})

	pushDone := make(chan error, 1)
	go func() {
		_, err := manager.Push(context.Background(), "/repo", false)
		pushDone <- err
	}()
	<-pushStarted

	// O push pode levar dezenas de segundos; staging segue operável.
	staged := make(chan error, 1)
	go func() {
		staged <- manager.StageFiles(context.Background(), "/repo", []string{"a.go"})
	}()

	select {
	case err := <-staged:
		if err != nil {
			t.Fatalf("unexpected staging error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("staging blocked behind an in-flight push")
	}

	close(releasePush)
	if err := <-pushDone; err != nil {
		t.Fatalf("unexpected push error: %v", err)
	}
}

func TestClassifyPushFailureTable(t *testing.T) {
	cases := []struct {
		details string
		want    string
	}{
		{"fatal: unable to access 'https://x': Could not resolve host: github.com", PushCategoryTransient},
		{"fatal: the remote end hung up unexpectedly", PushCategoryTransient},
		{"error: RPC failed; curl 56 Recv failure: Connection reset by peer", PushCategoryTransient},
		{"fatal: Authentication failed", PushCategoryAuth},
		{"remote: Permission denied (publickey).", PushCategoryAuth},
		{"The requested URL returned error: 403", PushCategoryAuth},
		{"! [rejected] main -> main (non-fast-forward)", PushCategoryRejected},
		{"hint: Updates were rejected because the remote contains work", PushCategoryRejected},
		{"something completely different", PushCategoryUnknown},
	}

	for _, tc := range cases {
		err := NewBindingError(CodeCommandFailed, "Falha ao enviar commits.", tc.details)
		if got := classifyPushFailure(err); got != tc.want {
			t.Errorf("classifyPushFailure(%q) = %q, want %q", tc.details, got, tc.want)
		}
	}
}

func TestClassifyPushFailureTimeoutCodeIsTransient(t *testing.T) {
	err := NewBindingError(CodeTimeout, "Comando Git excedeu o tempo limite.", "")
	if got := classifyPushFailure(err); got != PushCategoryTransient {
		t.Fatalf("expected timeout to classify as transient, got %q", got)
	}
}
