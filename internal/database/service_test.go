package database

import (
	"errors"
	"path/filepath"
	"testing"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	t.Setenv("DEVSCOPE_DB_PATH", filepath.Join(t.TempDir(), "devscope_test.db"))

	svc, err := NewService()
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestCreateProjectAssignsPublicIDAndDefaults(t *testing.T) {
	svc := newTestService(t)

	project := &Project{Path: "/tmp/devscope-sample-repo"}
	if err := svc.CreateProject(project); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if project.ID == 0 {
		t.Fatal("expected persisted project to have an id")
	}
	if project.PublicID == "" {
		t.Fatal("expected generated public id")
	}
	if project.Name != "devscope-sample-repo" {
		t.Fatalf("expected name derived from path, got %q", project.Name)
	}
	if project.HistoryLimit != 200 {
		t.Fatalf("expected default history limit, got %d", project.HistoryLimit)
	}
}

func TestCreateProjectReusesExistingPath(t *testing.T) {
	svc := newTestService(t)

	first := &Project{Path: "/tmp/devscope-repo", Name: "Original"}
	if err := svc.CreateProject(first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second := &Project{Path: "/tmp/devscope-repo", Name: "Duplicate"}
	if err := svc.CreateProject(second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if second.ID != first.ID {
		t.Fatalf("expected same project reused, got ids %d and %d", first.ID, second.ID)
	}
	if second.Name != "Original" {
		t.Fatalf("expected existing record preserved, got %q", second.Name)
	}
}

func TestSetActiveProjectDeactivatesOthers(t *testing.T) {
	svc := newTestService(t)

	a := &Project{Path: "/tmp/repo-a"}
	b := &Project{Path: "/tmp/repo-b"}
	if err := svc.CreateProject(a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.CreateProject(b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.SetActiveProject(a.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.SetActiveProject(b.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	active, err := svc.GetActiveProject()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if active.ID != b.ID {
		t.Fatalf("expected project b active, got %d", active.ID)
	}
	if active.LastOpenedAt == nil {
		t.Fatal("expected last opened timestamp set")
	}

	reloaded, err := svc.GetProject(a.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reloaded.IsActive {
		t.Fatal("expected project a deactivated")
	}
}

func TestSetProjectIdentityOverride(t *testing.T) {
	svc := newTestService(t)

	project := &Project{Path: "/tmp/repo-identity"}
	if err := svc.CreateProject(project); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.SetProjectIdentityOverride(project.ID, "Ana Souza", "ana@devscope.dev"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reloaded, err := svc.GetProject(project.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reloaded.CommitterName != "Ana Souza" || reloaded.CommitterEmail != "ana@devscope.dev" {
		t.Fatalf("unexpected override: %q <%s>", reloaded.CommitterName, reloaded.CommitterEmail)
	}

	if err := svc.SetProjectIdentityOverride(project.ID, "", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cleared, err := svc.GetProject(project.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cleared.CommitterName != "" || cleared.CommitterEmail != "" {
		t.Fatalf("expected override cleared, got %q <%s>", cleared.CommitterName, cleared.CommitterEmail)
	}
}

func TestGetProjectByPathNotFound(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.GetProjectByPath("/tmp/missing-repo"); !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("expected ErrProjectNotFound, got %v", err)
	}
}

func TestDeleteProjectRemovesPushAudits(t *testing.T) {
	svc := newTestService(t)

	project := &Project{Path: "/tmp/repo-audited"}
	if err := svc.CreateProject(project); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.SavePushAudit(&PushAudit{ProjectID: project.ID, Mode: "push", Ok: true, Attempts: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.DeleteProject(project.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	audits, err := svc.ListPushAudits(project.ID, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(audits) != 0 {
		t.Fatalf("expected audits removed with project, got %d", len(audits))
	}
}

func TestGetSettingsCreatesDefaults(t *testing.T) {
	svc := newTestService(t)

	settings, err := svc.GetSettings()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.Theme != "dark" || settings.AIProvider != "gemini" {
		t.Fatalf("unexpected defaults: %+v", settings)
	}

	settings.Theme = "light"
	if err := svc.UpdateSettings(settings); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reloaded, err := svc.GetSettings()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reloaded.Theme != "light" {
		t.Fatalf("expected updated theme, got %q", reloaded.Theme)
	}
}
