package gitpanel

import "context"

// fakeBackend implementa Backend com hooks por operação. Hooks ausentes
// retornam valores zero sem erro.
type fakeBackend struct {
	preflightFn    func(repoPath string) (PreflightResult, error)
	statusFn       func(repoPath string) ([]StatusEntryDTO, error)
	historyFn      func(repoPath string, limit int) ([]CommitDTO, error)
	commitDiffFn   func(repoPath string, hash string) (string, error)
	workingDiffFn  func(repoPath string, filePath string, mode string) (string, error)
	stageFn        func(repoPath string, paths []string) error
	unstageFn      func(repoPath string, paths []string) error
	createCommitFn func(repoPath string, message string) error
	pushFn         func(repoPath string, setUpstream bool) error
	identityFn     func(repoPath string) (IdentityDTO, error)
	ownerFn        func(repoPath string) (IdentityDTO, error)
	unpushedFn     func(repoPath string) (int, error)
	remotesFn      func(repoPath string) ([]RemoteDTO, error)
	branchesFn     func(repoPath string) ([]BranchDTO, error)
	tagsFn         func(repoPath string) ([]string, error)
	stashesFn      func(repoPath string) ([]StashDTO, error)
}

func (f *fakeBackend) Preflight(_ context.Context, repoPath string) (PreflightResult, error) {
	if f.preflightFn != nil {
		return f.preflightFn(repoPath)
	}
	return PreflightResult{GitAvailable: true, RepoPath: repoPath, RepoRoot: repoPath, Branch: "main"}, nil
}

func (f *fakeBackend) GetStatus(_ context.Context, repoPath string) ([]StatusEntryDTO, error) {
	if f.statusFn != nil {
		return f.statusFn(repoPath)
	}
	return []StatusEntryDTO{}, nil
}

func (f *fakeBackend) GetHistory(_ context.Context, repoPath string, limit int) ([]CommitDTO, error) {
	if f.historyFn != nil {
		return f.historyFn(repoPath, limit)
	}
	return []CommitDTO{}, nil
}

func (f *fakeBackend) GetCommitDiff(_ context.Context, repoPath string, hash string) (string, error) {
	if f.commitDiffFn != nil {
		return f.commitDiffFn(repoPath, hash)
	}
	return "", nil
}

func (f *fakeBackend) GetWorkingDiff(_ context.Context, repoPath string, filePath string, mode string) (string, error) {
	if f.workingDiffFn != nil {
		return f.workingDiffFn(repoPath, filePath, mode)
	}
	return "", nil
}

func (f *fakeBackend) StageFiles(_ context.Context, repoPath string, paths []string) error {
	if f.stageFn != nil {
		return f.stageFn(repoPath, paths)
	}
	return nil
}

func (f *fakeBackend) UnstageFiles(_ context.Context, repoPath string, paths []string) error {
	if f.unstageFn != nil {
		return f.unstageFn(repoPath, paths)
	}
	return nil
}

func (f *fakeBackend) CreateCommit(_ context.Context, repoPath string, message string) error {
	if f.createCommitFn != nil {
		return f.createCommitFn(repoPath, message)
	}
	return nil
}

func (f *fakeBackend) PushCommits(_ context.Context, repoPath string, setUpstream bool) error {
	if f.pushFn != nil {
		return f.pushFn(repoPath, setUpstream)
	}
	return nil
}

func (f *fakeBackend) DetectIdentity(_ context.Context, repoPath string) (IdentityDTO, error) {
	if f.identityFn != nil {
		return f.identityFn(repoPath)
	}
	return IdentityDTO{}, nil
}

func (f *fakeBackend) DetectRepoOwner(_ context.Context, repoPath string) (IdentityDTO, error) {
	if f.ownerFn != nil {
		return f.ownerFn(repoPath)
	}
	return IdentityDTO{}, nil
}

func (f *fakeBackend) CountUnpushed(_ context.Context, repoPath string) (int, error) {
	if f.unpushedFn != nil {
		return f.unpushedFn(repoPath)
	}
	return 0, nil
}

func (f *fakeBackend) ListRemotes(_ context.Context, repoPath string) ([]RemoteDTO, error) {
	if f.remotesFn != nil {
		return f.remotesFn(repoPath)
	}
	return []RemoteDTO{}, nil
}

func (f *fakeBackend) ListBranches(_ context.Context, repoPath string) ([]BranchDTO, error) {
	if f.branchesFn != nil {
		return f.branchesFn(repoPath)
	}
	return []BranchDTO{}, nil
}

func (f *fakeBackend) ListTags(_ context.Context, repoPath string) ([]string, error) {
	if f.tagsFn != nil {
		return f.tagsFn(repoPath)
	}
	return []string{}, nil
}

func (f *fakeBackend) ListStashes(_ context.Context, repoPath string) ([]StashDTO, error) {
	if f.stashesFn != nil {
		return f.stashesFn(repoPath)
	}
	return []StashDTO{}, nil
}
