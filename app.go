package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"devscope/internal/ai"
	"devscope/internal/config"
	"devscope/internal/database"
	"devscope/internal/eventbridge"
	fw "devscope/internal/filewatcher"
	gp "devscope/internal/gitpanel"
	"devscope/internal/secrets"

	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// App struct — ponto central do Wails, conecta todos os services
type App struct {
	ctx         context.Context
	db          *database.Service
	secrets     *secrets.Store
	backend     *gp.CLIBackend
	gitPanel    *gp.Service
	gitManager  *gp.Manager
	fileWatcher *fw.Service
	ai          *ai.Service
	bridge      *eventbridge.Bridge

	mu          sync.RWMutex
	watchedRepo string
}

// NewApp creates a new App application struct
func NewApp() *App {
	return &App{}
}

// Startup is called when the app starts
// Inicializa banco, engine git, watcher, IA e o event bridge local.
func (a *App) Startup(ctx context.Context) {
	a.ctx = ctx
	log.Println("[DevScope] Starting up...")

	// 1. Garantir diretórios existem
	if err := config.EnsureDataDirs(); err != nil {
		log.Printf("[DevScope] Error creating data dirs: %v", err)
	}

	// 2. Inicializar banco de dados SQLite
	dbService, err := database.NewService()
	if err != nil {
		log.Printf("[DevScope] Error initializing database: %v", err)
	} else {
		a.db = dbService
		log.Println("[DevScope] Database initialized")
	}

	// 3. Keychain para chaves de API
	a.secrets = secrets.NewStore()

	// 4. Engine do painel git (backend CLI + leitura + staging/push)
	a.backend = gp.NewCLIBackend(a.emitEvent)
	a.gitPanel = gp.NewService(a.backend, a.emitEvent)
	a.gitManager = gp.NewManager(a.backend, a.gitPanel, a.emitEvent)
	a.gitManager.SetIdentityConfirmer(a.confirmIdentityMismatch)
	log.Println("[DevScope] GitPanel engine initialized")

	// 5. Inicializar File Watcher
	fwService, err := fw.NewService(a.emitEvent)
	if err != nil {
		log.Printf("[DevScope] Error initializing FileWatcher: %v", err)
	} else {
		a.fileWatcher = fwService
		a.fileWatcher.OnChange(a.handleRepoEvent)
		log.Println("[DevScope] FileWatcher initialized")
	}

	// 6. Inicializar assistente de commit (IA)
	a.ai = ai.NewService(ai.ServiceDeps{Keys: a.secrets})
	log.Println("[DevScope] Commit assistant initialized")

	// 7. Event bridge local (espelha eventos do painel via WebSocket)
	a.bridge = eventbridge.NewBridge(eventbridge.Options{Port: config.EventBridgePort})
	if err := a.bridge.Start(ctx); err != nil {
		log.Printf("[DevScope] Error starting event bridge: %v", err)
		a.bridge = nil
	}

	// 8. Auto-watch do projeto ativo, se existir
	if a.db != nil && a.fileWatcher != nil {
		if project, err := a.db.GetActiveProject(); err == nil && project.Path != "" {
			if watchErr := a.watchRepo(project.Path); watchErr != nil {
				log.Printf("[DevScope] Could not auto-watch project: %v", watchErr)
			} else {
				log.Printf("[DevScope] Auto-watching project: %s", project.Path)
			}
		}
	}

	log.Println("[DevScope] Startup complete")
}

// DomReady is called after front-end resources have been loaded
func (a *App) DomReady(ctx context.Context) {
	runtime.EventsEmit(ctx, "devscope:ready", map[string]string{
		"version": config.AppVersion,
	})
}

// Shutdown encerra serviços na ordem inversa da inicialização.
func (a *App) Shutdown(ctx context.Context) {
	log.Println("[DevScope] Shutting down...")

	if a.fileWatcher != nil {
		if err := a.fileWatcher.Close(); err != nil {
			log.Printf("[DevScope] FileWatcher close: %v", err)
		}
	}
	if a.bridge != nil {
		if err := a.bridge.Stop(); err != nil {
			log.Printf("[DevScope] EventBridge stop: %v", err)
		}
	}
	if a.backend != nil {
		if err := a.backend.Close(ctx); err != nil {
			log.Printf("[DevScope] Backend close: %v", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.Printf("[DevScope] Database close: %v", err)
		}
	}
}

// emitEvent publica um evento runtime para o frontend e espelha no bridge.
func (a *App) emitEvent(eventName string, data interface{}) {
	if strings.TrimSpace(eventName) == "" {
		return
	}
	if a.ctx != nil {
		runtime.EventsEmit(a.ctx, eventName, data)
	}
	if a.bridge != nil {
		a.bridge.Broadcast(eventName, data)
	}
}

func (a *App) opCtx() context.Context {
	if a.ctx != nil {
		return a.ctx
	}
	return context.Background()
}

// handleRepoEvent traduz eventos do watcher em invalidações e refreshes do
// painel. O watcher já debounceia; aqui só decidimos o alcance do refresh.
func (a *App) handleRepoEvent(event fw.RepoEvent) {
	if a.gitPanel == nil || event.RepoPath == "" {
		return
	}

	a.gitPanel.InvalidateRepoCache(event.RepoPath)

	statusOnly := true
	for _, class := range event.RefreshClasses {
		if class != fw.ClassStatus {
			statusOnly = false
			break
		}
	}

	ctx := a.opCtx()
	if statusOnly {
		a.gitPanel.RefreshStatusQuiet(ctx, event.RepoPath)
		return
	}

	go func() {
		if _, err := a.gitPanel.RefreshAll(ctx, event.RepoPath); err != nil {
			log.Printf("[DevScope] Refresh after %s event failed: %v", event.Type, err)
		}
	}()
}

// confirmIdentityMismatch decide se um commit com identidade divergente do
// dono do repositório pode prosseguir. Override por projeto libera sem
// diálogo; sem override, pergunta ao usuário.
func (a *App) confirmIdentityMismatch(configured gp.IdentityDTO, detected gp.IdentityDTO) bool {
	if a.projectOverrideAllows(configured) {
		return true
	}
	if a.ctx == nil {
		return false
	}

	message := fmt.Sprintf(
		"A identidade configurada (%s <%s>) difere do autor deste repositório (%s <%s>).\n\nDeseja commitar mesmo assim?",
		configured.Name, configured.Email, detected.Name, detected.Email,
	)
	result, err := runtime.MessageDialog(a.ctx, runtime.MessageDialogOptions{
		Type:          runtime.QuestionDialog,
		Title:         "Identidade divergente",
		Message:       message,
		Buttons:       []string{"Commitar", "Cancelar"},
		DefaultButton: "Cancelar",
	})
	if err != nil {
		log.Printf("[DevScope] Identity dialog failed: %v", err)
		return false
	}
	return result == "Commitar"
}

// projectOverrideAllows verifica se o projeto ativo declarou a identidade
// configurada como override explícito.
func (a *App) projectOverrideAllows(configured gp.IdentityDTO) bool {
	if a.db == nil {
		return false
	}
	project, err := a.db.GetActiveProject()
	if err != nil {
		return false
	}
	if project.CommitterEmail == "" && project.CommitterName == "" {
		return false
	}
	if project.CommitterEmail != "" && configured.Email != "" {
		return strings.EqualFold(project.CommitterEmail, configured.Email)
	}
	return strings.EqualFold(project.CommitterName, configured.Name)
}

func (a *App) watchRepo(repoPath string) error {
	if a.fileWatcher == nil {
		return fmt.Errorf("file watcher unavailable")
	}
	if err := a.fileWatcher.Watch(repoPath); err != nil {
		return err
	}

	a.mu.Lock()
	previous := a.watchedRepo
	a.watchedRepo = repoPath
	a.mu.Unlock()

	if previous != "" && previous != repoPath {
		if err := a.fileWatcher.Unwatch(previous); err != nil {
			log.Printf("[DevScope] Unwatch previous project: %v", err)
		}
	}
	return nil
}

func (a *App) requireGitPanel() (*gp.Service, error) {
	if a.gitPanel == nil {
		return nil, gp.NewBindingError(gp.CodeServiceUnavailable, "Painel git indisponível.", "")
	}
	return a.gitPanel, nil
}

func (a *App) requireGitManager() (*gp.Manager, error) {
	if a.gitManager == nil {
		return nil, gp.NewBindingError(gp.CodeServiceUnavailable, "Painel git indisponível.", "")
	}
	return a.gitManager, nil
}

func (a *App) requireDB() (*database.Service, error) {
	if a.db == nil {
		return nil, fmt.Errorf("banco de dados indisponível")
	}
	return a.db, nil
}

// === Projects ===

// ListProjects lista os projetos registrados.
func (a *App) ListProjects() ([]database.Project, error) {
	db, err := a.requireDB()
	if err != nil {
		return nil, err
	}
	return db.ListProjects()
}

// GetActiveProject retorna o projeto ativo, se houver.
func (a *App) GetActiveProject() (*database.Project, error) {
	db, err := a.requireDB()
	if err != nil {
		return nil, err
	}
	return db.GetActiveProject()
}

// AddProject valida o caminho como repositório git e registra o projeto.
func (a *App) AddProject(path string) (*database.Project, error) {
	db, err := a.requireDB()
	if err != nil {
		return nil, err
	}
	svc, err := a.requireGitPanel()
	if err != nil {
		return nil, err
	}

	preflight, err := svc.Preflight(a.opCtx(), path)
	if err != nil {
		return nil, gp.NormalizeBindingError(err)
	}

	project := &database.Project{
		Path:          preflight.RepoRoot,
		DefaultBranch: preflight.Branch,
	}
	if err := db.CreateProject(project); err != nil {
		return nil, err
	}
	return project, nil
}

// OpenProject ativa o projeto, inicia o watcher e dispara o refresh inicial.
func (a *App) OpenProject(id uint) (*database.Project, error) {
	db, err := a.requireDB()
	if err != nil {
		return nil, err
	}
	svc, err := a.requireGitPanel()
	if err != nil {
		return nil, err
	}

	if err := db.SetActiveProject(id); err != nil {
		return nil, err
	}
	project, err := db.GetProject(id)
	if err != nil {
		return nil, err
	}

	if watchErr := a.watchRepo(project.Path); watchErr != nil {
		log.Printf("[DevScope] Could not watch project %s: %v", project.Path, watchErr)
	}

	svc.InvalidateRepoCache(project.Path)
	if _, refreshErr := svc.RefreshAll(a.opCtx(), project.Path); refreshErr != nil {
		return nil, gp.NormalizeBindingError(refreshErr)
	}
	return project, nil
}

// RemoveProject remove um projeto e para o watcher dele, se ativo.
func (a *App) RemoveProject(id uint) error {
	db, err := a.requireDB()
	if err != nil {
		return err
	}

	project, err := db.GetProject(id)
	if err != nil {
		return err
	}
	if a.fileWatcher != nil {
		if unwatchErr := a.fileWatcher.Unwatch(project.Path); unwatchErr != nil {
			log.Printf("[DevScope] Unwatch on remove: %v", unwatchErr)
		}
	}
	return db.DeleteProject(id)
}

// PinProject fixa ou desafixa um projeto na lista.
func (a *App) PinProject(id uint, pinned bool) error {
	db, err := a.requireDB()
	if err != nil {
		return err
	}
	return db.SetProjectPinned(id, pinned)
}

// SetProjectIdentityOverride grava o override de identidade de committer do
// projeto. Strings vazias limpam o override.
func (a *App) SetProjectIdentityOverride(id uint, name string, email string) error {
	db, err := a.requireDB()
	if err != nil {
		return err
	}
	return db.SetProjectIdentityOverride(id, name, email)
}

// === Settings ===

// GetSettings retorna as preferências do usuário.
func (a *App) GetSettings() (*database.AppSettings, error) {
	db, err := a.requireDB()
	if err != nil {
		return nil, err
	}
	return db.GetSettings()
}

// UpdateSettings atualiza as preferências do usuário.
func (a *App) UpdateSettings(settings *database.AppSettings) error {
	db, err := a.requireDB()
	if err != nil {
		return err
	}
	return db.UpdateSettings(settings)
}

// === GitPanel: leituras ===

// GitPanelPreflight verifica git disponível, raiz do repositório e merge ativo.
func (a *App) GitPanelPreflight(repoPath string) (gp.PreflightResult, error) {
	svc, err := a.requireGitPanel()
	if err != nil {
		return gp.PreflightResult{}, err
	}
	result, preflightErr := svc.Preflight(a.opCtx(), repoPath)
	if preflightErr != nil {
		return gp.PreflightResult{}, gp.NormalizeBindingError(preflightErr)
	}
	return result, nil
}

// GitPanelGetStatus retorna as entradas de status do working tree.
func (a *App) GitPanelGetStatus(repoPath string) ([]gp.StatusEntryDTO, error) {
	svc, err := a.requireGitPanel()
	if err != nil {
		return nil, err
	}
	entries, statusErr := svc.Status(a.opCtx(), repoPath)
	if statusErr != nil {
		return nil, gp.NormalizeBindingError(statusErr)
	}
	return entries, nil
}

// GitPanelGetOverlay retorna os mapas de overlay (direto + agregado) para a
// árvore de arquivos.
func (a *App) GitPanelGetOverlay(repoPath string) (gp.StatusOverlayDTO, error) {
	svc, err := a.requireGitPanel()
	if err != nil {
		return gp.StatusOverlayDTO{}, err
	}
	overlay, overlayErr := svc.Overlay(a.opCtx(), repoPath)
	if overlayErr != nil {
		return gp.StatusOverlayDTO{}, gp.NormalizeBindingError(overlayErr)
	}
	return overlay, nil
}

// GitPanelGetHistory retorna a janela de histórico com lanes e conectores.
func (a *App) GitPanelGetHistory(repoPath string, limit int) (gp.HistoryViewDTO, error) {
	svc, err := a.requireGitPanel()
	if err != nil {
		return gp.HistoryViewDTO{}, err
	}
	view, historyErr := svc.History(a.opCtx(), repoPath, limit)
	if historyErr != nil {
		return gp.HistoryViewDTO{}, gp.NormalizeBindingError(historyErr)
	}
	return view, nil
}

// GitPanelGetWorkingDiff retorna o diff staged/unstaged segmentado por arquivo.
func (a *App) GitPanelGetWorkingDiff(repoPath string, filePath string, mode string) (gp.WorkingDiffDTO, error) {
	svc, err := a.requireGitPanel()
	if err != nil {
		return gp.WorkingDiffDTO{}, err
	}
	diff, diffErr := svc.WorkingDiff(a.opCtx(), repoPath, filePath, mode)
	if diffErr != nil {
		return gp.WorkingDiffDTO{}, gp.NormalizeBindingError(diffErr)
	}
	return diff, nil
}

// GitPanelGetCommitDiff retorna o diff de um commit com metadados fuller.
func (a *App) GitPanelGetCommitDiff(repoPath string, commitHash string) (gp.CommitDiffDTO, error) {
	svc, err := a.requireGitPanel()
	if err != nil {
		return gp.CommitDiffDTO{}, err
	}
	diff, diffErr := svc.CommitDiff(a.opCtx(), repoPath, commitHash)
	if diffErr != nil {
		return gp.CommitDiffDTO{}, gp.NormalizeBindingError(diffErr)
	}
	return diff, nil
}

// GitPanelRefreshAll dispara o refresh completo (join leniente) do painel.
func (a *App) GitPanelRefreshAll(repoPath string) (gp.RefreshSummaryDTO, error) {
	svc, err := a.requireGitPanel()
	if err != nil {
		return gp.RefreshSummaryDTO{}, err
	}
	summary, refreshErr := svc.RefreshAll(a.opCtx(), repoPath)
	if refreshErr != nil {
		return gp.RefreshSummaryDTO{}, gp.NormalizeBindingError(refreshErr)
	}
	return summary, nil
}

// GitPanelGetUnpushed retorna a contagem de commits à frente do upstream.
func (a *App) GitPanelGetUnpushed() (int, error) {
	svc, err := a.requireGitPanel()
	if err != nil {
		return 0, err
	}
	return svc.View().Unpushed(), nil
}

// GitPanelGetIdentity retorna a identidade configurada carregada no último
// refresh.
func (a *App) GitPanelGetIdentity() (gp.IdentityDTO, error) {
	svc, err := a.requireGitPanel()
	if err != nil {
		return gp.IdentityDTO{}, err
	}
	return svc.View().Identity(), nil
}

// GitPanelGetRemotes retorna os remotes carregados no último refresh.
func (a *App) GitPanelGetRemotes() ([]gp.RemoteDTO, error) {
	svc, err := a.requireGitPanel()
	if err != nil {
		return nil, err
	}
	return svc.View().Remotes(), nil
}

// GitPanelGetBranches retorna as branches locais carregadas no último refresh.
func (a *App) GitPanelGetBranches() ([]gp.BranchDTO, error) {
	svc, err := a.requireGitPanel()
	if err != nil {
		return nil, err
	}
	return svc.View().Branches(), nil
}

// GitPanelGetTags retorna as tags carregadas no último refresh.
func (a *App) GitPanelGetTags() ([]string, error) {
	svc, err := a.requireGitPanel()
	if err != nil {
		return nil, err
	}
	return svc.View().Tags(), nil
}

// GitPanelGetStashes retorna os stashes carregados no último refresh.
func (a *App) GitPanelGetStashes() ([]gp.StashDTO, error) {
	svc, err := a.requireGitPanel()
	if err != nil {
		return nil, err
	}
	return svc.View().Stashes(), nil
}

// === GitPanel: staging/commit/push ===

// GitPanelStageFiles move caminhos para o index com mutação otimista.
func (a *App) GitPanelStageFiles(repoPath string, paths []string) error {
	mgr, err := a.requireGitManager()
	if err != nil {
		return err
	}
	if stageErr := mgr.StageFiles(a.opCtx(), repoPath, paths); stageErr != nil {
		return gp.NormalizeBindingError(stageErr)
	}
	return nil
}

// GitPanelUnstageFiles remove caminhos do index com mutação otimista.
func (a *App) GitPanelUnstageFiles(repoPath string, paths []string) error {
	mgr, err := a.requireGitManager()
	if err != nil {
		return err
	}
	if unstageErr := mgr.UnstageFiles(a.opCtx(), repoPath, paths); unstageErr != nil {
		return gp.NormalizeBindingError(unstageErr)
	}
	return nil
}

// GitPanelStageAll stageia todas as mudanças não staged.
func (a *App) GitPanelStageAll(repoPath string) error {
	mgr, err := a.requireGitManager()
	if err != nil {
		return err
	}
	if stageErr := mgr.StageAll(a.opCtx(), repoPath); stageErr != nil {
		return gp.NormalizeBindingError(stageErr)
	}
	return nil
}

// GitPanelUnstageAll remove todas as entradas do index.
func (a *App) GitPanelUnstageAll(repoPath string) error {
	mgr, err := a.requireGitManager()
	if err != nil {
		return err
	}
	if unstageErr := mgr.UnstageAll(a.opCtx(), repoPath); unstageErr != nil {
		return gp.NormalizeBindingError(unstageErr)
	}
	return nil
}

// GitPanelSetCommitDraft preserva o rascunho da mensagem de commit.
func (a *App) GitPanelSetCommitDraft(message string) error {
	mgr, err := a.requireGitManager()
	if err != nil {
		return err
	}
	mgr.SetCommitDraft(message)
	return nil
}

// GitPanelGetCommitDraft retorna o rascunho preservado da mensagem de commit.
func (a *App) GitPanelGetCommitDraft() (string, error) {
	svc, err := a.requireGitPanel()
	if err != nil {
		return "", err
	}
	return svc.View().CommitDraft(), nil
}

// GitPanelCommit cria o commit após o gate de identidade.
func (a *App) GitPanelCommit(repoPath string, message string) error {
	mgr, err := a.requireGitManager()
	if err != nil {
		return err
	}
	if commitErr := mgr.Commit(a.opCtx(), repoPath, message); commitErr != nil {
		return gp.NormalizeBindingError(commitErr)
	}
	return nil
}

// GitPanelPush envia commits (publish define upstream) com retry único em
// falha transiente, e registra o desfecho no audit do projeto ativo.
func (a *App) GitPanelPush(repoPath string, publish bool) (gp.PushReportDTO, error) {
	mgr, err := a.requireGitManager()
	if err != nil {
		return gp.PushReportDTO{}, err
	}

	report, pushErr := mgr.Push(a.opCtx(), repoPath, publish)
	a.recordPushAudit(repoPath, report)
	if pushErr != nil {
		return report, gp.NormalizeBindingError(pushErr)
	}
	return report, nil
}

func (a *App) recordPushAudit(repoPath string, report gp.PushReportDTO) {
	if a.db == nil || report.Attempts == 0 {
		return
	}
	project, err := a.db.GetProjectByPath(repoPath)
	if err != nil {
		return
	}
	audit := &database.PushAudit{
		ProjectID: project.ID,
		Mode:      report.Mode,
		Ok:        report.Ok,
		Category:  report.Category,
		Attempts:  report.Attempts,
	}
	if err := a.db.SavePushAudit(audit); err != nil {
		log.Printf("[DevScope] Failed to save push audit: %v", err)
	}
}

// ListPushAudits lista o histórico de pushes de um projeto.
func (a *App) ListPushAudits(projectID uint, limit int) ([]database.PushAudit, error) {
	db, err := a.requireDB()
	if err != nil {
		return nil, err
	}
	return db.ListPushAudits(projectID, limit)
}

// === IA: assistente de commit ===

// AISuggestCommitMessage gera uma mensagem de commit a partir do diff staged
// do repositório.
func (a *App) AISuggestCommitMessage(repoPath string) (*ai.Suggestion, error) {
	if a.ai == nil {
		return nil, fmt.Errorf("assistente de commit indisponível")
	}
	svc, err := a.requireGitPanel()
	if err != nil {
		return nil, err
	}

	ctx := a.opCtx()

	diff, diffErr := svc.WorkingDiff(ctx, repoPath, "", "staged")
	if diffErr != nil {
		return nil, gp.NormalizeBindingError(diffErr)
	}

	branch := ""
	if preflight, preflightErr := svc.Preflight(ctx, repoPath); preflightErr == nil {
		branch = preflight.Branch
	}

	history := svc.View().History()
	subjects := make([]string, 0, len(history.Commits))
	for _, commit := range history.Commits {
		subjects = append(subjects, commit.Message)
		if len(subjects) >= 8 {
			break
		}
	}

	language := ""
	if a.db != nil {
		if settings, settingsErr := a.db.GetSettings(); settingsErr == nil {
			language = settings.Language
		}
	}

	return a.ai.SuggestCommitMessage(ctx, ai.SuggestionRequest{
		RepoPath:       repoPath,
		Branch:         branch,
		StagedDiff:     diff.Raw,
		RecentSubjects: subjects,
		Language:       language,
	})
}

// AICancelSuggestion cancela a geração em andamento para o repositório.
func (a *App) AICancelSuggestion(repoPath string) error {
	if a.ai == nil {
		return nil
	}
	return a.ai.Cancel(repoPath)
}

// AIListProviders lista os provedores de IA disponíveis (sem chaves).
func (a *App) AIListProviders() ([]ai.AIProvider, error) {
	if a.ai == nil {
		return nil, fmt.Errorf("assistente de commit indisponível")
	}
	return a.ai.ListProviders(), nil
}

// AISetProvider ativa/configura um provedor de IA.
func (a *App) AISetProvider(provider ai.AIProvider) error {
	if a.ai == nil {
		return fmt.Errorf("assistente de commit indisponível")
	}
	return a.ai.SetProvider(provider)
}

// AISetAPIKey grava a chave do provedor no keychain e o ativa.
func (a *App) AISetAPIKey(providerID string, key string) error {
	if a.secrets == nil || a.ai == nil {
		return fmt.Errorf("assistente de commit indisponível")
	}
	if err := a.secrets.SetAPIKey(providerID, key); err != nil {
		return err
	}
	return a.ai.SetProvider(ai.AIProvider{ID: providerID, APIKey: key})
}

// AIDeleteAPIKey remove a chave do provedor do keychain.
func (a *App) AIDeleteAPIKey(providerID string) error {
	if a.secrets == nil {
		return fmt.Errorf("keychain indisponível")
	}
	return a.secrets.DeleteAPIKey(providerID)
}

// === Event bridge ===

// EventBridgeURL retorna o endpoint WebSocket local de eventos do painel.
func (a *App) EventBridgeURL() (string, error) {
	if a.bridge == nil {
		return "", fmt.Errorf("event bridge indisponível")
	}
	return a.bridge.URL(), nil
}
