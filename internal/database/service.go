package database

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"devscope/internal/config"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Service encapsula o acesso ao SQLite via GORM
type Service struct {
	db *gorm.DB
}

var ErrProjectNotFound = errors.New("project not found")

// NewService cria e inicializa o serviço de banco de dados
func NewService() (*Service, error) {
	dbPath, db, err := openWritableDatabase()
	if err != nil {
		return nil, err
	}

	// Auto-migrate todos os models
	if err := db.AutoMigrate(
		&Project{},
		&AppSettings{},
		&PushAudit{},
	); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate: %w", err)
	}

	svc := &Service{db: db}

	// Definir permissão 0600 no arquivo do banco
	os.Chmod(dbPath, 0600)

	log.Printf("[DB] Database initialized at %s", dbPath)
	return svc, nil
}

func openWritableDatabase() (string, *gorm.DB, error) {
	candidates := make([]string, 0, 4)
	if override := strings.TrimSpace(os.Getenv("DEVSCOPE_DB_PATH")); override != "" {
		candidates = append(candidates, override)
	}
	candidates = append(candidates, config.DBPath())

	if cwd, err := os.Getwd(); err == nil && strings.TrimSpace(cwd) != "" {
		candidates = append(candidates, filepath.Join(cwd, ".devscope", config.DBFileName))
	}
	candidates = append(candidates, filepath.Join(os.TempDir(), "DevScope", config.DBFileName))

	var lastErr error
	for _, candidate := range candidates {
		path := strings.TrimSpace(candidate)
		if path == "" {
			continue
		}

		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			lastErr = err
			continue
		}

		if !isLikelyWritable(path) {
			lastErr = fmt.Errorf("path not writable: %s", path)
			continue
		}

		db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
		if err != nil {
			lastErr = err
			continue
		}

		sqlDB, err := db.DB()
		if err != nil {
			lastErr = err
			continue
		}

		sqlDB.Exec("PRAGMA journal_mode=WAL")
		sqlDB.Exec("PRAGMA busy_timeout=5000")
		sqlDB.Exec("PRAGMA synchronous=NORMAL")
		sqlDB.Exec("PRAGMA foreign_keys=ON")

		// Probe de escrita para evitar abrir DB readonly em ambientes sandbox.
		probeErr := db.Exec("CREATE TABLE IF NOT EXISTS _devscope_write_probe (id INTEGER PRIMARY KEY AUTOINCREMENT)").Error
		if probeErr == nil {
			probeErr = db.Exec("INSERT INTO _devscope_write_probe DEFAULT VALUES").Error
		}
		if probeErr == nil {
			_ = db.Exec("DELETE FROM _devscope_write_probe WHERE id = (SELECT MAX(id) FROM _devscope_write_probe)").Error
		}

		if probeErr != nil {
			lastErr = probeErr
			_ = sqlDB.Close()
			continue
		}

		return path, db, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no database path candidates available")
	}

	return "", nil, fmt.Errorf("failed to open writable database: %w", lastErr)
}

func isLikelyWritable(path string) bool {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0600)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}

// Close fecha a conexão com o banco
func (s *Service) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// === Project CRUD ===

// ListProjects retorna os projetos ordenados: fixados primeiro, depois os
// abertos mais recentemente.
func (s *Service) ListProjects() ([]Project, error) {
	var projects []Project
	result := s.db.Order("pinned DESC, last_opened_at DESC, id DESC").Find(&projects)
	return projects, result.Error
}

// GetProject retorna um projeto por ID
func (s *Service) GetProject(id uint) (*Project, error) {
	var project Project
	result := s.db.First(&project, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, result.Error
	}
	return &project, nil
}

// GetProjectByPath retorna um projeto pelo caminho do repositório.
func (s *Service) GetProjectByPath(path string) (*Project, error) {
	var project Project
	result := s.db.Where("path = ?", filepath.Clean(strings.TrimSpace(path))).First(&project)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, result.Error
	}
	return &project, nil
}

// GetActiveProject retorna o projeto ativo
func (s *Service) GetActiveProject() (*Project, error) {
	var project Project
	result := s.db.Where("is_active = ?", true).First(&project)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, result.Error
	}
	return &project, nil
}

// CreateProject registra um repositório; caminho repetido reaproveita o
// registro existente.
func (s *Service) CreateProject(project *Project) error {
	if project == nil {
		return fmt.Errorf("project cannot be nil")
	}

	project.Path = filepath.Clean(strings.TrimSpace(project.Path))
	if project.Path == "" || project.Path == "." {
		return fmt.Errorf("project path cannot be empty")
	}

	project.Name = strings.TrimSpace(project.Name)
	if project.Name == "" {
		project.Name = filepath.Base(project.Path)
	}
	if strings.TrimSpace(project.PublicID) == "" {
		project.PublicID = uuid.NewString()
	}
	if project.HistoryLimit <= 0 {
		project.HistoryLimit = config.DefaultHistoryLimit
	}

	if existing, err := s.GetProjectByPath(project.Path); err == nil {
		*project = *existing
		return nil
	} else if !errors.Is(err, ErrProjectNotFound) {
		return err
	}

	return s.db.Create(project).Error
}

// SetActiveProject define o projeto ativo (desativa os outros) e carimba a
// última abertura.
func (s *Service) SetActiveProject(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var target Project
		if err := tx.First(&target, id).Error; err != nil {
			return err
		}

		if err := tx.Model(&Project{}).Where("is_active = ?", true).Update("is_active", false).Error; err != nil {
			return err
		}

		now := time.Now()
		return tx.Model(&Project{}).Where("id = ?", id).Updates(map[string]interface{}{
			"is_active":      true,
			"last_opened_at": &now,
		}).Error
	})
}

// SetProjectPinned fixa ou desafixa um projeto na lista.
func (s *Service) SetProjectPinned(id uint, pinned bool) error {
	return s.db.Model(&Project{}).Where("id = ?", id).Update("pinned", pinned).Error
}

// SetProjectIdentityOverride grava o override de identidade de committer do
// projeto. Strings vazias limpam o override.
func (s *Service) SetProjectIdentityOverride(id uint, name string, email string) error {
	return s.db.Model(&Project{}).Where("id = ?", id).Updates(map[string]interface{}{
		"committer_name":  strings.TrimSpace(name),
		"committer_email": strings.TrimSpace(email),
	}).Error
}

// DeleteProject remove um projeto e seus registros de push.
func (s *Service) DeleteProject(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", id).Delete(&PushAudit{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Project{}, id).Error
	})
}

// === AppSettings CRUD ===

// GetSettings retorna as preferências do usuário (ou cria as padrão)
func (s *Service) GetSettings() (*AppSettings, error) {
	var settings AppSettings
	result := s.db.First(&settings)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			settings = AppSettings{
				UserID:            "local",
				Theme:             "dark",
				Language:          "pt-BR",
				AIProvider:        "gemini",
				AIModel:           "gemini-2.0-flash",
				FontSize:          14,
				ConfirmBeforePush: true,
				WatcherEnabled:    true,
			}
			if err := s.db.Create(&settings).Error; err != nil {
				return nil, err
			}
			return &settings, nil
		}
		return nil, result.Error
	}
	return &settings, nil
}

// UpdateSettings atualiza as preferências do usuário
func (s *Service) UpdateSettings(settings *AppSettings) error {
	return s.db.Save(settings).Error
}

// === PushAudit ===

// SavePushAudit salva o desfecho de um push, com retenção das 500 entradas
// mais recentes por projeto.
func (s *Service) SavePushAudit(audit *PushAudit) error {
	if audit == nil {
		return fmt.Errorf("push audit is nil")
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(audit).Error; err != nil {
			return err
		}

		return tx.Exec(`
			DELETE FROM push_audits
			WHERE project_id = ?
			  AND id NOT IN (
				SELECT id
				FROM push_audits
				WHERE project_id = ?
				ORDER BY created_at DESC, id DESC
				LIMIT 500
			  )
		`, audit.ProjectID, audit.ProjectID).Error
	})
}

// ListPushAudits lista os pushes de um projeto em ordem decrescente.
func (s *Service) ListPushAudits(projectID uint, limit int) ([]PushAudit, error) {
	if limit <= 0 {
		limit = 100
	}

	var audits []PushAudit
	err := s.db.Where("project_id = ?", projectID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&audits).Error
	return audits, err
}
