package database

import "time"

// Project representa um repositório Git acompanhado pelo DevScope.
type Project struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	PublicID      string `gorm:"uniqueIndex;not null" json:"publicId"`
	Name          string `gorm:"not null" json:"name"`
	Path          string `gorm:"uniqueIndex;not null" json:"path"`
	DefaultBranch string `gorm:"default:''" json:"defaultBranch,omitempty"`
	Color         string `gorm:"default:''" json:"color,omitempty"`
	Pinned        bool   `gorm:"default:false" json:"pinned"`
	IsActive      bool   `gorm:"default:false" json:"isActive"`
	HistoryLimit  int    `gorm:"default:200" json:"historyLimit"`

	// Override de identidade por projeto: quando preenchido, o gate de
	// identidade do commit compara contra este par em vez do git config.
	CommitterName  string `gorm:"default:''" json:"committerName,omitempty"`
	CommitterEmail string `gorm:"default:''" json:"committerEmail,omitempty"`

	LastOpenedAt *time.Time `json:"lastOpenedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// AppSettings armazena as preferências globais do usuário.
type AppSettings struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	UserID              string    `gorm:"uniqueIndex;not null" json:"userId"`
	Theme               string    `gorm:"default:dark" json:"theme"`
	Language            string    `gorm:"default:pt-BR" json:"language"`
	OnboardingCompleted bool      `gorm:"default:false" json:"onboardingCompleted"`
	AIProvider          string    `gorm:"default:gemini" json:"aiProvider"` // "gemini" | "openai"
	AIModel             string    `gorm:"default:gemini-2.0-flash" json:"aiModel"`
	FontSize            int       `gorm:"default:14" json:"fontSize"`
	ConfirmBeforePush   bool      `gorm:"default:true" json:"confirmBeforePush"`
	WatcherEnabled      bool      `gorm:"default:true" json:"watcherEnabled"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// PushAudit registra o desfecho de cada push disparado pelo painel.
type PushAudit struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProjectID uint      `gorm:"index;not null" json:"projectId"`
	Mode      string    `gorm:"not null" json:"mode"` // "push" | "publish"
	Ok        bool      `gorm:"default:false" json:"ok"`
	Category  string    `gorm:"default:''" json:"category,omitempty"`
	Attempts  int       `gorm:"default:1" json:"attempts"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}
