package secrets

import (
	"errors"
	"fmt"
	"strings"

	"devscope/internal/config"

	"github.com/zalando/go-keyring"
)

// ErrNotFound indica que a chave não existe no keychain.
var ErrNotFound = errors.New("secret not found")

// Store guarda chaves de API dos provedores de IA no keychain do sistema.
// Nada é persistido em plaintext no banco ou em arquivos de config.
type Store struct {
	service string
}

// NewStore cria o store usando o bundle id do app como service name.
func NewStore() *Store {
	return &Store{service: config.AppBundleID}
}

func apiKeyName(providerID string) (string, error) {
	id := strings.ToLower(strings.TrimSpace(providerID))
	if id == "" {
		return "", fmt.Errorf("provider id cannot be empty")
	}
	return id + "_api_key", nil
}

// SetAPIKey grava a chave de API de um provedor.
func (s *Store) SetAPIKey(providerID, key string) error {
	name, err := apiKeyName(providerID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("api key cannot be empty")
	}
	if err := keyring.Set(s.service, name, key); err != nil {
		return fmt.Errorf("failed to store api key: %w", err)
	}
	return nil
}

// APIKeyFor retorna a chave de API de um provedor.
func (s *Store) APIKeyFor(providerID string) (string, error) {
	name, err := apiKeyName(providerID)
	if err != nil {
		return "", err
	}
	key, err := keyring.Get(s.service, name)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return key, nil
}

// DeleteAPIKey remove a chave de API de um provedor. Chave inexistente não é
// erro.
func (s *Store) DeleteAPIKey(providerID string) error {
	name, err := apiKeyName(providerID)
	if err != nil {
		return err
	}
	if err := keyring.Delete(s.service, name); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete api key: %w", err)
	}
	return nil
}

// HasAPIKey informa se existe chave gravada para o provedor.
func (s *Store) HasAPIKey(providerID string) bool {
	_, err := s.APIKeyFor(providerID)
	return err == nil
}
