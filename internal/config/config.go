package config

import (
	"os"
	"path/filepath"
)

const (
	// AppName é o nome do aplicativo
	AppName = "DevScope"

	// AppVersion é a versão atual
	AppVersion = "1.0.0"

	// AppBundleID é o bundle identifier macOS
	AppBundleID = "com.devscope.app"

	// DBFileName é o nome do arquivo SQLite
	DBFileName = "devscope_data.db"

	// DefaultHistoryLimit é a janela padrão de commits do painel
	DefaultHistoryLimit = 200

	// WatcherDebounceMs é o debounce de invalidação do file watcher (ms)
	WatcherDebounceMs = 400

	// EventBridgePort é a porta local do bridge de eventos WebSocket
	EventBridgePort = 34711
)

// DataDir retorna o diretório raiz de dados do app
// ~/Library/Application Support/DevScope/
func DataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "Library", "Application Support", "DevScope")
}

// DBPath retorna o caminho do arquivo SQLite
func DBPath() string {
	return filepath.Join(DataDir(), DBFileName)
}

// LogDir retorna o diretório de logs
func LogDir() string {
	return filepath.Join(DataDir(), "logs")
}

// CacheDir retorna o diretório de cache
func CacheDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "Library", "Caches", "DevScope")
}

// EnsureDataDirs cria os diretórios necessários se não existirem
func EnsureDataDirs() error {
	dirs := []string{
		DataDir(),
		LogDir(),
		CacheDir(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}
	return nil
}
