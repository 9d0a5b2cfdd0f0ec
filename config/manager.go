package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceDelay = 100 * time.Millisecond

// ConfigManager управляет конфигурацией и поддерживает горячую перезагрузку
type ConfigManager struct {
	mu          sync.RWMutex
	config      *Config
	configPath  string
	subscribers []chan *Config
	lastError   error
	watcher     *fsnotify.Watcher
	closed      bool
	done        chan struct{}
}

// NewConfigManager создает новый менеджер конфигурации
func NewConfigManager(configPath string) (*ConfigManager, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	manager := &ConfigManager{
		configPath: absPath,
		done:       make(chan struct{}),
	}

	// Загружаем начальную конфигурацию
	if err := manager.Reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	// Следим за каталогом: редакторы часто заменяют файл целиком через rename
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config dir: %w", err)
	}
	manager.watcher = watcher

	go manager.watchConfig()

	return manager, nil
}

// Subscribe подписывает на изменения конфигурации.
// Канал сразу получает текущую конфигурацию; если подписчик не успевает
// читать, промежуточные версии заменяются последней.
func (m *ConfigManager) Subscribe() <-chan *Config {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan *Config, 1)
	if m.closed {
		close(ch)
		return ch
	}
	m.subscribers = append(m.subscribers, ch)

	// Сразу отправляем текущую конфигурацию
	if m.config != nil {
		ch <- m.config
	}

	return ch
}

// GetConfig возвращает текущую конфигурацию
func (m *ConfigManager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// GetLastError возвращает последнюю ошибку загрузки конфигурации
func (m *ConfigManager) GetLastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastError
}

// Close закрывает менеджер и освобождает ресурсы
func (m *ConfigManager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true

	// Закрываем все подписки
	for _, ch := range m.subscribers {
		close(ch)
	}
	m.subscribers = nil
	m.mu.Unlock()

	err := m.watcher.Close()
	<-m.done
	return err
}

// Reload перечитывает файл и рассылает новую конфигурацию подписчикам.
// При ошибке текущая конфигурация остается прежней.
func (m *ConfigManager) Reload() error {
	newConfig, err := LoadFromFile(m.configPath)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.lastError = err
		return fmt.Errorf("failed to load config: %w", err)
	}
	if m.closed {
		return nil
	}

	m.config = newConfig
	m.lastError = nil

	// Уведомляем подписчиков
	for _, ch := range m.subscribers {
		select {
		case ch <- newConfig:
		default:
			// Канал заполнен: вытесняем устаревшую версию
			select {
			case <-ch:
			default:
			}
			ch <- newConfig
		}
	}

	return nil
}

// watchConfig отслеживает изменения в файле конфигурации
func (m *ConfigManager) watchConfig() {
	defer close(m.done)

	// Добавляем дебаунс для множественных событий
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != m.configPath {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				// Сбрасываем таймер если он уже запущен
				if debounceTimer != nil {
					debounceTimer.Stop()
				}

				debounceTimer = time.AfterFunc(debounceDelay, func() {
					// Ошибка сохраняется в lastError
					_ = m.Reload()
				})
			}

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.mu.Lock()
			m.lastError = fmt.Errorf("watcher error: %w", err)
			m.mu.Unlock()
		}
	}
}
