package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"poolserver/config"
	"poolserver/internal/admin"
	"poolserver/internal/content"
	"poolserver/internal/metrics"
	"poolserver/internal/ratelimit"
	"poolserver/internal/server"
	"poolserver/pkg/logger"
	"poolserver/pkg/workerpool"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	configManager *config.ConfigManager
	server        *server.Server
	limiter       ratelimit.RateLimiter
	admin         *admin.Server
	metrics       *metrics.Collector
	appLogger     *logger.CustomZapLogger
	mu            sync.Mutex
	wg            sync.WaitGroup
	watchDone     chan struct{}
	stop          chan struct{}
	stopOnce      sync.Once
}

func NewApp(configPath string) (*App, error) {
	// Создаем менеджер конфигурации
	configManager, err := config.NewConfigManager(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}
	// Подписываемся на изменения конфигурации, первое значение текущее
	configCh := configManager.Subscribe()
	cfg := <-configCh

	app := &App{
		configManager: configManager,
		metrics:       metrics.NewCollector(),
		watchDone:     make(chan struct{}),
		stop:          make(chan struct{}),
	}

	// Создаем логгер
	app.appLogger = logger.NewCustomZapLogger((*logger.LoggerConfig)(cfg.Logger))
	app.appLogger.Info(fmt.Sprintf("Инициализация приложения (configPath: %s)", configPath))

	// Первый запуск выполняем синхронно, чтобы ошибка bind вернулась из NewApp
	if err := app.reconfigure(cfg); err != nil {
		_ = configManager.Close()
		return nil, err
	}

	if cfg.Admin != nil && cfg.Admin.Enabled {
		app.admin = admin.New(cfg.Admin.Addr, app, app.metrics, app.appLogger)
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			if err := app.admin.Start(); err != nil {
				app.appLogger.Error("Служебный сервер завершился с ошибкой", zap.Error(err))
			}
		}()
	}

	if cfg.RateLimiter != nil && cfg.RateLimiter.SweepInterval > 0 {
		app.wg.Add(1)
		go app.sweepLimiters(cfg.RateLimiter.SweepInterval)
	}

	go app.watchConfig(configCh)
	app.appLogger.Info("Запущено отслеживание изменений конфигурации")

	return app, nil
}

func (a *App) watchConfig(configCh <-chan *config.Config) {
	defer close(a.watchDone)
	for cfg := range configCh {
		a.appLogger.Info(fmt.Sprintf("Получена новая конфигурация (воркеров: %d)", cfg.Server.Workers))
		if err := a.appLogger.SetLevel(cfg.Logger.LogLevel); err != nil {
			a.appLogger.Warn("Не удалось изменить уровень логирования", zap.Error(err))
		}
		if err := a.reconfigure(cfg); err != nil {
			a.appLogger.Error(fmt.Sprintf("Ошибка при реконфигурации приложения: %v", err))
		} else {
			a.appLogger.Info("Приложение успешно реконфигурировано")
		}
	}
}

// sweepLimiters периодически удаляет наполнившиеся корзины текущего лимитера
func (a *App) sweepLimiters(interval time.Duration) {
	defer a.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stop:
			return
		case <-ticker.C:
			tb, ok := a.RateLimiter().(*ratelimit.TokenBucket)
			if !ok {
				continue
			}
			if removed := tb.Sweep(); removed > 0 {
				a.appLogger.Debug(fmt.Sprintf("Удалено корзин rate limiter: %d", removed))
			}
		}
	}
}

// reconfigure пересоздает лимитер и сервер с новым пулом. Старый сервер
// останавливается до запуска нового: адрес может совпадать, а принятые им
// соединения дорабатывают в старом пуле.
func (a *App) reconfigure(cfg *config.Config) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.appLogger.Info("Начало реконфигурации приложения")

	var rLim ratelimit.RateLimiter = ratelimit.Unlimited{}
	if rl := cfg.RateLimiter; rl != nil {
		rLim = ratelimit.FromConfig(rl.Enabled, rl.Rate, rl.Burst)
		a.appLogger.Info(fmt.Sprintf("Создан новый rate limiter (enabled: %t, rate: %.2f, burst: %d)",
			rl.Enabled, rl.Rate, rl.Burst))
	}

	resolver := content.NewResolver(cfg.Content.Root, cfg.Content.IndexFile, cfg.Content.NotFoundFile)
	handler := content.NewHandler(resolver, cfg.Server.MaxRequestBytes)
	newServer := server.New(cfg.Server, handler, rLim, a.appLogger, a.metrics)

	if a.server != nil {
		a.appLogger.Info("Обнаружен работающий сервер, выполняем замену")
		if err := a.server.Stop(); err != nil {
			a.appLogger.Error(fmt.Sprintf("Ошибка при остановке старого сервера: %v", err))
		} else {
			a.appLogger.Info("Старый сервер успешно остановлен")
		}
		a.server = nil
	}

	if err := newServer.Listen(); err != nil {
		newServer.Stop()
		return fmt.Errorf("failed to start server: %w", err)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := newServer.Serve(); err != nil {
			a.appLogger.Error("Сервер завершился с ошибкой", zap.Error(err))
		}
	}()

	a.server = newServer
	a.limiter = rLim
	a.appLogger.Info(fmt.Sprintf("Сервер запущен на %s", newServer.Addr()))
	return nil
}

// RateLimiter текущий лимитер
func (a *App) RateLimiter() ratelimit.RateLimiter {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.limiter
}

// PoolStats статистика пула текущего сервера
func (a *App) PoolStats() workerpool.Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server == nil {
		return workerpool.Stats{}
	}
	return a.server.Stats()
}

// Addr адрес, который слушает текущий сервер
func (a *App) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server == nil {
		return ""
	}
	return a.server.Addr()
}

func (a *App) Run() error {
	a.appLogger.Info("Приложение запущено и готово к работе")

	// Создаем канал для сигналов
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	sig := <-sigChan
	a.appLogger.Info(fmt.Sprintf("Получен сигнал завершения работы: %v", sig))

	return a.Shutdown()
}

// Shutdown останавливает конфигурацию, сервер и служебный сервер
func (a *App) Shutdown() error {
	a.appLogger.Info("Начало graceful shutdown")

	// Сначала отписываемся от конфигурации, чтобы реконфигурация не запустила новый сервер
	if err := a.configManager.Close(); err != nil {
		a.appLogger.Error(fmt.Sprintf("Ошибка при закрытии менеджера конфигурации: %v", err))
	} else {
		a.appLogger.Info("Менеджер конфигурации успешно закрыт")
	}
	<-a.watchDone

	a.mu.Lock()
	if a.server != nil {
		if err := a.server.Stop(); err != nil {
			a.appLogger.Error(fmt.Sprintf("Ошибка при остановке сервера: %v", err))
		} else {
			a.appLogger.Info("Сервер успешно остановлен")
		}
	}
	a.mu.Unlock()

	if a.admin != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.admin.Stop(ctx); err != nil {
			a.appLogger.Error(fmt.Sprintf("Ошибка при остановке служебного сервера: %v", err))
		}
	}

	a.stopOnce.Do(func() { close(a.stop) })
	a.wg.Wait()
	a.appLogger.Info("Приложение успешно завершило работу")
	_ = a.appLogger.Sync()
	return nil
}

func Run(configPath string) error {
	app, err := NewApp(configPath)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	return app.Run()
}
