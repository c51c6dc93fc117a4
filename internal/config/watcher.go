package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatcherConfig holds configuration for the config watcher
type WatcherConfig struct {
	// DebounceDuration collapses bursts of events into one reload
	DebounceDuration time.Duration
	// OnChange receives every reloaded configuration that passes validation
	OnChange func(newConfig *Config) error
	// OnError receives load, validation and apply failures
	OnError func(error)
	// RequireCronSecret rejects a reloaded file that configures no cron secret
	RequireCronSecret bool
}

// DefaultWatcherConfig returns default watcher configuration
func DefaultWatcherConfig() *WatcherConfig {
	return &WatcherConfig{DebounceDuration: 500 * time.Millisecond}
}

// Watcher reloads the configuration file when it changes. The parent
// directory is watched so editors that replace the file atomically are
// picked up too.
type Watcher struct {
	configPath string
	config     *WatcherConfig
	watcher    *fsnotify.Watcher
	logger     *slog.Logger
	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

// NewWatcher creates a new configuration watcher
func NewWatcher(configPath string, config *WatcherConfig, logger *slog.Logger) (*Watcher, error) {
	if config == nil {
		config = DefaultWatcherConfig()
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(absPath)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	return &Watcher{
		configPath: absPath,
		config:     config,
		watcher:    fsw,
		logger:     logger.With("component", "config-watcher"),
		stopCh:     make(chan struct{}),
	}, nil
}

// Start begins watching for configuration changes
func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.run()
	w.logger.Info("Configuration watcher started", "file", w.configPath)
}

// Stop ends the watch loop and releases the file watcher
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
	return w.watcher.Close()
}

func (w *Watcher) run() {
	defer w.wg.Done()

	// nil until an event arms it; receiving from a nil channel blocks
	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.config.DebounceDuration)
			} else {
				timer.Reset(w.config.DebounceDuration)
			}
			pending = timer.C

		case <-pending:
			pending = nil
			if err := w.reload(); err != nil {
				w.logger.Error("Config reload failed", "error", err)
				w.fail(err)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", "error", err)
			w.fail(fmt.Errorf("watcher error: %w", err))

		case <-w.stopCh:
			return
		}
	}
}

// relevant keeps writes and (re)creations of the watched file
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.configPath {
		return false
	}
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.logger.Debug("Config file replaced", "file", event.Name, "op", event.Op.String())
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create)
}

func (w *Watcher) fail(err error) {
	if w.config.OnError != nil {
		w.config.OnError(err)
	}
}

// reload loads, validates and applies the file
func (w *Watcher) reload() error {
	w.logger.Info("Reloading configuration", "file", w.configPath)

	newConfig, err := Load(w.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := w.validateConfig(newConfig); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if w.config.OnChange != nil {
		if err := w.config.OnChange(newConfig); err != nil {
			return fmt.Errorf("failed to apply config: %w", err)
		}
	}

	w.logger.Info("Configuration reloaded successfully")
	return nil
}

// validateConfig rejects reloads that would drop every automation secret
// while the running process still has some
func (w *Watcher) validateConfig(cfg *Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}
	if w.config.RequireCronSecret && len(cfg.Security.CronSecrets) == 0 && cfg.Security.SigningSecret == "" {
		return fmt.Errorf("reload removes every cron secret")
	}
	return nil
}

// GetCurrentConfig returns the watched file's absolute path
func (w *Watcher) GetCurrentConfig() string {
	return w.configPath
}
