// Package config loads the agent's runtime settings from a YAML file using
// spf13/viper (following internal/labelmutex.ParseMutexGroups's
// viper.New/SetConfigFile/ReadInConfig shape) and watches it for edits with
// fsnotify, the same pair the teacher's cmd/bd/list.go uses to live-refresh
// its display.
package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds the tunables the Failure Ledger and Reconciler read at
// startup and on every reload (§7, §9 Open Questions: retry/cooldown are
// operator-tunable, not hardcoded).
type Config struct {
	// MaxOperationRetry is how many counted transient or unknown failures
	// an object may accumulate; the failure that brings the count to this
	// value escalates it to sync_error.
	MaxOperationRetry int `mapstructure:"max_operation_retry"`
	// RetryCooldown is the window after a counted failure during which
	// further failures of the same object are not counted.
	RetryCooldown time.Duration `mapstructure:"retry_cooldown"`
	// SkipDummy, when true, makes a reconciliation pass vote to delete any
	// tenant whose tree is empty or a dummy placeholder (§4.4).
	SkipDummy bool `mapstructure:"skip_dummy"`
}

// defaults mirror the values the spec calls out as the ordinary operating
// point; a config file overrides only the keys it sets.
func defaults() Config {
	return Config{
		MaxOperationRetry: 5,
		RetryCooldown:     30 * time.Second,
		SkipDummy:         true,
	}
}

// Loader reads a YAML config file and notifies subscribers when it changes
// on disk. Subscribers receive the reloaded Config; a load error leaves the
// previous Config in place and is surfaced via the OnError callback if set.
type Loader struct {
	v   *viper.Viper
	mu  sync.RWMutex
	cur Config

	watcher *fsnotify.Watcher

	// OnReload, if set, is called with the new Config after each
	// successful reload.
	OnReload func(Config)
	// OnError, if set, is called when a reload fails to parse; the
	// previously loaded Config remains current.
	OnError func(error)
}

// Load reads path and returns a Loader holding the parsed Config. Keys the
// file does not set keep their defaults; a missing or unreadable file is an
// error.
func Load(path string) (*Loader, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	l := &Loader{v: v, cur: defaults()}
	if err := l.reload(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Loader) reload() error {
	if err := l.v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: read %s: %w", l.v.ConfigFileUsed(), err)
	}
	cfg := defaults()
	if err := l.v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", l.v.ConfigFileUsed(), err)
	}
	l.mu.Lock()
	l.cur = cfg
	l.mu.Unlock()
	return nil
}

// Current returns the most recently loaded Config.
func (l *Loader) Current() Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cur
}

// Watch starts an fsnotify watch on the config file and reloads on every
// write, the same pattern the teacher's list.go uses for its live display:
// an fsnotify.Watcher filtered to Write events, reconciled against viper's
// already-open config handle.
func (l *Loader) Watch() error {
	path := l.v.ConfigFileUsed()
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: new watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return fmt.Errorf("config: watch %s: %w", path, err)
	}
	l.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) {
					continue
				}
				if err := l.reload(); err != nil {
					if l.OnError != nil {
						l.OnError(err)
					}
					continue
				}
				if l.OnReload != nil {
					l.OnReload(l.Current())
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if l.OnError != nil {
					l.OnError(fmt.Errorf("config: watch: %w", err))
				}
			}
		}
	}()
	return nil
}

// Close stops the watch goroutine, if one was started.
func (l *Loader) Close() error {
	if l.watcher == nil {
		return nil
	}
	return l.watcher.Close()
}
