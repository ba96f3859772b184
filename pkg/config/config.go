// Package config handles loading and storing delta-state engine
// configuration, keeping the teacher's viper+fsnotify hot-reload pattern
// while replacing the game-specific settings with recorder and
// domain-stack collaborator tuning.
package config

import (
	"context"
	"errors"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// RecorderTuning holds tuning values for a delta.Recorder session. The
// delta and instrument packages do not read config themselves; a caller
// passes these values on through RecorderOptions and FlushOptions.
type RecorderTuning struct {
	// EntireStateWriteSecondsTick is the maximum elapsed time since the
	// last entire state before the next Write forces a new one.
	EntireStateWriteSecondsTick float64 `mapstructure:"EntireStateWriteSecondsTick"`
	// SubinstrumentMaxDepth is a cap on nested sub-instrument windows, no
	// larger than instrument.MaxSubinstrumentDepth. The instrument package
	// enforces its own constant and does not read this value.
	SubinstrumentMaxDepth int `mapstructure:"SubinstrumentMaxDepth"`
	// FileBufferSize is a buffer size for instrument.BufferedFileWriter/
	// Reader. Those types use bufio's default buffer size and do not read
	// this value.
	FileBufferSize int `mapstructure:"FileBufferSize"`
	// WriteFrameDeltaTimes controls whether Recorder.Flush serializes the
	// per-tick delta_time values into the footer.
	WriteFrameDeltaTimes bool `mapstructure:"WriteFrameDeltaTimes"`
}

// StoreTuning configures the pkg/store slot ledger.
type StoreTuning struct {
	DatabasePath string `mapstructure:"DatabasePath"`
	StreamDir    string `mapstructure:"StreamDir"`
}

// NetstreamTuning holds settings for the pkg/netstream spectator hub. A
// caller passes ListenAddr to Hub.Start; the hub's send queue depth is a
// fixed constant, and SendQueueDepth is not read by it.
type NetstreamTuning struct {
	ListenAddr     string `mapstructure:"ListenAddr"`
	SendQueueDepth int    `mapstructure:"SendQueueDepth"`
}

// Config holds all engine configuration values.
type Config struct {
	Recorder  RecorderTuning  `mapstructure:"Recorder"`
	Store     StoreTuning     `mapstructure:"Store"`
	Netstream NetstreamTuning `mapstructure:"Netstream"`
}

// C is the global configuration instance.
var C Config

// mu protects concurrent access to C during hot-reload.
var mu sync.RWMutex

// watcherMu protects the watcher state
var (
	watcherMu       sync.Mutex
	watcherActive   bool
	watcherCtx      context.Context
	watcherCancel   context.CancelFunc
	currentCallback ReloadCallback
)

// ReloadCallback is called when the configuration is hot-reloaded.
type ReloadCallback func(old, new Config)

// Load reads configuration from the config file, falling back to the
// defaults below for any value the file does not set, populating C.
// Environment variables are not consulted.
func Load() error {
	viper.SetConfigName("config")
	viper.SetConfigType("toml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.deltastate")

	viper.SetDefault("Recorder.EntireStateWriteSecondsTick", 2.0)
	viper.SetDefault("Recorder.SubinstrumentMaxDepth", 8)
	viper.SetDefault("Recorder.FileBufferSize", 64*1024)
	viper.SetDefault("Recorder.WriteFrameDeltaTimes", false)
	viper.SetDefault("Store.DatabasePath", "slots.db")
	viper.SetDefault("Store.StreamDir", "streams")
	viper.SetDefault("Netstream.ListenAddr", ":9631")
	viper.SetDefault("Netstream.SendQueueDepth", 64)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
	}

	return viper.Unmarshal(&C)
}

// Save writes the current configuration to file.
func Save() error {
	mu.RLock()
	defer mu.RUnlock()

	viper.Set("Recorder.EntireStateWriteSecondsTick", C.Recorder.EntireStateWriteSecondsTick)
	viper.Set("Recorder.SubinstrumentMaxDepth", C.Recorder.SubinstrumentMaxDepth)
	viper.Set("Recorder.FileBufferSize", C.Recorder.FileBufferSize)
	viper.Set("Recorder.WriteFrameDeltaTimes", C.Recorder.WriteFrameDeltaTimes)
	viper.Set("Store.DatabasePath", C.Store.DatabasePath)
	viper.Set("Store.StreamDir", C.Store.StreamDir)
	viper.Set("Netstream.ListenAddr", C.Netstream.ListenAddr)
	viper.Set("Netstream.SendQueueDepth", C.Netstream.SendQueueDepth)

	return viper.WriteConfig()
}

// Watch starts watching the config file for changes and calls the callback on reload.
// Returns a stop function to cancel watching.
// Only one watcher can be active at a time. Calling Watch when a watcher is active
// will replace the callback but keep the same underlying file watcher (to avoid
// viper race conditions).
func Watch(callback ReloadCallback) (stop func(), err error) {
	watcherMu.Lock()
	defer watcherMu.Unlock()

	// If no watcher is active, start one
	if !watcherActive {
		ctx, cancel := context.WithCancel(context.Background())
		watcherCtx = ctx
		watcherCancel = cancel
		currentCallback = callback
		watcherActive = true

		// Start viper's file watcher (only once)
		viper.WatchConfig()
		viper.OnConfigChange(func(e fsnotify.Event) {
			watcherMu.Lock()
			cb := currentCallback
			ctx := watcherCtx
			watcherMu.Unlock()

			// Check if watcher has been stopped
			if ctx != nil {
				select {
				case <-ctx.Done():
					return
				default:
				}
			}

			mu.Lock()
			old := C
			var newCfg Config
			if err := viper.Unmarshal(&newCfg); err == nil {
				C = newCfg
				mu.Unlock()
				if cb != nil {
					cb(old, newCfg)
				}
			} else {
				mu.Unlock()
			}
		})
	} else {
		// Watcher already active, just replace the callback
		currentCallback = callback
	}

	return func() {
		watcherMu.Lock()
		defer watcherMu.Unlock()
		if watcherCancel != nil {
			watcherCancel()
			watcherCancel = nil
			watcherCtx = nil
		}
		watcherActive = false
		currentCallback = nil
	}, nil
}

// Get returns a copy of the current config safely.
func Get() Config {
	mu.RLock()
	defer mu.RUnlock()
	return C
}

// Set updates the config safely.
func Set(cfg Config) {
	mu.Lock()
	C = cfg
	mu.Unlock()
}
