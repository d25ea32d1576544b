// Package secrets holds the process's secret values (the access token signing
// key) in memory and swaps them atomically on reload.
package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
)

// Loader retrieves secrets from a source (env vars, mounted files).
type Loader func() (map[string]string, error)

// Vault holds secret values in memory and supports atomic reloading.
type Vault struct {
	mu     sync.RWMutex
	values map[string]string
	loader Loader
}

// NewVault creates a Vault, calling the loader once to populate initial values.
func NewVault(loader Loader) (*Vault, error) {
	vals, err := loader()
	if err != nil {
		return nil, fmt.Errorf("initial secret load: %w", err)
	}
	return &Vault{values: vals, loader: loader}, nil
}

// Get returns the secret for key, or an empty string if not found.
func (v *Vault) Get(key string) string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.values[key]
}

// Bytes returns the secret for key as a byte slice, or nil if not found.
func (v *Vault) Bytes(key string) []byte {
	s := v.Get(key)
	if s == "" {
		return nil
	}
	return []byte(s)
}

// Reload calls the loader and swaps in the new values atomically.
// If the loader returns an error, existing values are preserved.
func (v *Vault) Reload() error {
	vals, err := v.loader()
	if err != nil {
		return fmt.Errorf("reload secrets: %w", err)
	}
	v.mu.Lock()
	v.values = vals
	v.mu.Unlock()
	return nil
}

// ReloadOn reloads the vault every time one of sigs is received, until ctx is
// done.
func (v *Vault) ReloadOn(ctx context.Context, sigs ...os.Signal) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	go func() {
		defer signal.Stop(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-ch:
				if err := v.Reload(); err != nil {
					slog.Error("secret reload failed", "signal", sig.String(), "error", err)
					continue
				}
				slog.Info("secrets reloaded", "signal", sig.String())
			}
		}
	}()
}
