package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileProvider reads secrets from one file per secret in a directory, the
// layout used by mounted Kubernetes and Docker secrets. Files must be 0600
// or 0400.
//
// With watching enabled, any write, create, rename or remove in the
// directory clears the cache and notifies the OnChange subscribers. Mounted
// secrets rotate through symlink swaps, so all of these count.
type FileProvider struct {
	BasePath string

	mu        sync.RWMutex
	cache     map[string]string
	listeners []func()

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	closeMu sync.Once
}

// NewFileProvider creates a file provider rooted at basePath.
func NewFileProvider(basePath string, watch bool) (*FileProvider, error) {
	info, err := os.Stat(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat secrets dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("secrets dir is not a directory: %s", basePath)
	}

	p := &FileProvider{
		BasePath: basePath,
		cache:    make(map[string]string),
		stopCh:   make(chan struct{}),
	}

	if watch {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("failed to create file watcher: %w", err)
		}
		if err := watcher.Add(basePath); err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("failed to watch secrets dir: %w", err)
		}
		p.watcher = watcher
		go p.watchLoop()
	}

	slog.Info("file secret provider started", "path", basePath, "watch", watch)
	return p, nil
}

// GetSecret reads <BasePath>/<name>. A single trailing newline is removed;
// every other byte is part of the secret.
func (p *FileProvider) GetSecret(_ context.Context, name string) (string, error) {
	p.mu.RLock()
	value, ok := p.cache[name]
	p.mu.RUnlock()
	if ok {
		return value, nil
	}

	path, err := p.resolve(name)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s (file)", ErrSecretNotFound, name)
		}
		return "", fmt.Errorf("failed to stat secret file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("secret path is not a regular file: %s", name)
	}
	if mode := info.Mode().Perm(); mode != 0600 && mode != 0400 {
		return "", fmt.Errorf("insecure permissions on %s: %o (expected 0600 or 0400)", path, mode)
	}

	// #nosec G304 - path is confined to BasePath by resolve
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file: %w", err)
	}

	value = strings.TrimSuffix(strings.TrimSuffix(string(data), "\n"), "\r")

	p.mu.Lock()
	p.cache[name] = value
	p.mu.Unlock()

	return value, nil
}

// resolve maps name to a path inside BasePath, rejecting traversal.
func (p *FileProvider) resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid secret name %q", name)
	}
	return filepath.Join(p.BasePath, name), nil
}

// ListSecrets returns the names of the regular files in BasePath.
func (p *FileProvider) ListSecrets(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(p.BasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read secrets dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// Provider returns the provider name.
func (p *FileProvider) Provider() string {
	return "file"
}

// Supports reports whether a regular file named name exists.
func (p *FileProvider) Supports(name string) bool {
	path, err := p.resolve(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Refresh clears the cache so the next GetSecret re-reads the file.
func (p *FileProvider) Refresh(context.Context) error {
	p.mu.Lock()
	clear(p.cache)
	p.mu.Unlock()
	return nil
}

// OnChange registers fn to run after the watcher sees a change. fn runs on
// the watcher goroutine and must not block.
func (p *FileProvider) OnChange(fn func()) {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
}

// Close stops the watcher.
func (p *FileProvider) Close() error {
	if p.watcher == nil {
		return nil
	}
	var err error
	p.closeMu.Do(func() {
		close(p.stopCh)
		err = p.watcher.Close()
	})
	return err
}

func (p *FileProvider) watchLoop() {
	const relevant = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove

	for {
		select {
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if event.Op&relevant == 0 {
				continue
			}

			slog.Debug("secret file changed",
				"file", filepath.Base(event.Name),
				"op", event.Op.String(),
			)

			_ = p.Refresh(context.Background())

			p.mu.RLock()
			listeners := append([]func(){}, p.listeners...)
			p.mu.RUnlock()
			for _, fn := range listeners {
				fn()
			}

		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("secret watcher error", "error", err)

		case <-p.stopCh:
			return
		}
	}
}
