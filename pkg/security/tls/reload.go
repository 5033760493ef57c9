package tls

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// CertificateReloader serves the current certificate pair and reloads it
// when either file changes, so renewed certificates are picked up without
// a restart.
type CertificateReloader struct {
	certFile string
	keyFile  string

	mu   sync.RWMutex
	cert *tls.Certificate

	now func() time.Time
}

// NewCertificateReloader creates a reloader for the given PEM files. Call
// Load before serving.
func NewCertificateReloader(certFile, keyFile string) *CertificateReloader {
	return &CertificateReloader{
		certFile: certFile,
		keyFile:  keyFile,
		now:      time.Now,
	}
}

// Load reads and validates the certificate pair. On failure the previously
// loaded certificate, if any, stays in use.
func (r *CertificateReloader) Load() error {
	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return fmt.Errorf("failed to load certificate: %w", err)
	}

	now := r.now()
	leaf, err := ValidateCertificate(&cert, now)
	if err != nil {
		return err
	}
	cert.Leaf = leaf

	r.mu.Lock()
	r.cert = &cert
	r.mu.Unlock()

	days, soon := DaysUntilExpiry(leaf, now)
	attrs := []any{
		"subject", leaf.Subject.CommonName,
		"expires_in_days", days,
		"expires_at", leaf.NotAfter.Format(time.RFC3339),
	}
	if soon {
		slog.Warn("certificate expiring soon", attrs...)
	} else {
		slog.Info("certificate loaded", attrs...)
	}
	return nil
}

// Watch reloads the pair whenever a file in the certificate or key
// directory changes. It blocks until ctx is cancelled.
func (r *CertificateReloader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create certificate watcher: %w", err)
	}
	defer watcher.Close()

	dirs := map[string]struct{}{
		filepath.Dir(r.certFile): {},
		filepath.Dir(r.keyFile):  {},
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %q: %w", dir, err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !r.relevant(event.Name) || event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := r.Load(); err != nil {
				// A renewal writes two files; the first event may see a
				// mismatched pair, the second one fixes it.
				slog.Debug("certificate reload deferred", "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("certificate watcher error", "error", err)
		}
	}
}

func (r *CertificateReloader) relevant(name string) bool {
	name = filepath.Clean(name)
	return name == filepath.Clean(r.certFile) || name == filepath.Clean(r.keyFile)
}

// Certificate returns the current certificate, or nil before Load.
func (r *CertificateReloader) Certificate() *tls.Certificate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cert
}

// GetCertificate implements tls.Config.GetCertificate.
func (r *CertificateReloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	cert := r.Certificate()
	if cert == nil {
		return nil, fmt.Errorf("no certificate loaded")
	}
	return cert, nil
}
