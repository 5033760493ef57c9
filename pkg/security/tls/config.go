package tls

import (
	"crypto/tls"
	"fmt"

	"mercator-hq/relay/pkg/config"
)

// ServerConfig builds the listener's TLS settings from cfg. Certificates
// come from r, which must already be loaded.
func ServerConfig(cfg config.TLSConfig, r *CertificateReloader) (*tls.Config, error) {
	if cfg.CertFile == "" {
		return nil, fmt.Errorf("cert_file is required when TLS is enabled")
	}
	if cfg.KeyFile == "" {
		return nil, fmt.Errorf("key_file is required when TLS is enabled")
	}

	version, err := ParseVersion(cfg.MinVersion)
	if err != nil {
		return nil, err
	}

	// #nosec G402 - MinVersion is 1.2 or 1.3; older versions are rejected.
	return &tls.Config{
		MinVersion:     version,
		GetCertificate: r.GetCertificate,
	}, nil
}

// ParseVersion maps "1.2" or "1.3" to a tls version constant. The empty
// string selects TLS 1.3.
func ParseVersion(v string) (uint16, error) {
	switch v {
	case "1.3", "":
		return tls.VersionTLS13, nil
	case "1.2":
		return tls.VersionTLS12, nil
	default:
		return 0, fmt.Errorf("unsupported TLS min_version %q (want 1.2 or 1.3)", v)
	}
}
