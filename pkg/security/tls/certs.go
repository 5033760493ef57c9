package tls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"
)

// expiryWarningDays is how close to expiry a certificate gets logged as a
// warning.
const expiryWarningDays = 30

// ValidateCertificate checks that the leaf certificate of cert is currently
// valid.
func ValidateCertificate(cert *tls.Certificate, now time.Time) (*x509.Certificate, error) {
	if cert == nil || len(cert.Certificate) == 0 {
		return nil, fmt.Errorf("certificate chain is empty")
	}

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	if now.Before(leaf.NotBefore) {
		return nil, fmt.Errorf("certificate is not yet valid (valid from %s)", leaf.NotBefore.Format(time.RFC3339))
	}
	if now.After(leaf.NotAfter) {
		return nil, fmt.Errorf("certificate expired on %s", leaf.NotAfter.Format(time.RFC3339))
	}

	return leaf, nil
}

// DaysUntilExpiry returns the whole days left before leaf expires and
// whether that is inside the warning window.
func DaysUntilExpiry(leaf *x509.Certificate, now time.Time) (days int, expiringSoon bool) {
	days = int(leaf.NotAfter.Sub(now).Hours() / 24)
	return days, days < expiryWarningDays
}
