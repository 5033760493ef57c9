/*
Package security holds the relay's secret handling and transport security.

# Secret Management

The decryption secret is resolved by name through a secrets.Manager, which
tries a file provider (when a secrets directory is configured) and then the
environment:

	manager, files, err := secrets.NewManagerFromConfig(cfg.Credentials)
	if err != nil {
		return err
	}
	secret, err := secrets.LoadDecryptionSecret(ctx, manager, cfg.Credentials.SecretName)

When watching is enabled, files reports changes so the secret can be rotated
without a restart.

# TLS

The listener's certificates are served by a tls.CertificateReloader, which
validates each pair before swapping it in:

	reloader := tls.NewCertificateReloader(cfg.CertFile, cfg.KeyFile)
	if err := reloader.Load(); err != nil {
		return err
	}
	tlsConfig, err := tls.ServerConfig(cfg, reloader)
*/
package security
