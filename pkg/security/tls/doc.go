/*
Package tls builds the relay's server-side TLS settings.

Certificates are served through a CertificateReloader, which watches the
certificate and key files and swaps in a renewed pair without a restart:

	reloader := tls.NewCertificateReloader(cfg.CertFile, cfg.KeyFile)
	if err := reloader.Load(); err != nil {
		return err
	}
	go reloader.Watch(ctx)

	tlsConfig, err := tls.ServerConfig(cfg, reloader)

A pair that fails to load or is outside its validity window is rejected and
the previous certificate stays in use. Certificates within 30 days of expiry
are logged as warnings on every load.
*/
package tls
