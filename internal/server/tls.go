package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/acme/autocert"
)

// hostPolicy accepts certificate requests for domain and its www alias only.
func hostPolicy(domain string, log zerolog.Logger) autocert.HostPolicy {
	domain = strings.ToLower(strings.TrimSuffix(domain, "."))
	return func(ctx context.Context, host string) error {
		host = strings.ToLower(host)
		if host == "" {
			log.Warn().Msg("Certificate request without SNI rejected")
			return fmt.Errorf("missing server name")
		}
		if host == domain || host == "www."+domain {
			log.Info().Str("host", host).Msg("Accepting certificate request")
			return nil
		}
		log.Warn().Str("host", host).Msg("Rejecting certificate request for unconfigured host")
		return fmt.Errorf("host %s not configured", host)
	}
}

func newCertManager(domain, cacheDir string, log zerolog.Logger) *autocert.Manager {
	if err := os.MkdirAll(cacheDir, 0700); err != nil {
		log.Warn().Err(err).Str("dir", cacheDir).Msg("Failed to create certificate cache directory")
	}

	return &autocert.Manager{
		Cache:      autocert.DirCache(cacheDir),
		Prompt:     autocert.AcceptTOS,
		HostPolicy: hostPolicy(domain, log),
	}
}

func tlsConfig(manager *autocert.Manager) *tls.Config {
	cfg := manager.TLSConfig()
	cfg.MinVersion = tls.VersionTLS12
	cfg.CurvePreferences = []tls.CurveID{tls.X25519, tls.CurveP256}
	cfg.CipherSuites = []uint16{
		tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
		tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
		tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	}
	return cfg
}
