package server

import (
	"fmt"

	"mercator-hq/relay/pkg/config"
	"mercator-hq/relay/pkg/providers"
)

// ProviderConfigs converts the providers section into client configs, one
// per kind, in route order.
func ProviderConfigs(cfg *config.ProvidersConfig) ([]providers.Config, error) {
	out := make([]providers.Config, 0, len(config.ProviderNames))
	for _, kind := range providers.AllKinds() {
		pc, ok := cfg.ByName(kind.String())
		if !ok {
			return nil, fmt.Errorf("no configuration section for provider %s", kind)
		}
		out = append(out, providers.Config{
			Kind:    kind,
			BaseURL: pc.BaseURL,
			Model:   pc.Model,
			Timeout: pc.Timeout,
		})
	}
	return out, nil
}

// NewProviderClient builds the shared provider client. The per-host idle
// pool is the largest max_idle_conns of any provider.
func NewProviderClient(cfg *config.ProvidersConfig) (*providers.Client, error) {
	configs, err := ProviderConfigs(cfg)
	if err != nil {
		return nil, err
	}

	perHost := 0
	for _, name := range config.ProviderNames {
		pc, _ := cfg.ByName(name)
		perHost = max(perHost, pc.MaxIdleConns)
	}

	return providers.NewClient(configs, providers.ClientOptions{
		MaxIdleConns:        perHost * len(configs),
		MaxIdleConnsPerHost: perHost,
	})
}
