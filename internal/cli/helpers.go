package cli

import (
	"fmt"

	"github.com/starhyc/problem-diagnosis-assistant/internal/api"
	"github.com/starhyc/problem-diagnosis-assistant/internal/auth"
	"github.com/starhyc/problem-diagnosis-assistant/internal/config"
)

// loadClient builds the REST client with the stored token attached.
func loadClient() (*api.Client, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	dir, err := config.Dir()
	if err != nil {
		return nil, nil, err
	}
	tokens := auth.NewStore(dir)
	return api.NewClient(cfg.Server.BaseURL, tokens.TokenSource()), cfg, nil
}

// newBackendClient builds the REST client for an already-loaded config.
func newBackendClient(cfg *config.Config, tokens *auth.Store) *api.Client {
	return api.NewClient(cfg.Server.BaseURL, tokens.TokenSource())
}

func loadTokenStore() (*auth.Store, error) {
	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}
	return auth.NewStore(dir), nil
}
