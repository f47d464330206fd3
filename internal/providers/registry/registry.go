package registry

import (
	"fmt"
	"net/http"
	"strings"

	"querydesk/internal/providers"
	"querydesk/internal/providers/azure_openai"
	"querydesk/internal/providers/openai_compat"
)

type BuildOptions struct {
	Kind       string
	Endpoint   string
	APIKey     string
	Deployment string
	APIVersion string
	Model      string
	Params     providers.Params
	HTTPClient *http.Client
}

func Build(opts BuildOptions) (providers.Completer, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Kind)) {
	case "", "azure", "azure_openai", "azure-openai":
		return azure_openai.New(azure_openai.Config{
			Endpoint:   opts.Endpoint,
			APIKey:     opts.APIKey,
			Deployment: opts.Deployment,
			APIVersion: opts.APIVersion,
			Params:     opts.Params,
			HTTPClient: opts.HTTPClient,
		}), nil

	case "openai_compat", "openai-compatible", "openai":
		return openai_compat.New(openai_compat.Config{
			BaseURL:    opts.Endpoint,
			APIKey:     opts.APIKey,
			Model:      opts.Model,
			Params:     opts.Params,
			HTTPClient: opts.HTTPClient,
		}), nil

	default:
		return nil, fmt.Errorf("unsupported completion kind %q", opts.Kind)
	}
}
