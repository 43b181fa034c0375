// Package openaiclient builds openai-go clients from shortreel settings and
// maps their errors onto the services markers.
package openaiclient

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"shortreel/internal/services"
)

// Settings are the connection options shared by chat and speech.
type Settings struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
}

// New returns a client or a configuration error when no key is set.
func New(stage string, s Settings) (openai.Client, error) {
	key := strings.TrimSpace(s.APIKey)
	if key == "" {
		return openai.Client{}, services.Wrap(services.ErrConfiguration, stage, "client", "api key required", nil)
	}
	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithMaxRetries(max(s.MaxRetries, 0)),
	}
	if base := strings.TrimSpace(s.BaseURL); base != "" {
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		opts = append(opts, option.WithBaseURL(base))
	}
	if s.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(s.Timeout))
	}
	if s.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(s.HTTPClient))
	}
	return openai.NewClient(opts...), nil
}

// Classify tags an API error with the matching services marker.
func Classify(stage, operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, stage, operation, "request timed out", err)
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return services.Wrap(services.ErrConfiguration, stage, operation, "api key rejected", err)
		case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
			return services.Wrap(services.ErrValidation, stage, operation, "request rejected", err)
		}
	}
	return services.Wrap(services.ErrTransient, stage, operation, "", err)
}
