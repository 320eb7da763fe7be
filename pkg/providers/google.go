package providers

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/icvsb/icvsb/pkg/httpclient"
	"github.com/icvsb/icvsb/pkg/models"
)

const (
	googleDefaultEndpoint = "https://vision.googleapis.com/v1/images:annotate"

	// googleLabelsExpression pulls the annotation list out of the
	// batched annotate reply.
	googleLabelsExpression = "responses[0].labelAnnotations"
)

// GoogleConfig configures the Google Vision adapter.
type GoogleConfig struct {
	APIKey   string
	Endpoint string
	Timeout  time.Duration
}

// GoogleProvider calls the Google Vision label-detection API.
type GoogleProvider struct {
	vendorCore
	apiKey   string
	endpoint string
}

func NewGoogleProvider(client *httpclient.Client, logger ectologger.Logger, cfg GoogleConfig) *GoogleProvider {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = googleDefaultEndpoint
	}
	return &GoogleProvider{
		vendorCore: newVendorCore(client, logger, cfg.Timeout),
		apiKey:     cfg.APIKey,
		endpoint:   endpoint,
	}
}

func (p *GoogleProvider) Name() string {
	return models.ServiceGoogle
}

func (p *GoogleProvider) Fetch(ctx context.Context, uri string, maxLabels int, minConfidence float64) Fetched {
	image, fail := p.download(ctx, uri)
	if fail != nil {
		return Failed(fail)
	}

	payload := map[string]any{
		"requests": []map[string]any{{
			"image": map[string]any{"content": base64.StdEncoding.EncodeToString(image)},
			"features": []map[string]any{{
				"type":       "LABEL_DETECTION",
				"maxResults": maxLabels,
			}},
		}},
	}

	vctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.http.PostJSON(vctx, fmt.Sprintf("%s?key=%s", p.endpoint, p.apiKey), nil, payload)
	if err != nil {
		if isTimeout(err) {
			return Failed(NewFailure(FailureTimeout, "timeout"))
		}
		return Failed(NewFailure(FailureServiceError, "google vision call failed: %v", err))
	}
	if !resp.IsSuccess() {
		return Fetched{
			Raw:     resp.Body,
			Labels:  map[string]float64{},
			Failure: NewFailure(FailureServiceError, "google vision returned status %d", resp.StatusCode),
		}
	}

	doc, err := httpclient.ParseJSON(resp)
	if err != nil {
		return Fetched{
			Raw:     resp.Body,
			Labels:  map[string]float64{},
			Failure: NewFailure(FailureServiceError, "google vision body unreadable: %v", err),
		}
	}

	body, ok := doc.(map[string]any)
	if !ok {
		return Fetched{
			Raw:     resp.Body,
			Labels:  map[string]float64{},
			Failure: NewFailure(FailureServiceError, "google vision reply is not an object"),
		}
	}
	if _, ok := body["responses"]; !ok {
		return Fetched{
			Raw:     resp.Body,
			Labels:  map[string]float64{},
			Failure: NewFailure(FailureServiceError, "google vision reply missing responses"),
		}
	}

	entries, err := extractEntries(doc, googleLabelsExpression)
	if err != nil {
		return Fetched{
			Raw:     resp.Body,
			Labels:  map[string]float64{},
			Failure: NewFailure(FailureServiceError, "google vision extraction failed: %v", err),
		}
	}

	labels := normalizeLabels(entries, "description", "score", 0)
	labels = shapeLabels(labels, maxLabels, minConfidence, true)

	return Fetched{Raw: resp.Body, Labels: labels, Success: true}
}
