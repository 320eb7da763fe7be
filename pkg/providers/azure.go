package providers

import (
	"context"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/icvsb/icvsb/pkg/httpclient"
	"github.com/icvsb/icvsb/pkg/models"
)

const (
	azureDefaultEndpoint = "https://westus.api.cognitive.microsoft.com"
	azureTagPath         = "/vision/v2.0/tag"

	azureTagsExpression = "tags"
)

// AzureConfig configures the Azure tag-detection adapter.
type AzureConfig struct {
	// SubscriptionKey is required to use the Azure service.
	SubscriptionKey string
	Endpoint        string
	Timeout         time.Duration
}

// AzureProvider calls the Azure Computer Vision tag API. Azure has no
// min-confidence parameter; minConfidence is ignored by design of the
// vendor API and filtering is left to the caller's tolerances.
type AzureProvider struct {
	vendorCore
	subscriptionKey string
	endpoint        string
}

func NewAzureProvider(client *httpclient.Client, logger ectologger.Logger, cfg AzureConfig) *AzureProvider {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = azureDefaultEndpoint
	}
	return &AzureProvider{
		vendorCore:      newVendorCore(client, logger, cfg.Timeout),
		subscriptionKey: cfg.SubscriptionKey,
		endpoint:        strings.TrimSuffix(endpoint, "/"),
	}
}

func (p *AzureProvider) Name() string {
	return models.ServiceAzure
}

func (p *AzureProvider) Fetch(ctx context.Context, uri string, maxLabels int, minConfidence float64) Fetched {
	image, fail := p.download(ctx, uri)
	if fail != nil {
		return Failed(fail)
	}

	headers := map[string]string{
		"Ocp-Apim-Subscription-Key": p.subscriptionKey,
		"Content-Type":              "application/octet-stream",
	}

	vctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.http.Post(vctx, p.endpoint+azureTagPath, headers, image)
	if err != nil {
		if isTimeout(err) {
			return Failed(NewFailure(FailureTimeout, "timeout"))
		}
		return Failed(NewFailure(FailureServiceError, "azure vision call failed: %v", err))
	}
	if !resp.IsSuccess() {
		return Fetched{
			Raw:     resp.Body,
			Labels:  map[string]float64{},
			Failure: NewFailure(FailureServiceError, "azure vision returned status %d", resp.StatusCode),
		}
	}

	doc, err := httpclient.ParseJSON(resp)
	if err != nil {
		return Fetched{
			Raw:     resp.Body,
			Labels:  map[string]float64{},
			Failure: NewFailure(FailureServiceError, "azure vision body unreadable: %v", err),
		}
	}

	body, ok := doc.(map[string]any)
	if !ok {
		return Fetched{
			Raw:     resp.Body,
			Labels:  map[string]float64{},
			Failure: NewFailure(FailureServiceError, "azure vision reply is not an object"),
		}
	}
	if _, ok := body["tags"]; !ok {
		return Fetched{
			Raw:     resp.Body,
			Labels:  map[string]float64{},
			Failure: NewFailure(FailureServiceError, "azure vision reply missing tags"),
		}
	}

	entries, err := extractEntries(doc, azureTagsExpression)
	if err != nil {
		return Fetched{
			Raw:     resp.Body,
			Labels:  map[string]float64{},
			Failure: NewFailure(FailureServiceError, "azure vision extraction failed: %v", err),
		}
	}

	labels := normalizeLabels(entries, "name", "confidence", 0)
	labels = shapeLabels(labels, maxLabels, minConfidence, false)

	return Fetched{Raw: resp.Body, Labels: labels, Success: true}
}
