package providers

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/icvsb/icvsb/pkg/httpclient"
	"github.com/icvsb/icvsb/pkg/models"
)

const (
	amazonDefaultEndpoint = "https://rekognition.us-east-1.amazonaws.com/"

	// amazonLabelsExpression pulls the label list out of the
	// DetectLabels reply. Rekognition confidences are percentages.
	amazonLabelsExpression = "Labels"
)

// AmazonConfig configures the Rekognition adapter.
type AmazonConfig struct {
	Endpoint string
	// Headers carries the pre-computed authentication headers for the
	// Rekognition endpoint (or a proxy that signs on our behalf).
	Headers map[string]string
	Timeout time.Duration
}

// AmazonProvider calls the Rekognition DetectLabels API.
type AmazonProvider struct {
	vendorCore
	endpoint string
	headers  map[string]string
}

func NewAmazonProvider(client *httpclient.Client, logger ectologger.Logger, cfg AmazonConfig) *AmazonProvider {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = amazonDefaultEndpoint
	}
	return &AmazonProvider{
		vendorCore: newVendorCore(client, logger, cfg.Timeout),
		endpoint:   endpoint,
		headers:    cfg.Headers,
	}
}

func (p *AmazonProvider) Name() string {
	return models.ServiceAmazon
}

func (p *AmazonProvider) Fetch(ctx context.Context, uri string, maxLabels int, minConfidence float64) Fetched {
	image, fail := p.download(ctx, uri)
	if fail != nil {
		return Failed(fail)
	}

	payload := map[string]any{
		"Image":         map[string]any{"Bytes": base64.StdEncoding.EncodeToString(image)},
		"MaxLabels":     maxLabels,
		"MinConfidence": minConfidence * 100,
	}

	headers := map[string]string{
		"X-Amz-Target": "RekognitionService.DetectLabels",
		"Content-Type": "application/x-amz-json-1.1",
	}
	for key, value := range p.headers {
		headers[key] = value
	}

	vctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.http.PostJSON(vctx, p.endpoint, headers, payload)
	if err != nil {
		if isTimeout(err) {
			return Failed(NewFailure(FailureTimeout, "timeout"))
		}
		return Failed(NewFailure(FailureServiceError, "rekognition call failed: %v", err))
	}
	if !resp.IsSuccess() {
		return Fetched{
			Raw:     resp.Body,
			Labels:  map[string]float64{},
			Failure: NewFailure(FailureServiceError, "rekognition returned status %d", resp.StatusCode),
		}
	}

	doc, err := httpclient.ParseJSON(resp)
	if err != nil {
		return Fetched{
			Raw:     resp.Body,
			Labels:  map[string]float64{},
			Failure: NewFailure(FailureServiceError, "rekognition body unreadable: %v", err),
		}
	}

	body, ok := doc.(map[string]any)
	if !ok {
		return Fetched{
			Raw:     resp.Body,
			Labels:  map[string]float64{},
			Failure: NewFailure(FailureServiceError, "rekognition reply is not an object"),
		}
	}
	if _, ok := body["Labels"]; !ok {
		return Fetched{
			Raw:     resp.Body,
			Labels:  map[string]float64{},
			Failure: NewFailure(FailureServiceError, "rekognition reply missing Labels"),
		}
	}

	entries, err := extractEntries(doc, amazonLabelsExpression)
	if err != nil {
		return Fetched{
			Raw:     resp.Body,
			Labels:  map[string]float64{},
			Failure: NewFailure(FailureServiceError, "rekognition extraction failed: %v", err),
		}
	}

	labels := normalizeLabels(entries, "Name", "Confidence", 100)
	labels = shapeLabels(labels, maxLabels, minConfidence, true)

	return Fetched{Raw: resp.Body, Labels: labels, Success: true}
}
