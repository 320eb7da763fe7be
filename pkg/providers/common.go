package providers

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/jmespath/go-jmespath"

	"github.com/icvsb/icvsb/pkg/httpclient"
)

// vendorCore carries the plumbing shared by all adapters.
type vendorCore struct {
	http    *httpclient.Client
	logger  ectologger.Logger
	timeout time.Duration
}

func newVendorCore(client *httpclient.Client, logger ectologger.Logger, timeout time.Duration) vendorCore {
	if timeout <= 0 {
		timeout = httpclient.DefaultTimeout
	}
	return vendorCore{http: client, logger: logger, timeout: timeout}
}

// download fetches the image bytes and rejects non-image MIME types.
func (c *vendorCore) download(ctx context.Context, uri string) ([]byte, *Failure) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.http.Download(ctx, uri)
	if err != nil {
		if isTimeout(err) {
			return nil, NewFailure(FailureTimeout, "timeout")
		}
		return nil, NewFailure(FailureDownloadFailed, "could not download %s: %v", uri, err)
	}
	if !resp.IsSuccess() {
		return nil, NewFailure(FailureDownloadFailed, "download of %s returned status %d", uri, resp.StatusCode)
	}

	contentType := resp.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(resp.Body)
	}
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return nil, NewFailure(FailureUnsupportedMediaType, "unsupported media type %q for %s", contentType, uri)
	}

	return resp.Body, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// extractEntries runs a jmespath expression against a decoded vendor
// body and returns the matched list. A missing field yields nil.
func extractEntries(doc any, expression string) ([]any, error) {
	result, err := jmespath.Search(expression, doc)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	entries, ok := result.([]any)
	if !ok {
		return nil, errors.New("extraction expression did not yield a list")
	}
	return entries, nil
}

// normalizeLabels lowers label names and scales confidences into
// [0, 1]. Entries missing either field are skipped.
func normalizeLabels(entries []any, nameKey, confidenceKey string, scale float64) map[string]float64 {
	labels := make(map[string]float64, len(entries))
	for _, entry := range entries {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		name, ok := obj[nameKey].(string)
		if !ok || name == "" {
			continue
		}
		confidence, ok := obj[confidenceKey].(float64)
		if !ok {
			continue
		}
		if scale != 0 {
			confidence /= scale
		}
		if confidence < 0 {
			confidence = 0
		}
		if confidence > 1 {
			confidence = 1
		}
		labels[strings.ToLower(name)] = confidence
	}
	return labels
}

// shapeLabels filters by minConfidence (when applyMin) and truncates
// to the maxLabels highest-confidence labels.
func shapeLabels(labels map[string]float64, maxLabels int, minConfidence float64, applyMin bool) map[string]float64 {
	type pair struct {
		name       string
		confidence float64
	}

	pairs := make([]pair, 0, len(labels))
	for name, confidence := range labels {
		if applyMin && confidence < minConfidence {
			continue
		}
		pairs = append(pairs, pair{name, confidence})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].confidence != pairs[j].confidence {
			return pairs[i].confidence > pairs[j].confidence
		}
		return pairs[i].name < pairs[j].name
	})

	if maxLabels > 0 && len(pairs) > maxLabels {
		pairs = pairs[:maxLabels]
	}

	out := make(map[string]float64, len(pairs))
	for _, p := range pairs {
		out[p.name] = p.confidence
	}
	return out
}
