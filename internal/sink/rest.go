package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/jonesrussell/linkbio/internal/domain"
	infraerrors "github.com/jonesrussell/linkbio/infrastructure/errors"
	infrahttp "github.com/jonesrussell/linkbio/infrastructure/http"
)

// REST inserts through a PostgREST compatible endpoint
// (POST {endpoint}/rest/v1/{table}).
type REST struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewREST is the Factory of the rest driver.
func NewREST(endpoint, apiKey string) (Inserter, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("endpoint %q: scheme must be http or https", endpoint)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("endpoint %q: missing host", endpoint)
	}

	return &REST{
		baseURL: strings.TrimRight(endpoint, "/"),
		apiKey:  apiKey,
		client:  infrahttp.NewClient(nil),
	}, nil
}

// Insert implements Inserter.
func (r *REST) Insert(ctx context.Context, rec domain.Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s record: %w", rec.Table(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.baseURL+"/rest/v1/"+rec.Table(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", r.apiKey)
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Prefer", "return=minimal")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("insert %s: %w", rec.Table(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	return infraerrors.WrapWithContext(infraerrors.ParseHTTPError(resp), "insert "+rec.Table())
}
