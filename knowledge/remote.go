package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sumitbhoyar/customer-support-copilot/errors"
)

// RemoteIndex queries an external retrieval service over HTTP. It satisfies
// Retriever so deployments can swap it for the in-memory index without
// touching the pipeline.
type RemoteIndex struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewRemoteIndex builds a client for the retrieval service at baseURL.
func NewRemoteIndex(baseURL, apiKey string) *RemoteIndex {
	return &RemoteIndex{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type remoteSearchResponse struct {
	Results []Result `json:"results"`
}

// Retrieve runs a search query against the remote index.
func (r *RemoteIndex) Retrieve(ctx context.Context, query string, maxResults int) ([]Result, error) {
	endpoint := fmt.Sprintf("%s/search?q=%s&limit=%s",
		r.baseURL, url.QueryEscape(query), strconv.Itoa(maxResults))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: retrieval service unreachable: %v", errors.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: retrieval service returned %d", errors.ErrUnavailable, resp.StatusCode)
	}

	var body remoteSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if len(body.Results) > maxResults {
		body.Results = body.Results[:maxResults]
	}
	return body.Results, nil
}
