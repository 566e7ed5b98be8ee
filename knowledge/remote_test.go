package knowledge

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Sumitbhoyar/customer-support-copilot/errors"
)

func TestRemoteIndexRetrieve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "billing refund" {
			t.Errorf("query = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key-1" {
			t.Errorf("authorization = %q", got)
		}
		json.NewEncoder(w).Encode(remoteSearchResponse{Results: []Result{
			{Content: "Refunds take 5 days.", Score: 0.9, Source: "kb://billing-faq"},
			{Content: "Second hit.", Score: 0.5, Source: "kb://other"},
		}})
	}))
	defer srv.Close()

	idx := NewRemoteIndex(srv.URL, "key-1")
	results, err := idx.Retrieve(t.Context(), "billing refund", 1)
	if err != nil {
		t.Fatalf("Retrieve(): %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected limit applied, got %d results", len(results))
	}
	if results[0].Source != "kb://billing-faq" {
		t.Errorf("unexpected result: %+v", results[0])
	}
}

func TestRemoteIndexServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	idx := NewRemoteIndex(srv.URL, "")
	_, err := idx.Retrieve(t.Context(), "anything", 3)
	if !stderrors.Is(err, errors.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}
