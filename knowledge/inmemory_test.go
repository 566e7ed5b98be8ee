package knowledge

import (
	"testing"
)

func seedIndex(t *testing.T) *InMemoryIndex {
	t.Helper()
	idx := NewInMemoryIndex(0.5)
	idx.Add(
		Document{
			ID:      "billing-faq",
			Title:   "Billing FAQ",
			Content: "If you were billed twice, the duplicate invoice is refunded automatically within 5 business days.",
		},
		Document{
			ID:      "shipping-delays",
			Title:   "Shipping delays",
			Content: "Delivery delays during peak season can add 2-3 business days to standard shipping.",
		},
	)
	return idx
}

func TestRetrieveRanksByScore(t *testing.T) {
	idx := seedIndex(t)

	results, err := idx.Retrieve(t.Context(), "billed twice duplicate invoice", 3)
	if err != nil {
		t.Fatalf("Retrieve error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result above min score, got %d", len(results))
	}
	if results[0].Source != "kb://billing-faq" {
		t.Errorf("expected billing doc first, got %s", results[0].Source)
	}
	if results[0].Score <= 0.5 || results[0].Score > 1.0 {
		t.Errorf("score out of expected range: %f", results[0].Score)
	}
}

func TestRetrieveFiltersBelowMinScore(t *testing.T) {
	idx := seedIndex(t)

	// One of five terms matches the shipping doc, well under the 0.5 floor.
	results, err := idx.Retrieve(t.Context(), "delivery account password reset help", 3)
	if err != nil {
		t.Fatalf("Retrieve error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results above min score, got %d", len(results))
	}
}

func TestRetrieveEmptyQuery(t *testing.T) {
	idx := seedIndex(t)

	results, err := idx.Retrieve(t.Context(), "  ", 3)
	if err != nil {
		t.Fatalf("Retrieve error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results for empty query, got %d", len(results))
	}
}

func TestAddReplacesExistingDocument(t *testing.T) {
	idx := seedIndex(t)

	idx.Add(Document{ID: "billing-faq", Title: "Billing FAQ", Content: "Refunds are manual now."})
	if idx.Count() != 2 {
		t.Errorf("expected replacement, got %d docs", idx.Count())
	}
}

func TestIngestHTML(t *testing.T) {
	idx := NewInMemoryIndex(0.3)

	html := `<html><body><h1>Password reset</h1><p>Use the reset link   on the login page.</p><li>Check spam folder</li></body></html>`
	if err := idx.IngestHTML("account-reset", "Password reset", html); err != nil {
		t.Fatalf("IngestHTML error: %v", err)
	}

	results, err := idx.Retrieve(t.Context(), "password reset login", 3)
	if err != nil {
		t.Fatalf("Retrieve error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected ingested doc to be retrievable, got %d results", len(results))
	}
	if results[0].Metadata["title"] != "Password reset" {
		t.Errorf("expected title metadata, got %v", results[0].Metadata)
	}
}
