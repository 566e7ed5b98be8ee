package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Sumitbhoyar/customer-support-copilot/customer"
	"github.com/Sumitbhoyar/customer-support-copilot/knowledge"
	"github.com/Sumitbhoyar/customer-support-copilot/store"
)

type fakeKB struct {
	results []knowledge.Result
	err     error
}

func (f *fakeKB) Retrieve(ctx context.Context, query string, maxResults int) ([]knowledge.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeCustomers struct {
	ctx *customer.Context
}

func (f *fakeCustomers) Context(ctx context.Context, externalID string) *customer.Context {
	return f.ctx
}

func TestBuildContextShortCircuitsOnLowConfidence(t *testing.T) {
	r := NewRetriever(&fakeKB{}, nil)

	got, outcome := r.BuildContext(t.Context(), TicketInput{Title: "a", Description: "b"},
		ClassificationResult{Confidence: 0.3})

	if outcome.Source != SourceShortCircuit {
		t.Fatalf("expected short-circuit outcome, got %s", outcome.Source)
	}
	if len(got.ContextPackage) != 0 {
		t.Errorf("expected empty context package, got %d items", len(got.ContextPackage))
	}
	if got.AggregateConfidence != 0.2 {
		t.Errorf("expected pinned aggregate 0.2, got %f", got.AggregateConfidence)
	}
}

func TestBuildContextAssemblesAllSources(t *testing.T) {
	kb := &fakeKB{results: []knowledge.Result{
		{Content: "Refunds are processed within 5 business days.", Score: 0.9, Source: "kb://billing-faq"},
	}}
	orderDate := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	customers := &fakeCustomers{ctx: &customer.Context{
		CustomerID: "42",
		Tier:       "enterprise",
		RecentOrders: []store.Order{
			{OrderID: "o-1", OrderNumber: "1001", Status: "shipped", TotalAmount: 99.5, OrderDate: orderDate},
		},
	}}
	r := NewRetriever(kb, customers)

	got, outcome := r.BuildContext(t.Context(),
		TicketInput{Title: "Refund", Description: "Where is my refund?"},
		ClassificationResult{Confidence: 0.8, Priority: PriorityHigh})

	if outcome.Source != SourceModel {
		t.Fatalf("unexpected outcome %s", outcome.Source)
	}
	if len(got.ContextPackage) != 4 {
		t.Fatalf("expected kb, order, rule and ticket items, got %d", len(got.ContextPackage))
	}

	if got.ContextPackage[0].Type != "kb" || got.ContextPackage[0].CitationURI != "kb://billing-faq" {
		t.Errorf("expected kb item first, got %+v", got.ContextPackage[0])
	}
	order := got.ContextPackage[1]
	if order.Type != "order" || order.CitationURI != "order://1001" || order.Score != 0.6 {
		t.Errorf("unexpected order item: %+v", order)
	}
	if !strings.Contains(order.Excerpt, `"order_number":"1001"`) {
		t.Errorf("order excerpt missing order number: %s", order.Excerpt)
	}
	rule := got.ContextPackage[2]
	if rule.SourceID != "sla-policy" || rule.CitationURI != "policy://sla" {
		t.Errorf("unexpected rule item: %+v", rule)
	}
	if rule.Excerpt != "SLA: 4h response, 1d resolution. Expedite for enterprise tier." {
		t.Errorf("unexpected SLA excerpt: %s", rule.Excerpt)
	}
	if got.ContextPackage[3].Type != "ticket" {
		t.Errorf("expected similar-ticket item last, got %+v", got.ContextPackage[3])
	}

	// 0.8 base + 0.1*4 items + 0.05 kb bonus, capped at 1.0
	if got.AggregateConfidence != 1.0 {
		t.Errorf("expected capped aggregate 1.0, got %f", got.AggregateConfidence)
	}
}

func TestBuildContextAggregateFormula(t *testing.T) {
	r := NewRetriever(nil, nil)

	got, _ := r.BuildContext(t.Context(),
		TicketInput{Title: "a", Description: "b"},
		ClassificationResult{Confidence: 0.5})

	// Only the similar-ticket item: 0.5 + 0.1, no kb bonus.
	if len(got.ContextPackage) != 1 {
		t.Fatalf("expected only the similar-ticket item, got %d", len(got.ContextPackage))
	}
	if got.AggregateConfidence != 0.6 {
		t.Errorf("expected aggregate 0.6, got %f", got.AggregateConfidence)
	}
}

func TestBuildContextSwallowsKBErrors(t *testing.T) {
	kb := &fakeKB{err: fmt.Errorf("index offline")}
	r := NewRetriever(kb, nil)

	got, outcome := r.BuildContext(t.Context(),
		TicketInput{Title: "a", Description: "b"},
		ClassificationResult{Confidence: 0.7})

	if outcome.Source != SourceModel {
		t.Fatalf("kb failure must not fail the stage, got %s", outcome.Source)
	}
	for _, item := range got.ContextPackage {
		if item.Type == "kb" {
			t.Errorf("unexpected kb item after index failure: %+v", item)
		}
	}
}

func TestDeriveSLA(t *testing.T) {
	if got := deriveSLA("standard", PriorityCritical); got != "SLA: 1h response, 4h resolution." {
		t.Errorf("unexpected critical SLA: %s", got)
	}
	if got := deriveSLA("standard", Priority("unknown")); got != "SLA: 1d response." {
		t.Errorf("unexpected default SLA: %s", got)
	}
}
