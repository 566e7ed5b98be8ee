package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Sumitbhoyar/customer-support-copilot/customer"
	"github.com/Sumitbhoyar/customer-support-copilot/knowledge"
	"github.com/Sumitbhoyar/customer-support-copilot/pkg/logging"
)

// lowConfidenceThreshold short-circuits retrieval: below it, context
// assembly is unlikely to help and the external calls are skipped.
const lowConfidenceThreshold = 0.4

// CustomerContexter is the slice of the customer service the retriever
// needs.
type CustomerContexter interface {
	Context(ctx context.Context, externalID string) *customer.Context
}

// Retriever assembles the context package for generation from three
// sources, in a fixed order so downstream citation ordering is stable:
// knowledge-base hits first, then structured customer/order lookups, then
// similar tickets.
type Retriever struct {
	kb        knowledge.Retriever
	customers CustomerContexter
	cfg       *Config
	logger    *slog.Logger
}

// NewRetriever builds the retrieval stage. kb and customers may be nil;
// each missing source simply contributes no items.
func NewRetriever(kb knowledge.Retriever, customers CustomerContexter, opts ...Option) *Retriever {
	return &Retriever{
		kb:        kb,
		customers: customers,
		cfg:       applyOptions(opts),
		logger:    logging.WithComponent("retriever"),
	}
}

// BuildContext retrieves knowledge-base, structured and similar-ticket
// context. When classification confidence is below the threshold it returns
// an empty package with aggregate confidence pinned to 0.2 instead of
// spending on lookups.
func (r *Retriever) BuildContext(ctx context.Context, ticket TicketInput, classification ClassificationResult) (RetrievalResult, Outcome) {
	if classification.Confidence < lowConfidenceThreshold {
		r.cfg.Metrics.Fallback("retrieval", "low_classification_confidence")
		return RetrievalResult{
			ContextPackage:      []RetrievalContextItem{},
			AggregateConfidence: 0.2,
		}, Outcome{Source: SourceShortCircuit}
	}

	start := time.Now()
	defer func() {
		r.cfg.Metrics.ObserveStage("retrieval", time.Since(start).Seconds())
	}()

	items := make([]RetrievalContextItem, 0, r.cfg.KBMaxResults+3)

	kbItems := r.vectorSearch(ctx, ticket)
	items = append(items, kbItems...)
	items = append(items, r.structuredLookups(ctx, ticket, classification)...)
	items = append(items, r.similarTickets(classification)...)

	aggregate := math.Min(1.0,
		math.Max(0.25, classification.Confidence)+
			0.1*float64(len(items))+
			kbBonus(len(kbItems)),
	)
	aggregate = math.Round(aggregate*100) / 100

	r.logger.Info("context package built",
		"context_count", len(items),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return RetrievalResult{
		ContextPackage:      items,
		AggregateConfidence: aggregate,
	}, Outcome{Source: SourceModel}
}

func kbBonus(kbItems int) float64 {
	if kbItems > 0 {
		return 0.05
	}
	return 0
}

// vectorSearch queries the knowledge base. Failures degrade to zero kb items
// rather than propagating.
func (r *Retriever) vectorSearch(ctx context.Context, ticket TicketInput) []RetrievalContextItem {
	if r.kb == nil {
		return nil
	}
	query := ticket.Title + "\n\n" + ticket.Description
	results, err := r.kb.Retrieve(ctx, query, r.cfg.KBMaxResults)
	if err != nil {
		r.logger.Warn("knowledge-base retrieval failed", "error", err)
		r.cfg.Metrics.Fallback("retrieval", "kb_error")
		return nil
	}

	items := make([]RetrievalContextItem, 0, len(results))
	for _, res := range results {
		sourceID := res.Source
		if sourceID == "" {
			sourceID = "kb"
		}
		items = append(items, RetrievalContextItem{
			SourceID:    sourceID,
			Excerpt:     res.Content,
			CitationURI: res.Source,
			Score:       res.Score,
			Type:        "kb",
		})
	}
	return items
}

// structuredLookups combines the most recent order and a synthesized SLA
// policy string derived from customer tier and ticket priority.
func (r *Retriever) structuredLookups(ctx context.Context, ticket TicketInput, classification ClassificationResult) []RetrievalContextItem {
	if r.customers == nil {
		return nil
	}
	cust := r.customers.Context(ctx, ticket.CustomerExternalID)
	if cust == nil {
		return nil
	}

	items := make([]RetrievalContextItem, 0, 2)
	if len(cust.RecentOrders) > 0 {
		order := cust.RecentOrders[0]
		excerpt, err := json.Marshal(order)
		if err == nil {
			items = append(items, RetrievalContextItem{
				SourceID:    order.OrderID,
				Excerpt:     string(excerpt),
				CitationURI: "order://" + order.OrderNumber,
				Score:       0.6,
				Type:        "order",
			})
		}
	}

	items = append(items, RetrievalContextItem{
		SourceID:    "sla-policy",
		Excerpt:     deriveSLA(cust.Tier, classification.Priority),
		CitationURI: "policy://sla",
		Score:       0.55,
		Type:        "rule",
	})
	return items
}

// similarTickets is a stub seam for a real similarity search: it emits a
// single static scored item so downstream consumers exercise the "ticket"
// context type.
func (r *Retriever) similarTickets(ClassificationResult) []RetrievalContextItem {
	return []RetrievalContextItem{{
		SourceID:    "similar-1",
		Excerpt:     "Prior ticket resolved by rebooting the gateway.",
		CitationURI: "ticket://similar/1",
		Score:       0.52,
		Type:        "ticket",
	}}
}

var slaByPriority = map[Priority]string{
	PriorityCritical: "1h response, 4h resolution",
	PriorityHigh:     "4h response, 1d resolution",
	PriorityMedium:   "1d response, 2d resolution",
	PriorityLow:      "2d response, 5d resolution",
}

// deriveSLA renders the SLA policy line for the tier/priority combination.
func deriveSLA(tier string, priority Priority) string {
	base, ok := slaByPriority[priority]
	if !ok {
		base = "1d response"
	}
	sla := fmt.Sprintf("SLA: %s.", base)
	if tier == "enterprise" {
		sla += " Expedite for enterprise tier."
	}
	return sla
}
