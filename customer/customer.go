package customer

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/Sumitbhoyar/customer-support-copilot/cache"
	"github.com/Sumitbhoyar/customer-support-copilot/pkg/logging"
	"github.com/Sumitbhoyar/customer-support-copilot/store"
)

// Context is the aggregated 360-degree customer view assembled from the
// relational store and the interaction log.
type Context struct {
	CustomerID      string        `json:"customer_id"`
	ExternalID      string        `json:"external_id"`
	Name            string        `json:"name"`
	Email           string        `json:"email"`
	Company         *string       `json:"company,omitempty"`
	Tier            string        `json:"tier"`
	LifetimeValue   float64       `json:"lifetime_value"`
	TotalOrders     int           `json:"total_orders"`
	RecentOrders    []store.Order `json:"recent_orders"`
	OpenTickets     int           `json:"open_tickets"`
	AvgSentiment    float64       `json:"avg_sentiment"`
	LastInteraction *time.Time    `json:"last_interaction,omitempty"`
	IsHighValue     bool          `json:"is_high_value"`
	ChurnRisk       string        `json:"churn_risk"`
}

// CustomerReader is the slice of the relational store the service needs.
type CustomerReader interface {
	GetCustomer(ctx context.Context, externalID string) (*store.CustomerRecord, error)
	RecentOrders(ctx context.Context, customerID string, limit int) ([]store.Order, int, error)
}

// InteractionReader is the slice of the interaction-log store the service
// needs.
type InteractionReader interface {
	RecentInteractions(ctx context.Context, customerID string, days, limit int) ([]store.Interaction, error)
}

// Service builds customer context with caching. Both backing stores are
// optional: without a relational store the service returns a safe
// placeholder context so the pipeline keeps working in environments with no
// database configured.
type Service struct {
	customers    CustomerReader
	interactions InteractionReader
	cache        cache.Store[*Context]
	logger       *slog.Logger
}

// NewService wires the customer-context service. Any of the arguments may be
// nil; a nil cache falls back to a small in-process LRU.
func NewService(customers CustomerReader, interactions InteractionReader, contextCache cache.Store[*Context]) *Service {
	if contextCache == nil {
		contextCache = cache.NewLRUStore(cache.New[*Context](100, 300*time.Second))
	}
	return &Service{
		customers:    customers,
		interactions: interactions,
		cache:        contextCache,
		logger:       logging.WithComponent("customer_service"),
	}
}

// Context returns the aggregated view for the external id, or nil when the
// customer is unknown or the store lookup failed. Results are cached.
func (s *Service) Context(ctx context.Context, externalID string) *Context {
	cacheKey := "customer:" + externalID
	if cached, ok := s.cache.Get(ctx, cacheKey); ok {
		s.logger.Debug("customer cache hit", "external_id", externalID)
		return cached
	}

	if s.customers == nil {
		return placeholderContext(externalID)
	}

	record, err := s.customers.GetCustomer(ctx, externalID)
	if err != nil {
		s.logger.Warn("customer lookup failed", "external_id", externalID, "error", err)
		return nil
	}

	recentOrders, totalOrders, err := s.customers.RecentOrders(ctx, record.CustomerID, 5)
	if err != nil {
		s.logger.Warn("order lookup failed", "customer_id", record.CustomerID, "error", err)
		recentOrders, totalOrders = nil, 0
	}

	avgSentiment, lastInteraction := s.interactionSignals(ctx, record.CustomerID)

	result := &Context{
		CustomerID:      record.CustomerID,
		ExternalID:      externalID,
		Name:            record.Name,
		Email:           record.Email,
		Company:         record.Company,
		Tier:            record.Tier,
		LifetimeValue:   record.LifetimeValue,
		TotalOrders:     totalOrders,
		RecentOrders:    recentOrders,
		AvgSentiment:    avgSentiment,
		LastInteraction: lastInteraction,
		IsHighValue:     record.LifetimeValue > 10000,
		ChurnRisk:       churnRisk(avgSentiment, lastInteraction, record.Tier),
	}

	s.cache.Set(ctx, cacheKey, result)
	s.logger.Info("customer context built",
		"external_id", externalID,
		"tier", result.Tier,
		"is_high_value", result.IsHighValue,
	)
	return result
}

// Invalidate drops the cached context for the external id.
func (s *Service) Invalidate(ctx context.Context, externalID string) {
	s.cache.Delete(ctx, "customer:"+externalID)
}

func (s *Service) interactionSignals(ctx context.Context, customerID string) (float64, *time.Time) {
	if s.interactions == nil {
		return 0, nil
	}
	items, err := s.interactions.RecentInteractions(ctx, customerID, 90, 20)
	if err != nil {
		s.logger.Warn("interaction lookup failed", "customer_id", customerID, "error", err)
		return 0, nil
	}
	if len(items) == 0 {
		return 0, nil
	}

	var sum float64
	for _, item := range items {
		sum += item.Sentiment
	}
	avg := math.Round(sum/float64(len(items))*100) / 100
	last := items[0].Timestamp
	return avg, &last
}

func placeholderContext(externalID string) *Context {
	return &Context{
		CustomerID:   "placeholder",
		ExternalID:   externalID,
		Name:         "Sample User",
		Email:        "sample@example.com",
		Tier:         "standard",
		RecentOrders: []store.Order{},
		ChurnRisk:    "low",
	}
}

// churnRisk scores disengagement signals into low/medium/high.
func churnRisk(avgSentiment float64, lastInteraction *time.Time, tier string) string {
	score := 0

	if avgSentiment < -0.3 {
		score += 3
	} else if avgSentiment < 0 {
		score += 1
	}

	if lastInteraction != nil {
		daysSince := int(time.Since(*lastInteraction).Hours() / 24)
		if daysSince > 60 {
			score += 3
		} else if daysSince > 30 {
			score += 1
		}
	} else {
		score += 2
	}

	if tier == "enterprise" && score > 0 {
		score++
	}

	switch {
	case score >= 4:
		return "high"
	case score >= 2:
		return "medium"
	default:
		return "low"
	}
}
