package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Sumitbhoyar/customer-support-copilot/errors"
	_ "github.com/lib/pq"
)

// CustomerRecord is one row of the relational customer store.
type CustomerRecord struct {
	CustomerID    string
	ExternalID    string
	Email         string
	Name          string
	Company       *string
	Tier          string
	LifetimeValue float64
}

// Order is one row of the orders table.
type Order struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Status      string    `json:"status"`
	TotalAmount float64   `json:"total_amount"`
	OrderDate   time.Time `json:"order_date"`
}

// PostgresConfig holds connection configuration for the customer store.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DefaultPostgresConfig returns default PostgreSQL configuration
func DefaultPostgresConfig() *PostgresConfig {
	return &PostgresConfig{
		Host:    "localhost",
		Port:    5432,
		User:    "postgres",
		DBName:  "support",
		SSLMode: "disable",
	}
}

// CustomerStore reads customers and orders from PostgreSQL. The pool is kept
// deliberately small: requests share few connections, each pinged before use
// by the driver and recycled every five minutes.
type CustomerStore struct {
	db *sql.DB
}

// NewCustomerStore connects to PostgreSQL and verifies the connection.
func NewCustomerStore(config *PostgresConfig) (*CustomerStore, error) {
	if config == nil {
		config = DefaultPostgresConfig()
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	db.SetMaxOpenConns(3)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	return &CustomerStore{db: db}, nil
}

// GetCustomer fetches a customer by external identifier. Returns
// errors.ErrNotFound when no row matches.
func (s *CustomerStore) GetCustomer(ctx context.Context, externalID string) (*CustomerRecord, error) {
	query := `
	SELECT customer_id, external_id, email, name, company, tier, lifetime_value
	FROM customers
	WHERE external_id = $1`

	var (
		rec     CustomerRecord
		company sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, externalID).Scan(
		&rec.CustomerID, &rec.ExternalID, &rec.Email, &rec.Name,
		&company, &rec.Tier, &rec.LifetimeValue,
	)
	if err == sql.ErrNoRows {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query customer: %w", err)
	}
	if company.Valid {
		rec.Company = &company.String
	}
	return &rec, nil
}

// RecentOrders returns the customer's most recent orders (newest first) and
// the total order count.
func (s *CustomerStore) RecentOrders(ctx context.Context, customerID string, limit int) ([]Order, int, error) {
	if limit <= 0 {
		limit = 5
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM orders WHERE customer_id = $1`
	if err := s.db.QueryRowContext(ctx, countQuery, customerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	ordersQuery := `
	SELECT order_id, order_number, status, total_amount, order_date
	FROM orders
	WHERE customer_id = $1
	ORDER BY order_date DESC
	LIMIT $2`

	rows, err := s.db.QueryContext(ctx, ordersQuery, customerID, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]Order, 0, limit)
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.OrderID, &o.OrderNumber, &o.Status, &o.TotalAmount, &o.OrderDate); err != nil {
			return nil, 0, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read orders: %w", err)
	}
	return orders, total, nil
}

// Ping checks database connectivity.
func (s *CustomerStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying pool.
func (s *CustomerStore) Close() error {
	return s.db.Close()
}
