// test/helpers/test_helpers.go
package helpers

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/merchkit/cartd/internal/adapters/db"
	"github.com/merchkit/cartd/internal/core/domain"
	"github.com/merchkit/cartd/internal/pkg/config"
)

// TestDB represents a test database instance
type TestDB struct {
	PgxPool  *pgxpool.Pool
	Database *db.Database
	Resource *dockertest.Resource
	Pool     *dockertest.Pool
	Config   *db.Config
}

// TestRedis represents a test Redis instance
type TestRedis struct {
	Client *redis.Client
	Server *miniredis.Miniredis
}

// TestLogger returns a test logger
func TestLogger() *slog.Logger {
	if testing.Verbose() {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// SetupTestDB creates a PostgreSQL container for integration tests
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	pool, err := dockertest.NewPool("")
	require.NoError(t, err, "Could not connect to Docker")

	// Pull PostgreSQL image
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=test",
			"POSTGRES_PASSWORD=test",
			"POSTGRES_DB=test_cartd",
			"listen_addresses = '*'",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(t, err, "Could not start PostgreSQL container")

	// Clean up on test completion
	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			t.Logf("Could not purge resource: %s", err)
		}
	})

	// Get connection details
	dbConfig := &db.Config{
		Host:               "localhost",
		Port:               resource.GetPort("5432/tcp"),
		User:               "test",
		Password:           "test",
		Database:           "test_cartd",
		SSLMode:            "disable",
		MaxConnections:     5,
		MinConnections:     1,
		MaxConnLifetime:    time.Hour,
		MaxConnIdleTime:    time.Minute * 30,
		HealthCheckPeriod:  time.Minute,
		ConnectTimeout:     time.Second * 10,
		StatementCacheMode: "describe",
		EnableQueryLogging: testing.Verbose(),
	}

	// Wait for database to be ready
	var database *db.Database
	err = pool.Retry(func() error {
		ctx := context.Background()
		var err error
		database, err = db.NewDatabase(ctx, dbConfig, TestLogger())
		if err != nil {
			return err
		}
		return database.Ping(ctx)
	})
	require.NoError(t, err, "Could not connect to PostgreSQL")

	// Run migrations
	ctx := context.Background()
	migrationConfig := &db.MigrationConfig{
		DatabaseURL: fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=%s",
			dbConfig.User, dbConfig.Password, dbConfig.Host, dbConfig.Port,
			dbConfig.Database, dbConfig.SSLMode),
		EmbeddedSource: db.MigrationFiles,
		UseEmbedded:    true,
		TableName:      "schema_migrations",
		SchemaName:     "public",
	}

	err = db.RunMigrationsWithRetry(ctx, migrationConfig, TestLogger(), 3)
	require.NoError(t, err, "Could not run migrations")

	return &TestDB{
		PgxPool:  database.Pool(),
		Database: database,
		Resource: resource,
		Pool:     pool,
		Config:   dbConfig,
	}
}

// SetupTestRedis creates a mock Redis instance for testing
func SetupTestRedis(t *testing.T) *TestRedis {
	t.Helper()

	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return &TestRedis{
		Client: client,
		Server: mr,
	}
}

// SetupMockDB creates a mock database for unit testing
func SetupMockDB(t *testing.T) (sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err, "Failed to create mock DB")

	t.Cleanup(func() {
		db.Close()
	})

	return mock, db
}

// LoadTestConfig returns a test configuration
func LoadTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:        "test-api",
			Environment: "test",
			Version:     "test",
			LogLevel:    "debug",
			LogFormat:   "text",
			Debug:       true,
		},
		Database: config.DatabaseConfig{
			Host:               "localhost",
			Port:               "5432",
			User:               "test",
			Password:           "test",
			Name:               "test_cartd",
			SSLMode:            "disable",
			MaxConnections:     10,
			MinConnections:     2,
			EnableQueryLogging: true,
		},
		Redis: config.RedisConfig{
			Host:     "localhost",
			Port:     "6379",
			DB:       0,
			TTL:      time.Hour,
			PoolSize: 10,
		},
		Cart: config.CartConfig{
			PersistDebounce:       20 * time.Millisecond,
			InclusionDebounce:     15 * time.Millisecond,
			EnrichmentConcurrency: 4,
			EnrichAsync:           false,
			CartTTL:               time.Hour,
			CatalogCacheTTL:       time.Minute,
			SessionIdleTimeout:    time.Minute,
			EventChannel:          "cart.changed.test",
			CleanupInterval:       time.Hour,
		},
		Security: config.SecurityConfig{
			RateLimitRequests: 100,
			RateLimitDuration: time.Minute,
			AllowedOrigins:    []string{"*"},
			SecureHeaders:     false,
		},
		Server: config.ServerConfig{
			Host:         "localhost",
			Port:         "8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
	}
}

// CreateTestProduct creates a catalog product for testing
func CreateTestProduct(overrides ...func(*domain.Product)) *domain.Product {
	p := &domain.Product{
		ID:          uuid.NewString(),
		DisplayName: "Mechanical Keyboard TKL",
		Price:       decimal.NewFromFloat(89.99),
		Stock:       12,
		ImageRef:    "products/images/keyboard.jpg",
		Specs: map[string]string{
			"layout": "tenkeyless",
			"switch": "brown",
		},
	}

	for _, override := range overrides {
		override(p)
	}

	return p
}

// CreateTestProducts creates multiple catalog products with stable ids
func CreateTestProducts(count int) []domain.Product {
	products := make([]domain.Product, count)
	for i := 0; i < count; i++ {
		products[i] = *CreateTestProduct(func(p *domain.Product) {
			p.ID = fmt.Sprintf("prod-%03d", i+1)
			p.DisplayName = fmt.Sprintf("Test Product %d", i+1)
			p.Price = decimal.NewFromInt(int64(10 + i*5))
			p.Stock = 5 + i
		})
	}
	return products
}

// CreateTestLineItem creates a cart line item for testing
func CreateTestLineItem(overrides ...func(*domain.LineItem)) *domain.LineItem {
	item := &domain.LineItem{
		ID:          "prod-001",
		DisplayName: "Test Product 1",
		UnitPrice:   decimal.NewFromInt(10),
		Quantity:    1,
		Stock:       5,
		StockState:  domain.StockKnown,
	}

	for _, override := range overrides {
		override(item)
	}

	return item
}

// CreateTestLineItems creates multiple line items with stable ids
func CreateTestLineItems(count int) []domain.LineItem {
	items := make([]domain.LineItem, count)
	for i := 0; i < count; i++ {
		items[i] = *CreateTestLineItem(func(item *domain.LineItem) {
			item.ID = fmt.Sprintf("prod-%03d", i+1)
			item.DisplayName = fmt.Sprintf("Test Product %d", i+1)
			item.UnitPrice = decimal.NewFromInt(int64(10 + i*5))
			item.Quantity = 1 + i%3
			item.Stock = 5 + i
		})
	}
	return items
}

// CompareLineItems compares two line items for testing
func CompareLineItems(t *testing.T, expected, actual *domain.LineItem) {
	t.Helper()

	require.Equal(t, expected.ID, actual.ID)
	require.Equal(t, expected.DisplayName, actual.DisplayName)
	require.True(t, expected.UnitPrice.Equal(actual.UnitPrice),
		"unit price mismatch: want %s got %s", expected.UnitPrice, actual.UnitPrice)
	require.Equal(t, expected.Quantity, actual.Quantity)
	require.Equal(t, expected.Stock, actual.Stock)
	require.Equal(t, expected.StockState, actual.StockState)
}

// AssertEventuallyWithTimeout asserts that a condition is met within a timeout
func AssertEventuallyWithTimeout(t *testing.T, condition func() bool, timeout time.Duration, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Errorf("Condition not met within %v: %s", timeout, msg)
}

// TruncateAllTables truncates all tables in the test database
func TruncateAllTables(t *testing.T, db *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()
	_, err := db.Exec(ctx, "TRUNCATE TABLE products CASCADE")
	require.NoError(t, err, "Failed to truncate products table")
}

// SeedTestProducts seeds the database with catalog products
func SeedTestProducts(t *testing.T, db *pgxpool.Pool, products []domain.Product) {
	t.Helper()

	ctx := context.Background()

	for _, p := range products {
		query := `
			INSERT INTO products (id, display_name, price, stock, image_ref, specs, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		`
		specs := "{}"
		if len(p.Specs) > 0 {
			specs = "{"
			first := true
			for k, v := range p.Specs {
				if !first {
					specs += ","
				}
				specs += fmt.Sprintf("%q:%q", k, v)
				first = false
			}
			specs += "}"
		}

		_, err := db.Exec(ctx, query, p.ID, p.DisplayName, p.Price, p.Stock, p.ImageRef, specs)
		require.NoError(t, err, "Failed to seed product %s", p.ID)
	}
}
