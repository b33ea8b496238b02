// cmd/seeder/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v3"

	"github.com/merchkit/cartd/internal/adapters/db"
	"github.com/merchkit/cartd/internal/adapters/storage"
	"github.com/merchkit/cartd/internal/core/domain"
)

// sheetColumns is the expected column order of the products worksheet:
// id, display_name, price, stock, image_ref, then optional "key=value"
// spec cells.
const sheetMinColumns = 4

func main() {
	// Parse flags
	var (
		productsFile = flag.String("products", "./products.xlsx", "Excel file with product catalog data")
		generate     = flag.Int("generate", 0, "Generate N sample products instead of reading a file")
		imagesDir    = flag.String("images", "", "Directory of product images named <id>.<ext> to upload")
		batchSize    = flag.Int("batch-size", 100, "Products saved per transaction")
		logLevel     = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		dryRun       = flag.Bool("dry-run", false, "Preview changes without modifying database")
	)
	flag.Parse()

	// Setup logging
	var slogLevel slog.Level
	switch *logLevel {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: slogLevel,
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, opts))
	slog.SetDefault(logger)

	ctx := context.Background()

	// Collect products
	var (
		products []domain.Product
		err      error
	)

	if *generate > 0 {
		products = generateProducts(*generate)
		logger.Info("generated sample products", slog.Int("count", len(products)))
	} else {
		products, err = readProductsSheet(*productsFile, logger)
		if err != nil {
			logger.Error("failed to read products file",
				slog.String("file", *productsFile),
				slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("products loaded from sheet",
			slog.String("file", *productsFile),
			slog.Int("count", len(products)))
	}

	if len(products) == 0 {
		logger.Warn("nothing to seed")
		return
	}

	if *dryRun {
		for _, p := range products {
			fmt.Printf("DRY RUN: %s  %-30s  price=%s stock=%d\n",
				p.ID, p.DisplayName, p.Price.StringFixed(2), p.Stock)
		}
		return
	}

	// Product images go to the asset bucket first so saved rows carry
	// their final image refs.
	if *imagesDir != "" {
		assets, err := storage.NewS3AssetStore(ctx, &storage.S3Config{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			Bucket:          getEnv("AWS_S3_BUCKET", "cartd-assets"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:        getEnv("AWS_S3_ENDPOINT", ""),
			UsePathStyle:    getEnv("AWS_S3_ENDPOINT", "") != "",
		}, logger)
		if err != nil {
			logger.Error("failed to initialize asset store", slog.String("error", err.Error()))
			os.Exit(1)
		}

		uploaded := attachImages(ctx, assets, *imagesDir, products, logger)
		logger.Info("product images uploaded", slog.Int("count", uploaded))
	}

	// Database connection
	dbConfig := db.DefaultConfig()
	dbConfig.Host = getEnv("DB_HOST", dbConfig.Host)
	dbConfig.Port = getEnv("DB_PORT", dbConfig.Port)
	dbConfig.User = getEnv("DB_USER", dbConfig.User)
	dbConfig.Password = getEnv("DB_PASSWORD", dbConfig.Password)
	dbConfig.Database = getEnv("DB_NAME", dbConfig.Database)
	dbConfig.SSLMode = getEnv("DB_SSL_MODE", dbConfig.SSLMode)

	database, err := db.NewDatabase(ctx, dbConfig, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer database.Close()

	// Run migrations so a fresh database is usable immediately
	migrationConfig := &db.MigrationConfig{
		DatabaseURL: fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=%s",
			dbConfig.User, dbConfig.Password, dbConfig.Host,
			dbConfig.Port, dbConfig.Database, dbConfig.SSLMode,
		),
		EmbeddedSource: db.MigrationFiles,
		UseEmbedded:    true,
	}
	if err := db.RunMigrationsWithRetry(ctx, migrationConfig, logger, 3); err != nil {
		logger.Error("failed to run migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Save in batches
	repo := db.NewProductRepository(database, logger)

	var saved int
	for start := 0; start < len(products); start += *batchSize {
		end := start + *batchSize
		if end > len(products) {
			end = len(products)
		}

		if err := repo.SaveBatch(ctx, products[start:end]); err != nil {
			logger.Error("failed to save product batch",
				slog.Int("start", start),
				slog.String("error", err.Error()))
			os.Exit(1)
		}
		saved += end - start

		fmt.Printf("PROGRESS: Seeded %d/%d products\n", saved, len(products))
	}

	count, err := repo.Count(ctx)
	if err != nil {
		logger.Warn("failed to count products", slog.String("error", err.Error()))
	}

	logger.Info("seeding complete",
		slog.Int("seeded", saved),
		slog.Int64("catalog_total", count))
}

// readProductsSheet parses the first worksheet of an xlsx catalog file.
func readProductsSheet(path string, logger *slog.Logger) ([]domain.Product, error) {
	file, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx file: %w", err)
	}

	if len(file.Sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	sheet := file.Sheets[0]
	defer sheet.Close()

	var products []domain.Product
	var skipped int

	err = sheet.ForEachRow(func(row *xlsx.Row) error {
		var cells []string
		row.ForEachCell(func(cell *xlsx.Cell) error {
			cells = append(cells, strings.TrimSpace(cell.Value))
			return nil
		})

		if len(cells) < sheetMinColumns {
			return nil
		}
		// Header row
		if strings.EqualFold(cells[0], "id") {
			return nil
		}

		product, err := rowToProduct(cells)
		if err != nil {
			skipped++
			logger.Warn("skipping malformed product row",
				slog.String("id", cells[0]),
				slog.String("error", err.Error()))
			return nil
		}

		products = append(products, product)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate sheet rows: %w", err)
	}

	if skipped > 0 {
		logger.Warn("some rows were skipped", slog.Int("count", skipped))
	}

	return products, nil
}

func rowToProduct(cells []string) (domain.Product, error) {
	id := cells[0]
	if id == "" {
		return domain.Product{}, fmt.Errorf("empty product id")
	}

	price, err := decimal.NewFromString(cells[2])
	if err != nil {
		return domain.Product{}, fmt.Errorf("bad price %q: %w", cells[2], err)
	}
	if price.IsNegative() {
		return domain.Product{}, fmt.Errorf("negative price %s", price)
	}

	stock, err := strconv.Atoi(cells[3])
	if err != nil {
		return domain.Product{}, fmt.Errorf("bad stock %q: %w", cells[3], err)
	}
	if stock < 0 {
		stock = 0
	}

	product := domain.Product{
		ID:          id,
		DisplayName: cells[1],
		Price:       price,
		Stock:       stock,
	}
	if len(cells) > 4 {
		product.ImageRef = cells[4]
	}

	// Trailing cells hold "key=value" spec pairs
	for _, cell := range cells[5:] {
		key, value, ok := strings.Cut(cell, "=")
		if !ok || key == "" {
			continue
		}
		if product.Specs == nil {
			product.Specs = make(map[string]string)
		}
		product.Specs[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	return product, nil
}

// generateProducts builds a deterministic-ish sample catalog for local work.
func generateProducts(n int) []domain.Product {
	adjectives := []string{"Classic", "Compact", "Deluxe", "Eco", "Premium", "Sport", "Travel", "Urban"}
	nouns := []string{"Backpack", "Bottle", "Headphones", "Jacket", "Keyboard", "Lamp", "Mug", "Sneakers", "Watch"}
	colors := []string{"black", "blue", "green", "red", "white"}

	rng := rand.New(rand.NewSource(42))

	products := make([]domain.Product, 0, n)
	for i := 0; i < n; i++ {
		adj := adjectives[rng.Intn(len(adjectives))]
		noun := nouns[rng.Intn(len(nouns))]

		price := decimal.NewFromInt(int64(rng.Intn(19000)+999)).Div(decimal.NewFromInt(100))

		products = append(products, domain.Product{
			ID:          fmt.Sprintf("sku-%04d", i+1),
			DisplayName: fmt.Sprintf("%s %s", adj, noun),
			Price:       price,
			Stock:       rng.Intn(25),
			Specs: map[string]string{
				"color": colors[rng.Intn(len(colors))],
			},
		})
	}

	return products
}

// attachImages uploads <id>.<ext> files found in dir and rewrites each
// matched product's ImageRef to the stored object key.
func attachImages(ctx context.Context, assets storage.AssetStore, dir string, products []domain.Product, logger *slog.Logger) int {
	extensions := []string{".jpg", ".jpeg", ".png", ".webp"}

	var uploaded int
	for i := range products {
		var path string
		for _, ext := range extensions {
			candidate := filepath.Join(dir, products[i].ID+ext)
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		if path == "" {
			continue
		}

		file, err := os.Open(path)
		if err != nil {
			logger.Warn("failed to open product image",
				slog.String("path", path),
				slog.String("error", err.Error()))
			continue
		}

		contentType := mime.TypeByExtension(filepath.Ext(path))
		ref, err := assets.UploadImage(ctx, products[i].ID, file, contentType)
		file.Close()
		if err != nil {
			logger.Warn("failed to upload product image",
				slog.String("product_id", products[i].ID),
				slog.String("error", err.Error()))
			continue
		}

		products[i].ImageRef = ref
		uploaded++
	}

	return uploaded
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
