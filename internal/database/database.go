package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/franckalain/barcodenutrition/internal/models"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

// Catalog is a local product catalog keyed by product code.
type Catalog interface {
	GetProduct(ctx context.Context, code string) (*models.NutritionItem, error)
	SaveProduct(ctx context.Context, code string, item *models.NutritionItem) error
	CountProducts(ctx context.Context) (int, error)
	Close() error
}

// SQLiteCatalog implements the Catalog interface
type SQLiteCatalog struct {
	db *sql.DB
}

// NewSQLiteCatalog opens (and if needed creates) the catalog database at dbPath.
func NewSQLiteCatalog(dbPath string) (*SQLiteCatalog, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error enabling WAL mode: %w", err)
	}

	if err := initializeSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing schema: %w", err)
	}

	return &SQLiteCatalog{db: db}, nil
}

func initializeSchema(db *sql.DB) error {
	schemaBytes, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("error reading schema file: %w", err)
	}

	if _, err := db.Exec(string(schemaBytes)); err != nil {
		return fmt.Errorf("error executing schema: %w", err)
	}
	return nil
}

// GetProduct returns the catalog entry for code, or nil when there is none.
func (s *SQLiteCatalog) GetProduct(ctx context.Context, code string) (*models.NutritionItem, error) {
	query := `
		SELECT brand_name, item_name, calories, protein, total_carbohydrate, total_fat
		FROM products WHERE upc = ?
	`

	var calories, protein, carbs, fat sql.NullFloat64
	item := &models.NutritionItem{}
	err := s.db.QueryRowContext(ctx, query, code).Scan(
		&item.BrandName, &item.ProductName,
		&calories, &protein, &carbs, &fat,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	item.Calories = nullable(calories)
	item.Protein = nullable(protein)
	item.TotalCarbohydrate = nullable(carbs)
	item.TotalFat = nullable(fat)
	return item, nil
}

// SaveProduct inserts or replaces the catalog entry for code.
func (s *SQLiteCatalog) SaveProduct(ctx context.Context, code string, item *models.NutritionItem) error {
	query := `
		INSERT INTO products (
			upc, brand_name, item_name, calories, protein, total_carbohydrate, total_fat,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(upc) DO UPDATE SET
			brand_name = excluded.brand_name,
			item_name = excluded.item_name,
			calories = excluded.calories,
			protein = excluded.protein,
			total_carbohydrate = excluded.total_carbohydrate,
			total_fat = excluded.total_fat,
			updated_at = excluded.updated_at
	`

	now := time.Now()
	_, err := s.db.ExecContext(ctx, query,
		code, item.BrandName, item.ProductName,
		item.Calories, item.Protein, item.TotalCarbohydrate, item.TotalFat,
		now, now,
	)
	return err
}

// CountProducts returns the number of catalog entries.
func (s *SQLiteCatalog) CountProducts(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Close closes the database connection
func (s *SQLiteCatalog) Close() error {
	return s.db.Close()
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
