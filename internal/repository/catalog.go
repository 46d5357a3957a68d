package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/errors"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/models"
)

const productColumns = `
	id, name, description, category_id, subcategory_id,
	price_primary, price_secondary, sizes, images, bestseller
`

// PgxCatalogStore reads the catalog database owned by the catalog service.
type PgxCatalogStore struct {
	pool   *pgxpool.Pool
	logger *logging.LoggerV2
}

// NewCatalogPool connects to the catalog database.
func NewCatalogPool(ctx context.Context, cfg config.CatalogConfig) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

func NewPgxCatalogStore(pool *pgxpool.Pool, logger *logging.LoggerV2) *PgxCatalogStore {
	return &PgxCatalogStore{pool: pool, logger: logger}
}

func (s *PgxCatalogStore) ListCategories(ctx context.Context) ([]*models.Category, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]*models.Category, 0)
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		categories = append(categories, &c)
	}
	return categories, rows.Err()
}

func (s *PgxCatalogStore) ListSubcategories(ctx context.Context, categoryID string) ([]*models.Subcategory, error) {
	const query = `
		SELECT id, category_id, name
		FROM subcategories
		WHERE category_id = $1
		ORDER BY name
	`

	rows, err := s.pool.Query(ctx, query, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subcategories := make([]*models.Subcategory, 0)
	for rows.Next() {
		var sc models.Subcategory
		if err := rows.Scan(&sc.ID, &sc.CategoryID, &sc.Name); err != nil {
			return nil, err
		}
		subcategories = append(subcategories, &sc)
	}
	return subcategories, rows.Err()
}

func (s *PgxCatalogStore) ListProducts(ctx context.Context, filter *models.ProductFilter) ([]*models.Product, error) {
	query, args := buildProductQuery(filter)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		s.logger.Error("Failed to list products", logging.Fields{"error": err.Error()})
		return nil, err
	}
	defer rows.Close()

	products := make([]*models.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *PgxCatalogStore) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	p, err := scanProduct(s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetProductSummaries returns the products that still exist, keyed by id.
func (s *PgxCatalogStore) GetProductSummaries(ctx context.Context, ids []string) (map[string]*models.ProductSummary, error) {
	summaries := make(map[string]*models.ProductSummary, len(ids))
	if len(ids) == 0 {
		return summaries, nil
	}

	const query = `
		SELECT id, name, price_primary, price_secondary
		FROM products
		WHERE id = ANY($1)
	`

	rows, err := s.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p models.ProductSummary
		if err := rows.Scan(&p.ID, &p.Name, &p.PricePrimary, &p.PriceSecondary); err != nil {
			return nil, err
		}
		summaries[p.ID] = &p
	}
	return summaries, rows.Err()
}

func buildProductQuery(filter *models.ProductFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if filter.CategoryID != "" {
		args = append(args, filter.CategoryID)
		conds = append(conds, fmt.Sprintf("category_id = $%d", len(args)))
	}
	if filter.SubcategoryID != "" {
		args = append(args, filter.SubcategoryID)
		conds = append(conds, fmt.Sprintf("subcategory_id = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conds = append(conds, fmt.Sprintf("name ILIKE $%d", len(args)))
	}

	query := "SELECT " + productColumns + " FROM products"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY name LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	return query, args
}

func scanProduct(row pgx.Row) (*models.Product, error) {
	var p models.Product
	var subcategoryID *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.CategoryID,
		&subcategoryID,
		&p.PricePrimary,
		&p.PriceSecondary,
		&p.Sizes,
		&p.Images,
		&p.Bestseller,
	)
	if err != nil {
		return nil, err
	}
	if subcategoryID != nil {
		p.SubcategoryID = *subcategoryID
	}
	return &p, nil
}
