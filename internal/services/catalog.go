package services

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/ecoshop/ecoshop-go/internal/db"
	"github.com/ecoshop/ecoshop-go/internal/metrics"
	"github.com/ecoshop/ecoshop-go/internal/models"
	"github.com/ecoshop/ecoshop-go/internal/slug"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// productCache holds recently read products keyed by ID.
type productCache struct {
	mu    sync.RWMutex
	items map[int64]cachedProduct
}

type cachedProduct struct {
	product models.Product
	expires time.Time
}

// CatalogService is the read model for products, categories and
// suppliers, plus the write side that derives slugs on creation.
type CatalogService struct {
	db      *db.DB
	metrics *metrics.AppMetrics
	cache   productCache
}

// NewCatalogService creates a new catalog service
func NewCatalogService(db *db.DB, metrics *metrics.AppMetrics) *CatalogService {
	return &CatalogService{
		db:      db,
		metrics: metrics,
		cache:   productCache{items: make(map[int64]cachedProduct)},
	}
}

const productColumns = "id, category_id, supplier_id, name, slug, description, price, weight, calories, protein, fat, carbs, in_stock"

// ProductByID returns a product by ID. Served from the read cache when
// fresh; cache hits and misses are counted.
func (s *CatalogService) ProductByID(ctx context.Context, id int64) (*models.Product, error) {
	s.cache.mu.RLock()
	if cached, ok := s.cache.items[id]; ok && time.Now().Before(cached.expires) {
		s.cache.mu.RUnlock()
		s.metrics.CacheHits.Add(ctx, 1, metric.WithAttributes(s.metrics.WithServiceName(nil)...))
		product := cached.product
		return &product, nil
	}
	s.cache.mu.RUnlock()

	s.metrics.CacheMisses.Add(ctx, 1, metric.WithAttributes(s.metrics.WithServiceName(nil)...))

	start := time.Now()
	query := "SELECT " + productColumns + " FROM products WHERE id = ?"
	var p models.Product
	err := s.db.GetContext(ctx, &p, query, id)
	s.metrics.RecordDBQuery(ctx, "SELECT", "products", query, start, err == nil || err == sql.ErrNoRows)

	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get product")
	}

	s.cache.mu.Lock()
	s.cache.items[id] = cachedProduct{product: p, expires: time.Now().Add(5 * time.Minute)}
	s.cache.mu.Unlock()

	return &p, nil
}

// ProductBySlug returns a product by its slug and counts the view.
func (s *CatalogService) ProductBySlug(ctx context.Context, productSlug string) (*models.Product, error) {
	start := time.Now()
	query := "SELECT " + productColumns + " FROM products WHERE slug = ?"
	var p models.Product
	err := s.db.GetContext(ctx, &p, query, productSlug)
	s.metrics.RecordDBQuery(ctx, "SELECT", "products", query, start, err == nil || err == sql.ErrNoRows)

	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get product by slug")
	}

	s.metrics.ProductsViewed.Add(ctx, 1, metric.WithAttributes(s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.Int64("product_id", p.ID),
	})...))

	return &p, nil
}

// ListProducts returns in-stock products, optionally filtered by
// category slug and supplier.
func (s *CatalogService) ListProducts(ctx context.Context, categorySlug string, supplierID int64, limit, offset int) ([]models.Product, error) {
	query := "SELECT p.id, p.category_id, p.supplier_id, p.name, p.slug, p.description, p.price, p.weight, p.calories, p.protein, p.fat, p.carbs, p.in_stock FROM products p"
	args := []interface{}{}

	where := " WHERE p.in_stock = TRUE"
	if categorySlug != "" {
		query += " JOIN categories c ON p.category_id = c.id"
		where += " AND c.slug = ?"
		args = append(args, categorySlug)
	}
	if supplierID > 0 {
		where += " AND p.supplier_id = ?"
		args = append(args, supplierID)
	}
	query += where + " ORDER BY p.name LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	start := time.Now()
	var products []models.Product
	err := s.db.SelectContext(ctx, &products, query, args...)
	s.metrics.RecordDBQuery(ctx, "SELECT", "products", query, start, err == nil)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return products, nil
}

// ListCategories returns all categories ordered by name.
func (s *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	start := time.Now()
	query := "SELECT id, name, slug FROM categories ORDER BY name"
	var categories []models.Category
	err := s.db.SelectContext(ctx, &categories, query)
	s.metrics.RecordDBQuery(ctx, "SELECT", "categories", query, start, err == nil)
	if err != nil {
		return nil, errors.Wrap(err, "list categories")
	}
	return categories, nil
}

// ListSuppliers returns active suppliers ordered by name.
func (s *CatalogService) ListSuppliers(ctx context.Context) ([]models.Supplier, error) {
	start := time.Now()
	query := "SELECT id, name, description, address, latitude, longitude, phone, email, website, is_active FROM suppliers WHERE is_active = TRUE ORDER BY name"
	var suppliers []models.Supplier
	err := s.db.SelectContext(ctx, &suppliers, query)
	s.metrics.RecordDBQuery(ctx, "SELECT", "suppliers", query, start, err == nil)
	if err != nil {
		return nil, errors.Wrap(err, "list suppliers")
	}
	return suppliers, nil
}

// SlugExists reports whether any product other than excludeID already
// uses the slug. Pass excludeID 0 when creating a new product.
func (s *CatalogService) SlugExists(ctx context.Context, candidate string, excludeID int64) (bool, error) {
	start := time.Now()
	query := "SELECT EXISTS(SELECT 1 FROM products WHERE slug = ? AND id != ?)"
	var exists bool
	err := s.db.GetContext(ctx, &exists, query, candidate, excludeID)
	s.metrics.RecordDBQuery(ctx, "SELECT", "products", query, start, err == nil)
	if err != nil {
		return false, errors.Wrap(err, "check slug")
	}
	return exists, nil
}

// CreateProduct inserts a product, deriving a unique slug from its name.
func (s *CatalogService) CreateProduct(ctx context.Context, req *models.CreateProductRequest) (*models.Product, error) {
	productSlug, err := s.uniqueProductSlug(ctx, req.Name, 0)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	query := `INSERT INTO products (category_id, supplier_id, name, slug, description, price, weight, calories, protein, fat, carbs, in_stock)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := s.db.ExecContext(ctx, query,
		req.CategoryID, req.SupplierID, req.Name, productSlug, req.Description,
		req.Price, req.Weight, req.Calories, req.Protein, req.Fat, req.Carbs, req.InStock)
	s.metrics.RecordDBQuery(ctx, "INSERT", "products", query, start, err == nil)
	if err != nil {
		return nil, errors.Wrap(err, "insert product")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "get product ID")
	}

	return &models.Product{
		ID:          id,
		CategoryID:  req.CategoryID,
		SupplierID:  req.SupplierID,
		Name:        req.Name,
		Slug:        productSlug,
		Description: req.Description,
		Price:       req.Price,
		Weight:      req.Weight,
		Calories:    req.Calories,
		Protein:     req.Protein,
		Fat:         req.Fat,
		Carbs:       req.Carbs,
		InStock:     req.InStock,
	}, nil
}

// CreateCategory inserts a category with a slug derived from its name.
// Category slugs are not auto-suffixed; a collision is a storage-level
// integrity error.
func (s *CatalogService) CreateCategory(ctx context.Context, req *models.CreateCategoryRequest) (*models.Category, error) {
	categorySlug := slug.ForCategory(req.Name)
	s.metrics.SlugsGenerated.Add(ctx, 1, metric.WithAttributes(s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.String("entity", "category"),
	})...))

	start := time.Now()
	query := "INSERT INTO categories (name, slug) VALUES (?, ?)"
	result, err := s.db.ExecContext(ctx, query, req.Name, categorySlug)
	s.metrics.RecordDBQuery(ctx, "INSERT", "categories", query, start, err == nil)
	if err != nil {
		return nil, errors.Wrap(err, "insert category")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "get category ID")
	}

	return &models.Category{ID: id, Name: req.Name, Slug: categorySlug}, nil
}

// ResyncSlugs regenerates every product slug from its current name and
// returns the number of products updated.
func (s *CatalogService) ResyncSlugs(ctx context.Context) (int, error) {
	start := time.Now()
	query := "SELECT id, name FROM products ORDER BY id"
	var rows []struct {
		ID   int64  `db:"id"`
		Name string `db:"name"`
	}
	err := s.db.SelectContext(ctx, &rows, query)
	s.metrics.RecordDBQuery(ctx, "SELECT", "products", query, start, err == nil)
	if err != nil {
		return 0, errors.Wrap(err, "list products for resync")
	}

	updated := 0
	for _, row := range rows {
		newSlug, err := s.uniqueProductSlug(ctx, row.Name, row.ID)
		if err != nil {
			return updated, err
		}

		start = time.Now()
		updateQuery := "UPDATE products SET slug = ? WHERE id = ?"
		_, err = s.db.ExecContext(ctx, updateQuery, newSlug, row.ID)
		s.metrics.RecordDBQuery(ctx, "UPDATE", "products", updateQuery, start, err == nil)
		if err != nil {
			return updated, errors.Wrapf(err, "update slug for product %d", row.ID)
		}

		logrus.WithFields(logrus.Fields{
			"product_id": row.ID,
			"slug":       newSlug,
		}).Info("product slug resynced")
		updated++
	}

	s.invalidateCache()
	return updated, nil
}

// uniqueProductSlug derives a slug for name, skipping candidates already
// taken by products other than excludeID.
func (s *CatalogService) uniqueProductSlug(ctx context.Context, name string, excludeID int64) (string, error) {
	var checkErr error
	candidate := slug.ForProduct(name, func(c string) bool {
		if checkErr != nil {
			return false
		}
		taken, err := s.SlugExists(ctx, c, excludeID)
		if err != nil {
			checkErr = err
			return false
		}
		return taken
	})
	if checkErr != nil {
		return "", checkErr
	}

	s.metrics.SlugsGenerated.Add(ctx, 1, metric.WithAttributes(s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.String("entity", "product"),
	})...))
	return candidate, nil
}

func (s *CatalogService) invalidateCache() {
	s.cache.mu.Lock()
	s.cache.items = make(map[int64]cachedProduct)
	s.cache.mu.Unlock()
}
