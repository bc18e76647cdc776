package services

import (
	"fmt"
	"strings"

	"github.com/conciergelabs/concierge/pkg/models"
	"github.com/conciergelabs/concierge/pkg/store"
)

// SearchFilter narrows a catalog search. Zero values mean "no filter".
type SearchFilter struct {
	Query    string
	Category string
	Brand    string
	MinPrice float64
	MaxPrice float64
	Limit    int
}

// ProductService answers catalog queries for the product agent.
type ProductService struct {
	store *store.Store
}

// NewProductService creates a new ProductService
func NewProductService(st *store.Store) *ProductService {
	return &ProductService{store: st}
}

// Search returns catalog products matching the filter, in catalog order.
func (s *ProductService) Search(filter SearchFilter) []*models.Product {
	query := strings.ToLower(strings.TrimSpace(filter.Query))
	category := strings.ToLower(strings.TrimSpace(filter.Category))
	brand := strings.ToLower(strings.TrimSpace(filter.Brand))
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var out []*models.Product
	for _, product := range s.store.ListProducts() {
		if query != "" && !matchesQuery(product, query) {
			continue
		}
		if category != "" && strings.ToLower(product.Category) != category {
			continue
		}
		if brand != "" && strings.ToLower(product.Brand) != brand {
			continue
		}
		if filter.MinPrice > 0 && product.Price < filter.MinPrice {
			continue
		}
		if filter.MaxPrice > 0 && product.Price > filter.MaxPrice {
			continue
		}
		out = append(out, product)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// Get returns one product by id.
func (s *ProductService) Get(productID string) (*models.Product, error) {
	product, ok := s.store.GetProduct(productID)
	if !ok {
		return nil, fmt.Errorf("%w: product %s", ErrNotFound, productID)
	}
	return product, nil
}

// matchesQuery checks every query token against the product's name,
// brand, category and tags. All tokens must hit.
func matchesQuery(product *models.Product, query string) bool {
	haystack := strings.ToLower(product.Name + " " + product.Brand + " " + product.Category + " " + strings.Join(product.Tags, " "))
	for _, token := range strings.Fields(query) {
		if !strings.Contains(haystack, token) {
			return false
		}
	}
	return true
}
