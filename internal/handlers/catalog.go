package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/currency"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/models"
)

// ListCategories handles GET /api/v1/catalog/categories
func (h *Handlers) ListCategories(c *gin.Context) {
	categories, err := h.catalog.ListCategories(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// ListSubcategories handles GET /api/v1/catalog/categories/:id/subcategories
func (h *Handlers) ListSubcategories(c *gin.Context) {
	subcategories, err := h.catalog.ListSubcategories(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"subcategories": subcategories})
}

// ListProducts handles GET /api/v1/catalog/products
func (h *Handlers) ListProducts(c *gin.Context) {
	limit, offset, err := parsePagination(c)
	if err != nil {
		handleError(c, err)
		return
	}

	filter := &models.ProductFilter{
		CategoryID:    c.Query("category"),
		SubcategoryID: c.Query("subcategory"),
		Search:        strings.TrimSpace(c.Query("search")),
		Limit:         limit,
		Offset:        offset,
	}

	products, err := h.catalog.ListProducts(c.Request.Context(), filter)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"limit":    limit,
		"offset":   offset,
	})
}

// GetProduct handles GET /api/v1/catalog/products/:id
func (h *Handlers) GetProduct(c *gin.Context) {
	product, err := h.catalog.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

// GetCurrency handles GET /api/v1/currency?country=XX and reports the
// storefront currency a shopper from that country starts in.
func (h *Handlers) GetCurrency(c *gin.Context) {
	country := strings.ToUpper(strings.TrimSpace(c.Query("country")))

	cc := currency.NewContext(h.secondaryRate)
	if err := cc.SetCurrency(string(currency.ForCountry(country))); err != nil {
		handleError(c, err)
		return
	}
	active := cc.Active()

	c.JSON(http.StatusOK, gin.H{
		"country":        country,
		"currency":       active,
		"selection":      selectionName(active),
		"exponent":       active.Exponent(),
		"minimum_charge": active.MinimumCharge(),
		"rate":           cc.Rate().String(),
	})
}

func selectionName(code currency.Code) string {
	if code.IsPrimary() {
		return "PRIMARY"
	}
	return "SECONDARY"
}
