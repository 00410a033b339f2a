package handler

import (
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/hanaro-shop/internal/model"
)

type createProductRequest struct {
	Name          string          `json:"name" validate:"required,max=200"`
	Description   string          `json:"description" validate:"max=2000"`
	Price         decimal.Decimal `json:"price" validate:"gte=0"`
	StockQuantity int             `json:"stockQuantity" validate:"gte=0"`
}

type updateProductRequest struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=2000"`
	Price       decimal.Decimal `json:"price" validate:"gte=0"`
}

type adjustStockRequest struct {
	Delta int `json:"delta" validate:"ne=0"`
}

type stockResponse struct {
	ProductID     int64 `json:"productId"`
	StockQuantity int   `json:"stockQuantity"`
}

// ListProducts возвращает страницу товаров каталога с поиском по названию.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.ListProducts(r.Context(), r.URL.Query().Get("q"), pageFromQuery(r))
	if err != nil {
		h.handleError(w, "list products", err)
		return
	}

	products := make([]productResponse, 0, len(page.Products))
	for _, p := range page.Products {
		products = append(products, toProductResponse(p))
	}
	writeJSON(w, http.StatusOK, newPageResponse(products, page.Total, page.Page))
}

// GetProduct возвращает товар по идентификатору.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	p, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		h.handleError(w, "get product", err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(*p))
}

// CreateProduct добавляет товар в каталог.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if !h.decodeJSONBody(w, r, &req) {
		return
	}

	p, err := h.service.CreateProduct(r.Context(), model.Product{
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
	})
	if err != nil {
		h.handleError(w, "create product", err)
		return
	}

	h.logger.Info("product created", zap.Int64("product_id", p.ID))
	writeJSON(w, http.StatusCreated, toProductResponse(p))
}

// UpdateProduct меняет название, описание и цену товара. Остаток меняется отдельно.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req updateProductRequest
	if !h.decodeJSONBody(w, r, &req) {
		return
	}

	p, err := h.service.UpdateProduct(r.Context(), model.Product{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
	})
	if err != nil {
		h.handleError(w, "update product", err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

// AdjustStock изменяет остаток товара на delta.
func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req adjustStockRequest
	if !h.decodeJSONBody(w, r, &req) {
		return
	}

	stock, err := h.service.AdjustStock(r.Context(), id, req.Delta)
	if err != nil {
		h.handleError(w, "adjust stock", err)
		return
	}
	writeJSON(w, http.StatusOK, stockResponse{ProductID: id, StockQuantity: stock})
}

// DeleteProduct помечает товар удалённым.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		h.handleError(w, "delete product", err)
		return
	}

	h.logger.Info("product deleted", zap.Int64("product_id", id))
	w.WriteHeader(http.StatusNoContent)
}
