package handler

import (
	"net/http"
)

type addCartItemRequest struct {
	ProductID int64 `json:"productId" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"gte=1"`
}

type updateCartItemRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// GetCart возвращает корзину текущего пользователя по актуальным ценам.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	cart, err := h.service.GetCart(r.Context(), userID)
	if err != nil {
		h.handleError(w, "get cart", err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(cart))
}

// AddCartItem добавляет товар в корзину или увеличивает количество существующей позиции.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req addCartItemRequest
	if !h.decodeJSONBody(w, r, &req) {
		return
	}

	if err := h.service.AddToCart(r.Context(), userID, req.ProductID, req.Quantity); err != nil {
		h.handleError(w, "add cart item", err)
		return
	}
	h.respondWithCart(w, r, userID, http.StatusCreated)
}

// UpdateCartItem задаёт количество позиции. Количество 0 и меньше удаляет позицию.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	itemID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req updateCartItemRequest
	if !h.decodeJSONBody(w, r, &req) {
		return
	}

	if err := h.service.UpdateCartItem(r.Context(), userID, itemID, *req.Quantity); err != nil {
		h.handleError(w, "update cart item", err)
		return
	}
	h.respondWithCart(w, r, userID, http.StatusOK)
}

// RemoveCartItem удаляет позицию из корзины.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	itemID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.RemoveCartItem(r.Context(), userID, itemID); err != nil {
		h.handleError(w, "remove cart item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondWithCart(w http.ResponseWriter, r *http.Request, userID int64, status int) {
	cart, err := h.service.GetCart(r.Context(), userID)
	if err != nil {
		h.handleError(w, "get cart", err)
		return
	}
	writeJSON(w, status, toCartResponse(cart))
}
