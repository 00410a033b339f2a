package handler

import (
	"net/http"
	"strings"

	"github.com/mmeshcher/hanaro-shop/internal/model"
	"github.com/mmeshcher/hanaro-shop/internal/service"
)

// CreateOrder оформляет заказ из корзины текущего пользователя.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	created, err := h.service.CreateOrder(r.Context(), userID)
	if err != nil {
		h.handleError(w, "create order", err)
		return
	}

	writeJSON(w, http.StatusCreated, orderCreatedResponse{
		ID:         created.ID,
		OrderNo:    created.Number,
		TotalPrice: money(created.TotalPrice),
	})
}

// GetMyOrders возвращает заказы текущего пользователя, новые первыми.
func (h *Handler) GetMyOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	page, err := h.service.GetOrdersByUser(r.Context(), userID, pageFromQuery(r))
	if err != nil {
		h.handleError(w, "get orders", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderPage(page, false))
}

// GetOrder возвращает заказ текущего пользователя. Чужой заказ не виден.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	order, err := h.service.GetOrderDetail(r.Context(), userID, orderID)
	if err != nil {
		h.handleError(w, "get order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(*order, false))
}

// CancelOrder отменяет незавершённый заказ текущего пользователя.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.CancelOrder(r.Context(), userID, orderID); err != nil {
		h.handleError(w, "cancel order", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SearchOrders ищет заказы для администратора по статусу, номеру, пользователю и датам.
func (h *Handler) SearchOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	search := service.OrderSearch{
		Number:   strings.TrimSpace(q.Get("orderNo")),
		Username: strings.TrimSpace(q.Get("username")),
	}

	if raw := q.Get("status"); raw != "" {
		status := model.OrderStatus(strings.ToUpper(raw))
		if !status.IsValid() {
			writeError(w, http.StatusBadRequest, "INVALID_STATUS", "unknown order status")
			return
		}
		search.Status = &status
	}

	var ok bool
	if search.FromDate, ok = dateFromQuery(w, r, "from"); !ok {
		return
	}
	if search.ToDate, ok = dateFromQuery(w, r, "to"); !ok {
		return
	}

	page, err := h.service.SearchOrders(r.Context(), search, pageFromQuery(r))
	if err != nil {
		h.handleError(w, "search orders", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderPage(page, true))
}

// GetOrderForAdmin возвращает любой заказ по идентификатору.
func (h *Handler) GetOrderForAdmin(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	order, err := h.service.GetOrderForAdmin(r.Context(), orderID)
	if err != nil {
		h.handleError(w, "get order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(*order, true))
}
