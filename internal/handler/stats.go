package handler

import (
	"net/http"
	"time"
)

func dateRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	from, ok := requiredDate(w, r, "from")
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	to, ok := requiredDate(w, r, "to")
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "INVALID_DATE", "to must not be before from")
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

// GetDailySales возвращает дневную сводку продаж за период включительно.
func (h *Handler) GetDailySales(w http.ResponseWriter, r *http.Request) {
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}

	rows, err := h.service.GetDailySales(r.Context(), from, to)
	if err != nil {
		h.handleError(w, "get daily sales", err)
		return
	}

	resp := make([]dailySalesResponse, 0, len(rows))
	for _, d := range rows {
		resp = append(resp, toDailySalesResponse(d))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetProductSales возвращает продажи по товарам за период включительно.
func (h *Handler) GetProductSales(w http.ResponseWriter, r *http.Request) {
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}

	rows, err := h.service.GetProductSales(r.Context(), from, to)
	if err != nil {
		h.handleError(w, "get product sales", err)
		return
	}
	writeJSON(w, http.StatusOK, toProductSalesResponse(rows))
}

// AggregateSales пересчитывает продажи за указанную дату. Повторный вызов даёт тот же результат.
func (h *Handler) AggregateSales(w http.ResponseWriter, r *http.Request) {
	day, ok := requiredDate(w, r, "date")
	if !ok {
		return
	}

	daily, products, err := h.service.AggregateFor(r.Context(), day)
	if err != nil {
		h.handleError(w, "aggregate sales", err)
		return
	}

	writeJSON(w, http.StatusOK, aggregateResponse{
		Daily:    toDailySalesResponse(daily),
		Products: toProductSalesResponse(products),
	})
}
