package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/hanaro-shop/internal/model"
)

// Денежные суммы отдаются строкой с двумя знаками после запятой.
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

type pageResponse[T any] struct {
	Content       []T   `json:"content"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int64 `json:"totalPages"`
}

func newPageResponse[T any](content []T, total int64, page model.Page) pageResponse[T] {
	if content == nil {
		content = []T{}
	}
	var pages int64
	if page.Size > 0 {
		pages = (total + int64(page.Size) - 1) / int64(page.Size)
	}
	return pageResponse[T]{
		Content:       content,
		Page:          page.Number,
		Size:          page.Size,
		TotalElements: total,
		TotalPages:    pages,
	}
}

type productResponse struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Price         string    `json:"price"`
	StockQuantity int       `json:"stockQuantity"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func toProductResponse(p model.Product) productResponse {
	return productResponse{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Price:         money(p.Price),
		StockQuantity: p.StockQuantity,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

type cartItemResponse struct {
	ID          int64  `json:"id"`
	ProductID   int64  `json:"productId"`
	ProductName string `json:"productName"`
	Price       string `json:"price"`
	Quantity    int    `json:"quantity"`
	LineTotal   string `json:"lineTotal"`
}

type cartResponse struct {
	Items []cartItemResponse `json:"items"`
	Total string             `json:"total"`
}

func toCartResponse(c model.Cart) cartResponse {
	items := make([]cartItemResponse, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, cartItemResponse{
			ID:          it.ID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Price:       money(it.Price),
			Quantity:    it.Quantity,
			LineTotal:   money(it.LineTotal),
		})
	}
	return cartResponse{Items: items, Total: money(c.Total)}
}

type orderItemResponse struct {
	ProductID   int64  `json:"productId"`
	ProductName string `json:"productName"`
	UnitPrice   string `json:"unitPrice"`
	Quantity    int    `json:"quantity"`
	LineTotal   string `json:"lineTotal"`
}

type orderResponse struct {
	ID              int64               `json:"id"`
	OrderNo         string              `json:"orderNo"`
	UserID          int64               `json:"userId,omitempty"`
	Username        string              `json:"username,omitempty"`
	Status          model.OrderStatus   `json:"status"`
	TotalPrice      string              `json:"totalPrice"`
	CreatedAt       time.Time           `json:"createdAt"`
	PaidAt          time.Time           `json:"paidAt"`
	StatusUpdatedAt time.Time           `json:"statusUpdatedAt"`
	Items           []orderItemResponse `json:"items"`
}

// toOrderResponse собирает ответ по заказу. Владелец заказа показывается только администратору.
func toOrderResponse(o model.Order, withOwner bool) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResponse{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			UnitPrice:   money(it.UnitPrice),
			Quantity:    it.Quantity,
			LineTotal:   money(it.LineTotal()),
		})
	}

	resp := orderResponse{
		ID:              o.ID,
		OrderNo:         o.Number,
		Status:          o.Status,
		TotalPrice:      money(o.TotalPrice),
		CreatedAt:       o.CreatedAt,
		PaidAt:          o.PaidAt,
		StatusUpdatedAt: o.StatusUpdatedAt,
		Items:           items,
	}
	if withOwner {
		resp.UserID = o.UserID
		resp.Username = o.Username
	}
	return resp
}

func toOrderPage(p model.OrderPage, withOwner bool) pageResponse[orderResponse] {
	orders := make([]orderResponse, 0, len(p.Orders))
	for _, o := range p.Orders {
		orders = append(orders, toOrderResponse(o, withOwner))
	}
	return newPageResponse(orders, p.Total, p.Page)
}

type orderCreatedResponse struct {
	ID         int64  `json:"id"`
	OrderNo    string `json:"orderNo"`
	TotalPrice string `json:"totalPrice"`
}

type dailySalesResponse struct {
	Date        string `json:"date"`
	TotalOrders int    `json:"totalOrders"`
	TotalItems  int    `json:"totalItems"`
	TotalAmount string `json:"totalAmount"`
}

func toDailySalesResponse(d model.DailySales) dailySalesResponse {
	return dailySalesResponse{
		Date:        d.Date.Format(time.DateOnly),
		TotalOrders: d.TotalOrders,
		TotalItems:  d.TotalItems,
		TotalAmount: money(d.TotalAmount),
	}
}

type productSalesResponse struct {
	Date      string `json:"date"`
	ProductID int64  `json:"productId"`
	Quantity  int    `json:"quantity"`
	Amount    string `json:"amount"`
}

func toProductSalesResponse(rows []model.DailyProductSales) []productSalesResponse {
	resp := make([]productSalesResponse, 0, len(rows))
	for _, r := range rows {
		resp = append(resp, productSalesResponse{
			Date:      r.Date.Format(time.DateOnly),
			ProductID: r.ProductID,
			Quantity:  r.Quantity,
			Amount:    money(r.Amount),
		})
	}
	return resp
}

type aggregateResponse struct {
	Daily    dailySalesResponse     `json:"daily"`
	Products []productSalesResponse `json:"products"`
}
