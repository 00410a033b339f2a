// Package handler содержит HTTP-обработчики API интернет-магазина.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/hanaro-shop/internal/checkout"
	"github.com/mmeshcher/hanaro-shop/internal/middleware"
	"github.com/mmeshcher/hanaro-shop/internal/model"
	"github.com/mmeshcher/hanaro-shop/internal/repository"
	"github.com/mmeshcher/hanaro-shop/internal/service"
)

const maxBodyBytes = 1 << 20

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, username, password, nickname string) (int64, error)
	AuthenticateUser(ctx context.Context, username, password string) (*model.User, error)

	ListProducts(ctx context.Context, query string, page model.Page) (model.ProductPage, error)
	GetProduct(ctx context.Context, productID int64) (*model.Product, error)
	CreateProduct(ctx context.Context, p model.Product) (model.Product, error)
	UpdateProduct(ctx context.Context, p model.Product) (model.Product, error)
	AdjustStock(ctx context.Context, productID int64, delta int) (int, error)
	DeleteProduct(ctx context.Context, productID int64) error

	GetCart(ctx context.Context, userID int64) (model.Cart, error)
	AddToCart(ctx context.Context, userID, productID int64, qty int) error
	UpdateCartItem(ctx context.Context, userID, itemID int64, qty int) error
	RemoveCartItem(ctx context.Context, userID, itemID int64) error

	CreateOrder(ctx context.Context, userID int64) (model.OrderCreated, error)
	GetOrdersByUser(ctx context.Context, userID int64, page model.Page) (model.OrderPage, error)
	GetOrderDetail(ctx context.Context, userID, orderID int64) (*model.Order, error)
	CancelOrder(ctx context.Context, userID, orderID int64) error
	GetOrderForAdmin(ctx context.Context, orderID int64) (*model.Order, error)
	SearchOrders(ctx context.Context, q service.OrderSearch, page model.Page) (model.OrderPage, error)

	AggregateFor(ctx context.Context, day time.Time) (model.DailySales, []model.DailyProductSales, error)
	GetDailySales(ctx context.Context, from, to time.Time) ([]model.DailySales, error)
	GetProductSales(ctx context.Context, from, to time.Time) ([]model.DailyProductSales, error)
}

// Handler реализует HTTP-обработчики API магазина.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	validate       *validator.Validate
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		validate:       newValidator(),
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	// Для правил gte/lte денежные суммы сравниваются как числа.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// decodeJSONBody читает тело запроса в dest и проверяет правила validate.
func (h *Handler) decodeJSONBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return false
	}

	if err := h.validate.Struct(dest); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return "validation failed"
	}

	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		var msg string
		switch fe.Tag() {
		case "required":
			msg = "is required"
		case "min", "gte":
			msg = fmt.Sprintf("must be at least %s", fe.Param())
		case "max", "lte":
			msg = fmt.Sprintf("must be at most %s", fe.Param())
		default:
			msg = "is invalid"
		}
		parts = append(parts, fe.Field()+" "+msg)
	}
	return strings.Join(parts, "; ")
}

// handleError переводит ошибку бизнес-логики в HTTP-ответ. Неизвестные ошибки логируются.
func (h *Handler) handleError(w http.ResponseWriter, op string, err error) {
	var stockErr *checkout.StockError

	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, checkout.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, "EMPTY_CART", err.Error())
	case errors.Is(err, service.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, "INVALID_QUANTITY", err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", err.Error())
	case errors.As(err, &stockErr):
		writeError(w, http.StatusConflict, stockCode(stockErr.Kind), stockErr.Error())
	case errors.Is(err, checkout.ErrConcurrentStockConflict):
		writeError(w, http.StatusConflict, "INSUFFICIENT_STOCK", err.Error())
	case errors.Is(err, repository.ErrUserExists):
		writeError(w, http.StatusConflict, "USER_EXISTS", err.Error())
	case errors.Is(err, repository.ErrDuplicateOrderNumber):
		writeError(w, http.StatusConflict, "DUPLICATE_ORDER_NUMBER", "please retry the order")
	case errors.Is(err, repository.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "INVALID_STATUS", err.Error())
	case errors.Is(err, context.Canceled):
		h.logger.Debug(op+" canceled", zap.Error(err))
	default:
		h.logger.Error(op+" error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", http.StatusText(http.StatusInternalServerError))
	}
}

func stockCode(kind error) string {
	switch {
	case errors.Is(kind, checkout.ErrDeletedProduct):
		return "DELETED_PRODUCT"
	case errors.Is(kind, checkout.ErrOutOfStock):
		return "OUT_OF_STOCK"
	default:
		return "INSUFFICIENT_STOCK"
	}
}

func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", http.StatusText(http.StatusUnauthorized))
	}
	return userID, ok
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_ID", fmt.Sprintf("invalid %s", name))
		return 0, false
	}
	return id, true
}

func pageFromQuery(r *http.Request) model.Page {
	q := r.URL.Query()
	number, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))
	return model.Page{Number: number, Size: size}.Normalize()
}

// dateFromQuery разбирает дату YYYY-MM-DD. Пустое значение возвращает nil.
func dateFromQuery(w http.ResponseWriter, r *http.Request, name string) (*time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	d, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_DATE", fmt.Sprintf("%s must be YYYY-MM-DD", name))
		return nil, false
	}
	return &d, true
}

func requiredDate(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	d, ok := dateFromQuery(w, r, name)
	if !ok {
		return time.Time{}, false
	}
	if d == nil {
		writeError(w, http.StatusBadRequest, "INVALID_DATE", fmt.Sprintf("%s is required", name))
		return time.Time{}, false
	}
	return *d, true
}
