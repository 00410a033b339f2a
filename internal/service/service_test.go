package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/hanaro-shop/internal/checkout"
	"github.com/mmeshcher/hanaro-shop/internal/model"
	"github.com/mmeshcher/hanaro-shop/internal/repository"
)

type stubRepo struct {
	createUserID  int64
	createUserErr error
	createdUsers  []model.User

	getUser    *model.User
	getUserErr error

	product    *model.Product
	productErr error

	cart    []model.CartItemView
	cartErr error
	addQty  int

	createOrderErrs []error
	createOrderNums []string
	createOrderNow  []time.Time

	filter model.OrderFilter

	replaceDay   time.Time
	replaceStart time.Time
	replaceEnd   time.Time
	replaceErr   error
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) CreateUser(ctx context.Context, u model.User) (int64, error) {
	s.createdUsers = append(s.createdUsers, u)
	return s.createUserID, s.createUserErr
}

func (s *stubRepo) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.getUser, s.getUserErr
}

func (s *stubRepo) CreateProduct(ctx context.Context, p model.Product) (model.Product, error) {
	return p, nil
}

func (s *stubRepo) UpdateProduct(ctx context.Context, p model.Product) (model.Product, error) {
	return p, nil
}

func (s *stubRepo) AdjustStock(ctx context.Context, productID int64, delta int) (int, error) {
	return delta, nil
}

func (s *stubRepo) SoftDeleteProduct(ctx context.Context, productID int64) error { return nil }

func (s *stubRepo) GetProduct(ctx context.Context, productID int64) (*model.Product, error) {
	return s.product, s.productErr
}

func (s *stubRepo) ListProducts(ctx context.Context, query string, page model.Page) (model.ProductPage, error) {
	return model.ProductPage{Page: page.Normalize()}, nil
}

func (s *stubRepo) AddCartItem(ctx context.Context, userID, productID int64, qty int) error {
	s.addQty = qty
	return nil
}

func (s *stubRepo) UpdateCartItem(ctx context.Context, userID, itemID int64, qty int) error {
	return nil
}

func (s *stubRepo) RemoveCartItem(ctx context.Context, userID, itemID int64) error { return nil }

func (s *stubRepo) ListCart(ctx context.Context, userID int64) ([]model.CartItemView, error) {
	return s.cart, s.cartErr
}

func (s *stubRepo) CreateOrderFromCart(ctx context.Context, userID int64, number string, now time.Time) (model.OrderCreated, error) {
	call := len(s.createOrderNums)
	s.createOrderNums = append(s.createOrderNums, number)
	s.createOrderNow = append(s.createOrderNow, now)
	if call < len(s.createOrderErrs) && s.createOrderErrs[call] != nil {
		return model.OrderCreated{}, s.createOrderErrs[call]
	}
	return model.OrderCreated{ID: 1, Number: number, TotalPrice: decimal.RequireFromString("23.50")}, nil
}

func (s *stubRepo) GetOrderForUser(ctx context.Context, orderID, userID int64) (*model.Order, error) {
	return nil, repository.ErrOrderNotFound
}

func (s *stubRepo) GetOrder(ctx context.Context, orderID int64) (*model.Order, error) {
	return &model.Order{ID: orderID}, nil
}

func (s *stubRepo) ListOrdersByUser(ctx context.Context, userID int64, page model.Page) (model.OrderPage, error) {
	return model.OrderPage{Page: page.Normalize()}, nil
}

func (s *stubRepo) SearchOrders(ctx context.Context, f model.OrderFilter, page model.Page) (model.OrderPage, error) {
	s.filter = f
	return model.OrderPage{Page: page.Normalize()}, nil
}

func (s *stubRepo) CancelOrder(ctx context.Context, orderID, userID int64, now time.Time) error {
	return nil
}

func (s *stubRepo) ReplaceDailySales(ctx context.Context, day, start, end time.Time) (model.DailySales, []model.DailyProductSales, error) {
	s.replaceDay, s.replaceStart, s.replaceEnd = day, start, end
	return model.DailySales{Date: day}, nil, s.replaceErr
}

func (s *stubRepo) DailySalesRange(ctx context.Context, from, to time.Time) ([]model.DailySales, error) {
	return nil, nil
}

func (s *stubRepo) DailyProductSalesRange(ctx context.Context, from, to time.Time) ([]model.DailyProductSales, error) {
	return nil, nil
}

var kst = time.FixedZone("KST", 9*60*60)

func newTestService(repo *stubRepo, now time.Time) *Service {
	svc := NewService(repo, nil, kst, nil)
	svc.now = func() time.Time { return now }
	svc.bcryptCost = bcrypt.MinCost
	return svc
}

func TestRegisterUser_PropagatesDuplicateError(t *testing.T) {
	repo := &stubRepo{createUserErr: repository.ErrUserExists}
	svc := newTestService(repo, time.Now())

	_, err := svc.RegisterUser(context.Background(), "login", "password1", "")
	if !errors.Is(err, repository.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestRegisterUser_HashesPassword(t *testing.T) {
	repo := &stubRepo{createUserID: 7}
	svc := newTestService(repo, time.Now())

	id, err := svc.RegisterUser(context.Background(), "kim", "password1", "")
	if err != nil {
		t.Fatalf("RegisterUser error: %v", err)
	}
	if id != 7 {
		t.Fatalf("id = %d, want 7", id)
	}
	u := repo.createdUsers[0]
	if u.Role != model.RoleUser || u.Nickname != "kim" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte("password1")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}
}

func TestAuthenticateUser(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	repo := &stubRepo{getUser: &model.User{ID: 1, Username: "user", PasswordHash: hash, Role: model.RoleUser}}
	svc := newTestService(repo, time.Now())

	u, err := svc.AuthenticateUser(context.Background(), "user", "correct")
	if err != nil || u.ID != 1 {
		t.Fatalf("expected user 1, got %+v, %v", u, err)
	}

	if _, err := svc.AuthenticateUser(context.Background(), "user", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}

	repo.getUser, repo.getUserErr = nil, repository.ErrUserNotFound
	if _, err := svc.AuthenticateUser(context.Background(), "ghost", "x"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestSeedAdmin(t *testing.T) {
	repo := &stubRepo{createUserErr: repository.ErrUserExists}
	svc := newTestService(repo, time.Now())

	if err := svc.SeedAdmin(context.Background(), "", ""); err != nil {
		t.Fatalf("empty credentials must be skipped, got %v", err)
	}
	if len(repo.createdUsers) != 0 {
		t.Fatalf("no user must be created without credentials")
	}

	if err := svc.SeedAdmin(context.Background(), "admin", "secret"); err != nil {
		t.Fatalf("existing admin must not be an error, got %v", err)
	}
	if repo.createdUsers[0].Role != model.RoleAdmin {
		t.Fatalf("seeded user must be admin, got %s", repo.createdUsers[0].Role)
	}
}

func TestCreateOrder_RetriesOnceOnDuplicateNumber(t *testing.T) {
	repo := &stubRepo{createOrderErrs: []error{repository.ErrDuplicateOrderNumber}}
	now := time.Date(2026, 10, 18, 3, 4, 5, 0, time.UTC)
	svc := newTestService(repo, now)

	created, err := svc.CreateOrder(context.Background(), 1)
	if err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}
	if len(repo.createOrderNums) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(repo.createOrderNums))
	}
	if created.Number != repo.createOrderNums[1] {
		t.Fatalf("result must carry the retried number")
	}
	for _, n := range repo.createOrderNums {
		if !strings.HasPrefix(n, "20261018120405") {
			t.Fatalf("number %s must start with the KST timestamp", n)
		}
	}
	if !repo.createOrderNow[0].Equal(now) {
		t.Fatalf("order time must come from the injected clock")
	}
}

func TestCreateOrder_SecondDuplicateFails(t *testing.T) {
	repo := &stubRepo{createOrderErrs: []error{repository.ErrDuplicateOrderNumber, repository.ErrDuplicateOrderNumber}}
	svc := newTestService(repo, time.Now())

	_, err := svc.CreateOrder(context.Background(), 1)
	if !errors.Is(err, repository.ErrDuplicateOrderNumber) {
		t.Fatalf("expected ErrDuplicateOrderNumber, got %v", err)
	}
	if len(repo.createOrderNums) != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", len(repo.createOrderNums))
	}
}

func TestCreateOrder_DoesNotRetryBusinessErrors(t *testing.T) {
	repo := &stubRepo{createOrderErrs: []error{checkout.ErrEmptyCart}}
	svc := newTestService(repo, time.Now())

	_, err := svc.CreateOrder(context.Background(), 1)
	if !errors.Is(err, checkout.ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
	if len(repo.createOrderNums) != 1 {
		t.Fatalf("expected a single attempt, got %d", len(repo.createOrderNums))
	}
}

func TestFailureReason(t *testing.T) {
	stockErr := &checkout.StockError{Kind: checkout.ErrInsufficientStock, Remaining: 1}
	cases := map[string]error{
		"empty_cart":          checkout.ErrEmptyCart,
		"insufficient_stock":  stockErr,
		"concurrent_conflict": errors.Join(checkout.ErrConcurrentStockConflict, stockErr),
		"not_found":           repository.ErrProductNotFound,
		"internal":            errors.New("boom"),
	}
	for want, err := range cases {
		if got := failureReason(err); got != want {
			t.Fatalf("failureReason(%v) = %s, want %s", err, got, want)
		}
	}
}

func TestAddToCart_RejectsNonPositiveQuantity(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(repo, time.Now())

	if err := svc.AddToCart(context.Background(), 1, 2, 0); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	if err := svc.AddToCart(context.Background(), 1, 2, 3); err != nil {
		t.Fatalf("AddToCart error: %v", err)
	}
	if repo.addQty != 3 {
		t.Fatalf("qty = %d, want 3", repo.addQty)
	}
}

func TestGetCart_SumsLineTotals(t *testing.T) {
	repo := &stubRepo{cart: []model.CartItemView{
		{ID: 1, LineTotal: decimal.RequireFromString("20.00")},
		{ID: 2, LineTotal: decimal.RequireFromString("3.50")},
	}}
	svc := newTestService(repo, time.Now())

	cart, err := svc.GetCart(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetCart error: %v", err)
	}
	if cart.Total.StringFixed(2) != "23.50" {
		t.Fatalf("total = %s, want 23.50", cart.Total.StringFixed(2))
	}
}

func TestGetProduct_HidesDeleted(t *testing.T) {
	repo := &stubRepo{product: &model.Product{ID: 3, Name: "Old", Deleted: true}}
	svc := newTestService(repo, time.Now())

	if _, err := svc.GetProduct(context.Background(), 3); !errors.Is(err, checkout.ErrDeletedProduct) {
		t.Fatalf("expected ErrDeletedProduct, got %v", err)
	}
}

func TestSearchOrders_DateBoundsUseServiceZone(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(repo, time.Now())

	day := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	status := model.OrderStatusShipping
	_, err := svc.SearchOrders(context.Background(), OrderSearch{
		Status:   &status,
		Number:   "2026",
		FromDate: &day,
		ToDate:   &day,
	}, model.Page{})
	if err != nil {
		t.Fatalf("SearchOrders error: %v", err)
	}

	f := repo.filter
	if f.CreatedFrom == nil || !f.CreatedFrom.Equal(time.Date(2026, 10, 16, 15, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected lower bound: %v", f.CreatedFrom)
	}
	if f.CreatedBefore == nil || !f.CreatedBefore.Equal(time.Date(2026, 10, 17, 15, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected upper bound: %v", f.CreatedBefore)
	}
	if f.NumberLike != "2026" || *f.Status != model.OrderStatusShipping {
		t.Fatalf("filter not passed through: %+v", f)
	}
}

func TestSearchOrders_EmptyRange(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(repo, time.Now())

	from := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	page, err := svc.SearchOrders(context.Background(), OrderSearch{FromDate: &from, ToDate: &to}, model.Page{})
	if err != nil {
		t.Fatalf("SearchOrders error: %v", err)
	}
	if len(page.Orders) != 0 || repo.filter.CreatedFrom != nil {
		t.Fatalf("inverted range must short-circuit, got %+v", page)
	}
}

func TestAggregateYesterday_UsesZoneDay(t *testing.T) {
	repo := &stubRepo{}
	// 2026-10-17 16:00 UTC соответствует 18 октября 01:00 KST, вчера было 17 октября
	svc := newTestService(repo, time.Date(2026, 10, 17, 16, 0, 0, 0, time.UTC))

	if err := svc.AggregateYesterday(context.Background()); err != nil {
		t.Fatalf("AggregateYesterday error: %v", err)
	}
	if !repo.replaceDay.Equal(time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("day = %v, want 2026-10-17", repo.replaceDay)
	}
	if !repo.replaceStart.Equal(time.Date(2026, 10, 16, 15, 0, 0, 0, time.UTC)) {
		t.Fatalf("start = %v", repo.replaceStart)
	}
	if repo.replaceEnd.Sub(repo.replaceStart) != 24*time.Hour {
		t.Fatalf("window must be one day, got %v", repo.replaceEnd.Sub(repo.replaceStart))
	}
}

func TestAggregateFor_WrapsError(t *testing.T) {
	repo := &stubRepo{replaceErr: errors.New("db down")}
	svc := newTestService(repo, time.Now())

	_, _, err := svc.AggregateFor(context.Background(), time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC))
	if err == nil || !strings.Contains(err.Error(), "2026-10-17") {
		t.Fatalf("expected wrapped error with date, got %v", err)
	}
}
