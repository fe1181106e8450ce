package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iurnickita/bookstore/internal/model"
	"github.com/iurnickita/bookstore/internal/service/config"
	"github.com/iurnickita/bookstore/internal/service/kakaopay"
	kakaopayConfig "github.com/iurnickita/bookstore/internal/service/kakaopay/config"
	"github.com/iurnickita/bookstore/internal/store"
)

// fakeStore повторяет семантику store в памяти
type fakeStore struct {
	products map[string]model.Product
	orders   map[model.OrderKey]model.Order
	lines    map[model.OrderKey][]model.OrderLine
	payments []model.Payment
	stock    map[string][]model.StockEntry
	cartRows map[string]map[string]int

	cartDeleteErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products: make(map[string]model.Product),
		orders:   make(map[model.OrderKey]model.Order),
		lines:    make(map[model.OrderKey][]model.OrderLine),
		stock:    make(map[string][]model.StockEntry),
		cartRows: make(map[string]map[string]int),
	}
}

func (f *fakeStore) AuthRegister(ctx context.Context, login string, passwordHash string) (string, error) {
	return "1", nil
}

func (f *fakeStore) AuthLogin(ctx context.Context, login string) (string, string, error) {
	return "1", "", nil
}

func (f *fakeStore) ProductGet(ctx context.Context, isbn string) (model.Product, error) {
	product, ok := f.products[isbn]
	if !ok {
		return model.Product{}, store.ErrNoRows
	}
	return product, nil
}

func (f *fakeStore) ProductPost(ctx context.Context, product model.Product) error {
	f.products[product.Isbn] = product
	return nil
}

func (f *fakeStore) OrderCreate(ctx context.Context, order model.Order, lines []model.OrderLine) error {
	if _, ok := f.orders[order.Key]; ok {
		return store.ErrAlreadyExists
	}
	f.orders[order.Key] = order
	f.lines[order.Key] = lines
	return nil
}

func (f *fakeStore) OrderGet(ctx context.Context, key model.OrderKey) (model.Order, error) {
	order, ok := f.orders[key]
	if !ok {
		return model.Order{}, store.ErrNoRows
	}
	return order, nil
}

func (f *fakeStore) OrderGetAll(ctx context.Context, account string) ([]model.Order, error) {
	var orders []model.Order
	for key, order := range f.orders {
		if key.Account == account {
			orders = append(orders, order)
		}
	}
	return orders, nil
}

func (f *fakeStore) OrderLinesGet(ctx context.Context, key model.OrderKey) ([]model.OrderLine, error) {
	return f.lines[key], nil
}

func (f *fakeStore) OrderSetStatus(ctx context.Context, key model.OrderKey, from string, to string) error {
	order, ok := f.orders[key]
	if !ok || order.Data.Status != from {
		return store.ErrStatusConflict
	}
	order.Data.Status = to
	order.Data.UpdateDate = time.Now()
	f.orders[key] = order
	return nil
}

func (f *fakeStore) OrderFail(ctx context.Context, key model.OrderKey) error {
	order, ok := f.orders[key]
	if !ok || order.Data.Status != model.OrderStatusRequested {
		return store.ErrStatusConflict
	}
	order.Data.Status = model.OrderStatusFailed
	f.orders[key] = order
	f.failAttempts(key)
	return nil
}

func (f *fakeStore) OrderPrepare(ctx context.Context, key model.OrderKey) error {
	order, ok := f.orders[key]
	if !ok {
		return store.ErrNoRows
	}
	if !model.OrderCanTransition(order.Data.Status, model.OrderStatusPreparing) {
		return store.ErrStatusConflict
	}
	// сначала проверка всех позиций, потом запись: все или ничего
	for _, line := range f.lines[key] {
		current, _ := f.StockCurrent(ctx, line.Key.Isbn)
		if current < line.Data.Quantity {
			return store.ErrInsufficientStock
		}
	}
	for _, line := range f.lines[key] {
		current, _ := f.StockCurrent(ctx, line.Key.Isbn)
		f.stock[line.Key.Isbn] = append(f.stock[line.Key.Isbn], model.StockEntry{
			Isbn:      line.Key.Isbn,
			InOutType: model.StockOutbound,
			Quantity:  line.Data.Quantity,
			Before:    current,
			After:     current - line.Data.Quantity,
		})
	}
	order.Data.Status = model.OrderStatusPreparing
	f.orders[key] = order
	return nil
}

func (f *fakeStore) PaymentAttempt(ctx context.Context, payment model.Payment) error {
	for _, p := range f.payments {
		if p.Key == payment.Key {
			return store.ErrAlreadyExists
		}
	}
	f.failAttempts(model.OrderKey{OrderID: payment.Key.OrderID, Account: payment.Key.Account})
	f.payments = append(f.payments, payment)
	return nil
}

func (f *fakeStore) PaymentsGet(ctx context.Context, key model.OrderKey) ([]model.Payment, error) {
	var payments []model.Payment
	for _, p := range f.payments {
		if p.Key.OrderID == key.OrderID && p.Key.Account == key.Account {
			payments = append(payments, p)
		}
	}
	return payments, nil
}

func (f *fakeStore) PaymentComplete(ctx context.Context, key model.OrderKey) error {
	order, ok := f.orders[key]
	if !ok {
		return store.ErrNoRows
	}
	if order.Data.Status == model.OrderStatusCompleted {
		return nil
	}
	if !model.OrderCanTransition(order.Data.Status, model.OrderStatusCompleted) {
		return store.ErrStatusConflict
	}
	completed := 0
	for i, p := range f.payments {
		if p.Key.OrderID == key.OrderID && p.Key.Account == key.Account &&
			p.Data.Status == model.PaymentStatusAttempt {
			f.payments[i].Data.Status = model.PaymentStatusCompleted
			completed++
		}
	}
	if completed == 0 {
		return store.ErrNoPaymentAttempt
	}
	order.Data.Status = model.OrderStatusCompleted
	f.orders[key] = order
	return nil
}

func (f *fakeStore) PaymentFail(ctx context.Context, key model.OrderKey) error {
	f.failAttempts(key)
	return nil
}

func (f *fakeStore) failAttempts(key model.OrderKey) {
	for i, p := range f.payments {
		if p.Key.OrderID == key.OrderID && p.Key.Account == key.Account &&
			p.Data.Status == model.PaymentStatusAttempt {
			f.payments[i].Data.Status = model.PaymentStatusFailed
		}
	}
}

func (f *fakeStore) StockCurrent(ctx context.Context, isbn string) (int, error) {
	entries := f.stock[isbn]
	if len(entries) == 0 {
		return 0, nil
	}
	return entries[len(entries)-1].After, nil
}

func (f *fakeStore) StockInbound(ctx context.Context, isbn string, quantity int) error {
	current, _ := f.StockCurrent(ctx, isbn)
	f.stock[isbn] = append(f.stock[isbn], model.StockEntry{
		Isbn:      isbn,
		InOutType: model.StockInbound,
		Quantity:  quantity,
		Before:    current,
		After:     current + quantity,
	})
	return nil
}

func (f *fakeStore) CartGet(ctx context.Context, account string) ([]model.CartLine, error) {
	var lines []model.CartLine
	for isbn, quantity := range f.cartRows[account] {
		lines = append(lines, model.CartLine{Account: account, Isbn: isbn, Quantity: quantity})
	}
	return lines, nil
}

func (f *fakeStore) CartDelete(ctx context.Context, account string, isbn string) error {
	if f.cartDeleteErr != nil {
		return f.cartDeleteErr
	}
	delete(f.cartRows[account], isbn)
	return nil
}

const (
	testAccount = "100001"
	isbnA       = "9780000000001"
	isbnB       = "9780000000002"
)

func newTestService(t *testing.T, cfg config.Config) (Service, *fakeStore) {
	t.Helper()

	fake := newFakeStore()
	fake.products[isbnA] = model.Product{Isbn: isbnA, Name: "Book A", Price: 8000}
	fake.products[isbnB] = model.Product{Isbn: isbnB, Name: "Book B", Price: 5000}

	service, err := NewService(cfg, fake, zap.NewNop())
	require.NoError(t, err)

	return service, fake
}

// Заказ из примера: A x2 по 8000, B x1 по 5000 -> 21000, доставка бесплатно
func createTestOrder(t *testing.T, service Service) model.Order {
	t.Helper()

	order, err := service.CreateOrder(context.Background(), testAccount, "O1",
		[]LineItem{
			{Isbn: isbnA, Quantity: 2, UnitPrice: 8000, LineTotal: 16000},
			{Isbn: isbnB, Quantity: 1, UnitPrice: 5000, LineTotal: 5000},
		},
		time.Now())
	require.NoError(t, err)
	return order
}

func attempt(t *testing.T, service Service, paymentID string, method string) model.Payment {
	t.Helper()

	payment, err := service.PaymentAttempt(context.Background(),
		model.PaymentKey{PaymentID: paymentID, OrderID: "O1", Account: testAccount},
		method,
		time.Now())
	require.NoError(t, err)
	return payment
}

func TestCreateOrderTotals(t *testing.T) {
	service, fake := newTestService(t, config.Config{})

	order := createTestOrder(t, service)
	require.Equal(t, 21000, order.Data.TotalPaid)
	require.Equal(t, 2, order.Data.TotalCategory)
	require.Equal(t, 3, order.Data.TotalQuantity)
	require.Equal(t, model.OrderStatusRequested, order.Data.Status)

	stored := fake.orders[order.Key]
	require.Equal(t, order.Data.TotalPaid, stored.Data.TotalPaid)
	require.Len(t, fake.lines[order.Key], 2)
}

func TestCreateOrderShippingFee(t *testing.T) {
	service, _ := newTestService(t, config.Config{})

	order, err := service.CreateOrder(context.Background(), testAccount, "O2",
		[]LineItem{{Isbn: isbnB, Quantity: 1, UnitPrice: 5000, LineTotal: 5000}},
		time.Now())
	require.NoError(t, err)
	require.Equal(t, 5000+model.ShippingFlatFee, order.Data.TotalPaid)
}

func TestCreateOrderPriceMismatch(t *testing.T) {
	service, fake := newTestService(t, config.Config{})

	_, err := service.CreateOrder(context.Background(), testAccount, "O1",
		[]LineItem{
			{Isbn: isbnA, Quantity: 2, UnitPrice: 1, LineTotal: 2},
			{Isbn: isbnB, Quantity: 1, UnitPrice: 5000, LineTotal: 5000},
		},
		time.Now())
	require.ErrorIs(t, err, ErrPriceMismatch)

	// ничего не записано
	require.Empty(t, fake.orders)
	require.Empty(t, fake.lines)
}

func TestCreateOrderUnknownProduct(t *testing.T) {
	service, fake := newTestService(t, config.Config{})

	_, err := service.CreateOrder(context.Background(), testAccount, "O1",
		[]LineItem{{Isbn: "nope", Quantity: 1, UnitPrice: 100, LineTotal: 100}},
		time.Now())
	require.ErrorIs(t, err, ErrUnknownProduct)
	require.Empty(t, fake.orders)
}

func TestCreateOrderDuplicate(t *testing.T) {
	service, _ := newTestService(t, config.Config{})

	createTestOrder(t, service)
	_, err := service.CreateOrder(context.Background(), testAccount, "O1",
		[]LineItem{{Isbn: isbnB, Quantity: 1, UnitPrice: 5000, LineTotal: 5000}},
		time.Now())
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func TestPaymentAttemptSwap(t *testing.T) {
	service, fake := newTestService(t, config.Config{})
	createTestOrder(t, service)

	p1 := attempt(t, service, uuid.NewString(), model.PaymentMethodKakaoPay)
	p2 := attempt(t, service, uuid.NewString(), model.PaymentMethodBankTransfer)

	// ровно одна живая попытка
	attempts := 0
	for _, p := range fake.payments {
		switch p.Key.PaymentID {
		case p1.Key.PaymentID:
			require.Equal(t, model.PaymentStatusFailed, p.Data.Status)
		case p2.Key.PaymentID:
			require.Equal(t, model.PaymentStatusAttempt, p.Data.Status)
		}
		if p.Data.Status == model.PaymentStatusAttempt {
			attempts++
		}
	}
	require.Equal(t, 1, attempts)
}

func TestPaymentAttemptValidation(t *testing.T) {
	service, _ := newTestService(t, config.Config{})
	createTestOrder(t, service)

	_, err := service.PaymentAttempt(context.Background(),
		model.PaymentKey{PaymentID: "not-a-uuid", OrderID: "O1", Account: testAccount},
		model.PaymentMethodKakaoPay, time.Now())
	require.ErrorIs(t, err, ErrPaymentIDIncorrect)

	_, err = service.PaymentAttempt(context.Background(),
		model.PaymentKey{PaymentID: uuid.NewString(), OrderID: "O1", Account: testAccount},
		"XX", time.Now())
	require.ErrorIs(t, err, ErrUnknownMethod)

	_, err = service.PaymentAttempt(context.Background(),
		model.PaymentKey{PaymentID: uuid.NewString(), OrderID: "missing", Account: testAccount},
		model.PaymentMethodKakaoPay, time.Now())
	require.ErrorIs(t, err, ErrOrderNotFound)

	_, err = service.PaymentAttempt(context.Background(),
		model.PaymentKey{PaymentID: uuid.NewString(), OrderID: "O1", Account: testAccount},
		model.PaymentMethodKakaoPay, time.Time{})
	require.ErrorIs(t, err, ErrInsufficientData)
}

func TestPaymentComplete(t *testing.T) {
	service, fake := newTestService(t, config.Config{})
	order := createTestOrder(t, service)
	fake.cartRows[testAccount] = map[string]int{isbnA: 2, isbnB: 1, "other": 1}

	p2 := attempt(t, service, uuid.NewString(), model.PaymentMethodKakaoPay)

	err := service.PaymentComplete(context.Background(), order.Key)
	require.NoError(t, err)

	require.Equal(t, model.OrderStatusCompleted, fake.orders[order.Key].Data.Status)
	for _, p := range fake.payments {
		if p.Key.PaymentID == p2.Key.PaymentID {
			require.Equal(t, model.PaymentStatusCompleted, p.Data.Status)
		}
	}

	// заказанное удалено из корзины, остальное осталось
	require.NotContains(t, fake.cartRows[testAccount], isbnA)
	require.NotContains(t, fake.cartRows[testAccount], isbnB)
	require.Contains(t, fake.cartRows[testAccount], "other")
}

func TestPaymentCompleteIdempotent(t *testing.T) {
	service, fake := newTestService(t, config.Config{})
	order := createTestOrder(t, service)
	attempt(t, service, uuid.NewString(), model.PaymentMethodKakaoPay)

	require.NoError(t, service.PaymentComplete(context.Background(), order.Key))
	before := append([]model.Payment(nil), fake.payments...)

	// повторный вызов - no-op без ошибки
	require.NoError(t, service.PaymentComplete(context.Background(), order.Key))
	require.Equal(t, before, fake.payments)
	require.Equal(t, model.OrderStatusCompleted, fake.orders[order.Key].Data.Status)
}

func TestPaymentCompleteNoAttempt(t *testing.T) {
	service, _ := newTestService(t, config.Config{})
	order := createTestOrder(t, service)

	err := service.PaymentComplete(context.Background(), order.Key)
	require.ErrorIs(t, err, ErrNoPaymentAttempt)
}

func TestPaymentCompleteCartCleanupBestEffort(t *testing.T) {
	service, fake := newTestService(t, config.Config{})
	order := createTestOrder(t, service)
	attempt(t, service, uuid.NewString(), model.PaymentMethodKakaoPay)
	fake.cartDeleteErr = errors.New("cart is down")

	// ошибка корзины не откатывает оплату
	require.NoError(t, service.PaymentComplete(context.Background(), order.Key))
	require.Equal(t, model.OrderStatusCompleted, fake.orders[order.Key].Data.Status)
}

func TestPaymentFailKeepsOrder(t *testing.T) {
	service, fake := newTestService(t, config.Config{})
	order := createTestOrder(t, service)
	p1 := attempt(t, service, uuid.NewString(), model.PaymentMethodKakaoPay)

	require.NoError(t, service.PaymentFail(context.Background(), order.Key))

	for _, p := range fake.payments {
		if p.Key.PaymentID == p1.Key.PaymentID {
			require.Equal(t, model.PaymentStatusFailed, p.Data.Status)
		}
	}
	// заказ остается REQUESTED: можно оплатить другим способом
	require.Equal(t, model.OrderStatusRequested, fake.orders[order.Key].Data.Status)
}

func TestCancelOrder(t *testing.T) {
	service, fake := newTestService(t, config.Config{})
	order := createTestOrder(t, service)
	p1 := attempt(t, service, uuid.NewString(), model.PaymentMethodKakaoPay)

	require.NoError(t, service.CancelOrder(context.Background(), order.Key))

	require.Equal(t, model.OrderStatusFailed, fake.orders[order.Key].Data.Status)
	for _, p := range fake.payments {
		if p.Key.PaymentID == p1.Key.PaymentID {
			require.Equal(t, model.PaymentStatusFailed, p.Data.Status)
		}
	}
}

func TestCancelCompletedOrder(t *testing.T) {
	service, fake := newTestService(t, config.Config{})
	order := createTestOrder(t, service)

	// из REQUESTED отмена запрещена
	err := service.CancelCompletedOrder(context.Background(), order.Key)
	require.ErrorIs(t, err, ErrNotCancellable)

	attempt(t, service, uuid.NewString(), model.PaymentMethodKakaoPay)
	require.NoError(t, service.PaymentComplete(context.Background(), order.Key))

	require.NoError(t, service.CancelCompletedOrder(context.Background(), order.Key))
	require.Equal(t, model.OrderStatusCancelled, fake.orders[order.Key].Data.Status)

	// из конечного статуса тоже запрещена
	err = service.CancelCompletedOrder(context.Background(), order.Key)
	require.ErrorIs(t, err, ErrNotCancellable)
}

func TestUpdateOrderStatusValidation(t *testing.T) {
	service, _ := newTestService(t, config.Config{})
	order := createTestOrder(t, service)

	err := service.UpdateOrderStatus(context.Background(), order.Key, "NOT_A_STATUS")
	require.ErrorIs(t, err, ErrInvalidStatus)

	err = service.UpdateOrderStatus(context.Background(), order.Key, model.OrderStatusShipping)
	require.ErrorIs(t, err, ErrIllegalTransition)

	err = service.UpdateOrderStatus(context.Background(),
		model.OrderKey{OrderID: "missing", Account: testAccount}, model.OrderStatusCompleted)
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestUpdateOrderStatusFailedClosesAttempts(t *testing.T) {
	service, fake := newTestService(t, config.Config{})
	order := createTestOrder(t, service)
	p1 := attempt(t, service, uuid.NewString(), model.PaymentMethodKakaoPay)

	// сторонний завершенный платеж не должен пострадать
	foreign := model.Payment{
		Key:  model.PaymentKey{PaymentID: uuid.NewString(), OrderID: "O9", Account: testAccount},
		Data: model.PaymentData{Status: model.PaymentStatusCompleted},
	}
	fake.payments = append(fake.payments, foreign)

	require.NoError(t, service.UpdateOrderStatus(context.Background(), order.Key, model.OrderStatusFailed))

	for _, p := range fake.payments {
		switch p.Key.PaymentID {
		case p1.Key.PaymentID:
			require.Equal(t, model.PaymentStatusFailed, p.Data.Status)
		case foreign.Key.PaymentID:
			require.Equal(t, model.PaymentStatusCompleted, p.Data.Status)
		}
	}
}

func TestPreparingInsufficientStock(t *testing.T) {
	service, fake := newTestService(t, config.Config{})
	order := createTestOrder(t, service)
	attempt(t, service, uuid.NewString(), model.PaymentMethodKakaoPay)
	require.NoError(t, service.PaymentComplete(context.Background(), order.Key))

	// на складе только A, позиций B не хватает
	_, err := service.StockInbound(context.Background(), isbnA, 10)
	require.NoError(t, err)

	err = service.UpdateOrderStatus(context.Background(), order.Key, model.OrderStatusPreparing)
	require.ErrorIs(t, err, ErrInsufficientStock)

	// ни одной записи о списании, статус не изменился
	require.Equal(t, model.OrderStatusCompleted, fake.orders[order.Key].Data.Status)
	for _, entries := range fake.stock {
		for _, entry := range entries {
			require.NotEqual(t, model.StockOutbound, entry.InOutType)
		}
	}
}

func TestPreparingWritesOutbound(t *testing.T) {
	service, fake := newTestService(t, config.Config{})
	order := createTestOrder(t, service)
	attempt(t, service, uuid.NewString(), model.PaymentMethodKakaoPay)
	require.NoError(t, service.PaymentComplete(context.Background(), order.Key))

	_, err := service.StockInbound(context.Background(), isbnA, 10)
	require.NoError(t, err)
	_, err = service.StockInbound(context.Background(), isbnB, 5)
	require.NoError(t, err)

	require.NoError(t, service.UpdateOrderStatus(context.Background(), order.Key, model.OrderStatusPreparing))
	require.Equal(t, model.OrderStatusPreparing, fake.orders[order.Key].Data.Status)

	entriesA := fake.stock[isbnA]
	require.Len(t, entriesA, 2)
	require.Equal(t, model.StockOutbound, entriesA[1].InOutType)
	require.Equal(t, 10, entriesA[1].Before)
	require.Equal(t, 8, entriesA[1].After)

	entriesB := fake.stock[isbnB]
	require.Len(t, entriesB, 2)
	require.Equal(t, 5, entriesB[1].Before)
	require.Equal(t, 4, entriesB[1].After)

	// повторный переход в PREPARING не проходит и ничего не списывает
	err = service.UpdateOrderStatus(context.Background(), order.Key, model.OrderStatusPreparing)
	require.ErrorIs(t, err, ErrIllegalTransition)
	require.Len(t, fake.stock[isbnA], 2)
}

func TestGetCart(t *testing.T) {
	service, fake := newTestService(t, config.Config{})
	fake.cartRows[testAccount] = map[string]int{isbnA: 2}

	lines, err := service.GetCart(context.Background(), testAccount)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, isbnA, lines[0].Isbn)
	require.Equal(t, 2, lines[0].Quantity)

	_, err = service.GetCart(context.Background(), "")
	require.ErrorIs(t, err, ErrInsufficientData)
}

func TestStockInbound(t *testing.T) {
	service, _ := newTestService(t, config.Config{})

	current, err := service.StockInbound(context.Background(), isbnA, 7)
	require.NoError(t, err)
	require.Equal(t, 7, current)

	current, err = service.StockInbound(context.Background(), isbnA, 3)
	require.NoError(t, err)
	require.Equal(t, 10, current)

	_, err = service.StockInbound(context.Background(), isbnA, 0)
	require.ErrorIs(t, err, ErrQuantityIncorrect)

	_, err = service.StockInbound(context.Background(), "nope", 1)
	require.ErrorIs(t, err, ErrUnknownProduct)
}

func TestPaymentReady(t *testing.T) {
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var params map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		require.Equal(t, "O1", params["partner_order_id"])
		require.Equal(t, float64(21000), params["total_amount"])

		json.NewEncoder(w).Encode(kakaopay.ReadyAnswer{
			Tid:               "T100",
			NextRedirectPCURL: "https://pay.example/go",
		})
	}))
	defer gateway.Close()

	cfg := config.Config{KakaoPay: kakaopayConfig.Config{
		ReadyURL: gateway.URL,
		CID:      "TC0ONETIME",
		Timeout:  time.Second,
	}}
	service, _ := newTestService(t, cfg)
	order := createTestOrder(t, service)

	answer, err := service.PaymentReady(context.Background(), order.Key)
	require.NoError(t, err)
	require.Equal(t, "T100", answer.Tid)
	require.Equal(t, "https://pay.example/go", answer.NextRedirectPCURL)
}

func TestPaymentReadyGatewayDown(t *testing.T) {
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer gateway.Close()

	cfg := config.Config{KakaoPay: kakaopayConfig.Config{
		ReadyURL: gateway.URL,
		Timeout:  time.Second,
	}}
	service, _ := newTestService(t, cfg)
	order := createTestOrder(t, service)

	_, err := service.PaymentReady(context.Background(), order.Key)
	require.ErrorIs(t, err, ErrGatewayUnavailable)
}
