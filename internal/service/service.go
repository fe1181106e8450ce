package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iurnickita/bookstore/internal/cart"
	"github.com/iurnickita/bookstore/internal/model"
	"github.com/iurnickita/bookstore/internal/service/config"
	"github.com/iurnickita/bookstore/internal/service/kakaopay"
	"github.com/iurnickita/bookstore/internal/stock"
	"github.com/iurnickita/bookstore/internal/store"
)

// Входящая позиция заказа. Цены - как их видел клиент,
// сервер пересчитывает их по каталогу
type LineItem struct {
	Isbn      string
	Quantity  int
	UnitPrice int
	LineTotal int
}

type OrderSummary struct {
	Order       model.Order
	Lines       []model.OrderLine
	Payments    []model.Payment
	Subtotal    int
	ShippingFee int
}

type Service interface {
	CreateOrder(ctx context.Context, account string, orderID string, items []LineItem, orderDate time.Time) (model.Order, error)
	UpdateOrderStatus(ctx context.Context, key model.OrderKey, status string) error
	CancelOrder(ctx context.Context, key model.OrderKey) error
	CancelCompletedOrder(ctx context.Context, key model.OrderKey) error
	PaymentAttempt(ctx context.Context, key model.PaymentKey, method string, paymentDate time.Time) (model.Payment, error)
	PaymentComplete(ctx context.Context, key model.OrderKey) error
	PaymentFail(ctx context.Context, key model.OrderKey) error
	PaymentReady(ctx context.Context, key model.OrderKey) (kakaopay.ReadyAnswer, error)
	GetOrders(ctx context.Context, account string) ([]model.Order, error)
	GetOrderSummary(ctx context.Context, key model.OrderKey) (OrderSummary, error)
	GetCart(ctx context.Context, account string) ([]model.CartLine, error)
	StockInbound(ctx context.Context, isbn string, quantity int) (int, error)
}

var (
	ErrInsufficientData   = errors.New("insufficient data")
	ErrUnknownProduct     = errors.New("unknown product")
	ErrPriceMismatch      = errors.New("price mismatch")
	ErrAlreadyExists      = errors.New("already exists")
	ErrOrderNotFound      = errors.New("order not found")
	ErrInvalidStatus      = errors.New("invalid order status")
	ErrIllegalTransition  = errors.New("illegal status transition")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrNoPaymentAttempt   = errors.New("no payment attempt")
	ErrPaymentIDIncorrect = errors.New("payment id must be a uuid")
	ErrUnknownMethod      = errors.New("unknown payment method")
	ErrNotCancellable     = errors.New("order is not cancellable in this status")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrQuantityIncorrect  = errors.New("quantity value is incorrect")
)

type service struct {
	cfg      config.Config
	store    store.Store
	stock    stock.Stock
	cart     cart.Cart
	kakaopay kakaopay.Client
	zaplog   *zap.Logger
}

func NewService(cfg config.Config, store store.Store, zaplog *zap.Logger) (Service, error) {
	stock := stock.NewStock(store)
	cart := cart.NewCart(store)
	kakaopay := kakaopay.NewClient(cfg.KakaoPay)

	service := service{
		cfg:      cfg,
		store:    store,
		stock:    stock,
		cart:     cart,
		kakaopay: kakaopay,
		zaplog:   zaplog}

	return &service, nil
}

// CreateOrder пересчитывает цены по каталогу и записывает заказ
// со всеми позициями как одно целое. Расхождение хотя бы одной цены
// с клиентской отклоняет весь заказ
func (service *service) CreateOrder(ctx context.Context, account string, orderID string, items []LineItem, orderDate time.Time) (model.Order, error) {
	if account == "" || orderID == "" {
		return model.Order{}, ErrInsufficientData
	}
	if len(items) == 0 {
		return model.Order{}, ErrInsufficientData
	}

	var lines []model.OrderLine
	subtotal := 0
	totalQuantity := 0
	for _, item := range items {
		if item.Isbn == "" || item.Quantity <= 0 {
			return model.Order{}, ErrInsufficientData
		}
		product, err := service.store.ProductGet(ctx, item.Isbn)
		if err != nil {
			if err == store.ErrNoRows {
				return model.Order{}, fmt.Errorf("%w: %s", ErrUnknownProduct, item.Isbn)
			}
			return model.Order{}, err
		}

		lineTotal := product.Price * item.Quantity
		if item.UnitPrice != product.Price || item.LineTotal != lineTotal {
			return model.Order{}, fmt.Errorf("%w: %s", ErrPriceMismatch, item.Isbn)
		}

		lines = append(lines, model.OrderLine{
			Key: model.OrderLineKey{
				OrderID: orderID,
				Account: account,
				Isbn:    item.Isbn},
			Data: model.OrderLineData{
				Quantity:  item.Quantity,
				UnitPrice: product.Price,
				LineTotal: lineTotal}})
		subtotal += lineTotal
		totalQuantity += item.Quantity
	}

	if orderDate.IsZero() {
		orderDate = time.Now()
	}
	order := model.Order{
		Key: model.OrderKey{
			OrderID: orderID,
			Account: account},
		Data: model.OrderData{
			TotalCategory: len(lines),
			TotalQuantity: totalQuantity,
			TotalPaid:     subtotal + model.ShippingFee(subtotal),
			OrderDate:     orderDate,
			Status:        model.OrderStatusRequested,
			UpdateDate:    time.Now()}}

	err := service.store.OrderCreate(ctx, order, lines)
	if err != nil {
		if err == store.ErrAlreadyExists {
			return model.Order{}, ErrAlreadyExists
		}
		return model.Order{}, err
	}

	return order, nil
}

// UpdateOrderStatus - смена статуса с проверкой по таблице переходов.
// Переход в ORDER_FAILED закрывает попытки оплаты,
// переход в PREPARING_PRODUCT списывает остатки
func (service *service) UpdateOrderStatus(ctx context.Context, key model.OrderKey, status string) error {
	if key.OrderID == "" || key.Account == "" {
		return ErrInsufficientData
	}
	if !model.OrderStatusValid(status) {
		return ErrInvalidStatus
	}

	order, err := service.store.OrderGet(ctx, key)
	if err != nil {
		if err == store.ErrNoRows {
			return ErrOrderNotFound
		}
		return err
	}
	if !model.OrderCanTransition(order.Data.Status, status) {
		return ErrIllegalTransition
	}

	switch status {
	case model.OrderStatusFailed:
		err = service.store.OrderFail(ctx, key)
	case model.OrderStatusPreparing:
		err = service.store.OrderPrepare(ctx, key)
	default:
		err = service.store.OrderSetStatus(ctx, key, order.Data.Status, status)
	}
	switch err {
	case nil:
		return nil
	case store.ErrStatusConflict:
		return ErrIllegalTransition
	case store.ErrInsufficientStock:
		return ErrInsufficientStock
	case store.ErrNoRows:
		return ErrOrderNotFound
	default:
		return err
	}
}

// CancelOrder - прекращение заказа до оплаты (уход со страницы заказа).
// Заказ переходит в ORDER_FAILED без возврата
func (service *service) CancelOrder(ctx context.Context, key model.OrderKey) error {
	return service.UpdateOrderStatus(ctx, key, model.OrderStatusFailed)
}

// CancelCompletedOrder - отмена покупателем. Возможна только
// из статуса ORDER_COMPLETED
func (service *service) CancelCompletedOrder(ctx context.Context, key model.OrderKey) error {
	if key.OrderID == "" || key.Account == "" {
		return ErrInsufficientData
	}

	order, err := service.store.OrderGet(ctx, key)
	if err != nil {
		if err == store.ErrNoRows {
			return ErrOrderNotFound
		}
		return err
	}
	if order.Data.Status != model.OrderStatusCompleted {
		return ErrNotCancellable
	}

	err = service.store.OrderSetStatus(ctx, key, model.OrderStatusCompleted, model.OrderStatusCancelled)
	if err == store.ErrStatusConflict {
		return ErrNotCancellable
	}
	return err
}

// PaymentAttempt регистрирует новую попытку оплаты. Предыдущая
// незавершенная попытка при этом закрывается: у заказа не может быть
// двух попыток в статусе PAYMENT_ATTEMPT
func (service *service) PaymentAttempt(ctx context.Context, key model.PaymentKey, method string, paymentDate time.Time) (model.Payment, error) {
	if key.OrderID == "" || key.Account == "" || key.PaymentID == "" {
		return model.Payment{}, ErrInsufficientData
	}
	if _, err := uuid.Parse(key.PaymentID); err != nil {
		return model.Payment{}, ErrPaymentIDIncorrect
	}
	if method != model.PaymentMethodKakaoPay && method != model.PaymentMethodBankTransfer {
		return model.Payment{}, ErrUnknownMethod
	}
	if paymentDate.IsZero() {
		return model.Payment{}, ErrInsufficientData
	}

	_, err := service.store.OrderGet(ctx, model.OrderKey{OrderID: key.OrderID, Account: key.Account})
	if err != nil {
		if err == store.ErrNoRows {
			return model.Payment{}, ErrOrderNotFound
		}
		return model.Payment{}, err
	}

	payment := model.Payment{
		Key: key,
		Data: model.PaymentData{
			Method:      method,
			Status:      model.PaymentStatusAttempt,
			PaymentDate: paymentDate,
			UpdateDate:  time.Now()}}

	err = service.store.PaymentAttempt(ctx, payment)
	if err != nil {
		if err == store.ErrAlreadyExists {
			return model.Payment{}, ErrAlreadyExists
		}
		return model.Payment{}, err
	}

	return payment, nil
}

// PaymentComplete завершает оплату и заказ. Повторный вызов
// по завершенному заказу - успешный no-op. Деньги уже получены,
// поэтому очистка корзины - best-effort: ее ошибки не откатывают оплату
func (service *service) PaymentComplete(ctx context.Context, key model.OrderKey) error {
	if key.OrderID == "" || key.Account == "" {
		return ErrInsufficientData
	}

	err := service.store.PaymentComplete(ctx, key)
	switch err {
	case nil:
	case store.ErrNoRows:
		return ErrOrderNotFound
	case store.ErrNoPaymentAttempt:
		return ErrNoPaymentAttempt
	case store.ErrStatusConflict:
		return ErrIllegalTransition
	default:
		return err
	}

	lines, err := service.store.OrderLinesGet(ctx, key)
	if err != nil {
		service.zaplog.Warn("cart cleanup skipped",
			zap.String("order", key.OrderID),
			zap.Error(err))
		return nil
	}
	for _, line := range lines {
		if err := service.cart.Delete(ctx, key.Account, line.Key.Isbn); err != nil {
			service.zaplog.Warn("cart line not removed",
				zap.String("order", key.OrderID),
				zap.String("isbn", line.Key.Isbn),
				zap.Error(err))
		}
	}

	return nil
}

// PaymentFail закрывает попытки оплаты. Статус заказа не меняется:
// пользователь может оплатить другим способом
func (service *service) PaymentFail(ctx context.Context, key model.OrderKey) error {
	if key.OrderID == "" || key.Account == "" {
		return ErrInsufficientData
	}

	_, err := service.store.OrderGet(ctx, key)
	if err != nil {
		if err == store.ErrNoRows {
			return ErrOrderNotFound
		}
		return err
	}

	return service.store.PaymentFail(ctx, key)
}

// PaymentReady запрашивает у шлюза платежную сессию.
// Суммы и состав берутся из заказа, не от клиента
func (service *service) PaymentReady(ctx context.Context, key model.OrderKey) (kakaopay.ReadyAnswer, error) {
	if key.OrderID == "" || key.Account == "" {
		return kakaopay.ReadyAnswer{}, ErrInsufficientData
	}

	order, err := service.store.OrderGet(ctx, key)
	if err != nil {
		if err == store.ErrNoRows {
			return kakaopay.ReadyAnswer{}, ErrOrderNotFound
		}
		return kakaopay.ReadyAnswer{}, err
	}
	lines, err := service.store.OrderLinesGet(ctx, key)
	if err != nil {
		return kakaopay.ReadyAnswer{}, err
	}
	if len(lines) == 0 {
		return kakaopay.ReadyAnswer{}, ErrOrderNotFound
	}

	itemName := lines[0].Key.Isbn
	if product, err := service.store.ProductGet(ctx, lines[0].Key.Isbn); err == nil {
		itemName = product.Name
	}
	if len(lines) > 1 {
		itemName = fmt.Sprintf("%s and %d more", itemName, len(lines)-1)
	}

	answer, err := service.kakaopay.Ready(ctx, kakaopay.ReadyRequest{
		OrderID:     order.Key.OrderID,
		Orderer:     order.Key.Account,
		ItemName:    itemName,
		Quantity:    order.Data.TotalQuantity,
		TotalAmount: order.Data.TotalPaid,
	})
	if err != nil {
		// таймаут или отказ шлюза - это неуспех оплаты
		return kakaopay.ReadyAnswer{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	return answer, nil
}

func (service *service) GetOrders(ctx context.Context, account string) ([]model.Order, error) {
	if account == "" {
		return nil, ErrInsufficientData
	}

	return service.store.OrderGetAll(ctx, account)
}

func (service *service) GetOrderSummary(ctx context.Context, key model.OrderKey) (OrderSummary, error) {
	if key.OrderID == "" || key.Account == "" {
		return OrderSummary{}, ErrInsufficientData
	}

	order, err := service.store.OrderGet(ctx, key)
	if err != nil {
		if err == store.ErrNoRows {
			return OrderSummary{}, ErrOrderNotFound
		}
		return OrderSummary{}, err
	}
	lines, err := service.store.OrderLinesGet(ctx, key)
	if err != nil {
		return OrderSummary{}, err
	}
	payments, err := service.store.PaymentsGet(ctx, key)
	if err != nil {
		return OrderSummary{}, err
	}

	subtotal := 0
	for _, line := range lines {
		subtotal += line.Data.LineTotal
	}

	return OrderSummary{
		Order:       order,
		Lines:       lines,
		Payments:    payments,
		Subtotal:    subtotal,
		ShippingFee: model.ShippingFee(subtotal),
	}, nil
}

func (service *service) GetCart(ctx context.Context, account string) ([]model.CartLine, error) {
	if account == "" {
		return nil, ErrInsufficientData
	}

	return service.cart.Get(ctx, account)
}

// StockInbound - приход товара на склад. Возвращает остаток после прихода
func (service *service) StockInbound(ctx context.Context, isbn string, quantity int) (int, error) {
	if isbn == "" {
		return 0, ErrInsufficientData
	}

	_, err := service.store.ProductGet(ctx, isbn)
	if err != nil {
		if err == store.ErrNoRows {
			return 0, fmt.Errorf("%w: %s", ErrUnknownProduct, isbn)
		}
		return 0, err
	}

	err = service.stock.Inbound(ctx, isbn, quantity)
	if err != nil {
		if err == stock.ErrQuantityIncorrect {
			return 0, ErrQuantityIncorrect
		}
		return 0, err
	}

	return service.stock.Current(ctx, isbn)
}
