package model

import "time"

// Заказы

type Order struct {
	Key  OrderKey
	Data OrderData
}
type OrderKey struct {
	OrderID string
	Account string
}
type OrderData struct {
	TotalCategory int
	TotalQuantity int
	TotalPaid     int
	OrderDate     time.Time
	Status        string
	UpdateDate    time.Time
}

const (
	OrderStatusRequested = "ORDER_REQUESTED"
	OrderStatusFailed    = "ORDER_FAILED"
	OrderStatusCompleted = "ORDER_COMPLETED"
	OrderStatusPreparing = "PREPARING_PRODUCT"
	OrderStatusShipping  = "SHIPPING"
	OrderStatusDelivered = "DELIVERED"
	OrderStatusCancelled = "CANCEL_COMPLETED"
)

// Допустимые переходы статуса заказа.
// DELIVERED, ORDER_FAILED и CANCEL_COMPLETED - конечные статусы
var orderTransitions = map[string][]string{
	OrderStatusRequested: {OrderStatusCompleted, OrderStatusFailed},
	OrderStatusCompleted: {OrderStatusPreparing, OrderStatusCancelled},
	OrderStatusPreparing: {OrderStatusShipping},
	OrderStatusShipping:  {OrderStatusDelivered},
	OrderStatusDelivered: {},
	OrderStatusFailed:    {},
	OrderStatusCancelled: {},
}

func OrderStatusValid(status string) bool {
	_, ok := orderTransitions[status]
	return ok
}

func OrderCanTransition(from string, to string) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Позиции заказа. Цена фиксируется на момент создания заказа
// и больше не меняется

type OrderLine struct {
	Key  OrderLineKey
	Data OrderLineData
}
type OrderLineKey struct {
	OrderID string
	Account string
	Isbn    string
}
type OrderLineData struct {
	Quantity  int
	UnitPrice int
	LineTotal int
}

// Оплата. У заказа может быть несколько попыток оплаты,
// но не более одной в статусе PAYMENT_ATTEMPT

type Payment struct {
	Key  PaymentKey
	Data PaymentData
}
type PaymentKey struct {
	PaymentID string
	OrderID   string
	Account   string
}
type PaymentData struct {
	Method      string
	Status      string
	PaymentDate time.Time
	UpdateDate  time.Time
}

const (
	PaymentStatusAttempt   = "PAYMENT_ATTEMPT"
	PaymentStatusFailed    = "PAYMENT_FAILED"
	PaymentStatusCompleted = "PAYMENT_COMPLETED"
)

const (
	PaymentMethodKakaoPay     = "KP"
	PaymentMethodBankTransfer = "AC"
)

// Журнал движения остатков

type StockEntry struct {
	Isbn       string
	InOutType  string
	Quantity   int
	Before     int
	After      int
	UpdateDate time.Time
}

const (
	StockInbound  = "INBOUND"
	StockOutbound = "OUTBOUND"
)

// Каталог

type Product struct {
	Isbn   string
	Name   string
	Author string
	Price  int
}

// Корзина

type CartLine struct {
	Account  string
	Isbn     string
	Quantity int
}

// Стоимость доставки: бесплатно от 20000, иначе фиксированная ставка

const (
	FreeShippingThreshold = 20000
	ShippingFlatFee       = 3000
)

func ShippingFee(subtotal int) int {
	if subtotal >= FreeShippingThreshold {
		return 0
	}
	return ShippingFlatFee
}
