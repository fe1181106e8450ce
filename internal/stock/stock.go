package stock

import (
	"context"
	"errors"

	"github.com/iurnickita/bookstore/internal/store"
)

// Stock - журнал движения остатков. Актуальный остаток
// восстанавливается из последней записи журнала.
// Контроль неотрицательности при списании - на вызывающей стороне
type Stock interface {
	Current(ctx context.Context, isbn string) (int, error)
	Inbound(ctx context.Context, isbn string, quantity int) error
}

var ErrQuantityIncorrect = errors.New("quantity value is incorrect")

type stock struct {
	store store.Store
}

func NewStock(store store.Store) Stock {
	stock := stock{store: store}
	return &stock
}

func (stock *stock) Current(ctx context.Context, isbn string) (int, error) {
	return stock.store.StockCurrent(ctx, isbn)
}

func (stock *stock) Inbound(ctx context.Context, isbn string, quantity int) error {
	if quantity <= 0 {
		return ErrQuantityIncorrect
	}
	return stock.store.StockInbound(ctx, isbn, quantity)
}
