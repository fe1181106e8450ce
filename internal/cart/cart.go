package cart

import (
	"context"

	"github.com/iurnickita/bookstore/internal/model"
	"github.com/iurnickita/bookstore/internal/store"
)

type Cart interface {
	Get(ctx context.Context, account string) ([]model.CartLine, error)
	Delete(ctx context.Context, account string, isbn string) error
}

type cart struct {
	store store.Store
}

func NewCart(store store.Store) Cart {
	cart := cart{store: store}
	return &cart
}

func (cart *cart) Get(ctx context.Context, account string) ([]model.CartLine, error) {
	return cart.store.CartGet(ctx, account)
}

func (cart *cart) Delete(ctx context.Context, account string, isbn string) error {
	return cart.store.CartDelete(ctx, account, isbn)
}
