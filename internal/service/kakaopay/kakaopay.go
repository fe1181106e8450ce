package kakaopay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/iurnickita/bookstore/internal/service/kakaopay/config"
)

// JSON ответ kakaopay /online/v1/payment/ready
type ReadyAnswer struct {
	Tid                   string `json:"tid"`
	NextRedirectPCURL     string `json:"next_redirect_pc_url"`
	NextRedirectMobileURL string `json:"next_redirect_mobile_url"`
	CreatedAt             string `json:"created_at"`
}

type ReadyRequest struct {
	OrderID     string
	Orderer     string
	ItemName    string
	Quantity    int
	TotalAmount int
}

type Client interface {
	Ready(ctx context.Context, request ReadyRequest) (ReadyAnswer, error)
}

type client struct {
	cfg  config.Config
	http *resty.Client
}

func NewClient(cfg config.Config) Client {
	// таймаут обязателен: зависший шлюз - это отказ оплаты, а не ожидание
	return client{
		cfg:  cfg,
		http: resty.New().SetTimeout(cfg.Timeout),
	}
}

func (client client) Ready(ctx context.Context, request ReadyRequest) (ReadyAnswer, error) {
	params := map[string]any{
		"cid":              client.cfg.CID,
		"partner_order_id": request.OrderID,
		"partner_user_id":  request.Orderer,
		"item_name":        request.ItemName,
		"quantity":         request.Quantity,
		"total_amount":     request.TotalAmount,
		"tax_free_amount":  0,
		"approval_url":     client.cfg.CallbackBase + "/order/payment-success",
		"cancel_url":       client.cfg.CallbackBase + "/order/payment-cancel",
		"fail_url":         client.cfg.CallbackBase + "/order/payment-fail",
	}

	setreq := client.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "SECRET_KEY "+client.cfg.AdminKey).
		SetBody(params)
	setresp, err := setreq.Post(client.cfg.ReadyURL)
	if err != nil {
		return ReadyAnswer{}, err
	}

	switch setresp.StatusCode() {
	case http.StatusOK:
		var readyAnswer ReadyAnswer
		err = json.Unmarshal(setresp.Body(), &readyAnswer)
		return readyAnswer, err
	default:
		return ReadyAnswer{}, fmt.Errorf("kakaopay ready status: %d", setresp.StatusCode())
	}
}
