package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/iurnickita/bookstore/internal/auth"
	"github.com/iurnickita/bookstore/internal/gzip"
	"github.com/iurnickita/bookstore/internal/handler/config"
	"github.com/iurnickita/bookstore/internal/logger"
	"github.com/iurnickita/bookstore/internal/model"
	"github.com/iurnickita/bookstore/internal/service"
)

func Serve(cfg config.Config, auth auth.Auth, service service.Service, zaplog *zap.Logger) error {
	h := newHandler(auth, service, cfg.ServerAddr, zaplog)
	router := h.newRouter()

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: router,
	}

	return srv.ListenAndServe()
}

type handler struct {
	auth     auth.Auth
	service  service.Service
	baseaddr string
	zaplog   *zap.Logger
}

func newHandler(auth auth.Auth, service service.Service, baseaddr string, zaplog *zap.Logger) *handler {
	return &handler{
		auth:     auth,
		service:  service,
		baseaddr: baseaddr,
		zaplog:   zaplog,
	}
}

func (h *handler) newRouter() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/user/register", gzip.GzipMiddleware(logger.RequestLogMdlw(h.auth.Register, h.zaplog)))
	mux.HandleFunc("POST /api/user/login", gzip.GzipMiddleware(logger.RequestLogMdlw(h.auth.Login, h.zaplog)))
	mux.HandleFunc("POST /api/order/create", gzip.GzipMiddleware(logger.RequestLogMdlw(h.auth.Middleware(h.CreateOrder), h.zaplog)))
	mux.HandleFunc("POST /api/order/update-status", gzip.GzipMiddleware(logger.RequestLogMdlw(h.auth.Middleware(h.UpdateOrderStatus), h.zaplog)))
	mux.HandleFunc("POST /api/order/cancel", gzip.GzipMiddleware(logger.RequestLogMdlw(h.auth.Middleware(h.CancelOrder), h.zaplog)))
	mux.HandleFunc("POST /api/orders/cancel", gzip.GzipMiddleware(logger.RequestLogMdlw(h.auth.Middleware(h.CancelCompletedOrder), h.zaplog)))
	mux.HandleFunc("POST /api/payment/attempt", gzip.GzipMiddleware(logger.RequestLogMdlw(h.auth.Middleware(h.PaymentAttempt), h.zaplog)))
	mux.HandleFunc("POST /api/payment/complete", gzip.GzipMiddleware(logger.RequestLogMdlw(h.auth.Middleware(h.PaymentComplete), h.zaplog)))
	mux.HandleFunc("POST /api/payment/fail", gzip.GzipMiddleware(logger.RequestLogMdlw(h.auth.Middleware(h.PaymentFail), h.zaplog)))
	mux.HandleFunc("POST /api/kakaopay/ready", gzip.GzipMiddleware(logger.RequestLogMdlw(h.auth.Middleware(h.KakaoPayReady), h.zaplog)))
	mux.HandleFunc("POST /api/admin/stock/inbound", gzip.GzipMiddleware(logger.RequestLogMdlw(h.auth.Middleware(h.StockInbound), h.zaplog)))
	mux.HandleFunc("GET /api/cart", gzip.GzipMiddleware(logger.RequestLogMdlw(h.auth.Middleware(h.GetCart), h.zaplog)))
	mux.HandleFunc("GET /api/orders", gzip.GzipMiddleware(logger.RequestLogMdlw(h.auth.Middleware(h.GetOrders), h.zaplog)))
	mux.HandleFunc("GET /api/order/summary", gzip.GzipMiddleware(logger.RequestLogMdlw(h.auth.Middleware(h.GetOrderSummary), h.zaplog)))
	mux.HandleFunc("GET /order/payment-success", logger.RequestLogMdlw(h.PaymentSuccessPage, h.zaplog))
	mux.HandleFunc("GET /order/payment-cancel", logger.RequestLogMdlw(h.PaymentCancelPage, h.zaplog))
	mux.HandleFunc("GET /order/payment-fail", logger.RequestLogMdlw(h.PaymentFailPage, h.zaplog))

	return mux
}

// Единый формат ответа: success + message, плюс данные конкретного запроса
type resultJSONResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func (h *handler) writeJSON(w http.ResponseWriter, code int, payload any) {
	responseJSON, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(responseJSON)
}

// writeServiceError отдает доменные ошибки как success=false с сообщением.
// Голый 500 - только для неожиданных ошибок
func (h *handler) writeServiceError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, service.ErrInsufficientData),
		errors.Is(err, service.ErrPaymentIDIncorrect),
		errors.Is(err, service.ErrUnknownMethod),
		errors.Is(err, service.ErrQuantityIncorrect),
		errors.Is(err, service.ErrInvalidStatus):
		code = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrUnknownProduct):
		code = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, service.ErrAlreadyExists),
		errors.Is(err, service.ErrPriceMismatch),
		errors.Is(err, service.ErrIllegalTransition),
		errors.Is(err, service.ErrNotCancellable),
		errors.Is(err, service.ErrNoPaymentAttempt),
		errors.Is(err, service.ErrInsufficientStock):
		code = http.StatusConflict
		message = err.Error()
	case errors.Is(err, service.ErrGatewayUnavailable):
		code = http.StatusBadGateway
		message = service.ErrGatewayUnavailable.Error()
	default:
		h.zaplog.Error("unexpected service error", zap.Error(err))
	}

	h.writeJSON(w, code, resultJSONResponse{Success: false, Message: message})
}

func (h *handler) readBodyJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	var buf bytes.Buffer
	_, err := buf.ReadFrom(r.Body)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, resultJSONResponse{Success: false, Message: err.Error()})
		return false
	}
	err = json.Unmarshal(buf.Bytes(), target)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, resultJSONResponse{Success: false, Message: err.Error()})
		return false
	}
	return true
}

// parseClientDate принимает дату фронтенда: RFC3339 либо без зоны
func parseClientDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05", value)
}

type createOrderJSONRequest struct {
	OrderID   string `json:"orderId"`
	OrderDate string `json:"orderDate"`
	Products  []struct {
		Isbn       string `json:"isbn"`
		Quantity   int    `json:"quantity"`
		UnitPrice  int    `json:"unitPrice"`
		TotalPrice int    `json:"totalPrice"`
	} `json:"products"`
}

type createOrderJSONResponse struct {
	resultJSONResponse
	OrderID   string `json:"orderId,omitempty"`
	TotalPaid int    `json:"totalPaid,omitempty"`
}

func (h *handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userCode := r.Header.Get(auth.HeaderUserCodeKey)

	var req createOrderJSONRequest
	if !h.readBodyJSON(w, r, &req) {
		return
	}
	orderDate, err := parseClientDate(req.OrderDate)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, resultJSONResponse{Success: false, Message: "bad orderDate: " + req.OrderDate})
		return
	}

	items := make([]service.LineItem, 0, len(req.Products))
	for _, p := range req.Products {
		items = append(items, service.LineItem{
			Isbn:      p.Isbn,
			Quantity:  p.Quantity,
			UnitPrice: p.UnitPrice,
			LineTotal: p.TotalPrice,
		})
	}

	order, err := h.service.CreateOrder(r.Context(), userCode, req.OrderID, items, orderDate)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, createOrderJSONResponse{
		resultJSONResponse: resultJSONResponse{Success: true, Message: "order created"},
		OrderID:            order.Key.OrderID,
		TotalPaid:          order.Data.TotalPaid,
	})
}

type updateOrderStatusJSONRequest struct {
	OrderID string `json:"orderId"`
	Account string `json:"account"`
	Status  string `json:"status"`
}

func (h *handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateOrderStatusJSONRequest
	if !h.readBodyJSON(w, r, &req) {
		return
	}

	// админский вызов: заказ может принадлежать другому пользователю
	account := req.Account
	if account == "" {
		account = r.Header.Get(auth.HeaderUserCodeKey)
	}

	err := h.service.UpdateOrderStatus(r.Context(),
		model.OrderKey{OrderID: req.OrderID, Account: account},
		req.Status)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, resultJSONResponse{Success: true, Message: "order status updated"})
}

type orderIDJSONRequest struct {
	OrderID string `json:"orderId"`
}

func (h *handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	userCode := r.Header.Get(auth.HeaderUserCodeKey)

	var req orderIDJSONRequest
	if !h.readBodyJSON(w, r, &req) {
		return
	}

	err := h.service.CancelOrder(r.Context(), model.OrderKey{OrderID: req.OrderID, Account: userCode})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, resultJSONResponse{Success: true, Message: "order cancelled"})
}

func (h *handler) CancelCompletedOrder(w http.ResponseWriter, r *http.Request) {
	userCode := r.Header.Get(auth.HeaderUserCodeKey)

	var req orderIDJSONRequest
	if !h.readBodyJSON(w, r, &req) {
		return
	}

	err := h.service.CancelCompletedOrder(r.Context(), model.OrderKey{OrderID: req.OrderID, Account: userCode})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, resultJSONResponse{Success: true, Message: "order cancellation completed"})
}

type paymentAttemptJSONRequest struct {
	OrderID       string `json:"orderId"`
	PaymentID     string `json:"paymentId"`
	PaymentMethod string `json:"paymentMethod"`
	PaymentDate   string `json:"paymentDate"`
}

type paymentAttemptJSONResponse struct {
	resultJSONResponse
	PaymentID     string `json:"paymentId,omitempty"`
	PaymentStatus string `json:"paymentStatus,omitempty"`
}

func (h *handler) PaymentAttempt(w http.ResponseWriter, r *http.Request) {
	userCode := r.Header.Get(auth.HeaderUserCodeKey)

	var req paymentAttemptJSONRequest
	if !h.readBodyJSON(w, r, &req) {
		return
	}
	paymentDate, err := parseClientDate(req.PaymentDate)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, resultJSONResponse{Success: false, Message: "bad paymentDate: " + req.PaymentDate})
		return
	}

	payment, err := h.service.PaymentAttempt(r.Context(),
		model.PaymentKey{PaymentID: req.PaymentID, OrderID: req.OrderID, Account: userCode},
		req.PaymentMethod,
		paymentDate)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, paymentAttemptJSONResponse{
		resultJSONResponse: resultJSONResponse{Success: true, Message: "payment attempt recorded"},
		PaymentID:          payment.Key.PaymentID,
		PaymentStatus:      payment.Data.Status,
	})
}

func (h *handler) PaymentComplete(w http.ResponseWriter, r *http.Request) {
	userCode := r.Header.Get(auth.HeaderUserCodeKey)

	var req orderIDJSONRequest
	if !h.readBodyJSON(w, r, &req) {
		return
	}

	err := h.service.PaymentComplete(r.Context(), model.OrderKey{OrderID: req.OrderID, Account: userCode})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, resultJSONResponse{Success: true, Message: "payment completed"})
}

func (h *handler) PaymentFail(w http.ResponseWriter, r *http.Request) {
	userCode := r.Header.Get(auth.HeaderUserCodeKey)

	var req orderIDJSONRequest
	if !h.readBodyJSON(w, r, &req) {
		return
	}

	err := h.service.PaymentFail(r.Context(), model.OrderKey{OrderID: req.OrderID, Account: userCode})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, resultJSONResponse{Success: true, Message: "payment attempts closed"})
}

type kakaoPayReadyJSONResponse struct {
	resultJSONResponse
	Tid         string `json:"tid,omitempty"`
	RedirectURL string `json:"redirectUrl,omitempty"`
}

func (h *handler) KakaoPayReady(w http.ResponseWriter, r *http.Request) {
	userCode := r.Header.Get(auth.HeaderUserCodeKey)

	var req orderIDJSONRequest
	if !h.readBodyJSON(w, r, &req) {
		return
	}

	answer, err := h.service.PaymentReady(r.Context(), model.OrderKey{OrderID: req.OrderID, Account: userCode})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, kakaoPayReadyJSONResponse{
		resultJSONResponse: resultJSONResponse{Success: true},
		Tid:                answer.Tid,
		RedirectURL:        answer.NextRedirectPCURL,
	})
}

type stockInboundJSONRequest struct {
	Isbn     string `json:"isbn"`
	Quantity int    `json:"quantity"`
}

type stockInboundJSONResponse struct {
	resultJSONResponse
	Isbn         string `json:"isbn,omitempty"`
	CurrentStock int    `json:"currentStock"`
}

func (h *handler) StockInbound(w http.ResponseWriter, r *http.Request) {
	var req stockInboundJSONRequest
	if !h.readBodyJSON(w, r, &req) {
		return
	}

	current, err := h.service.StockInbound(r.Context(), req.Isbn, req.Quantity)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, stockInboundJSONResponse{
		resultJSONResponse: resultJSONResponse{Success: true, Message: "stock received"},
		Isbn:               req.Isbn,
		CurrentStock:       current,
	})
}

type getOrderJSONResponse struct {
	OrderID       string    `json:"orderId"`
	Status        string    `json:"status"`
	TotalCategory int       `json:"totalCategory"`
	TotalQuantity int       `json:"totalQuantity"`
	TotalPaid     int       `json:"totalPaid"`
	OrderDate     time.Time `json:"orderDate"`
}

func (h *handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	userCode := r.Header.Get(auth.HeaderUserCodeKey)

	orders, err := h.service.GetOrders(r.Context(), userCode)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var ordersJSON []getOrderJSONResponse
	for _, order := range orders {
		ordersJSON = append(ordersJSON, getOrderJSONResponse{
			OrderID:       order.Key.OrderID,
			Status:        order.Data.Status,
			TotalCategory: order.Data.TotalCategory,
			TotalQuantity: order.Data.TotalQuantity,
			TotalPaid:     order.Data.TotalPaid,
			OrderDate:     order.Data.OrderDate,
		})
	}
	h.writeJSON(w, http.StatusOK, ordersJSON)
}

type cartLineJSONResponse struct {
	Isbn     string `json:"isbn"`
	Quantity int    `json:"quantity"`
}

func (h *handler) GetCart(w http.ResponseWriter, r *http.Request) {
	userCode := r.Header.Get(auth.HeaderUserCodeKey)

	cartLines, err := h.service.GetCart(r.Context(), userCode)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if len(cartLines) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var linesJSON []cartLineJSONResponse
	for _, line := range cartLines {
		linesJSON = append(linesJSON, cartLineJSONResponse{
			Isbn:     line.Isbn,
			Quantity: line.Quantity,
		})
	}
	h.writeJSON(w, http.StatusOK, linesJSON)
}

type orderSummaryJSONResponse struct {
	resultJSONResponse
	OrderID     string `json:"orderId"`
	Status      string `json:"status"`
	OrderDate   string `json:"orderDate"`
	Subtotal    int    `json:"subtotal"`
	ShippingFee int    `json:"shippingFee"`
	TotalPaid   int    `json:"totalPaid"`
	Lines       []struct {
		Isbn      string `json:"isbn"`
		Quantity  int    `json:"quantity"`
		UnitPrice int    `json:"unitPrice"`
		LineTotal int    `json:"lineTotal"`
	} `json:"lines"`
	PaymentID     string `json:"paymentId,omitempty"`
	PaymentMethod string `json:"paymentMethod,omitempty"`
	PaymentStatus string `json:"paymentStatus,omitempty"`
}

func (h *handler) GetOrderSummary(w http.ResponseWriter, r *http.Request) {
	userCode := r.Header.Get(auth.HeaderUserCodeKey)
	orderID := r.URL.Query().Get("orderId")

	summary, err := h.service.GetOrderSummary(r.Context(), model.OrderKey{OrderID: orderID, Account: userCode})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := orderSummaryJSONResponse{
		resultJSONResponse: resultJSONResponse{Success: true},
		OrderID:            summary.Order.Key.OrderID,
		Status:             summary.Order.Data.Status,
		OrderDate:          summary.Order.Data.OrderDate.Format("2006-01-02 15:04"),
		Subtotal:           summary.Subtotal,
		ShippingFee:        summary.ShippingFee,
		TotalPaid:          summary.Order.Data.TotalPaid,
	}
	for _, line := range summary.Lines {
		resp.Lines = append(resp.Lines, struct {
			Isbn      string `json:"isbn"`
			Quantity  int    `json:"quantity"`
			UnitPrice int    `json:"unitPrice"`
			LineTotal int    `json:"lineTotal"`
		}{
			Isbn:      line.Key.Isbn,
			Quantity:  line.Data.Quantity,
			UnitPrice: line.Data.UnitPrice,
			LineTotal: line.Data.LineTotal,
		})
	}
	// в сводке показывается последняя попытка оплаты
	if len(summary.Payments) > 0 {
		latest := summary.Payments[len(summary.Payments)-1]
		resp.PaymentID = latest.Key.PaymentID
		resp.PaymentMethod = latest.Data.Method
		resp.PaymentStatus = latest.Data.Status
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// Страницы-сигналы после редиректа шлюза. Состояние здесь не меняется:
// фронтенд читает сигнал и сам вызывает /api/payment/complete или /fail
const paymentSignalPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body>
<script>
if (window.opener) {
	window.opener.postMessage({ type: "%s" }, "*");
}
window.close();
</script>
<p>%s</p>
</body>
</html>`

func (h *handler) paymentSignal(w http.ResponseWriter, messageType string, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, paymentSignalPage, messageType, message)
}

func (h *handler) PaymentSuccessPage(w http.ResponseWriter, r *http.Request) {
	h.paymentSignal(w, "KAKAO_PAY_SUCCESS", "payment approved")
}

func (h *handler) PaymentCancelPage(w http.ResponseWriter, r *http.Request) {
	h.paymentSignal(w, "KAKAO_PAY_CANCEL", "payment cancelled")
}

func (h *handler) PaymentFailPage(w http.ResponseWriter, r *http.Request) {
	h.paymentSignal(w, "KAKAO_PAY_FAIL", "payment failed")
}
