package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	appBalance "github.com/vendstack/vendingmachine/internal/application/balance"
	appCatalog "github.com/vendstack/vendingmachine/internal/application/catalog"
	domainCatalog "github.com/vendstack/vendingmachine/internal/domain/catalog"
	"github.com/vendstack/vendingmachine/internal/domain/money"
	"github.com/vendstack/vendingmachine/internal/domain/storage"
	domainUser "github.com/vendstack/vendingmachine/internal/domain/user"
	"github.com/vendstack/vendingmachine/internal/observability"
	"github.com/vendstack/vendingmachine/internal/observability/logctx"
)

type LoginService interface {
	Login(ctx context.Context, name string) (*domainUser.User, bool, error)
}

type BalanceOperator interface {
	Apply(ctx context.Context, cmd appBalance.Input) (*domainUser.User, error)
}

type OrderOperator interface {
	Execute(ctx context.Context, userID, slotID string) (*domainUser.User, error)
}

type Handler struct {
	account LoginService
	balance BalanceOperator
	order   OrderOperator
	catalog *appCatalog.Query
	log     observability.Logger
	tel     observability.Observability
}

const componentHTTPHandler = "http_server"

func NewHandler(
	account LoginService,
	balance BalanceOperator,
	order OrderOperator,
	catalog *appCatalog.Query,
	tel observability.Observability,
) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Handler{
		account: account,
		balance: balance,
		order:   order,
		catalog: catalog,
		log:     tel.Logger().With(observability.F("component", componentHTTPHandler)),
		tel:     tel,
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	// Wire each route with middlewares:
	// Trace → ObservabilityMiddleware (request logger) → HTTP metrics → Access log → Handler
	h.muxHandle(mux, http.MethodPost, "/login", h.handleLogin)
	h.muxHandle(mux, http.MethodGet, "/slots", h.handleListSlots)
	h.muxHandle(mux, http.MethodGet, "/slots/{id}", h.handleSlotDetail)
	h.muxHandle(mux, http.MethodGet, "/products", h.handleProductGrid)
	h.muxHandle(mux, http.MethodPost, "/balance", h.handleBalance)
	h.muxHandle(mux, http.MethodPost, "/order", h.handleOrder)
	h.muxHandle(mux, http.MethodGet, "/health", h.handleHealth)

	return mux
}

func (h *Handler) muxHandle(mux *http.ServeMux, method, route string, handler http.HandlerFunc) {
	// The middleware chain is assembled once at registration; only the route
	// template is injected per request.
	wrapped := h.withTrace(
		ObservabilityMiddleware(
			h.log,
			func(r *http.Request) string {
				return r.Header.Get("X-Request-ID")
			},
			h.tel,
		)(
			h.withAccessLog(handler),
		),
	)
	mux.HandleFunc(method+" "+route, func(w http.ResponseWriter, r *http.Request) {
		r = r.WithContext(contextWithRoute(r.Context(), route))
		wrapped.ServeHTTP(w, r)
	})
}

type userResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Balance string `json:"balance"`
}

func toUserResponse(u *domainUser.User) userResponse {
	return userResponse{
		ID:      u.ID,
		Name:    u.Name,
		Balance: money.Format(u.Balance),
	}
}

type productResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       string `json:"price"`
}

func toProductResponse(p *domainCatalog.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       money.Format(p.Price),
	}
}

type slotResponse struct {
	ID       string          `json:"id"`
	Quantity int             `json:"quantity"`
	Row      int             `json:"row"`
	Column   int             `json:"column"`
	Product  productResponse `json:"product"`
}

func toSlotResponse(sl *domainCatalog.Slot) slotResponse {
	return slotResponse{
		ID:       sl.ID,
		Quantity: sl.Quantity,
		Row:      sl.Row,
		Column:   sl.Column,
		Product:  toProductResponse(sl.Product),
	}
}

type loginRequest struct {
	Name string `json:"name"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, domainUser.ErrInvalidName)
		return
	}

	u, created, err := h.account.Login(r.Context(), req.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, toUserResponse(u))
}

func (h *Handler) handleListSlots(w http.ResponseWriter, r *http.Request) {
	var maxQuantity *int
	if raw := r.URL.Query().Get("quantity"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, domainCatalog.ErrInvalidQuantity)
			return
		}
		maxQuantity = &n
	}

	slots, err := h.catalog.ListSlots(r.Context(), maxQuantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]slotResponse, 0, len(slots))
	for _, sl := range slots {
		out = append(out, toSlotResponse(sl))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleSlotDetail(w http.ResponseWriter, r *http.Request) {
	sl, err := h.catalog.GetSlot(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSlotResponse(sl))
}

type gridItemResponse struct {
	SlotID      string `json:"slot_id"`
	Quantity    int    `json:"quantity"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       string `json:"price"`
}

func (h *Handler) handleProductGrid(w http.ResponseWriter, r *http.Request) {
	grid, err := h.catalog.ProductGrid(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([][]gridItemResponse, 0, len(grid))
	for _, row := range grid {
		items := make([]gridItemResponse, 0, len(row))
		for _, item := range row {
			items = append(items, gridItemResponse{
				SlotID:      item.SlotID,
				Quantity:    item.Quantity,
				ID:          item.Product.ID,
				Name:        item.Product.Name,
				Description: item.Product.Description,
				Price:       money.Format(item.Product.Price),
			})
		}
		out = append(out, items)
	}
	writeJSON(w, http.StatusOK, out)
}

type balanceRequest struct {
	UserID    string  `json:"user_id"`
	Operation string  `json:"operation"`
	Amount    *string `json:"amount,omitempty"`
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	var req balanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	cmd := appBalance.Input{
		UserID:    req.UserID,
		Operation: appBalance.Operation(req.Operation),
	}
	// Reset ignores the amount entirely, so a malformed one must not fail the request.
	if req.Amount != nil && cmd.Operation != appBalance.OpReset {
		amount, err := money.Parse(*req.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		cmd.Amount = &amount
	}

	u, err := h.balance.Apply(r.Context(), cmd)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

type orderRequest struct {
	UserID string `json:"user_id"`
	SlotID string `json:"slot_id"`
}

func (h *Handler) handleOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	u, err := h.order.Execute(r.Context(), req.UserID, req.SlotID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// withAccessLog writes a single access log after the handler completes.
// It relies on the request-scoped logger already injected by ObservabilityMiddleware.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routeFromContext(r.Context())),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withTrace creates a server span for the request using OTel and W3C propagation.
func (h *Handler) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer("vendingmachine.http")
		parentCtx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		route := routeFromContext(parentCtx)
		spanName := r.Method + " " + route
		if route == "unknown" {
			spanName = r.Method + " " + r.URL.Path
		}

		ctxWithSpan, span := tracer.Start(parentCtx,
			spanName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", route),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
			),
		)
		defer span.End()

		next.ServeHTTP(w, r.WithContext(ctxWithSpan))
	})
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"message": err.Error()})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domainUser.ErrNotFound),
		errors.Is(err, domainCatalog.ErrSlotNotFound),
		errors.Is(err, domainCatalog.ErrProductNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, money.ErrInvalidAmount),
		errors.Is(err, appBalance.ErrUnknownOperation),
		errors.Is(err, domainUser.ErrInvalidName),
		errors.Is(err, domainUser.ErrInsufficientBalance),
		errors.Is(err, domainCatalog.ErrOutOfStock),
		errors.Is(err, domainCatalog.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, storage.ErrConflict):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

type routeKey struct{}

// contextWithRoute stores the stable route template in the context so downstream
// metrics/logging can rely on low-cardinality values.
func contextWithRoute(ctx context.Context, route string) context.Context {
	if route == "" {
		return ctx
	}
	return context.WithValue(ctx, routeKey{}, route)
}

func routeFromContext(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	if route, ok := ctx.Value(routeKey{}).(string); ok && route != "" {
		return route
	}
	return "unknown"
}
