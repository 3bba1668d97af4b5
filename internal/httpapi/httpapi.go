package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"

	"kasirpos/backend/internal/checkout"
	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/service"
	"kasirpos/backend/internal/store"
)

type Options struct {
	AllowedOrigin     string
	CheckoutRateLimit string
	Logger            *zap.Logger
}

type API struct {
	service         *service.Service
	allowedOrigin   string
	validate        *validator.Validate
	checkoutLimiter *stdlib.Middleware
	logger          *zap.Logger
}

func New(svc *service.Service, opts Options) (*API, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.CheckoutRateLimit == "" {
		opts.CheckoutRateLimit = "30-M"
	}

	rate, err := limiter.NewRateFromFormatted(opts.CheckoutRateLimit)
	if err != nil {
		return nil, fmt.Errorf("checkout rate limit %q: %w", opts.CheckoutRateLimit, err)
	}

	a := &API{
		service:       svc,
		allowedOrigin: opts.AllowedOrigin,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		logger:        logger.Named("http"),
	}
	a.checkoutLimiter = stdlib.NewMiddleware(limiter.New(memory.NewStore(), rate),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, _ *http.Request) {
			a.writeError(w, http.StatusTooManyRequests, errors.New("too many checkout attempts, slow down"))
		}))
	return a, nil
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		a.writeError(w, http.StatusNotFound, errors.New("not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		a.writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	})

	r.Get("/healthz", a.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", a.handleProducts)

		r.Get("/cart", a.handleCart)
		r.Delete("/cart", a.handleClearCart)
		r.Post("/cart/lines", a.handleAddLine)
		r.Patch("/cart/lines/{productID}", a.handleUpdateLine)
		r.Delete("/cart/lines/{productID}", a.handleRemoveLine)
		r.Put("/cart/customer", a.handleCustomer)
		r.Put("/cart/discount", a.handleDiscount)

		r.With(a.checkoutLimiter.Handler).Post("/checkout", a.handleCheckout)
		r.Get("/invoices/{invoiceID}", a.handleInvoice)

		r.Get("/draft", a.handleDraft)
		r.Post("/draft/restore", a.handleDraftRestore)

		r.Get("/notifications", a.handleNotifications)
	})

	return a.withMiddleware(r)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.service.ListProducts(r.Context())
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (a *API) handleCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.service.View())
}

func (a *API) handleClearCart(w http.ResponseWriter, r *http.Request) {
	if err := a.service.ClearCart(r.Context()); err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, a.service.View())
}

func (a *API) handleAddLine(w http.ResponseWriter, r *http.Request) {
	var req domain.AddLineRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	var (
		view domain.CartView
		err  error
	)
	if req.Custom != nil {
		view, err = a.service.AddCustomItem(r.Context(), *req.Custom, req.Quantity)
	} else {
		view, err = a.service.AddProduct(r.Context(), req.ProductID, req.Quantity)
	}
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleUpdateLine(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateLineRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}
	if req.Quantity == nil && req.GiftQuantity == nil && req.GiftReason == nil {
		a.writeError(w, http.StatusBadRequest, errors.New("nothing to update"))
		return
	}
	writeJSON(w, http.StatusOK, a.service.UpdateLine(chi.URLParam(r, "productID"), req))
}

func (a *API) handleRemoveLine(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.service.RemoveLine(chi.URLParam(r, "productID")))
}

func (a *API) handleCustomer(w http.ResponseWriter, r *http.Request) {
	var req domain.CustomerRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, a.service.SetCustomer(req.Name, req.Phone))
}

func (a *API) handleDiscount(w http.ResponseWriter, r *http.Request) {
	var req domain.DiscountRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}
	view, err := a.service.SetDiscount(req.Value, req.Type)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleCheckout(w http.ResponseWriter, r *http.Request) {
	invoice, err := a.service.Checkout(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, invoice)
}

func (a *API) handleInvoice(w http.ResponseWriter, r *http.Request) {
	invoice, err := a.service.GetInvoice(r.Context(), chi.URLParam(r, "invoiceID"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invoice)
}

func (a *API) handleDraft(w http.ResponseWriter, r *http.Request) {
	offer, ok := a.service.DraftStatus(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"available": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"available": true, "offer": offer})
}

func (a *API) handleDraftRestore(w http.ResponseWriter, r *http.Request) {
	view, err := a.service.RestoreDraft(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleNotifications(w http.ResponseWriter, r *http.Request) {
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 20, 50)
	writeJSON(w, http.StatusOK, a.service.Notifications(limit))
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		a.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("took", time.Since(startedAt)))
	})
}

func (a *API) decodeAndValidate(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := decodeJSON(r, dest); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return false
	}
	if err := a.validate.Struct(dest); err != nil {
		a.writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func (a *API) writeServiceError(w http.ResponseWriter, err error) {
	var swf *checkout.StoreWriteFailedError
	switch {
	case errors.As(err, &swf):
		a.logger.Error("checkout store write failed", zap.String("stage", string(swf.Stage)), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":               "invoice store rejected the write",
			"stage":               swf.Stage,
			"invoice_left_behind": swf.Stage == checkout.StageLines && !swf.Compensated,
		})
	case errors.Is(err, checkout.ErrEmptyCart), errors.Is(err, checkout.ErrCheckoutInFlight):
		a.writeError(w, http.StatusConflict, err)
	case errors.Is(err, store.ErrNotFound), errors.Is(err, service.ErrNoDraft):
		a.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidDiscount),
		errors.Is(err, service.ErrInvalidItem),
		errors.Is(err, store.ErrInvalidInvoice):
		a.writeError(w, http.StatusBadRequest, err)
	default:
		a.writeError(w, http.StatusInternalServerError, err)
	}
}

func validationMessage(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return errors.New(strings.Join(parts, "; "))
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func (a *API) writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies stay generic; the detail goes to the log.
	msg := err.Error()
	if status >= 500 {
		a.logger.Error("internal error", zap.Int("status", status), zap.Error(err))
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
