package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fastprodman/gumball/internal/services/gumball"
)

// IdempotencyHeader carries a client-chosen operation id on mutating calls.
const IdempotencyHeader = "Idempotency-Key"

type Deps struct {
	Machine Machine
	// Optional: /events is not mounted without it.
	Events EventSource
	// Optional: /dev routes are mounted only when set.
	Dev    *DevLedgers
	Logger *slog.Logger
}

// NewRouter constructs a chi router with all API endpoints registered.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &handlers{m: d.Machine}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/machine", h.getMachine)
	r.Get("/machine/items", h.listItems)
	r.Get("/supply", h.getSupply)

	if d.Events != nil {
		r.Get("/events", newEventStream(d.Events, logger).serve)
	}

	r.Route("/accounts/{account}", func(r chi.Router) {
		r.Get("/session", h.getSession)
		r.Get("/last-draw", h.getLastDraw)
		r.Get("/balance", h.getBalance)
		r.Get("/allowances/{spender}", h.getAllowance)

		r.Group(func(r chi.Router) {
			r.Use(operationID)

			r.Post("/credits", h.acquireCredits)
			r.Post("/items", h.contributeItem)
			r.Post("/insert", h.insert)
			r.Post("/crank", h.crank)
			r.Post("/reveal", h.reveal)
			r.Post("/approve", h.approve)
			r.Post("/transfer", h.transfer)
			r.Post("/transfer-from", h.transferFrom)
		})
	})

	if d.Dev != nil {
		dh := &devHandlers{ledgers: *d.Dev, custodian: d.Machine.Params().Custodian}

		r.Route("/dev", func(r chi.Router) {
			r.Post("/reference/mint", dh.mintReference)
			r.Post("/reference/approve", dh.approveReference)
			r.Post("/items/mint", dh.mintItem)
			r.Post("/items/approve-all", dh.approveAllItems)
		})
	}

	return r
}

// operationID moves the Idempotency-Key header into the request context.
func operationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(IdempotencyHeader)
		if id != "" {
			r = r.WithContext(gumball.WithOperationID(r.Context(), id))
		}

		next.ServeHTTP(w, r)
	})
}
