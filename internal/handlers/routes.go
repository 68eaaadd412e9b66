package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

// Routes groups the API handlers mounted under /api/v1.
type Routes struct {
	Accounts     *AccountHandler
	Transactions *TransactionHandler
	Transfers    *TransferHandler
	QR           *QRHandler
	Integrity    *IntegrityHandler

	// MoneyMovesPerMinute limits money-moving requests per client IP.
	// Zero disables the limit.
	MoneyMovesPerMinute int
}

// Register mounts every route on r. Authentication is the caller's concern.
func (rt Routes) Register(r chi.Router) {
	limited := func(h http.HandlerFunc) http.Handler {
		if rt.MoneyMovesPerMinute <= 0 {
			return h
		}
		return httprate.LimitByIP(rt.MoneyMovesPerMinute, time.Minute)(h)
	}

	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", rt.Accounts.Open)
		r.Get("/", rt.Accounts.List)
		r.Get("/code/{code}", rt.Accounts.GetByCode)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", rt.Accounts.Get)
			r.Patch("/", rt.Accounts.Update)
			r.Delete("/", rt.Accounts.Close)
			r.Get("/balance", rt.Accounts.Balance)
			r.Get("/transactions", rt.Transactions.ListByAccount)
			r.Method(http.MethodPost, "/transactions", limited(rt.Transactions.Post))
			r.Get("/transfers", rt.Transfers.ListByAccount)
		})
	})

	r.Route("/transactions", func(r chi.Router) {
		r.Get("/reference/{reference}", rt.Transactions.GetByReference)
		r.Get("/{id}", rt.Transactions.Get)
		r.Delete("/{id}", rt.Transactions.Delete)
		r.Method(http.MethodPost, "/{id}/reverse", limited(rt.Transactions.Reverse))
	})

	r.Route("/transfers", func(r chi.Router) {
		r.Method(http.MethodPost, "/", limited(rt.Transfers.Create))
		r.Get("/", rt.Transfers.List)
		r.Get("/reference/{reference}", rt.Transfers.GetByReference)
		r.Get("/{id}", rt.Transfers.Get)
		r.Delete("/{id}", rt.Transfers.Delete)
		r.Post("/{id}/cancel", rt.Transfers.Cancel)
		r.Get("/{id}/transactions", rt.Transfers.Entries)
		r.Get("/{id}/pacs008", rt.Transfers.Pacs008)
		r.Get("/{id}/pacs002", rt.Transfers.StatusReport)
	})

	if rt.QR != nil {
		r.Post("/qr/generate", rt.QR.GenerateQR)
		r.Method(http.MethodPost, "/qr/process", limited(rt.QR.ProcessQR))
	}
	if rt.Integrity != nil {
		r.Get("/ledger/integrity", rt.Integrity.Check)
		r.Post("/ledger/integrity/jobs", rt.Integrity.Enqueue)
	}
}
