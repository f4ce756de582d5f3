package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fastprodman/gumball/internal/services/gumball"
)

const (
	defaultItemsLimit = 50
	maxItemsLimit     = gumball.MaxItemsPage
)

// Machine is everything the HTTP layer needs from the core.
type Machine interface {
	gumball.Dispenser
	gumball.CreditLedger
}

type handlers struct {
	m Machine
}

func accountParam(r *http.Request, name string) gumball.Account {
	return gumball.Account(chi.URLParam(r, name))
}

// GET /machine
func (h *handlers) getMachine(w http.ResponseWriter, r *http.Request) {
	st, err := h.m.Status(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Active:        st.Active,
		ReservoirSize: st.ReservoirSize,
		Height:        st.Height,
		TotalSupply:   formatAmount(st.TotalSupply),
		Params:        toParamsResponse(h.m.Params()),
	})
}

// GET /machine/items?offset=&limit=
func (h *handlers) listItems(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, "invalid_query", "offset must be a non-negative integer")
		return
	}

	limit, err := queryInt(r, "limit", defaultItemsLimit)
	if err != nil || limit <= 0 || limit > maxItemsLimit {
		writeError(w, http.StatusBadRequest, "invalid_query", "limit must be between 1 and 500")
		return
	}

	items, err := h.m.Items(r.Context(), offset, limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, itemsResponse{Offset: offset, Items: items})
}

// GET /supply
func (h *handlers) getSupply(w http.ResponseWriter, r *http.Request) {
	supply, err := h.m.TotalSupply(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, supplyResponse{TotalSupply: formatAmount(supply)})
}

// POST /accounts/{account}/credits
func (h *handlers) acquireCredits(w http.ResponseWriter, r *http.Request) {
	acct := accountParam(r, "account")

	var req amountRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	deposit, err := parseAmountCents(req.Amount, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_amount", err.Error())
		return
	}

	minted, err := h.m.AcquireCredits(r.Context(), acct, deposit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	balance, err := h.m.BalanceOf(r.Context(), acct)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, creditsResponse{
		Account: string(acct),
		Minted:  formatAmount(minted),
		Balance: formatAmount(balance),
	})
}

// POST /accounts/{account}/items
func (h *handlers) contributeItem(w http.ResponseWriter, r *http.Request) {
	acct := accountParam(r, "account")

	var req contributeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	item := gumball.Item{Collection: req.Collection, TokenID: req.TokenID}

	err := h.m.ContributeItem(r.Context(), acct, item)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

// POST /accounts/{account}/insert
func (h *handlers) insert(w http.ResponseWriter, r *http.Request) {
	acct := accountParam(r, "account")

	err := h.m.Insert(r.Context(), acct)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	h.writeSession(w, r, acct)
}

// POST /accounts/{account}/crank
func (h *handlers) crank(w http.ResponseWriter, r *http.Request) {
	acct := accountParam(r, "account")

	commit, err := h.m.Crank(r.Context(), acct)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, crankResponse{Account: string(acct), CommitBlock: commit})
}

// POST /accounts/{account}/reveal
func (h *handlers) reveal(w http.ResponseWriter, r *http.Request) {
	acct := accountParam(r, "account")

	item, err := h.m.Reveal(r.Context(), acct)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, revealResponse{Account: string(acct), Item: item})
}

// GET /accounts/{account}/session
func (h *handlers) getSession(w http.ResponseWriter, r *http.Request) {
	h.writeSession(w, r, accountParam(r, "account"))
}

func (h *handlers) writeSession(w http.ResponseWriter, r *http.Request, acct gumball.Account) {
	s, err := h.m.Session(r.Context(), acct)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(acct, s))
}

// GET /accounts/{account}/last-draw
func (h *handlers) getLastDraw(w http.ResponseWriter, r *http.Request) {
	acct := accountParam(r, "account")

	item, ok, err := h.m.LastDraw(r.Context(), acct)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	if !ok {
		writeError(w, http.StatusNotFound, "no_draw", "account has not drawn yet")
		return
	}

	writeJSON(w, http.StatusOK, revealResponse{Account: string(acct), Item: item})
}

// GET /accounts/{account}/balance
func (h *handlers) getBalance(w http.ResponseWriter, r *http.Request) {
	acct := accountParam(r, "account")

	balance, err := h.m.BalanceOf(r.Context(), acct)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, balanceResponse{Account: string(acct), Balance: formatAmount(balance)})
}

// GET /accounts/{account}/allowances/{spender}
func (h *handlers) getAllowance(w http.ResponseWriter, r *http.Request) {
	owner := accountParam(r, "account")
	spender := accountParam(r, "spender")

	amount, err := h.m.Allowance(r.Context(), owner, spender)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, allowanceResponse{
		Owner:   string(owner),
		Spender: string(spender),
		Amount:  formatAmount(amount),
	})
}

// POST /accounts/{account}/approve
func (h *handlers) approve(w http.ResponseWriter, r *http.Request) {
	owner := accountParam(r, "account")

	var req approveRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	amount, err := parseAmountCents(req.Amount, true)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_amount", err.Error())
		return
	}

	spender := gumball.Account(req.Spender)

	err = h.m.Approve(r.Context(), owner, spender, amount)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, allowanceResponse{
		Owner:   string(owner),
		Spender: req.Spender,
		Amount:  formatAmount(amount),
	})
}

// POST /accounts/{account}/transfer
func (h *handlers) transfer(w http.ResponseWriter, r *http.Request) {
	from := accountParam(r, "account")

	var req transferRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	amount, err := parseAmountCents(req.Amount, true)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_amount", err.Error())
		return
	}

	err = h.m.Transfer(r.Context(), from, gumball.Account(req.To), amount)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	h.writeBalance(w, r, from)
}

// POST /accounts/{account}/transfer-from
func (h *handlers) transferFrom(w http.ResponseWriter, r *http.Request) {
	spender := accountParam(r, "account")

	var req transferFromRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	amount, err := parseAmountCents(req.Amount, true)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_amount", err.Error())
		return
	}

	from := gumball.Account(req.From)

	err = h.m.TransferFrom(r.Context(), spender, from, gumball.Account(req.To), amount)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	h.writeBalance(w, r, from)
}

func (h *handlers) writeBalance(w http.ResponseWriter, r *http.Request, acct gumball.Account) {
	balance, err := h.m.BalanceOf(r.Context(), acct)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, balanceResponse{Account: string(acct), Balance: formatAmount(balance)})
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}

	return strconv.Atoi(raw)
}
