package api

import (
	"net/http"
	"strings"

	"github.com/fastprodman/gumball/internal/services/gumball"
)

// ReferenceMinter is the dev-only face of the simulated reference token.
type ReferenceMinter interface {
	Mint(to gumball.Account, amount int64) error
	Approve(owner, spender gumball.Account, amount int64) error
	BalanceOf(acct gumball.Account) int64
}

// ItemMinter is the dev-only face of the simulated item ledger.
type ItemMinter interface {
	Mint(collection string, to gumball.Account) (gumball.Item, error)
	SetApprovalForAll(owner, operator gumball.Account, approved bool)
}

// DevLedgers exposes the simulated ledgers over HTTP so a local machine
// can be funded and stocked. Mounted only in DEV.
type DevLedgers struct {
	Reference ReferenceMinter
	Items     ItemMinter
}

type devHandlers struct {
	ledgers   DevLedgers
	custodian gumball.Account
}

type devAccountRequest struct {
	Account    string `json:"account"`
	Amount     string `json:"amount,omitempty"`
	Collection string `json:"collection,omitempty"`
}

type devReferenceResponse struct {
	Account   string `json:"account"`
	Balance   string `json:"balance"`
	Allowance string `json:"allowance,omitempty"`
}

func (h *devHandlers) decodeAccount(w http.ResponseWriter, r *http.Request) (devAccountRequest, bool) {
	var req devAccountRequest
	if !decodeJSON(w, r, &req) {
		return req, false
	}

	err := gumball.Account(req.Account).Validate()
	if err != nil {
		writeDomainError(w, r, err)
		return req, false
	}

	return req, true
}

// POST /dev/reference/mint {"account","amount"}
func (h *devHandlers) mintReference(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAccount(w, r)
	if !ok {
		return
	}

	amount, err := parseAmountCents(req.Amount, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_amount", err.Error())
		return
	}

	acct := gumball.Account(req.Account)

	err = h.ledgers.Reference.Mint(acct, amount)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, devReferenceResponse{
		Account: req.Account,
		Balance: formatAmount(h.ledgers.Reference.BalanceOf(acct)),
	})
}

// POST /dev/reference/approve {"account","amount"}: approves the custodian.
func (h *devHandlers) approveReference(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAccount(w, r)
	if !ok {
		return
	}

	amount, err := parseAmountCents(req.Amount, true)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_amount", err.Error())
		return
	}

	acct := gumball.Account(req.Account)

	err = h.ledgers.Reference.Approve(acct, h.custodian, amount)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, devReferenceResponse{
		Account:   req.Account,
		Balance:   formatAmount(h.ledgers.Reference.BalanceOf(acct)),
		Allowance: formatAmount(amount),
	})
}

// POST /dev/items/mint {"account","collection"}
func (h *devHandlers) mintItem(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAccount(w, r)
	if !ok {
		return
	}

	if strings.TrimSpace(req.Collection) == "" {
		writeError(w, http.StatusBadRequest, "invalid_item", "collection required")
		return
	}

	item, err := h.ledgers.Items.Mint(req.Collection, gumball.Account(req.Account))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

// POST /dev/items/approve-all {"account"}: lets the custodian move every
// item the account holds.
func (h *devHandlers) approveAllItems(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAccount(w, r)
	if !ok {
		return
	}

	h.ledgers.Items.SetApprovalForAll(gumball.Account(req.Account), h.custodian, true)

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
