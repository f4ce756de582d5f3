package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/fastprodman/gumball/internal/services/gumball"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

// Order matters: the first match wins.
var errorMappings = []errorMapping{
	{gumball.ErrInvalidAccount, http.StatusBadRequest, "invalid_account"},
	{gumball.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{gumball.ErrInvalidItem, http.StatusBadRequest, "invalid_item"},
	{gumball.ErrBelowMinimumDeposit, http.StatusBadRequest, "below_minimum_deposit"},
	{gumball.ErrItemNotFound, http.StatusNotFound, "item_not_found"},
	{gumball.ErrInsufficientAllowance, http.StatusConflict, "insufficient_allowance"},
	{gumball.ErrInsufficientCredits, http.StatusConflict, "insufficient_credits"},
	{gumball.ErrInsufficientFunds, http.StatusConflict, "insufficient_funds"},
	{gumball.ErrWrongPhase, http.StatusConflict, "wrong_phase"},
	{gumball.ErrDuplicateItem, http.StatusConflict, "duplicate_item"},
	{gumball.ErrDuplicateOperation, http.StatusConflict, "duplicate_operation"},
	{gumball.ErrNotApproved, http.StatusConflict, "not_approved"},
	{gumball.ErrNotOwner, http.StatusConflict, "not_owner"},
	{gumball.ErrCommitBlockPassed, http.StatusConflict, "commit_block_passed"},
	{gumball.ErrWindowExpired, http.StatusGone, "window_expired"},
	{gumball.ErrTooEarly, http.StatusTooEarly, "too_early"},
	{gumball.ErrMachineInactive, http.StatusServiceUnavailable, "machine_inactive"},
	{gumball.ErrEmptyReservoir, http.StatusInternalServerError, "empty_reservoir"},
	{gumball.ErrBlockUnavailable, http.StatusServiceUnavailable, "block_unavailable"},
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

// writeDomainError maps err to a status and code. Unclassified errors are
// logged and reported as a bare internal error.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			writeError(w, m.status, m.code, err.Error())
			return
		}
	}

	slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "internal", "internal error")
}
