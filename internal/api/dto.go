package api

import (
	"github.com/fastprodman/gumball/internal/services/gumball"
)

type amountRequest struct {
	Amount string `json:"amount"`
}

type contributeRequest struct {
	Collection string `json:"collection"`
	TokenID    uint64 `json:"tokenId"`
}

type approveRequest struct {
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type transferRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type transferFromRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type tierResponse struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type paramsResponse struct {
	Price        string         `json:"price"`
	ActivateAt   int            `json:"activateAt"`
	DeactivateAt int            `json:"deactivateAt"`
	BufferBlocks uint64         `json:"bufferBlocks"`
	MaxBlocks    uint64         `json:"maxBlocks"`
	Tiers        []tierResponse `json:"tiers"`
	Custodian    string         `json:"custodian"`
}

type statusResponse struct {
	Active        bool           `json:"active"`
	ReservoirSize int            `json:"reservoirSize"`
	Height        uint64         `json:"height"`
	TotalSupply   string         `json:"totalSupply"`
	Params        paramsResponse `json:"params"`
}

type sessionResponse struct {
	Account     string        `json:"account"`
	Phase       string        `json:"phase"`
	CommitBlock uint64        `json:"commitBlock,omitempty"`
	LastDraw    *gumball.Item `json:"lastDraw,omitempty"`
}

type balanceResponse struct {
	Account string `json:"account"`
	Balance string `json:"balance"`
}

type creditsResponse struct {
	Account string `json:"account"`
	Minted  string `json:"minted"`
	Balance string `json:"balance"`
}

type crankResponse struct {
	Account     string `json:"account"`
	CommitBlock uint64 `json:"commitBlock"`
}

type revealResponse struct {
	Account string       `json:"account"`
	Item    gumball.Item `json:"item"`
}

type allowanceResponse struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type itemsResponse struct {
	Offset int            `json:"offset"`
	Items  []gumball.Item `json:"items"`
}

type supplyResponse struct {
	TotalSupply string `json:"totalSupply"`
}

func toParamsResponse(p gumball.Params) paramsResponse {
	tiers := make([]tierResponse, 0, len(p.Tiers))
	for _, t := range p.Tiers {
		tiers = append(tiers, tierResponse{From: formatAmount(t.From), To: formatAmount(t.To)})
	}

	return paramsResponse{
		Price:        formatAmount(p.Price),
		ActivateAt:   p.Thresholds.ActivateAt,
		DeactivateAt: p.Thresholds.DeactivateAt,
		BufferBlocks: p.Window.BufferBlocks,
		MaxBlocks:    p.Window.MaxBlocks,
		Tiers:        tiers,
		Custodian:    string(p.Custodian),
	}
}

func toSessionResponse(acct gumball.Account, s gumball.Session) sessionResponse {
	return sessionResponse{
		Account:     string(acct),
		Phase:       s.Phase.String(),
		CommitBlock: s.CommitBlock,
		LastDraw:    s.LastDraw,
	}
}
