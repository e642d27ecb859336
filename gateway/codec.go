package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"yieldnet/core/types"
	"yieldnet/crypto"
	"yieldnet/native/agreement"
	"yieldnet/native/common"
	"yieldnet/native/governance"
	"yieldnet/native/ledger"
	"yieldnet/native/registry"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	if errors.Is(err, common.ErrModulePaused) {
		return http.StatusServiceUnavailable
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "not found"):
		return http.StatusNotFound
	case strings.Contains(msg, "already"):
		return http.StatusConflict
	case strings.Contains(msg, "is not the") || strings.Contains(msg, "neither owner"):
		return http.StatusForbidden
	default:
		return http.StatusBadRequest
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func parseID(r *http.Request) (uint64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid identifier %q", raw)
	}
	return id, nil
}

func parseAddr(encoded string) ([20]byte, error) {
	var out [20]byte
	addr, err := crypto.DecodeAddress(strings.TrimSpace(encoded))
	if err != nil {
		return out, fmt.Errorf("invalid address %q: %w", encoded, err)
	}
	copy(out[:], addr.Bytes())
	return out, nil
}

func parseBig(value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer amount %q", value)
	}
	return amount, nil
}

func encodeAddr(addr [20]byte) string {
	return crypto.NewAddress(crypto.YieldPrefix, addr[:]).String()
}

type assetResponse struct {
	ID          uint64 `json:"id"`
	Owner       string `json:"owner"`
	Metadata    string `json:"metadata"`
	Verified    bool   `json:"verified"`
	AgreementID uint64 `json:"agreementId,omitempty"`
	CreatedAt   uint64 `json:"createdAt"`
}

func toAssetResponse(a *registry.Asset) assetResponse {
	return assetResponse{
		ID:          a.ID,
		Owner:       encodeAddr(a.Owner),
		Metadata:    a.Metadata,
		Verified:    a.Verified,
		AgreementID: a.AgreementID,
		CreatedAt:   a.CreatedAt,
	}
}

type agreementResponse struct {
	ID                 uint64 `json:"id"`
	AssetID            uint64 `json:"assetId"`
	Owner              string `json:"owner"`
	Principal          string `json:"principal"`
	TermMonths         uint32 `json:"termMonths"`
	RateBps            uint32 `json:"rateBps"`
	TotalRepaid        string `json:"totalRepaid"`
	Status             string `json:"status"`
	GracePeriodSeconds uint64 `json:"gracePeriodSeconds"`
	PenaltyRateBps     uint32 `json:"penaltyRateBps"`
	DefaultThreshold   uint32 `json:"defaultThreshold"`
	AllowPartial       bool   `json:"allowPartial"`
	AllowEarly         bool   `json:"allowEarly"`
	DesignatedPayer    string `json:"designatedPayer,omitempty"`
	MissedPayments     uint32 `json:"missedPayments"`
	LastMissedAt       uint64 `json:"lastMissedAt,omitempty"`
	ReserveBalance     string `json:"reserveBalance"`
	CreatedAt          uint64 `json:"createdAt"`
}

func toAgreementResponse(a *agreement.YieldAgreement) agreementResponse {
	resp := agreementResponse{
		ID:                 a.ID,
		AssetID:            a.AssetID,
		Owner:              encodeAddr(a.Owner),
		Principal:          a.Principal.String(),
		TermMonths:         a.TermMonths,
		RateBps:            a.RateBps,
		TotalRepaid:        a.TotalRepaid.String(),
		Status:             a.Status().String(),
		GracePeriodSeconds: a.GracePeriodSeconds,
		PenaltyRateBps:     a.PenaltyRateBps,
		DefaultThreshold:   a.DefaultThreshold,
		AllowPartial:       a.AllowPartial,
		AllowEarly:         a.AllowEarly,
		MissedPayments:     a.MissedPayments,
		LastMissedAt:       a.LastMissedAt,
		ReserveBalance:     a.ReserveBalance.String(),
		CreatedAt:          a.CreatedAt,
	}
	if a.DesignatedPayer != ([20]byte{}) {
		resp.DesignatedPayer = encodeAddr(a.DesignatedPayer)
	}
	return resp
}

type holderResponse struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

type ledgerResponse struct {
	AgreementID uint64           `json:"agreementId"`
	TotalSupply string           `json:"totalSupply"`
	Holders     []holderResponse `json:"holders"`
	LockupUntil uint64           `json:"lockupUntil,omitempty"`
}

func toLedgerResponse(l *ledger.Ledger) ledgerResponse {
	resp := ledgerResponse{
		AgreementID: l.AgreementID,
		TotalSupply: l.TotalSupply.String(),
		Holders:     make([]holderResponse, len(l.Holders)),
		LockupUntil: l.LockupUntil,
	}
	for i, h := range l.Holders {
		resp.Holders[i] = holderResponse{Address: encodeAddr(h.Address), Balance: h.Balance.String()}
	}
	return resp
}

type proposalResponse struct {
	ID            uint64 `json:"id"`
	Proposer      string `json:"proposer"`
	AgreementID   uint64 `json:"agreementId"`
	Kind          string `json:"kind"`
	NewValue      string `json:"newValue"`
	ParamKey      string `json:"paramKey,omitempty"`
	Description   string `json:"description"`
	Status        string `json:"status"`
	VotingStart   uint64 `json:"votingStart"`
	VotingEnd     uint64 `json:"votingEnd"`
	ForPower      string `json:"forPower"`
	AgainstPower  string `json:"againstPower"`
	AbstainPower  string `json:"abstainPower"`
	QuorumReached bool   `json:"quorumReached"`
}

func toProposalResponse(p *governance.Proposal, now uint64) proposalResponse {
	return proposalResponse{
		ID:            p.ID,
		Proposer:      encodeAddr(p.Proposer),
		AgreementID:   p.AgreementID,
		Kind:          string(p.Kind),
		NewValue:      p.NewValue.String(),
		ParamKey:      p.ParamKey,
		Description:   p.Description,
		Status:        p.Status(now).String(),
		VotingStart:   p.VotingStart,
		VotingEnd:     p.VotingEnd,
		ForPower:      p.ForPower.String(),
		AgainstPower:  p.AgainstPower.String(),
		AbstainPower:  p.AbstainPower.String(),
		QuorumReached: p.QuorumReached,
	}
}

type tallyResponse struct {
	ForPower     string `json:"forPower"`
	AgainstPower string `json:"againstPower"`
	AbstainPower string `json:"abstainPower"`
	TotalSupply  string `json:"totalSupply"`
	QuorumBps    uint32 `json:"quorumBps"`
	Quorum       bool   `json:"quorum"`
	Passed       bool   `json:"passed"`
}

func toTallyResponse(t *governance.Tally) tallyResponse {
	return tallyResponse{
		ForPower:     t.ForPower.String(),
		AgainstPower: t.AgainstPower.String(),
		AbstainPower: t.AbstainPower.String(),
		TotalSupply:  t.TotalSupply.String(),
		QuorumBps:    t.QuorumBps,
		Quorum:       t.Quorum,
		Passed:       t.Passed,
	}
}

type accountResponse struct {
	Address string `json:"address"`
	Nonce   uint64 `json:"nonce"`
	Balance string `json:"balance"`
}

func toAccountResponse(addr [20]byte, account *types.Account) accountResponse {
	return accountResponse{
		Address: encodeAddr(addr),
		Nonce:   account.Nonce,
		Balance: account.Balance.String(),
	}
}
