package gateway

import (
	"math/big"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"yieldnet/native/agreement"
	"yieldnet/native/governance"
)

type registerAssetRequest struct {
	Caller   string `json:"caller"`
	Metadata string `json:"metadata"`
}

func (s *Server) handleRegisterAsset(w http.ResponseWriter, r *http.Request) {
	var req registerAssetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddr(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	asset, err := s.registry.Register(caller, req.Metadata)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAssetResponse(asset))
}

func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	asset, err := s.registry.Get(id)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAssetResponse(asset))
}

type verifyAssetRequest struct {
	Caller string `json:"caller"`
}

func (s *Server) handleVerifyAsset(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req verifyAssetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddr(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	err = s.registry.Verify(caller, id)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type contributionRequest struct {
	Investor string `json:"investor"`
	Amount   string `json:"amount"`
}

type createAgreementRequest struct {
	Caller        string                `json:"caller"`
	AssetID       uint64                `json:"assetId"`
	Principal     string                `json:"principal"`
	TermMonths    uint32                `json:"termMonths"`
	RateBps       uint32                `json:"rateBps"`
	Contributions []contributionRequest `json:"contributions,omitempty"`
}

func (s *Server) handleCreateAgreement(w http.ResponseWriter, r *http.Request) {
	var req createAgreementRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddr(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	principal, err := parseBig(req.Principal)
	if err != nil {
		writeError(w, err)
		return
	}
	contributions := make([]agreement.Contribution, 0, len(req.Contributions))
	for _, c := range req.Contributions {
		investor, err := parseAddr(c.Investor)
		if err != nil {
			writeError(w, err)
			return
		}
		amount, err := parseBig(c.Amount)
		if err != nil {
			writeError(w, err)
			return
		}
		contributions = append(contributions, agreement.Contribution{Investor: investor, Amount: amount})
	}
	s.mu.Lock()
	record, err := s.agreements.Create(caller, req.AssetID, principal, req.TermMonths, req.RateBps, contributions)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	s.metrics.ObserveAgreementCreated()
	s.logger.Info("agreement created",
		"agreementId", record.ID,
		"assetId", record.AssetID,
		"principal", record.Principal.String(),
	)
	writeJSON(w, http.StatusCreated, toAgreementResponse(record))
}

func (s *Server) handleGetAgreement(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	record, err := s.agreements.Get(id)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAgreementResponse(record))
}

func (s *Server) handleMonthlyPayment(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	payment, err := s.agreements.MonthlyPayment(id)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"monthlyPayment": payment.String()})
}

func (s *Server) handleOutstanding(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	outstanding, err := s.agreements.Outstanding(id)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"outstanding": outstanding.String()})
}

type repaymentRequest struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

func (s *Server) handleRepayment(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req repaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddr(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseBig(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	record, err := s.agreements.MakeRepayment(caller, id, amount)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	paid, _ := new(big.Float).SetInt(amount).Float64()
	s.metrics.ObserveRepayment(paid)
	writeJSON(w, http.StatusOK, toAgreementResponse(record))
}

type setPayerRequest struct {
	Caller string `json:"caller"`
	Payer  string `json:"payer"`
}

func (s *Server) handleSetPayer(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req setPayerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddr(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	payer, err := parseAddr(req.Payer)
	if err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	err = s.agreements.SetDesignatedPayer(caller, id, payer)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type recordMissedRequest struct {
	DueDate uint64 `json:"dueDate"`
}

func (s *Server) handleRecordMissed(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req recordMissedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	record, err := s.agreements.RecordMissedPayment(id, req.DueDate)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	s.metrics.ObserveMissedPayment()
	writeJSON(w, http.StatusOK, toAgreementResponse(record))
}

func (s *Server) handleCheckDefault(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	record, err := s.agreements.CheckDefault(id)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	if record.Status() == agreement.StatusDefaulted {
		s.metrics.ObserveDefault()
	}
	writeJSON(w, http.StatusOK, toAgreementResponse(record))
}

func (s *Server) handleGetLedger(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	l, err := s.ledgers.Get(id)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLedgerResponse(l))
}

type transferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req transferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	from, err := parseAddr(req.From)
	if err != nil {
		writeError(w, err)
		return
	}
	to, err := parseAddr(req.To)
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseBig(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	err = s.ledgers.Transfer(id, from, to, amount)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type approveRequest struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req approveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	owner, err := parseAddr(req.Owner)
	if err != nil {
		writeError(w, err)
		return
	}
	spender, err := parseAddr(req.Spender)
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseBig(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	err = s.ledgers.Approve(id, owner, spender, amount)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type transferFromRequest struct {
	Spender string `json:"spender"`
	From    string `json:"from"`
	To      string `json:"to"`
	Amount  string `json:"amount"`
}

func (s *Server) handleTransferFrom(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req transferFromRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	spender, err := parseAddr(req.Spender)
	if err != nil {
		writeError(w, err)
		return
	}
	from, err := parseAddr(req.From)
	if err != nil {
		writeError(w, err)
		return
	}
	to, err := parseAddr(req.To)
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseBig(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	err = s.ledgers.TransferFrom(id, spender, from, to, amount)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type proposeRequest struct {
	Proposer    string `json:"proposer"`
	AgreementID uint64 `json:"agreementId"`
	Kind        string `json:"kind"`
	NewValue    string `json:"newValue"`
	ParamKey    string `json:"paramKey,omitempty"`
	Description string `json:"description"`
}

func (s *Server) handlePropose(w http.ResponseWriter, r *http.Request) {
	var req proposeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	proposer, err := parseAddr(req.Proposer)
	if err != nil {
		writeError(w, err)
		return
	}
	value, err := parseBig(req.NewValue)
	if err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	id, err := s.gov.Propose(proposer, req.AgreementID, governance.ProposalKind(req.Kind), value, req.ParamKey, req.Description)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"proposalId": id})
}

func (s *Server) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	proposal, err := s.gov.Get(id)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	now := uint64(time.Now().Unix())
	writeJSON(w, http.StatusOK, toProposalResponse(proposal, now))
}

type castVoteRequest struct {
	Voter  string `json:"voter"`
	Choice string `json:"choice"`
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req castVoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	voter, err := parseAddr(req.Voter)
	if err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	err = s.gov.CastVote(id, voter, governance.VoteChoice(req.Choice))
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	s.metrics.ObserveVote()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	tally, err := s.gov.Execute(id)
	var kind governance.ProposalKind
	if err == nil {
		if proposal, getErr := s.gov.Get(id); getErr == nil {
			kind = proposal.Kind
		}
	}
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	if tally.Passed {
		s.metrics.ObserveProposalExecuted(string(kind))
	}
	writeJSON(w, http.StatusOK, toTallyResponse(tally))
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddr(chi.URLParam(r, "addr"))
	if err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	account, err := s.state.GetAccount(addr)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(addr, account))
}

type creditAccountRequest struct {
	Amount string `json:"amount"`
}

func (s *Server) handleCreditAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddr(chi.URLParam(r, "addr"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req creditAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseBig(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	err = s.state.AccountCredit(addr, amount)
	var account accountResponse
	if err == nil {
		if loaded, loadErr := s.state.GetAccount(addr); loadErr == nil {
			account = toAccountResponse(addr, loaded)
		}
	}
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}
