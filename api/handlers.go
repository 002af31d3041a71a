package api

import (
	"encoding/base64"
	"math/big"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/chids04/0xm-relay/errors"
	"github.com/chids04/0xm-relay/ledger"
	"github.com/chids04/0xm-relay/workflow"
)

func (s *Server) handleCreateWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.resolveCaller(w, r)
	if !ok {
		return
	}
	wallet, err := s.ops.CreateWallet(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeData(w, http.StatusCreated, map[string]string{
		"userId":  wallet.UserID,
		"address": wallet.Address,
	})
}

func (s *Server) handleWalletAddress(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.resolveCaller(w, r)
	if !ok {
		return
	}
	address, err := s.ops.WalletAddress(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeData(w, http.StatusOK, map[string]string{"address": address})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.resolveCaller(w, r)
	if !ok {
		return
	}
	balance, err := s.ops.Balance(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeData(w, http.StatusOK, map[string]string{"balance": balance.String()})
}

type historyEntry struct {
	TxHash      string `json:"txHash"`
	Action      string `json:"action"`
	Status      string `json:"status"`
	BlockNumber uint64 `json:"blockNumber"`
	SubmittedAt string `json:"submittedAt"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.resolveCaller(w, r)
	if !ok {
		return
	}
	records, err := s.ops.History(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	entries := make([]historyEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, historyEntry{
			TxHash:      rec.TxHash,
			Action:      rec.Action,
			Status:      rec.Status,
			BlockNumber: rec.BlockNumber,
			SubmittedAt: rec.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	s.writeData(w, http.StatusOK, entries)
}

func (s *Server) handleQuoteFee(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.resolveCaller(w, r)
	if !ok {
		return
	}
	quote, err := s.ops.QuoteFee(r.Context(), userID, ledger.Action(chi.URLParam(r, "action")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeData(w, http.StatusOK, map[string]any{
		"action":        string(quote.Action),
		"baseFee":       quote.BaseFee.String(),
		"discountedFee": quote.DiscountedFee.String(),
		"tier":          uint8(quote.Tier),
	})
}

type createMilestoneRequest struct {
	Description   string   `json:"description"`
	OccurredAt    string   `json:"occurredAt"`
	ImageBase64   string   `json:"image,omitempty"`
	TaggedUserIDs []string `json:"taggedUserIds,omitempty"`
}

func (s *Server) handleCreateMilestone(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.resolveCaller(w, r)
	if !ok {
		return
	}
	var req createMilestoneRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	var image []byte
	if req.ImageBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil {
			s.writeError(w, r, errors.New(errors.CodeValidation, "image must be base64 encoded"))
			return
		}
		image = decoded
	}

	m, err := s.ops.CreateMilestone(r.Context(), userID, workflow.CreateMilestoneInput{
		Description:   req.Description,
		OccurredAt:    req.OccurredAt,
		Image:         image,
		TaggedUserIDs: req.TaggedUserIDs,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeData(w, http.StatusCreated, m)
}

func (s *Server) handleSignMilestone(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.resolveCaller(w, r)
	if !ok {
		return
	}
	result, err := s.ops.SignMilestone(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeData(w, http.StatusOK, result)
}

func (s *Server) handleDeclineMilestone(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.resolveCaller(w, r)
	if !ok {
		return
	}
	if err := s.ops.DeclineMilestone(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeData(w, http.StatusOK, map[string]bool{"declined": true})
}

func (s *Server) handleVerifyMilestone(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.resolveCaller(w, r)
	if !ok {
		return
	}
	result, err := s.ops.VerifyMilestone(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeData(w, http.StatusOK, result)
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.resolveCaller(w, r); !ok {
		return
	}
	finalized, err := s.ops.Reconcile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeData(w, http.StatusOK, map[string]bool{"finalized": finalized})
}

type mintRequest struct {
	ImageBase64 string `json:"image,omitempty"`
}

func (s *Server) handleMintCertificate(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.resolveCaller(w, r)
	if !ok {
		return
	}
	var req mintRequest
	if r.ContentLength > 0 {
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	var image []byte
	if req.ImageBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil {
			s.writeError(w, r, errors.New(errors.CodeValidation, "image must be base64 encoded"))
			return
		}
		image = decoded
	}

	result, err := s.ops.MintCertificate(r.Context(), userID, chi.URLParam(r, "id"), image)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeData(w, http.StatusCreated, result)
}

type transferRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.resolveCaller(w, r)
	if !ok {
		return
	}
	var req transferRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	amount, valid := new(big.Int).SetString(req.Amount, 10)
	if !valid {
		s.writeError(w, r, errors.Newf(errors.CodeValidation, "%q is not a valid amount", req.Amount))
		return
	}

	result, err := s.ops.Transfer(r.Context(), userID, req.To, amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeData(w, http.StatusOK, map[string]string{
		"txHash": result.TxHash,
		"amount": result.Amount.String(),
		"fee":    result.Fee.String(),
	})
}

type subscribeRequest struct {
	Tier uint8 `json:"tier"`
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.resolveCaller(w, r)
	if !ok {
		return
	}
	var req subscribeRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	txHash, err := s.ops.Subscribe(r.Context(), userID, ledger.Tier(req.Tier))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeData(w, http.StatusOK, map[string]string{"txHash": txHash})
}
