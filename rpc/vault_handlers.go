package rpc

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type amountRequest struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

type addressRequest struct {
	Address string `json:"address"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	user, err := parseAddressString(req.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := parseAmountString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.vault.Deposit(user, amount); err != nil {
		respondEngineError(w, err)
		return
	}
	balance, err := s.vault.BalanceOf(user)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"address": formatAddress(user),
		"balance": balance.String(),
	})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	user, err := parseAddressString(req.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := parseAmountString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.vault.Withdraw(user, amount); err != nil {
		respondEngineError(w, err)
		return
	}
	balance, err := s.vault.BalanceOf(user)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"address": formatAddress(user),
		"balance": balance.String(),
	})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	user, err := parseAddressString(req.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	claimed, err := s.vault.Claim(user)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"address": formatAddress(user),
		"claimed": claimed.String(),
	})
}

func (s *Server) handleHarvest(w http.ResponseWriter, _ *http.Request) {
	harvested, err := s.vault.CheckAndHarvest()
	if err != nil {
		respondEngineError(w, err)
		return
	}
	epoch, err := s.vault.CurrentEpoch()
	if err != nil {
		respondEngineError(w, err)
		return
	}
	// A false result is the epoch-gating no-op, reported so callers can tell
	// it apart from a state change.
	writeJSON(w, http.StatusOK, map[string]any{
		"harvested": harvested,
		"epoch":     epoch,
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	total, err := s.vault.TotalSupply()
	if err != nil {
		respondEngineError(w, err)
		return
	}
	weighted, err := s.vault.TotalTimeWeightedShares()
	if err != nil {
		respondEngineError(w, err)
		return
	}
	epoch, err := s.vault.CurrentEpoch()
	if err != nil {
		respondEngineError(w, err)
		return
	}
	acc, err := s.vault.AccRewardPerShare()
	if err != nil {
		respondEngineError(w, err)
		return
	}
	carry, err := s.vault.CarryOverReward()
	if err != nil {
		respondEngineError(w, err)
		return
	}
	users, err := s.vault.Users()
	if err != nil {
		respondEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"totalSupply":         total.String(),
		"totalWeightedShares": weighted.String(),
		"epoch":               epoch,
		"accRewardPerShare":   acc.String(),
		"carryOverReward":     carry.String(),
		"users":               len(users),
	})
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	user, err := parseAddressString(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	balance, err := s.vault.BalanceOf(user)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	weighted, err := s.vault.UserTimeWeightedShares(user)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	entry, err := s.vault.UserEntryTime(user)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	claimed, err := s.vault.UserClaimedReward(user)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	lastClaim, err := s.vault.LastClaimEpoch(user)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"address":        formatAddress(user),
		"balance":        balance.String(),
		"weightedShares": weighted.String(),
		"entryTime":      entry,
		"claimedReward":  claimed.String(),
		"lastClaimEpoch": lastClaim,
	})
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	user, err := parseAddressString(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pending, err := s.vault.PendingReward(user)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"address": formatAddress(user),
		"pending": pending.String(),
	})
}
