package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/match-escrow/internal/escrow/domain"
	"github.com/radieske/match-escrow/internal/escrow/dto"
	"github.com/radieske/match-escrow/internal/escrow/engine"
	"github.com/radieske/match-escrow/internal/ledger"
)

func (a *API) getPlatform(w http.ResponseWriter, r *http.Request) {
	p, err := a.Engine.Platform(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromPlatform(p))
}

func (a *API) platformParams(r *http.Request) (engine.PlatformParams, error) {
	var req dto.InitPlatformRequest
	if err := decode(r, &req); err != nil {
		return engine.PlatformParams{}, err
	}
	lo, hi, err := req.Stakes()
	if err != nil {
		return engine.PlatformParams{}, err
	}
	return engine.PlatformParams{
		Treasury: req.Treasury, Oracle: req.Oracle, FeeBps: req.FeeBps, MinStake: lo, MaxStake: hi,
	}, nil
}

func (a *API) initPlatform(w http.ResponseWriter, r *http.Request) {
	params, err := a.platformParams(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	p, err := a.Engine.InitializePlatform(r.Context(), caller(r), params)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.FromPlatform(p))
}

func (a *API) updatePlatform(w http.ResponseWriter, r *http.Request) {
	params, err := a.platformParams(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	p, err := a.Engine.UpdatePlatform(r.Context(), caller(r), params)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromPlatform(p))
}

// createAccount: o tier vem do colaborador de KYC, que é quem chama esta rota;
// qualquer outro caller recebe 403.
func (a *API) createAccount(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateAccountRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	acct, err := a.Engine.CreateUserAccount(r.Context(), caller(r), req.Owner, req.KYCTier, req.Region)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.FromAccount(acct))
}

func (a *API) getAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := a.Engine.Account(r.Context(), chi.URLParam(r, "owner"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromAccount(acct))
}

func (a *API) setRisk(w http.ResponseWriter, r *http.Request) {
	var req dto.RiskControlsRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	capUnits, err := req.Cap()
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	acct, err := a.Engine.SetRiskControls(r.Context(), caller(r), chi.URLParam(r, "owner"),
		engine.RiskControls{Blacklisted: req.Blacklisted, StakeCap: capUnits})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromAccount(acct))
}

func (a *API) setKYCTier(w http.ResponseWriter, r *http.Request) {
	var req dto.KYCTierRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	acct, err := a.Engine.UpdateKYCTier(r.Context(), caller(r), chi.URLParam(r, "owner"), *req.KYCTier)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromAccount(acct))
}

func (a *API) checkCooldown(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	if err := a.Engine.EnforceWithdrawalCooldown(r.Context(), owner, a.now()); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"allowed": true})
}

func (a *API) recordWithdrawal(w http.ResponseWriter, r *http.Request) {
	acct, err := a.Engine.RecordWithdrawal(r.Context(), caller(r), chi.URLParam(r, "owner"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromAccount(acct))
}

func (a *API) createMatch(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateMatchRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	params := engine.MatchParams{ID: req.ID, Type: domain.MatchType(req.Type), Outcomes: req.Outcomes}
	if req.BetsCloseAt != nil {
		params.BetsCloseAt = req.BetsCloseAt.UTC()
	}
	m, err := a.Engine.CreateMatch(r.Context(), caller(r), params)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.FromMatch(m))
}

// getMatch lê do cache quando possível; cache com erro é ignorado.
func (a *API) getMatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if a.Cache != nil {
		var cached dto.MatchResponse
		if ok, _ := a.Cache.GetMatch(r.Context(), id, &cached); ok {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}
	m, err := a.Engine.Match(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	resp := dto.FromMatch(m)
	if a.Cache != nil {
		if err := a.Cache.SetMatch(r.Context(), id, m.Version, resp, a.CacheTTL); err != nil {
			a.Log.Debug("match cache write failed", zap.String("match_id", id), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) openMatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	m, err := a.Engine.OpenMatch(r.Context(), caller(r), id)
	a.matchResult(w, r, m, err)
}

func (a *API) startMatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	m, err := a.Engine.StartMatch(r.Context(), caller(r), id)
	a.matchResult(w, r, m, err)
}

func (a *API) completeMatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req dto.CompleteMatchRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	m, err := a.Engine.CompleteMatch(r.Context(), caller(r), id, req.Winner, req.ProofRef)
	a.matchResult(w, r, m, err)
}

func (a *API) matchResult(w http.ResponseWriter, r *http.Request, m domain.Match, err error) {
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromMatch(m))
}

func (a *API) finalizeMatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rep, err := a.Engine.FinalizeMatch(r.Context(), caller(r), id)
	a.settlementResult(w, r, rep, err)
}

func (a *API) cancelMatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rep, err := a.Engine.CancelMatch(r.Context(), caller(r), id)
	a.settlementResult(w, r, rep, err)
}

func (a *API) settlementResult(w http.ResponseWriter, r *http.Request, rep engine.SettlementReport, err error) {
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromSettlement(rep))
}

func (a *API) placeBet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req dto.PlaceBetRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	stake, err := ledger.Parse(req.Stake)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	b, err := a.Engine.PlaceBet(r.Context(), engine.BetRequest{
		Bettor: caller(r), MatchID: id, Outcome: req.Outcome, Stake: stake,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.FromBet(b))
}

func (a *API) listBets(w http.ResponseWriter, r *http.Request) {
	bets, err := a.Engine.MatchBets(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromBets(bets))
}

func (a *API) getEscrow(w http.ResponseWriter, r *http.Request) {
	e, err := a.Engine.Escrow(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromEscrow(e))
}

// audit devolve 200 com balanced=false quando o invariante está quebrado, para o auditor ver os números.
func (a *API) audit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := a.Engine.Audit(r.Context(), id)
	if err != nil && !errors.Is(err, domain.ErrInvariantViolation) {
		a.writeError(w, r, err)
		return
	}
	if err != nil {
		a.Log.Error("escrow invariant violated", zap.String("match_id", id), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, dto.FromReconciliation(id, rec))
}

func (a *API) getBet(w http.ResponseWriter, r *http.Request) {
	b, err := a.Engine.Bet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromBet(b))
}
