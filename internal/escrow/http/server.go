package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/radieske/match-escrow/internal/escrow/domain"
	"github.com/radieske/match-escrow/internal/escrow/dto"
	"github.com/radieske/match-escrow/internal/escrow/engine"
	"github.com/radieske/match-escrow/internal/ledger"
)

// CallerHeader carrega a identidade já autenticada pelo gateway.
const CallerHeader = "X-Caller-Identity"

// MatchCache é o cache de leitura das partidas (opcional). A invalidação não
// passa por aqui: é feita pelo sink de eventos do engine (cache.Invalidator).
type MatchCache interface {
	GetMatch(ctx context.Context, matchID string, dst any) (bool, error)
	SetMatch(ctx context.Context, matchID string, version int64, v any, ttl time.Duration) error
}

// API expõe o engine de escrow via REST.
type API struct {
	Engine   *engine.Engine
	Cache    MatchCache // nil desliga o cache
	CacheTTL time.Duration
	Log      *zap.Logger
	Now      func() time.Time
}

func (a *API) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now().UTC()
}

// Router monta as rotas; extra permite pendurar handlers como /ws no mesmo router.
func (a *API) Router(extra ...func(chi.Router)) http.Handler {
	if a.Log == nil {
		a.Log = zap.NewNop()
	}
	if a.CacheTTL == 0 {
		a.CacheTTL = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/platform", a.getPlatform)
		r.Post("/platform", a.initPlatform)
		r.Put("/platform", a.updatePlatform)

		r.Post("/accounts", a.createAccount)
		r.Get("/accounts/{owner}", a.getAccount)
		r.Put("/accounts/{owner}/risk", a.setRisk)
		r.Put("/accounts/{owner}/kyc", a.setKYCTier)
		r.Get("/accounts/{owner}/withdrawals/cooldown", a.checkCooldown)
		r.Post("/accounts/{owner}/withdrawals", a.recordWithdrawal)

		r.Post("/matches", a.createMatch)
		r.Get("/matches/{id}", a.getMatch)
		r.Post("/matches/{id}/open", a.openMatch)
		r.Post("/matches/{id}/start", a.startMatch)
		r.Post("/matches/{id}/complete", a.completeMatch)
		r.Post("/matches/{id}/finalize", a.finalizeMatch)
		r.Post("/matches/{id}/cancel", a.cancelMatch)
		r.Post("/matches/{id}/bets", a.placeBet)
		r.Get("/matches/{id}/bets", a.listBets)
		r.Get("/matches/{id}/escrow", a.getEscrow)
		r.Get("/matches/{id}/audit", a.audit)

		r.Get("/bets/{id}", a.getBet)
	})
	for _, fn := range extra {
		fn(r)
	}
	return r
}

func caller(r *http.Request) string { return r.Header.Get(CallerHeader) }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decode lê o corpo JSON e roda as validações do DTO.
func decode(r *http.Request, dst interface{ Validate() error }) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errBadJSON
	}
	return dst.Validate()
}

var errBadJSON = errors.New("bad json")

// writeError traduz erros do engine para HTTP mantendo o kind estável no corpo.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, errBadJSON):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "BadRequest", Message: err.Error()})
		return
	case errors.As(err, &verrs):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "ValidationFailed", Message: verrs.Error()})
		return
	case errors.Is(err, ledger.ErrInvalidAmount):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "InvalidAmount", Message: err.Error()})
		return
	}

	status := statusFor(err)
	if status == http.StatusInternalServerError {
		a.Log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, status, dto.ErrorResponse{
		Error:     domain.KindOf(err),
		Message:   err.Error(),
		Retryable: domain.IsRetryable(err),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrDuplicateBet),
		errors.Is(err, domain.ErrAccountExists),
		errors.Is(err, domain.ErrPlatformExists),
		errors.Is(err, domain.ErrInvalidStatusTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrCooldownActive):
		return http.StatusTooManyRequests
	}
	switch domain.ClassOf(err) {
	case domain.ClassAdmission:
		return http.StatusBadRequest
	case domain.ClassAuthorization:
		return http.StatusForbidden
	case domain.ClassArithmetic:
		return http.StatusUnprocessableEntity
	case domain.ClassConcurrency:
		return http.StatusConflict
	case domain.ClassNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
