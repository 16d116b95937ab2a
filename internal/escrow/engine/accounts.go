package engine

import (
	"context"
	"errors"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/match-escrow/internal/escrow/domain"
	"github.com/radieske/match-escrow/internal/escrow/store"
	"github.com/radieske/match-escrow/internal/ledger"
)

// PlatformParams são os campos configuráveis pela autoridade.
type PlatformParams struct {
	Treasury string
	Oracle   string
	FeeBps   uint16
	MinStake uint64
	MaxStake uint64
}

func (p PlatformParams) validate() error {
	if p.FeeBps > domain.MaxFeeBps {
		return domain.ErrInvalidFee
	}
	if p.MinStake == 0 || p.MinStake > p.MaxStake {
		return domain.ErrInvalidBounds
	}
	return nil
}

// InitializePlatform cria o registro singleton; quem chama vira a autoridade.
func (e *Engine) InitializePlatform(ctx context.Context, caller string, params PlatformParams) (domain.Platform, error) {
	if caller == "" {
		return domain.Platform{}, domain.ErrUnauthorized
	}
	if err := params.validate(); err != nil {
		return domain.Platform{}, err
	}
	if _, err := e.store.Platform(ctx); err == nil {
		return domain.Platform{}, domain.ErrPlatformExists
	} else if !errors.Is(err, domain.ErrPlatformNotInitialized) {
		return domain.Platform{}, err
	}

	now := e.now()
	p := domain.Platform{
		Authority: caller,
		Treasury:  params.Treasury,
		Oracle:    params.Oracle,
		FeeBps:    params.FeeBps,
		MinStake:  params.MinStake,
		MaxStake:  params.MaxStake,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if p.Treasury == "" {
		p.Treasury = caller
	}
	cs := &store.ChangeSet{Platform: &p}
	if err := e.store.Commit(ctx, cs); err != nil {
		return domain.Platform{}, err
	}
	e.log.Info("platform initialized",
		zap.String("authority", p.Authority), zap.Uint16("fee_bps", p.FeeBps))
	return *cs.Platform, nil
}

// UpdatePlatform troca taxa, limites, tesouraria e oráculo mantendo os totais.
func (e *Engine) UpdatePlatform(ctx context.Context, caller string, params PlatformParams) (domain.Platform, error) {
	p, err := e.store.Platform(ctx)
	if err != nil {
		return domain.Platform{}, err
	}
	if caller != p.Authority {
		return domain.Platform{}, domain.ErrUnauthorized
	}
	if err := params.validate(); err != nil {
		return domain.Platform{}, err
	}
	if params.Treasury != "" {
		p.Treasury = params.Treasury
	}
	p.Oracle = params.Oracle
	p.FeeBps, p.MinStake, p.MaxStake = params.FeeBps, params.MinStake, params.MaxStake
	p.UpdatedAt = e.now()

	cs := &store.ChangeSet{Platform: &p}
	if err := e.store.Commit(ctx, cs); err != nil {
		return domain.Platform{}, err
	}
	e.log.Info("platform updated", zap.Uint16("fee_bps", p.FeeBps),
		zap.Uint64("min_stake", p.MinStake), zap.Uint64("max_stake", p.MaxStake))
	return *cs.Platform, nil
}

// CreateUserAccount registra o apostador. O tier vem do colaborador de KYC
// (caller precisa ser a autoridade ou um emissor de KYC configurado) e só tem os
// limites (0..3) revalidados aqui.
func (e *Engine) CreateUserAccount(ctx context.Context, caller, owner string, kycTier uint8, region string) (domain.UserAccount, error) {
	if owner == "" {
		return domain.UserAccount{}, domain.ErrUnauthorized
	}
	p, err := e.store.Platform(ctx)
	if err != nil {
		return domain.UserAccount{}, err
	}
	if !e.kycIssuer(p, caller) {
		return domain.UserAccount{}, domain.ErrUnauthorized
	}
	if kycTier > domain.MaxKYCTier {
		return domain.UserAccount{}, domain.ErrInvalidTier
	}
	addr := domain.UserAddress(owner)
	if _, err := e.store.Account(ctx, addr); err == nil {
		return domain.UserAccount{}, domain.ErrAccountExists
	} else if !errors.Is(err, domain.ErrAccountNotFound) {
		return domain.UserAccount{}, err
	}

	now := e.now()
	cs := &store.ChangeSet{Accounts: []domain.UserAccount{{
		Owner:     owner,
		Address:   addr,
		KYCTier:   kycTier,
		Region:    region,
		CreatedAt: now,
		UpdatedAt: now,
	}}}
	if err := e.store.Commit(ctx, cs); err != nil {
		return domain.UserAccount{}, err
	}
	e.log.Info("account created", zap.String("owner", owner), zap.Uint8("kyc_tier", kycTier),
		zap.String("graded_by", caller))
	return cs.Accounts[0], nil
}

// RiskControls é o que o colaborador de risco pode impor a uma conta.
type RiskControls struct {
	Blacklisted bool
	StakeCap    uint64 // 0 = sem limite adicional
}

func (e *Engine) SetRiskControls(ctx context.Context, caller, owner string, rc RiskControls) (domain.UserAccount, error) {
	onlyAuthority := func(p domain.Platform) bool { return caller == p.Authority }
	return e.updateAccount(ctx, owner, onlyAuthority, func(a *domain.UserAccount) error {
		a.Blacklisted = rc.Blacklisted
		a.StakeCap = rc.StakeCap
		return nil
	})
}

// UpdateKYCTier aplica uma reclassificação feita pelo colaborador de identidade
// (autoridade ou emissor de KYC).
func (e *Engine) UpdateKYCTier(ctx context.Context, caller, owner string, tier uint8) (domain.UserAccount, error) {
	if tier > domain.MaxKYCTier {
		return domain.UserAccount{}, domain.ErrInvalidTier
	}
	issuer := func(p domain.Platform) bool { return e.kycIssuer(p, caller) }
	return e.updateAccount(ctx, owner, issuer, func(a *domain.UserAccount) error {
		a.KYCTier = tier
		return nil
	})
}

// kycIssuer diz se caller pode definir o tier de KYC de uma conta.
func (e *Engine) kycIssuer(p domain.Platform, caller string) bool {
	if caller == "" {
		return false
	}
	return caller == p.Authority || slices.Contains(e.cfg.KYCIssuers, caller)
}

func (e *Engine) updateAccount(ctx context.Context, owner string, allowed func(domain.Platform) bool, mutate func(*domain.UserAccount) error) (domain.UserAccount, error) {
	p, err := e.store.Platform(ctx)
	if err != nil {
		return domain.UserAccount{}, err
	}
	if !allowed(p) {
		return domain.UserAccount{}, domain.ErrUnauthorized
	}
	a, err := e.store.Account(ctx, domain.UserAddress(owner))
	if err != nil {
		return domain.UserAccount{}, err
	}
	if err := mutate(&a); err != nil {
		return domain.UserAccount{}, err
	}
	a.UpdatedAt = e.now()
	cs := &store.ChangeSet{Accounts: []domain.UserAccount{a}}
	if err := e.store.Commit(ctx, cs); err != nil {
		return domain.UserAccount{}, err
	}
	return cs.Accounts[0], nil
}

// recordOutcome soma wagered/won aos totais do usuário com aritmética checada.
// Cada chamada é um commit independente; a liquidação não é desfeita se falhar.
func (e *Engine) recordOutcome(ctx context.Context, owner string, wagered, won uint64) error {
	return e.retry(ctx, "record_outcome", func() error {
		a, err := e.store.Account(ctx, domain.UserAddress(owner))
		if err != nil {
			return err
		}
		if a.TotalWagered, err = ledger.Add(a.TotalWagered, wagered); err != nil {
			return err
		}
		if a.TotalWon, err = ledger.Add(a.TotalWon, won); err != nil {
			return err
		}
		a.UpdatedAt = e.now()
		return e.store.Commit(ctx, &store.ChangeSet{Accounts: []domain.UserAccount{a}})
	})
}

// EnforceWithdrawalCooldown falha com ErrCooldownActive se o último saque do
// usuário foi há menos de WithdrawalCooldown.
func (e *Engine) EnforceWithdrawalCooldown(ctx context.Context, owner string, now time.Time) error {
	a, err := e.store.Account(ctx, domain.UserAddress(owner))
	if err != nil {
		return err
	}
	return e.checkCooldown(a, now)
}

func (e *Engine) checkCooldown(a domain.UserAccount, now time.Time) error {
	if a.LastWithdrawalAt.IsZero() {
		return nil
	}
	if now.Sub(a.LastWithdrawalAt) < e.cfg.WithdrawalCooldown {
		return domain.ErrCooldownActive
	}
	return nil
}

// RecordWithdrawal é o portão de saque iniciado pelo dono da conta: aplica o
// cooldown e marca o horário. A movimentação dos fundos é externa.
func (e *Engine) RecordWithdrawal(ctx context.Context, caller, owner string) (domain.UserAccount, error) {
	if caller == "" || caller != owner {
		return domain.UserAccount{}, domain.ErrUnauthorized
	}
	a, err := e.store.Account(ctx, domain.UserAddress(owner))
	if err != nil {
		return domain.UserAccount{}, err
	}
	if a.Blacklisted {
		return domain.UserAccount{}, domain.ErrAccountBlacklisted
	}
	now := e.now()
	if err := e.checkCooldown(a, now); err != nil {
		e.rejected("withdrawal", err, zap.String("owner", owner))
		return domain.UserAccount{}, err
	}
	a.LastWithdrawalAt = now
	a.UpdatedAt = now
	cs := &store.ChangeSet{Accounts: []domain.UserAccount{a}}
	if err := e.store.Commit(ctx, cs); err != nil {
		return domain.UserAccount{}, err
	}
	return cs.Accounts[0], nil
}
