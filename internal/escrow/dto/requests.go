package dto

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/radieske/match-escrow/internal/ledger"
)

var validate = validator.New()

// Valores monetários chegam como string decimal ("1.25") e são convertidos
// para unidades base com ledger.Parse.

type InitPlatformRequest struct {
	Treasury string `json:"treasury" validate:"omitempty,max=128"`
	Oracle   string `json:"oracle" validate:"omitempty,max=128"`
	FeeBps   uint16 `json:"fee_bps"`
	MinStake string `json:"min_stake" validate:"required"`
	MaxStake string `json:"max_stake" validate:"required"`
}

func (r *InitPlatformRequest) Validate() error { return validate.Struct(r) }

// Stakes devolve os limites em unidades base.
func (r *InitPlatformRequest) Stakes() (lo, hi uint64, err error) {
	if lo, err = ledger.Parse(r.MinStake); err != nil {
		return 0, 0, err
	}
	if hi, err = ledger.Parse(r.MaxStake); err != nil {
		return 0, 0, err
	}
	return lo, hi, nil
}

type CreateAccountRequest struct {
	Owner   string `json:"owner" validate:"required,max=128"`
	KYCTier uint8  `json:"kyc_tier"`
	Region  string `json:"region" validate:"omitempty,alpha,len=2"`
}

func (r *CreateAccountRequest) Validate() error { return validate.Struct(r) }

type RiskControlsRequest struct {
	Blacklisted bool   `json:"blacklisted"`
	StakeCap    string `json:"stake_cap" validate:"omitempty"`
}

func (r *RiskControlsRequest) Validate() error { return validate.Struct(r) }

// Cap devolve o limite de risco em unidades base (0 quando ausente).
func (r *RiskControlsRequest) Cap() (uint64, error) {
	if r.StakeCap == "" {
		return 0, nil
	}
	return ledger.Parse(r.StakeCap)
}

type KYCTierRequest struct {
	KYCTier *uint8 `json:"kyc_tier" validate:"required"`
}

func (r *KYCTierRequest) Validate() error { return validate.Struct(r) }

type CreateMatchRequest struct {
	ID          string     `json:"id" validate:"omitempty,max=64"`
	Type        string     `json:"type" validate:"required,oneof=HUMAN_VS_HUMAN HUMAN_VS_AI AI_VS_AI"`
	Outcomes    int        `json:"outcomes" validate:"required,min=2,max=255"`
	BetsCloseAt *time.Time `json:"bets_close_at,omitempty"`
}

func (r *CreateMatchRequest) Validate() error { return validate.Struct(r) }

type CompleteMatchRequest struct {
	Winner   uint8  `json:"winner" validate:"required,min=1"`
	ProofRef string `json:"proof_ref" validate:"required,max=256"`
}

func (r *CompleteMatchRequest) Validate() error { return validate.Struct(r) }

type PlaceBetRequest struct {
	Outcome uint8  `json:"outcome" validate:"required,min=1"`
	Stake   string `json:"stake" validate:"required"`
}

func (r *PlaceBetRequest) Validate() error { return validate.Struct(r) }
