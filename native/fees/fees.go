package fees

import (
	"fmt"
	"math/big"
	"strings"

	"tokenvest/native/common"
)

// Config captures a fee ratio expressed as numerator/denominator. A ratio of
// 1/10 routes 10% of the base amount to the treasury.
type Config struct {
	Numerator   uint64
	Denominator uint64
}

// Validate enforces the ratio bounds: denominator non-zero and fee at most
// 100%.
func (c Config) Validate() error {
	if c.Denominator == 0 {
		return fmt.Errorf("fees: %w: zero denominator", common.ErrValidation)
	}
	if c.Numerator > c.Denominator {
		return fmt.Errorf("fees: %w: fee ratio above one", common.ErrValidation)
	}
	return nil
}

// Apply computes floor(amount * numerator / denominator). Nil and non-positive
// amounts yield zero.
func (c Config) Apply(amount *big.Int) *big.Int {
	if amount == nil || amount.Sign() <= 0 || c.Numerator == 0 || c.Denominator == 0 {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(c.Numerator))
	return fee.Div(fee, new(big.Int).SetUint64(c.Denominator))
}

// Schedule resolves the fee ratio for a subject (a campaign id, owner or asset
// identifier), with per-subject overrides taking precedence over the default.
// The treasury address receives every routed fee.
type Schedule struct {
	defaultConfig Config
	overrides     map[string]Config
	treasury      [20]byte
}

// NewSchedule constructs a schedule with the provided default ratio and
// treasury address.
func NewSchedule(defaultConfig Config, treasury [20]byte) (*Schedule, error) {
	if err := defaultConfig.Validate(); err != nil {
		return nil, err
	}
	return &Schedule{
		defaultConfig: defaultConfig,
		overrides:     make(map[string]Config),
		treasury:      treasury,
	}, nil
}

// Treasury reports the address fees are routed to.
func (s *Schedule) Treasury() [20]byte {
	if s == nil {
		return [20]byte{}
	}
	return s.treasury
}

func normalizeSubject(subject string) string {
	return strings.ToLower(strings.TrimSpace(subject))
}

// SetOverride installs a per-subject ratio that shadows the default.
func (s *Schedule) SetOverride(subject string, cfg Config) error {
	if s == nil {
		return fmt.Errorf("fees: schedule not configured")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	normalized := normalizeSubject(subject)
	if normalized == "" {
		return fmt.Errorf("fees: %w: empty subject", common.ErrValidation)
	}
	s.overrides[normalized] = cfg
	return nil
}

// ClearOverride removes a per-subject ratio, restoring the default.
func (s *Schedule) ClearOverride(subject string) {
	if s == nil {
		return
	}
	delete(s.overrides, normalizeSubject(subject))
}

// FeeFor resolves the effective ratio for the subject.
func (s *Schedule) FeeFor(subject string) Config {
	if s == nil {
		return Config{}
	}
	if cfg, ok := s.overrides[normalizeSubject(subject)]; ok {
		return cfg
	}
	return s.defaultConfig
}

// Calculate computes the fee owed on the base amount for the subject.
func (s *Schedule) Calculate(subject string, amount *big.Int) *big.Int {
	return s.FeeFor(subject).Apply(amount)
}
