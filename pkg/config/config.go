// Package config builds the engine's validated configuration record,
// replacing the source material's fluent builder with mutually dependent
// fields (spec §9): cross-field constraints are checked once, at
// construction, rather than enforced by call ordering.
package config

import (
	"github.com/pkg/errors"

	"github.com/uber/fenzo-go/pkg/autoscale"
	"github.com/uber/fenzo-go/pkg/constraint"
	"github.com/uber/fenzo-go/pkg/lease"
	"github.com/uber/fenzo-go/pkg/quota"
)

// DefaultLeaseOfferExpirySecs is the default offer retention window
// (spec §6).
const DefaultLeaseOfferExpirySecs = 120

// Config is the engine's full configuration (spec §6).
type Config struct {
	LeaseOfferExpirySecs int

	FitnessCalculator   constraint.FitnessCalculator
	IsFitnessGoodEnough constraint.GoodEnough

	AutoScaleByAttributeName             string
	AutoScalerMapHostnameAttributeName    string
	AutoScaleDownBalancedByAttributeName string
	AutoscalerCallback                   autoscale.Callback
	DisableShortfallEvaluation           bool
	AutoScaleRules                       map[string]autoscale.Rule

	SingleOfferPerHost bool
	InitialResAllocs   map[string]quota.ResAlloc

	LeaseRejectCallback lease.RejectCallback
}

// New validates opts and returns a ready-to-use Config, applying documented
// defaults for any zero-valued optional field (spec §6).
func New(opts Config) (*Config, error) {
	cfg := opts

	if cfg.LeaseRejectCallback == nil {
		return nil, errors.New("leaseRejectCallback is required")
	}

	if cfg.LeaseOfferExpirySecs <= 0 {
		cfg.LeaseOfferExpirySecs = DefaultLeaseOfferExpirySecs
	}
	if cfg.FitnessCalculator == nil {
		cfg.FitnessCalculator = constraint.DefaultFitnessCalculator
	}
	if cfg.IsFitnessGoodEnough == nil {
		cfg.IsFitnessGoodEnough = constraint.DefaultGoodEnough
	}

	if len(cfg.AutoScaleRules) > 0 && cfg.AutoScaleByAttributeName == "" {
		return nil, errors.New("autoScaleByAttributeName must be set before any autoScaleRule is configured")
	}
	if cfg.AutoscalerCallback != nil && cfg.AutoScaleByAttributeName == "" {
		return nil, errors.New("autoScaleByAttributeName must be set before an autoscaler callback is configured")
	}
	for group, rule := range cfg.AutoScaleRules {
		if err := rule.Validate(); err != nil {
			return nil, errors.Wrapf(err, "invalid autoscale rule for group %q", group)
		}
	}

	return &cfg, nil
}
