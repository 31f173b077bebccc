package frost

import (
	"fmt"
	"strconv"
)

// Config describes one threshold group. Ciphersuite accepts either a curve
// name ("ed25519") or a full suite id. Identifiers may be decimal numbers or
// arbitrary names, which are hashed with DeriveIdentifier; an empty list
// means 1..MaxSigners.
type Config struct {
	Ciphersuite string   `json:"ciphersuite" yaml:"ciphersuite" mapstructure:"ciphersuite"`
	MinSigners  int      `json:"min_signers" yaml:"min_signers" mapstructure:"min_signers"`
	MaxSigners  int      `json:"max_signers" yaml:"max_signers" mapstructure:"max_signers"`
	Identifiers []string `json:"identifiers,omitempty" yaml:"identifiers,omitempty" mapstructure:"identifiers"`
}

// DefaultConfig is the 2-of-3 Ed25519 setup.
func DefaultConfig() Config {
	return Config{
		Ciphersuite: string(Ed25519),
		MinSigners:  2,
		MaxSigners:  3,
	}
}

// Suite resolves the configured ciphersuite.
func (c Config) Suite() (Ciphersuite, error) {
	switch CurveType(c.Ciphersuite) {
	case Ed25519, Secp256k1, BabyJubjub:
		return NewCiphersuite(CurveType(c.Ciphersuite))
	}
	return CiphersuiteByID(c.Ciphersuite)
}

// ParticipantIdentifiers resolves the configured identifiers.
func (c Config) ParticipantIdentifiers() ([]Identifier, error) {
	cs, err := c.Suite()
	if err != nil {
		return nil, err
	}
	curve := cs.Curve()
	if len(c.Identifiers) == 0 {
		if c.MaxSigners < 1 {
			return nil, ErrInvalidThreshold.WithDetails("max signers must be positive, got %d", c.MaxSigners)
		}
		return SequentialIdentifiers(curve, c.MaxSigners), nil
	}

	ids := make([]Identifier, len(c.Identifiers))
	for i, name := range c.Identifiers {
		if n, perr := strconv.ParseUint(name, 10, 64); perr == nil {
			ids[i], err = IdentifierFromUint(curve, n)
		} else {
			ids[i], err = DeriveIdentifier(cs, []byte(name))
		}
		if err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// ConfigurationValidator validates Config values before any session starts.
type ConfigurationValidator struct {
	supportedSuites map[string]bool
	thresholds      *ThresholdValidator
}

// NewDefaultConfigurationValidator accepts every built-in ciphersuite.
func NewDefaultConfigurationValidator() *ConfigurationValidator {
	return &ConfigurationValidator{
		supportedSuites: map[string]bool{
			CiphersuiteEd25519:    true,
			CiphersuiteSecp256k1:  true,
			CiphersuiteBabyJubjub: true,
		},
		thresholds: NewDefaultThresholdValidator(),
	}
}

// ValidateCiphersuite checks that the configured suite is supported.
func (cv *ConfigurationValidator) ValidateCiphersuite(cfg Config) *ValidationResult {
	result := newValidationResult()
	cs, err := cfg.Suite()
	if err != nil || !cv.supportedSuites[cs.ID()] {
		result.fail("unsupported ciphersuite: %q", cfg.Ciphersuite)
		result.Recommendations = append(result.Recommendations, "use one of ed25519, secp256k1 or babyjubjub")
		return result
	}
	result.SecurityLevel = SecurityLevelHigh
	if cs.ID() == CiphersuiteBabyJubjub {
		result.SecurityLevel = SecurityLevelMedium
		result.Warnings = append(result.Warnings, "babyjubjub offers roughly 126-bit security")
	}
	return result
}

// ValidateConfig runs every check and merges the results. The overall
// security level is the lowest of the parts.
func (cv *ConfigurationValidator) ValidateConfig(cfg Config) *ValidationResult {
	result := newValidationResult()
	result.SecurityLevel = SecurityLevelHigh

	suite := cv.ValidateCiphersuite(cfg)
	result.merge(suite)
	if !suite.Valid {
		return result
	}

	if len(cfg.Identifiers) > 0 && len(cfg.Identifiers) != cfg.MaxSigners {
		result.fail("%d identifiers configured for %d signers", len(cfg.Identifiers), cfg.MaxSigners)
	}
	thresholds := cv.thresholds.ValidateThresholdParameters(cfg.MaxSigners, cfg.MinSigners)
	result.merge(thresholds)
	result.ByzantineFaultTolerance = thresholds.ByzantineFaultTolerance
	if !result.Valid {
		return result
	}

	ids, err := cfg.ParticipantIdentifiers()
	if err != nil {
		result.fail("invalid identifiers: %v", err)
		return result
	}
	result.merge(ValidateParticipants(ids))
	return result
}

// Validate returns the first failure of ValidateConfig as an error.
func (cv *ConfigurationValidator) Validate(cfg Config) error {
	r := cv.ValidateConfig(cfg)
	if r.Valid {
		return nil
	}
	return ErrConfigurationMismatch.WithDetails("%s", r.Errors[0])
}

// CheckCompatibility reports whether key material produced under prev can
// be used under next. The suite and the participant set are fixed by the
// DKG; only a rerun can change them.
func (cv *ConfigurationValidator) CheckCompatibility(prev, next Config) *ValidationResult {
	result := newValidationResult()

	oldSuite, err1 := prev.Suite()
	newSuite, err2 := next.Suite()
	switch {
	case err1 != nil || err2 != nil:
		result.fail("cannot resolve ciphersuites for compatibility check")
		return result
	case oldSuite.ID() != newSuite.ID():
		result.fail("ciphersuite mismatch: %s -> %s", oldSuite.ID(), newSuite.ID())
	}
	if prev.MinSigners != next.MinSigners {
		result.fail("threshold changed from %d to %d; rerun key generation", prev.MinSigners, next.MinSigners)
	}
	if prev.MaxSigners != next.MaxSigners {
		result.fail("participant count changed from %d to %d; rerun key generation", prev.MaxSigners, next.MaxSigners)
	}
	if fmt.Sprint(prev.Identifiers) != fmt.Sprint(next.Identifiers) {
		result.Warnings = append(result.Warnings, "identifier list changed - key shares are bound to the original identifiers")
	}
	return result
}

func (r *ValidationResult) merge(other *ValidationResult) {
	if !other.Valid {
		r.Valid = false
	}
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	r.Recommendations = append(r.Recommendations, other.Recommendations...)
	r.SecurityLevel = minSecurityLevel(r.SecurityLevel, other.SecurityLevel)
}

func minSecurityLevel(a, b SecurityLevel) SecurityLevel {
	rank := map[SecurityLevel]int{SecurityLevelLow: 0, SecurityLevelMedium: 1, SecurityLevelHigh: 2}
	if rank[b] < rank[a] {
		return b
	}
	return a
}
