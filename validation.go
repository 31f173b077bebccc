package frost

import (
	"fmt"
	"math"
	"strings"
)

// SecurityLevel represents the security level of threshold parameters
type SecurityLevel string

const (
	SecurityLevelLow    SecurityLevel = "low"
	SecurityLevelMedium SecurityLevel = "medium"
	SecurityLevelHigh   SecurityLevel = "high"
)

// DefaultByzantineRatio is the 2/3 bound for Byzantine fault tolerance.
const DefaultByzantineRatio = 2.0 / 3.0

// ValidationResult contains the result of parameter validation
type ValidationResult struct {
	Valid                   bool          `json:"valid" yaml:"valid"`
	SecurityLevel           SecurityLevel `json:"security_level" yaml:"security_level"`
	ByzantineFaultTolerance bool          `json:"byzantine_fault_tolerance" yaml:"byzantine_fault_tolerance"`
	Warnings                []string      `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Errors                  []string      `json:"errors,omitempty" yaml:"errors,omitempty"`
	Recommendations         []string      `json:"recommendations,omitempty" yaml:"recommendations,omitempty"`
}

func newValidationResult() *ValidationResult {
	return &ValidationResult{Valid: true, SecurityLevel: SecurityLevelMedium}
}

func (r *ValidationResult) fail(format string, args ...interface{}) {
	r.Valid = false
	r.SecurityLevel = SecurityLevelLow
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Err converts an invalid result into an InvalidThreshold error.
func (r *ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return ErrInvalidThreshold.WithDetails("%s", strings.Join(r.Errors, "; "))
}

// ThresholdValidator provides validation for (t, n) parameters
type ThresholdValidator struct {
	MinThreshold        int     `json:"min_threshold"`
	MaxParticipants     int     `json:"max_participants"`
	ByzantineRatio      float64 `json:"byzantine_ratio"`
	RecommendedMinRatio float64 `json:"recommended_min_ratio"`
	RecommendedMaxRatio float64 `json:"recommended_max_ratio"`
}

// NewDefaultThresholdValidator requires 2 <= t <= n; a threshold of one
// would let any single participant sign alone.
func NewDefaultThresholdValidator() *ThresholdValidator {
	return &ThresholdValidator{
		MinThreshold:        2,
		MaxParticipants:     1 << 16,
		ByzantineRatio:      DefaultByzantineRatio,
		RecommendedMinRatio: 0.51,
		RecommendedMaxRatio: 0.80,
	}
}

// ValidateThresholdParameters validates threshold and participant parameters.
// Hard failures land in Errors; ratio analysis only produces warnings.
func (tv *ThresholdValidator) ValidateThresholdParameters(participantCount, threshold int) *ValidationResult {
	result := newValidationResult()

	switch {
	case threshold < tv.MinThreshold:
		result.fail("threshold %d is below the minimum of %d", threshold, tv.MinThreshold)
	case threshold > participantCount:
		result.fail("threshold %d exceeds participant count %d", threshold, participantCount)
	case participantCount > tv.MaxParticipants:
		result.fail("participant count %d exceeds maximum of %d", participantCount, tv.MaxParticipants)
	}
	if !result.Valid {
		return result
	}

	ratio := float64(threshold) / float64(participantCount)
	if threshold >= int(math.Ceil(float64(participantCount)*tv.ByzantineRatio)) {
		result.ByzantineFaultTolerance = true
		result.SecurityLevel = SecurityLevelHigh
	}
	if ratio < tv.RecommendedMinRatio {
		result.SecurityLevel = SecurityLevelLow
		result.Warnings = append(result.Warnings, "threshold is below a majority of participants")
		result.Recommendations = append(result.Recommendations,
			fmt.Sprintf("consider a threshold of at least %d", int(math.Ceil(float64(participantCount)*tv.RecommendedMinRatio))))
	}
	if threshold == participantCount {
		result.Warnings = append(result.Warnings, "threshold equals participant count - no fault tolerance")
	}
	return result
}

// ValidateParticipants rejects empty lists, zero identifiers and duplicates.
func ValidateParticipants(participants []Identifier) *ValidationResult {
	result := newValidationResult()
	result.SecurityLevel = SecurityLevelHigh
	if len(participants) == 0 {
		result.fail("participant list cannot be empty")
		return result
	}

	seen := make(map[Identifier]bool, len(participants))
	for _, id := range participants {
		if id.IsZero() {
			result.fail("participant identifier cannot be zero")
		}
		if seen[id] {
			result.fail("duplicate participant %s", id)
		}
		seen[id] = true
	}
	return result
}

// SecurityAssessment summarises the operational properties of (t, n)
type SecurityAssessment struct {
	OverallRating           SecurityLevel `json:"overall_rating"`
	ByzantineFaultTolerance bool          `json:"byzantine_fault_tolerance" yaml:"byzantine_fault_tolerance"`
	FaultTolerance          int           `json:"fault_tolerance"`   // Participants that may be offline
	AttackResistance        int           `json:"attack_resistance"` // Colluders needed to forge
	AvailabilityRisk        string        `json:"availability_risk"`
}

// AssessSecurity rates a threshold configuration
func AssessSecurity(participantCount, threshold int) *SecurityAssessment {
	if participantCount <= 0 || threshold <= 0 || threshold > participantCount {
		return &SecurityAssessment{
			OverallRating:    SecurityLevelLow,
			AvailabilityRisk: "critical - invalid parameters",
		}
	}

	faultTolerance := participantCount - threshold
	assessment := &SecurityAssessment{
		FaultTolerance:          faultTolerance,
		AttackResistance:        threshold,
		ByzantineFaultTolerance: threshold >= int(math.Ceil(float64(participantCount)*DefaultByzantineRatio)),
	}

	switch ratio := float64(threshold) / float64(participantCount); {
	case ratio < 0.5:
		assessment.OverallRating = SecurityLevelLow
	case ratio >= 0.67:
		assessment.OverallRating = SecurityLevelHigh
	default:
		assessment.OverallRating = SecurityLevelMedium
	}

	switch {
	case faultTolerance == 0:
		assessment.AvailabilityRisk = "critical - no fault tolerance"
	case faultTolerance == 1:
		assessment.AvailabilityRisk = "high - single point of failure"
	case faultTolerance <= 3:
		assessment.AvailabilityRisk = "medium - limited fault tolerance"
	default:
		assessment.AvailabilityRisk = "low - good fault tolerance"
	}
	return assessment
}
