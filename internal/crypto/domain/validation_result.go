package domain

// Strength grades a master secret by its normalized entropy.
type Strength string

const (
	StrengthWeak   Strength = "weak"
	StrengthMedium Strength = "medium"
	StrengthStrong Strength = "strong"
)

// ValidationResult reports whether a secret may be used as a master secret.
type ValidationResult struct {
	IsValid  bool     `json:"is_valid"`
	Strength Strength `json:"strength"`
	// Entropy is the normalized Shannon entropy in bits per byte (0 to 8).
	Entropy float64  `json:"entropy"`
	Issues  []string `json:"issues,omitempty"`
}
