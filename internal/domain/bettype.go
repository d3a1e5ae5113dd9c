package domain

// PermutationClass selects how an entered number expands into its
// equivalent set of digit orderings.
type PermutationClass string

const (
	PermutationNone     PermutationClass = "none"
	PermutationPair     PermutationClass = "pair"      // 2-digit shuffle
	PermutationTriple   PermutationClass = "triple"    // 3-digit shuffle
	PermutationQuadTode PermutationClass = "quad-tode" // 4-digit tode
)

// BetTypeDefinition is one immutable entry of the bet-type catalog.
type BetTypeDefinition struct {
	Code             string           `json:"code"`
	Aliases          []string         `json:"aliases,omitempty"`
	DigitCount       int              `json:"digit_count"`
	Label            string           `json:"label"`
	PermutationClass PermutationClass `json:"permutation_class"`
	BaseMultiplier   float64          `json:"base_multiplier"` // used when the period's rate table omits the type
}

// Shufflable reports whether the bet type expands into permutations when
// shuffle is enabled.
func (d BetTypeDefinition) Shufflable() bool {
	return d.PermutationClass != "" && d.PermutationClass != PermutationNone
}
