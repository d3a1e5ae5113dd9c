// Package catalog holds the immutable registry of bet types a poy may
// contain.
package catalog

import (
	"fmt"

	"github.com/alanyoungcy/lottobet/internal/domain"
)

// Catalog maps bet-type codes (and their aliases) to definitions. It is
// built once and never mutated, so it is safe for concurrent use.
type Catalog struct {
	byCode map[string]domain.BetTypeDefinition
	alias  map[string]string
	order  []string
}

// New builds a Catalog from the given definitions. Codes and aliases must be
// unique across the whole set.
func New(defs ...domain.BetTypeDefinition) (*Catalog, error) {
	c := &Catalog{
		byCode: make(map[string]domain.BetTypeDefinition, len(defs)),
		alias:  make(map[string]string),
	}
	for _, d := range defs {
		if d.Code == "" {
			return nil, fmt.Errorf("catalog: empty code")
		}
		if d.DigitCount < 1 || d.DigitCount > 4 {
			return nil, fmt.Errorf("catalog: %s: digit count %d out of range", d.Code, d.DigitCount)
		}
		if want, ok := classDigits[d.PermutationClass]; ok && want != d.DigitCount {
			return nil, fmt.Errorf("catalog: %s: class %s needs %d digits", d.Code, d.PermutationClass, want)
		}
		if d.PermutationClass == "" {
			d.PermutationClass = domain.PermutationNone
		}
		if c.taken(d.Code) {
			return nil, fmt.Errorf("catalog: duplicate code %q", d.Code)
		}
		c.byCode[d.Code] = d
		c.order = append(c.order, d.Code)
		for _, a := range d.Aliases {
			if c.taken(a) {
				return nil, fmt.Errorf("catalog: duplicate alias %q", a)
			}
			c.alias[a] = d.Code
		}
	}
	return c, nil
}

var classDigits = map[domain.PermutationClass]int{
	domain.PermutationPair:     2,
	domain.PermutationTriple:   3,
	domain.PermutationQuadTode: 4,
}

func (c *Catalog) taken(code string) bool {
	_, isCode := c.byCode[code]
	_, isAlias := c.alias[code]
	return isCode || isAlias
}

// Lookup returns the definition for code, resolving aliases to their
// canonical code.
func (c *Catalog) Lookup(code string) (domain.BetTypeDefinition, error) {
	if canonical, ok := c.alias[code]; ok {
		code = canonical
	}
	d, ok := c.byCode[code]
	if !ok {
		return domain.BetTypeDefinition{}, fmt.Errorf("catalog: %q: %w", code, domain.ErrUnknownBetType)
	}
	return d, nil
}

// List returns every definition in registration order.
func (c *Catalog) List() []domain.BetTypeDefinition {
	out := make([]domain.BetTypeDefinition, 0, len(c.order))
	for _, code := range c.order {
		out = append(out, c.byCode[code])
	}
	return out
}

// ValidateNumber checks that number has exactly the bet type's digit count
// and only the characters 0-9.
func ValidateNumber(d domain.BetTypeDefinition, number string) error {
	if len(number) != d.DigitCount {
		return fmt.Errorf("%w: %s needs %d digits, got %q", domain.ErrValidation, d.Code, d.DigitCount, number)
	}
	for i := 0; i < len(number); i++ {
		if number[i] < '0' || number[i] > '9' {
			return fmt.Errorf("%w: %q is not numeric", domain.ErrValidation, number)
		}
	}
	return nil
}
