package catalog

import "github.com/alanyoungcy/lottobet/internal/domain"

// Default bet-type codes as understood by the rate and bet services.
const (
	RunTop     = "teng_bon_1"
	RunBottom  = "teng_lang_1"
	TwoTop     = "teng_bon_2"
	TwoBottom  = "teng_lang_2"
	ThreeTop   = "teng_bon_3"
	ThreeTode  = "tode_3"
	ThreeLow   = "teng_lang_3"
	ThreeFront = "teng_lang_nha_3"
	FourTop    = "teng_bon_4"
	FourTode   = "tode_4"
)

// PreferredBetType is selected when a session opens and the period offers it.
const PreferredBetType = ThreeTop

// Definitions returns the standard Thai lottery bet types.
func Definitions() []domain.BetTypeDefinition {
	return []domain.BetTypeDefinition{
		{Code: RunTop, DigitCount: 1, Label: "วิ่งบน", PermutationClass: domain.PermutationNone, BaseMultiplier: 3.2},
		{Code: RunBottom, DigitCount: 1, Label: "วิ่งล่าง", PermutationClass: domain.PermutationNone, BaseMultiplier: 4.2},
		{Code: TwoTop, Aliases: []string{"2top"}, DigitCount: 2, Label: "2ตัวบน", PermutationClass: domain.PermutationPair, BaseMultiplier: 90},
		{Code: TwoBottom, Aliases: []string{"2bottom"}, DigitCount: 2, Label: "2ตัวล่าง", PermutationClass: domain.PermutationPair, BaseMultiplier: 90},
		{Code: ThreeTop, Aliases: []string{"3top"}, DigitCount: 3, Label: "3ตัวบน", PermutationClass: domain.PermutationTriple, BaseMultiplier: 900},
		{Code: ThreeTode, Aliases: []string{"3tode"}, DigitCount: 3, Label: "โต๊ด3ตัว", PermutationClass: domain.PermutationTriple, BaseMultiplier: 150},
		{Code: ThreeLow, DigitCount: 3, Label: "3ตัวล่าง", PermutationClass: domain.PermutationNone, BaseMultiplier: 450},
		{Code: ThreeFront, DigitCount: 3, Label: "3ตัวหน้า", PermutationClass: domain.PermutationNone, BaseMultiplier: 450},
		{Code: FourTop, DigitCount: 4, Label: "4ตัวบน", PermutationClass: domain.PermutationNone, BaseMultiplier: 6000},
		{Code: FourTode, Aliases: []string{"4tode"}, DigitCount: 4, Label: "โต๊ด4ตัว", PermutationClass: domain.PermutationQuadTode, BaseMultiplier: 250},
	}
}

// Default returns a Catalog of Definitions. It panics on a malformed table,
// which can only happen through a programming error.
func Default() *Catalog {
	c, err := New(Definitions()...)
	if err != nil {
		panic(err)
	}
	return c
}
