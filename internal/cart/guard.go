package cart

// lineKey identifies a wager by bet type and number; a cart holds at most one
// line per key.
type lineKey struct {
	betType string
	number  string
}

// guard is the duplicate index of a cart. It is not safe for concurrent use;
// the owning Cart serializes access.
type guard struct {
	seen map[lineKey]string // key -> line id
}

func newGuard() *guard {
	return &guard{seen: make(map[lineKey]string)}
}

// isDuplicate reports whether a line with the same bet type and number is
// already present. Matching is exact and case-sensitive.
func (g *guard) isDuplicate(betType, number string) bool {
	_, ok := g.seen[lineKey{betType, number}]
	return ok
}

// claim records the key for lineID and reports false when the key is
// already taken.
func (g *guard) claim(betType, number, lineID string) bool {
	k := lineKey{betType, number}
	if _, ok := g.seen[k]; ok {
		return false
	}
	g.seen[k] = lineID
	return true
}

func (g *guard) release(betType, number string) {
	delete(g.seen, lineKey{betType, number})
}

func (g *guard) reset() {
	g.seen = make(map[lineKey]string)
}
