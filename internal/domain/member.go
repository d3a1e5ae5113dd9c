package domain

// Member identifies the bettor behind a request. Token is forwarded to the
// lottery backend; Owner is a stable fingerprint of it used for ownership
// checks and persistence.
type Member struct {
	Token string
	Owner string
}
