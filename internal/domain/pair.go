package domain

import "fmt"

// Pair is an unordered pair of distinct users in canonical order (Low < High).
type Pair struct {
	Low  int64
	High int64
}

// NewPair canonicalizes (a, b). Self-pairs and non-positive ids are rejected.
func NewPair(a, b int64) (Pair, error) {
	if a <= 0 || b <= 0 {
		return Pair{}, fmt.Errorf("%w: user ids must be positive", ErrInvalidInput)
	}
	if a == b {
		return Pair{}, fmt.Errorf("%w: cannot start a conversation with yourself", ErrInvalidInput)
	}
	if a > b {
		a, b = b, a
	}
	return Pair{Low: a, High: b}, nil
}
