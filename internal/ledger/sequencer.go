package ledger

import (
	"fmt"
	"math/big"
	"strings"
)

// NextNumber returns prev incremented by one, left-padded with zeros to the
// length of prev: "000007" -> "000008", "7" -> "8", "999" -> "1000".
// It never consults the backend; the result is only a preview of the next
// document number.
func NextNumber(prev string) (string, error) {
	if prev == "" {
		return "", ErrNotNumeric
	}
	for _, r := range prev {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: %q", ErrNotNumeric, prev)
		}
	}
	n, _ := new(big.Int).SetString(prev, 10)
	n.Add(n, big.NewInt(1))
	next := n.String()
	if pad := len(prev) - len(next); pad > 0 {
		next = strings.Repeat("0", pad) + next
	}
	return next, nil
}

// Sequencer produces the next document number after a successful submit.
type Sequencer interface {
	Next(prev string) (string, error)
}

// LocalSequencer increments the number in memory with NextNumber.
type LocalSequencer struct{}

func (LocalSequencer) Next(prev string) (string, error) { return NextNumber(prev) }
