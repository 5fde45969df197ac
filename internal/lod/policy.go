package lod

import (
	"fmt"
	"math"
)

// Unlimited reveals every agent of a category
const Unlimited = -1

// Policy sets how many agents per category are shown individually at each
// level. Quotas must not decrease from coarse to fine, which keeps node
// counts monotonic.
type Policy struct {
	Reveal [numLevels]int
}

// DefaultPolicy shows clusters only at overview, the top agent of each
// category at category level, five per category at detail, and everything
// at full.
func DefaultPolicy() Policy {
	return Policy{Reveal: [numLevels]int{
		LevelOverview: 0,
		LevelCategory: 1,
		LevelDetail:   5,
		LevelFull:     Unlimited,
	}}
}

// Validate checks the quotas
func (p Policy) Validate() error {
	prev := -1
	for _, l := range Levels() {
		q := p.Reveal[l]
		if q < 0 && q != Unlimited {
			return fmt.Errorf("%w: %s quota %d", ErrInvalidPolicy, l, q)
		}
		eff := p.quota(l)
		if eff < prev {
			return fmt.Errorf("%w: %s reveals fewer agents than the level before", ErrInvalidPolicy, l)
		}
		prev = eff
	}
	return nil
}

func (p Policy) quota(l DetailLevel) int {
	if p.Reveal[l] == Unlimited {
		return math.MaxInt
	}
	return p.Reveal[l]
}
