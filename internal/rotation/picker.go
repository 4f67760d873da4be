// Package rotation rotates display copy so consecutive screens for the
// same user never repeat a variant. Purely cosmetic; nothing else depends
// on this state.
package rotation

import (
	"context"
	"math/rand"
)

// Picker chooses copy variants with a no-immediate-repeat guarantee per
// (user, stage) pair.
type Picker struct {
	repo Repository
	intn func(n int) int
}

// NewPicker builds a picker over the given state repository.
func NewPicker(repo Repository) *Picker {
	return &Picker{repo: repo, intn: rand.Intn}
}

// Pick returns one of variants. With at least two variants and a prior
// choice on record, the draw is uniform over the indices other than the
// previous one; the very first call may return anything.
func (p *Picker) Pick(ctx context.Context, userID int64, stage string, variants []string) (string, error) {
	switch len(variants) {
	case 0:
		return "", nil
	case 1:
		return variants[0], nil
	}

	last, ok, err := p.repo.LastIndex(ctx, userID, stage)
	if err != nil {
		return "", err
	}
	if ok && last >= len(variants) {
		// The variant list shrank since the last draw.
		ok = false
	}

	var idx int
	if !ok {
		idx = p.intn(len(variants))
	} else {
		idx = p.intn(len(variants) - 1)
		if idx >= last {
			idx++
		}
	}

	if err := p.repo.SetLastIndex(ctx, userID, stage, idx); err != nil {
		return "", err
	}
	return variants[idx], nil
}
