package gmx

import "fmt"

// Change is one emission of the position poll loop: the snapshot before a
// detected difference and the snapshot that replaced it.
type Change struct {
	Before []Position
	After  []Position
}

// SamePositions reports whether two snapshots contain the same position
// states. Order is irrelevant; each position of a consumes one distinct Equal
// counterpart in b and the lengths must match.
func SamePositions(a, b []Position) bool {
	if len(a) != len(b) {
		return false
	}
	matched := make([]bool, len(b))
	for _, p := range a {
		found := false
		for i, q := range b {
			if matched[i] {
				continue
			}
			if p.Equal(q) {
				matched[i] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// DiffPositions splits a snapshot transition into positions that were opened
// and positions that were closed, matched by Key. Positions present in both
// snapshots (even with changed amounts) appear in neither list.
func DiffPositions(old, current []Position) (added, removed []Position) {
	oldKeys := make(map[string]bool, len(old))
	for _, p := range old {
		oldKeys[p.Key()] = true
	}
	newKeys := make(map[string]bool, len(current))
	for _, p := range current {
		newKeys[p.Key()] = true
	}

	for _, p := range old {
		if !newKeys[p.Key()] {
			removed = append(removed, p)
		}
	}
	for _, p := range current {
		if !oldKeys[p.Key()] {
			added = append(added, p)
		}
	}
	return added, removed
}

// PositionDelta describes how one position moved between two reads.
type PositionDelta struct {
	Key                      string
	DeltaCollateralAmount    float64
	DeltaCollateralAmountUSD float64
	DeltaLeverage            float64
}

// Delta computes the change from a previous read of a position to a newer
// one. Both reads must refer to the same position key.
func Delta(previous, current Position) (PositionDelta, error) {
	if previous.Key() != current.Key() {
		return PositionDelta{}, fmt.Errorf("positions %q and %q are not comparable", previous.Key(), current.Key())
	}
	return PositionDelta{
		Key:                      current.Key(),
		DeltaCollateralAmount:    previous.InitialCollateralAmount - current.InitialCollateralAmount,
		DeltaCollateralAmountUSD: previous.InitialCollateralAmountUSD - current.InitialCollateralAmountUSD,
		DeltaLeverage:            previous.Leverage - current.Leverage,
	}, nil
}
