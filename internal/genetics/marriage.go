package genetics

import "github.com/cwbudde/nmcolony/internal/config"

// pair identifies two colony slot indices to mate, by fitness-ranked
// identity rather than raw slot position.
type pair struct{ a, b int }

// buildMarriageList builds exactly ceil(N/2) pairs, one per pair of
// children that reproduce will write back into slots 2k and 2k+1.
func (g *Genetics) buildMarriageList(ranked []int) []pair {
	n := len(ranked)
	count := (n + 1) / 2
	pairs := make([]pair, 0, count)

	switch g.cfg.Marriage {
	case config.MarriageKingHenry:
		king := ranked[0]
		for k := 0; k < count; k++ {
			pairs = append(pairs, pair{king, ranked[k+1]})
		}

	case config.MarriageRandom:
		for k := 0; k < count; k++ {
			i := g.stream.Intn(n)
			j := g.stream.Intn(n)
			for j == i {
				j = g.stream.Intn(n)
			}
			pairs = append(pairs, pair{ranked[i], ranked[j]})
		}

	case config.MarriageRandomPreferable:
		for k := 0; k < count; k++ {
			a := g.preferablePick(n)
			b := g.preferablePick(n)
			for b == a {
				b = g.preferablePick(n)
			}
			pairs = append(pairs, pair{ranked[a], ranked[b]})
		}

	case config.MarriageHierarchical:
		for k := 0; k < count; k++ {
			i, j := 2*k, 2*k+1
			if j >= n {
				j = 0
			}
			pairs = append(pairs, pair{ranked[i], ranked[j]})
		}

	case config.MarriageBestWorst:
		for k := 0; k < count; k++ {
			i, j := k, n-1-k
			if i == j {
				j = 0
			}
			pairs = append(pairs, pair{ranked[i], ranked[j]})
		}
	}

	return pairs
}

// preferablePick is a size-2 tournament: sample two ranked positions and
// keep the fitter (lower) one.
func (g *Genetics) preferablePick(n int) int {
	a := g.stream.Intn(n)
	b := g.stream.Intn(n)
	if b < a {
		return b
	}
	return a
}
