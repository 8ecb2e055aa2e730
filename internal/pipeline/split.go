package pipeline

import (
	"math"
	"math/rand/v2"
)

// split deterministically shuffles n indices with seed and returns the train
// and test partitions. The test share is ceil(fraction*n).
func split(n int, fraction float64, seed uint64) (train, test []int) {
	perm := rand.New(rand.NewPCG(seed, seed)).Perm(n)
	testSize := int(math.Ceil(fraction * float64(n)))
	if testSize > n {
		testSize = n
	}
	return perm[testSize:], perm[:testSize]
}

func pick[T any](src []T, idx []int) []T {
	out := make([]T, len(idx))
	for i, j := range idx {
		out[i] = src[j]
	}
	return out
}
