package layer

import (
	"math"

	"github.com/pkg/errors"
	"gorgonia.org/vecf64"
)

// GlobalMax reduces a stack to one value per channel: the maximum of that channel over
// every position of every scale.
func GlobalMax(s Stack) ([]float64, error) {
	depth, err := s.Depth()
	if err != nil {
		return nil, errors.WithMessage(err, "cannot reduce")
	}
	retVal := make([]float64, depth)
	for k := range retVal {
		retVal[k] = math.Inf(-1)
	}
	for _, m := range s {
		for k := 0; k < depth; k++ {
			ch := Channel(m, k)
			if len(ch) == 0 {
				continue
			}
			if v := vecf64.MaxOf(ch); v > retVal[k] {
				retVal[k] = v
			}
		}
	}
	return retVal, nil
}
