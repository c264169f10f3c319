package layer

import "sync"

// scratch buffers, keyed by length
var (
	bufPools = make(map[int]*sync.Pool)
	bufLock  sync.Mutex
)

func bufPool(n int) *sync.Pool {
	bufLock.Lock()
	defer bufLock.Unlock()
	if p, ok := bufPools[n]; ok {
		return p
	}
	p := &sync.Pool{
		New: func() interface{} { return make([]float64, n) },
	}
	bufPools[n] = p
	return p
}

// borrowBuf returns a zeroed []float64 of length n.
func borrowBuf(n int) []float64 {
	retVal := bufPool(n).Get().([]float64)
	for i := range retVal {
		retVal[i] = 0
	}
	return retVal
}

func returnBuf(buf []float64) { bufPool(len(buf)).Put(buf) }
