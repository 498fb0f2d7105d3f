package fcn

import (
	"sync"
)

var slicePool = make(map[int]*sync.Pool)

func borrowSlice(n int) []float32 {
	if p, ok := slicePool[n]; ok {
		return p.Get().([]float32)
	}
	return make([]float32, n)
}

func returnSlice(a []float32) {
	n := len(a)
	if _, ok := slicePool[n]; !ok {
		slicePool[n] = &sync.Pool{
			New: func() interface{} { return make([]float32, n) },
		}
	}
	slicePool[n].Put(a)
}
