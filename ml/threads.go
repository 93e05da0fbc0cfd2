// threads.go - Thread-Anzahl fuer parallele Kernels
package ml

import (
	"runtime"
	"sync/atomic"
)

var numThreads atomic.Int64

func init() {
	numThreads.Store(int64(runtime.NumCPU()))
}

// SetNumThreads setzt die maximale Anzahl paralleler Worker. n <= 0 setzt auf NumCPU zurueck.
func SetNumThreads(n int) {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	numThreads.Store(int64(n))
}

// NumThreads gibt die aktuelle maximale Anzahl paralleler Worker zurueck.
func NumThreads() int {
	return int(numThreads.Load())
}
