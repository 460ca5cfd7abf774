package bench

import (
	"fmt"
	"time"

	"kvsim/internal/cluster"
)

// DefaultOperations is the workload size used when none is given.
const DefaultOperations = 10000

// Result holds the timings of one benchmark run.
type Result struct {
	Operations    int
	WriteDuration time.Duration
	ReadDuration  time.Duration
}

// WriteThroughput returns write operations per second, or 0 when the run
// was too short to measure.
func (r Result) WriteThroughput() float64 {
	return throughput(r.Operations, r.WriteDuration)
}

// ReadThroughput returns read operations per second, or 0 when the run
// was too short to measure.
func (r Result) ReadThroughput() float64 {
	return throughput(r.Operations, r.ReadDuration)
}

func throughput(ops int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(ops) / d.Seconds()
}

// Run writes and then reads back a sequential keyN/valueN workload
// against the live cluster.
func Run(c *cluster.Cluster, operations int) (Result, error) {
	if operations <= 0 {
		operations = DefaultOperations
	}

	res := Result{Operations: operations}

	start := time.Now()
	for i := 0; i < operations; i++ {
		key := fmt.Sprintf("key%d", i)
		value := []byte(fmt.Sprintf("value%d", i))
		if err := c.Put(key, value); err != nil {
			return res, fmt.Errorf("benchmark write %s: %w", key, err)
		}
	}
	res.WriteDuration = time.Since(start)

	start = time.Now()
	for i := 0; i < operations; i++ {
		c.Get(fmt.Sprintf("key%d", i))
	}
	res.ReadDuration = time.Since(start)

	return res, nil
}
