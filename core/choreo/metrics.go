package choreo

import "github.com/ethereum/go-ethereum/metrics"

var (
	submitTimer      = metrics.NewRegisteredTimer("choreo/submit", nil)
	submitFailMeter  = metrics.NewRegisteredMeter("choreo/submit/failed", nil)
	chunkMeter       = metrics.NewRegisteredMeter("choreo/populate/chunks", nil)
	allocatedCounter = metrics.NewRegisteredCounter("choreo/contexts/allocated", nil)
	closedCounter    = metrics.NewRegisteredCounter("choreo/contexts/closed", nil)
	leakedCounter    = metrics.NewRegisteredCounter("choreo/contexts/leaked", nil)
)
