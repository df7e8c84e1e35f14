package kernel

import "github.com/latticedb/store/pkg/opid"

// sequentialMint returns a Minter that yields strictly increasing clocks
// for storeID, mimicking how a Store's opid.Clock feeds List/Text kernels
// during a single ApplyUpdate call.
func sequentialMint(storeID uint32, start uint64) Minter {
	next := start
	return func() (opid.OpID, error) {
		next++
		return opid.New(storeID, next)
	}
}
