package hashutil

import (
	"github.com/cespare/xxhash/v2"
)

// mask53 keeps the hash within the 53-bit range the collector's sampling
// arithmetic was designed around.
const mask53 = uint64(1)<<53 - 1

// Hash53 returns a stable 53-bit hash of s. The same input always yields the
// same value across processes, which makes modulo sampling decisions
// reproducible for a given auction identifier.
func Hash53(s string) uint64 {
	return xxhash.Sum64String(s) & mask53
}
