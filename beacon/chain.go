// Package beacon implements the public-randomness beacon client and
// verifier across the five recognized schemes (spec.md §3 "Beacon"/"Chain
// Info", §4.4 "Beacon Client & Verifier").
package beacon

// Scheme identifies one of the five recognized beacon signature schemes.
type Scheme string

const (
	SchemeChainedG2   Scheme = "chained-G2"
	SchemeUnchainedG2 Scheme = "unchained-G2"
	SchemeSwappedG1   Scheme = "swapped-G1"
	SchemeRFC9380G1   Scheme = "RFC9380-G1"
	SchemeBN254G1     Scheme = "BN254-on-G1"
)

// ChainInfo pins the parameters of one drand-style chain (spec.md §3
// "Chain Info"). All timing derives from (Period, GenesisTime); all
// signature verification derives from (PublicKeyHex, SchemeID).
type ChainInfo struct {
	PublicKeyHex string
	Period       int64
	GenesisTime  int64
	Hash         string
	GroupHash    string
	SchemeID     Scheme
}

// RoundAt computes round_at(t_ms) = max(1, floor((t_ms/1000 - genesis_time)/period) + 1)
// (spec.md §4.4).
func (c ChainInfo) RoundAt(tMillis int64) uint64 {
	tSeconds := tMillis / 1000
	delta := tSeconds - c.GenesisTime
	r := floorDiv(delta, c.Period) + 1
	if r < 1 {
		r = 1
	}
	return uint64(r)
}

// RoundTime computes round_time(r) = genesis_time + (r-1)*period, in
// seconds (spec.md §4.4).
func (c ChainInfo) RoundTime(round uint64) int64 {
	return c.GenesisTime + (int64(round)-1)*c.Period
}

// floorDiv performs floor division (rounding toward negative infinity), matching the mathematical
// "floor" in spec.md's round_at formula for any sign of the numerator.
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
