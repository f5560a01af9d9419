// Package config holds the constants pinned at compile time: the TEE root
// certificate, the beacon chain info, and the hardware RNG source identifier.
// None of these are fetched at runtime (design note, spec.md §9 "Pinned
// roots and constants").
package config

import "github.com/sealedkey/groth16tee/beacon"

// ExpectedHardwareRNGSource is the platform-reported identifier the enclave
// must observe before drawing any secret entropy (spec.md §4.7).
const ExpectedHardwareRNGSource = "nsm-hwrng"

// TimeAttestationSkewMillis is the fixed forward offset (spec.md §4.1 state
// AWAIT_BEACON, §4.2 step 6) added to the time-attestation's timestamp
// before deriving the beacon round.
const TimeAttestationSkewMillis = int64(90_000)

// BeaconAvailabilityGraceSeconds is added to round_time(R) before the host
// attempts to fetch the beacon (spec.md §4.2 step 6).
const BeaconAvailabilityGraceSeconds = int64(10)

// BeaconApplyIterations is the fixed iteration count passed to the Groth16
// library's apply_beacon primitive (spec.md §4.1 state APPLY_BEACON).
const BeaconApplyIterations = 10

// ContributionLabel and BeaconLabel are the fixed name labels passed to the
// Groth16 toolchain's contribute and apply_beacon calls.
const (
	ContributionLabel = "enclave-contribution"
	BeaconLabel       = "public-beacon"
)

// TEERootCertificatePEM is the pinned root certificate for the reference TEE
// platform's attestation chain (spec.md §4.3 step 2). It is intentionally a
// placeholder in this repository: production deployments compile in the
// real vendor root alongside this constant's definition, never fetch it.
//
// Left empty here because the real AWS Nitro root is a large, versioned
// artifact that does not belong in source control for a from-scratch
// project; attestation.Verifier takes the root as an explicit
// *x509.Certificate constructor argument precisely so a deployment can
// supply it without touching this package.
const TEERootCertificatePEM = ``

// PinnedChainHash is the drand chain hash this deployment targets
// (spec.md §6, "the pinned chain hash is ...").
const PinnedChainHash = "8990e7a9aaed2ffed73dbd7092123d6f289930540d7651336225dc172e51b2ce"

// PinnedChain is the drand chain this deployment verifies beacons against
// (spec.md §3 "Chain Info"). GenesisTime and Period match the League of
// Entropy default chain's published parameters; PublicKeyHex, Hash, and
// GroupHash are left for a deployment to fill in alongside the real chain
// hash above, the same placeholder pattern as TEERootCertificatePEM.
var PinnedChain = beacon.ChainInfo{
	PublicKeyHex: "",
	Period:       30,
	GenesisTime:  1_595_431_050,
	Hash:         PinnedChainHash,
	GroupHash:    "",
	SchemeID:     beacon.SchemeUnchainedG2,
}
