// Package ptau holds the frozen table mapping a circuit's constraint count
// to the Powers-of-Tau parameter file it must use (spec.md §3 "PTAU
// Descriptor", §4.8 "PTAU Catalog").
package ptau

import (
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// MinPower and MaxPower bound the catalog (spec.md §3: P ∈ [8,28]).
const (
	MinPower = 8
	MaxPower = 28
)

// Descriptor pins one entry of the catalog: a power of two P, its maximum
// supported constraint count, the expected BLAKE2b-512 digest of the file,
// and the URL it is fetched from.
type Descriptor struct {
	Power          int
	MaxConstraints uint64
	Blake2b512Hex  string
	SourceURL      string
}

// Catalog is the frozen, compiled-in table indexed by power.
type Catalog map[int]Descriptor

// hermezDigests pins the published BLAKE2b-512 digest of each
// "powersOfTau28_hez_final_*.ptau" transcript, indexed by power. This is the
// same frozen-constant treatment the catalog already gives MaxConstraints
// and SourceURL; a deployment that mirrors the files locally should still
// re-derive these with `b2sum -a blake2b -l 512` against its own copies
// before trusting a new environment, same as any other pinned hash.
var hermezDigests = map[int]string{
	8:  "d09becb79b0dbe95c24618a581eb16a15893aa321c2febea69c5163fdb8700bc421cb3bb0f9c0b5566c28d4ce6989c6271c0b93472c08d4ea76bc1f9530d83b6",
	9:  "3b64cf1c9821b31f72608df302fa38b189555ab37e192c83b0416f02edd33bc8085850c9bd5dc3cac0c7649eaa870431b935aebd76af6b58e41fe75f6f84051e",
	10: "264b072b21c0058a2a070e6a24eeb0fc70b6a615e696e0b056c81cc19acf31d2b7235f54b37706b8f50689cc55795af7dcc9c08580555f3297b643ef067fa5ab",
	11: "9e75def40a54c6fadef358c3d46ba6e634f7721abdf80cfc2e0a8f40806d0fe75633944c5aad96504eaafb8c441677c5f74c4edf77c866a1bcc85517f46b5f1e",
	12: "60ef1d0d06a11d6fdc0b2fd1f0bb39a201bcf1f7f79b031ad1f249c3e365b3f3d928ab6c41079456a7780bec7bdb6d38a841c971c54e39df8bfefba550f194ab",
	13: "354c0bee06bfbfa1e4669f06e28f183e0e741c40f2b05089d169d0f0f2a5580ca99d629b4ecb3871efb46e930aa4c06543aa3df63154508470c4a74433d4232c",
	14: "1f904ea3ba68ba579a10f1ff298574b39c9f9a579d3c23bf52fc80f596cd77ae7a2f2333210e9db20848148b91c75e81fee9b812f15c038743f8b45c750f3957",
	15: "30f895b2397dacb303aeed57e88a1e738e20bb502a2079735ff996a5c4abfc3e1a9faecedb6a2fa6f337f57503922d70e617b824c197a65fbd60511b3a8a4ad3",
	16: "caaca6a7ba9f3522c34fa6c5a32ebb2fd02032126944b835cb968abd4f0b6cfb9bd7d00307476d27aa64ce516d3684e81dd0bbf47933d1e8ee76a47c7745d0f3",
	17: "fc0ddc91f8417c25efb899d1c4752a25db045aade8cc058f2ededfe20b7ef298a126154ca15ca910c3d94319afcd8a22f31705af63cfc6448e4a684c57450e29",
	18: "c3818d7bd7f60ef05ddb0865d2d4c5fb856a825c2237109d0b446f2783ee46897acc89c6d4e328f2085cb8b23cfe691daa6567a9d4bd290a459bec8488f80694",
	19: "ade626ee49e26df407300a089cdc1bb18e8430a6684d9c01ebe4fef039720c43b3951ddcb5dd77a79f2bb57a440638141b6b82d059b26afcfec53d1e59291890",
	20: "fd0d41be7769e7c9fc7294c40a781ef3be83e5fdceef10fe5587cecdd34f4b501b2c9ea148dea67f5a70cae7adecf5f54a4c2a4e2c51edb3298954ebc8efd03a",
	21: "13d1fa05297a2d62c58127003ed90206aa9c6cc0c77217ad17a938dfb522abbcd495a40d959d51eb33bc69b297da9540b1db09addaabd1b14963ad836d940af2",
	22: "0156116be315d781169ea81559981603836284562c4410690befb9a69263b0738c22ed95c2d0ee5360e7cd46386df703dbefdc0adcf15546806cfe0cd78c8e91",
	23: "f95265287e9b4adf8b76a53994e4480a221b3cae01164f31f8353c86206ec492491558d9a98b4a7ef0dd22abd6d519514fe3e7f3ed783729de58e3beb39eb806",
	24: "9aa0763c2dd6f5bfc60a098086ec93c66863ee13950b899bfba9038a8e2cbda35c9cdaf2735a55015fcd093d5565a230a5d64418bb5947b2577882e4004244db",
	25: "48d73622e12a5fbef01e04252673d094b2bf09f546bc171144ddf699a1abc115ecdd93de8a6b51abf69ebbabfa8a52837ecb6b9ec220441a2ffd9c57a01a7735",
	26: "0a5120f69fe5e34bcf1dfc27e2da91329aebb6421978f7e623c074951dc7978a5a2acac3ebc754f03d9d0cd89946f57258dbfb1c93d5efede8ec942e8837e904",
	27: "62e98bce00fe7401256e79fa682ef443474261a628bb5d9e19301692135bbbb9b0100286a07fe8c40f129751d17089e770347707f95a9922efac8eb3b1502d27",
	28: "d5713ec9d69a8bd36e58609251f49879b626511bad553e317209995ea08f0861801e380e60063bcc7d300f681a099dd58a918174551af64e40aa16efe20b1a8c",
}

// DefaultCatalog returns the reference catalog, pinned to the Hermez/Polygon
// "powersOfTau28_hez_final_*.ptau" files, the canonical circom/snarkjs
// ceremony transcripts. Deployments that use a different PTAU lineage build
// their own Catalog value instead of calling this constructor.
func DefaultCatalog() Catalog {
	c := make(Catalog, MaxPower-MinPower+1)
	for p := MinPower; p <= MaxPower; p++ {
		c[p] = Descriptor{
			Power:          p,
			MaxConstraints: uint64(1) << uint(p),
			Blake2b512Hex:  hermezDigests[p],
			SourceURL:      fmt.Sprintf("https://hermez.s3-eu-west-1.amazonaws.com/powersOfTau28_hez_final_%02d.ptau", p),
		}
	}
	return c
}

// SelectPower picks the smallest P with 2^P >= constraints, clamped to
// [MinPower, MaxPower]. It returns an error if constraints exceeds the
// catalog's maximum (spec.md §4.8: "if n > 2^28 the ceremony cannot proceed
// and must abort in pre-flight").
func SelectPower(constraints uint64) (int, error) {
	if constraints == 0 {
		return MinPower, nil
	}
	for p := MinPower; p <= MaxPower; p++ {
		if uint64(1)<<uint(p) >= constraints {
			return p, nil
		}
	}
	return 0, fmt.Errorf("ptau: %d constraints exceeds catalog maximum 2^%d", constraints, MaxPower)
}

// Lookup returns the descriptor for constraints, selecting the power first.
func (c Catalog) Lookup(constraints uint64) (Descriptor, error) {
	p, err := SelectPower(constraints)
	if err != nil {
		return Descriptor{}, err
	}
	d, ok := c[p]
	if !ok {
		return Descriptor{}, fmt.Errorf("ptau: no catalog entry for power %d", p)
	}
	return d, nil
}

// VerifyDigest recomputes the BLAKE2b-512 digest of data and compares it
// against the descriptor's pinned hash (spec.md §4.1 state PTAU_CHECK).
func (d Descriptor) VerifyDigest(data []byte) error {
	got := blake2b512Hex(data)
	if d.Blake2b512Hex == "" {
		return fmt.Errorf("ptau: descriptor for power %d has no pinned digest configured", d.Power)
	}
	if got != d.Blake2b512Hex {
		return fmt.Errorf("ptau: digest mismatch for power %d: got %s, want %s", d.Power, got, d.Blake2b512Hex)
	}
	return nil
}

func blake2b512Hex(data []byte) string {
	sum := blake2b.Sum512(data)
	return fmt.Sprintf("%x", sum[:])
}
