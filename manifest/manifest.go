// Package manifest implements artifact commitment for a finished ceremony
// (spec.md §3 "Ceremony Manifest", §4.6 "Artifact Commitment"): a
// hash-of-hashes binding every produced artifact together before the final
// attestation is requested.
package manifest

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Entry is one committed artifact: its path as recorded in the manifest and
// the SHA-256 digest of its bytes.
type Entry struct {
	Path   string
	Sha256 string
}

// Manifest is the ordered list of committed artifacts plus the derived
// nonce spec.md §4.1 state FINAL_ATTESTATION feeds to the attestation
// issuer as the nonce (the user data there is the SHA-256 of Render's text).
type Manifest struct {
	Entries               []Entry
	Concatenated          string
	FinalAttestationNonce string
}

// Build hashes each artifact in the given order and derives the
// concatenated digest string and final nonce. Order matters: reordering the
// same artifacts produces a different nonce, which is exactly the property
// that binds the manifest to a specific ceremony run.
func Build(paths []string, contents map[string][]byte) (Manifest, error) {
	m := Manifest{Entries: make([]Entry, 0, len(paths))}
	var sb strings.Builder
	for _, p := range paths {
		data, ok := contents[p]
		if !ok {
			return Manifest{}, fmt.Errorf("manifest: no content supplied for artifact %q", p)
		}
		digest := sha256Hex(data)
		m.Entries = append(m.Entries, Entry{Path: p, Sha256: digest})
		sb.WriteString(digest)
	}
	m.Concatenated = sb.String()
	m.FinalAttestationNonce = sha256Hex([]byte(m.Concatenated))
	return m, nil
}

// Render produces the plain-text manifest: one "path: digest" line per
// artifact, a blank line, then the concatenated digest and derived nonce.
func (m Manifest) Render() string {
	var sb strings.Builder
	for _, e := range m.Entries {
		fmt.Fprintf(&sb, "%s: %s\n", e.Path, e.Sha256)
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "concatenated: %s\n", m.Concatenated)
	fmt.Fprintf(&sb, "finalAttestationNonce: %s\n", m.FinalAttestationNonce)
	return sb.String()
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum[:])
}
