package beacon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// beaconJSON is the wire shape of the beacon oracle's HTTP response
// (spec.md §6 "Beacon oracle").
type beaconJSON struct {
	Round             uint64 `json:"round"`
	Signature         string `json:"signature"`
	Randomness        string `json:"randomness"`
	PreviousSignature string `json:"previous_signature,omitempty"`
}

// Client fetches beacons from an HTTP randomness oracle.
type Client struct {
	BaseURL    string
	ChainHash  string
	HTTPClient *http.Client
}

// NewClient returns a Client with a bounded default timeout; HTTP
// operations must fail loud rather than retry silently (spec.md §5
// "Cancellation/timeout").
func NewClient(baseURL, chainHash string) *Client {
	return &Client{
		BaseURL:    baseURL,
		ChainHash:  chainHash,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Fetch retrieves the beacon for round from the oracle. The canonical
// representation used for any further hashing is the raw response bytes,
// not a re-serialization of the parsed struct (spec.md §9, "treat the
// canonical representation as the bytes received from the oracle").
func (c *Client) Fetch(ctx context.Context, round uint64) (Beacon, []byte, error) {
	url := fmt.Sprintf("%s/%s/public/%d", c.BaseURL, c.ChainHash, round)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Beacon{}, nil, fmt.Errorf("beacon: build request: %w", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return Beacon{}, nil, fmt.Errorf("beacon: fetch round %d: %w", round, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Beacon{}, nil, fmt.Errorf("beacon: read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Beacon{}, nil, fmt.Errorf("beacon: oracle returned status %d", resp.StatusCode)
	}

	b, err := ParseBeaconJSON(raw)
	if err != nil {
		return Beacon{}, nil, err
	}
	return b, raw, nil
}

// ParseBeaconJSON decodes the oracle's JSON object into a Beacon.
func ParseBeaconJSON(raw []byte) (Beacon, error) {
	var wire beaconJSON
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Beacon{}, fmt.Errorf("beacon: decode JSON: %w", err)
	}
	if wire.Signature == "" || wire.Randomness == "" {
		return Beacon{}, fmt.Errorf("beacon: missing signature or randomness")
	}
	return Beacon{
		Round:             wire.Round,
		SignatureHex:      wire.Signature,
		RandomnessHex:     wire.Randomness,
		PreviousSignature: wire.PreviousSignature,
	}, nil
}
