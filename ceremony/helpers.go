package ceremony

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"time"
)

func hexEncode(b []byte) string {
	return hex.EncodeToString(b)
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

func readFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func pcrError(idx int, reason string) error {
	return fmt.Errorf("ceremony: pcr[%d] pre-flight check failed: %s", idx, reason)
}

// WaitForSignal polls for the presence of path until it appears or ctx is
// done (spec.md §5: "the host may poll for completion of the enclave via
// its signal file"; supplemented feature).
func WaitForSignal(ctx context.Context, path string, pollInterval time.Duration) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("ceremony: signal file %q did not appear: %w", path, ctx.Err())
		case <-ticker.C:
		}
	}
}
