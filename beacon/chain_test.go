package beacon

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundAtMatchesReferenceScenario(t *testing.T) {
	chain := ChainInfo{GenesisTime: 1_595_431_050, Period: 30}

	r := chain.RoundAt(1_700_000_090_000)
	require.Equal(t, uint64(3_485_635), r)

	rt := chain.RoundTime(r)
	require.Equal(t, int64(1_700_000_070), rt)
}

func TestRoundAtNeverBelowOne(t *testing.T) {
	chain := ChainInfo{GenesisTime: 1_595_431_050, Period: 30}
	r := chain.RoundAt(0)
	require.Equal(t, uint64(1), r)
}

func TestRoundTimeSatisfiesSkewInequality(t *testing.T) {
	chain := ChainInfo{GenesisTime: 1_595_431_050, Period: 30}
	const timestampMillis = int64(1_700_000_000_000)
	const skewMillis = int64(90_000)

	r := chain.RoundAt(timestampMillis + skewMillis)
	rt := chain.RoundTime(r)

	require.GreaterOrEqual(t, rt, timestampMillis/1000+skewMillis/1000)
}
