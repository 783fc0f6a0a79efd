package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testTiers() Tiers {
	return Tiers{
		Fast:   15 * time.Second,
		Medium: 30 * time.Second,
		Slow:   60 * time.Second,
	}
}

func TestIntervalForTierBoundaries(t *testing.T) {
	tiers := testTiers()

	cases := []struct {
		name        string
		timeToStart time.Duration
		want        time.Duration
	}{
		{"mid fast tier", 200 * time.Second, tiers.Fast},
		{"exactly five minutes", 300 * time.Second, tiers.Fast},
		{"just past five minutes", 301 * time.Second, tiers.Medium},
		{"mid medium tier", 600 * time.Second, tiers.Medium},
		{"exactly fifteen minutes", 900 * time.Second, tiers.Medium},
		{"just past fifteen minutes", 901 * time.Second, tiers.Slow},
		{"twenty minutes out", 1200 * time.Second, tiers.Slow},
		{"hours out", 6 * time.Hour, tiers.Slow},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tiers.IntervalFor(tc.timeToStart))
		})
	}
}

// A race past its advertised start but not yet terminal keeps polling at the
// fastest tier; the interval function never returns a stop value.
func TestIntervalForStartedRace(t *testing.T) {
	tiers := testTiers()

	for _, tts := range []time.Duration{0, -1 * time.Second, -5 * time.Minute, -2 * time.Hour} {
		require.Equal(t, tiers.Fast, tiers.IntervalFor(tts), "timeToStart %s", tts)
	}
}
