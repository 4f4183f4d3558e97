package audit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenCost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		competitors int
		issues      int
		want        int
	}{
		{"no competitors no issues", 0, 0, 1000},
		{"issues only", 0, 7, 1000 + 7*50},
		{"two competitors", 2, 4, 1000 + 2*500 + 4*50},
		{"cap-sized fan-out", 3, 12, 1000 + 3*500 + 12*50},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, TokenCost(tc.competitors, tc.issues))
		})
	}
}
