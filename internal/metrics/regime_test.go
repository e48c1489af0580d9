package metrics

import (
	"testing"

	"event-feature-lab/internal/domain"
)

func TestClassifyRegime(t *testing.T) {
	tests := []struct {
		momentum *float64
		want     domain.Regime
	}{
		{nil, domain.RegimeUnknown},
		{f(5.01), domain.RegimeBull},
		{f(5), domain.RegimeSideways},
		{f(0), domain.RegimeSideways},
		{f(-5), domain.RegimeSideways},
		{f(-5.01), domain.RegimeBear},
	}

	for _, tt := range tests {
		if got := ClassifyRegime(tt.momentum); got != tt.want {
			t.Errorf("ClassifyRegime(%v): expected %s, got %s", tt.momentum, tt.want, got)
		}
	}
}
