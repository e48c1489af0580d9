package metrics

import (
	"testing"

	"event-feature-lab/internal/domain"
	"event-feature-lab/internal/windows"
)

func TestAlpha(t *testing.T) {
	primary := map[string]*float64{"a": f(5), "b": f(2), "c": nil, "d": nil}
	bench := map[string]*float64{"a": f(3), "b": nil, "c": f(4), "d": nil}

	got := Alpha(primary, bench)

	if v := got["a"]; v == nil || !approxEqual(*v, 2) {
		t.Errorf("a: expected 2, got %v", v)
	}
	if v := got["b"]; v == nil || !approxEqual(*v, 2) {
		t.Errorf("b: missing benchmark leg counts as 0, got %v", v)
	}
	if v := got["c"]; v == nil || !approxEqual(*v, -4) {
		t.Errorf("c: missing primary leg counts as 0, got %v", v)
	}
	if got["d"] != nil {
		t.Errorf("d: both legs missing must be nil, got %v", *got["d"])
	}
}

func TestAlpha_SymmetryWhenBothPresent(t *testing.T) {
	primary := map[string]*float64{"h1": f(1.25), "h2": f(-3.5), "h3": f(0)}
	bench := map[string]*float64{"h1": f(0.75), "h2": f(2.5), "h3": f(-1)}

	got := Alpha(primary, bench)
	for h := range primary {
		want := *primary[h] - *bench[h]
		if got[h] == nil || *got[h] != want {
			t.Errorf("%s: expected exactly %v, got %v", h, want, got[h])
		}
	}
}

func TestComputeDerived(t *testing.T) {
	prices := map[string]WindowPrices{
		"AAPL": {windows.AtEvent: f(110), "1day_before": f(100), windows.MomentumWindow: f(100)},
		"SPY":  {windows.AtEvent: f(505), "1day_before": f(500), windows.MomentumWindow: f(520)},
		"QQQ":  {},
	}

	d := ComputeDerived("AAPL", prices, []string{"SPY", "QQQ"})

	if len(d.PriceChanges) != 3 {
		t.Fatalf("expected changes for 3 instruments, got %d", len(d.PriceChanges))
	}
	if v := d.Alpha["SPY"]["1day_before"]; v == nil || !approxEqual(*v, 9) {
		t.Errorf("alpha vs SPY: expected 9, got %v", v)
	}
	if v := d.Alpha["QQQ"]["1day_before"]; v == nil || !approxEqual(*v, 10) {
		t.Errorf("alpha vs QQQ with missing leg: expected 10, got %v", v)
	}
	if d.Alpha["QQQ"]["1week_before"] != nil {
		t.Error("alpha with both legs missing must be nil")
	}
	if v := d.Momentum["AAPL"]; v == nil || !approxEqual(*v, 10) {
		t.Errorf("AAPL momentum: expected 10, got %v", v)
	}
	if d.Momentum["QQQ"] != nil {
		t.Error("QQQ momentum must be nil without data")
	}

	regimes := Regimes(d.Momentum)
	if regimes["AAPL"] != domain.RegimeBull {
		t.Errorf("AAPL: expected bull, got %s", regimes["AAPL"])
	}
	if regimes["SPY"] != domain.RegimeSideways {
		t.Errorf("SPY: expected sideways, got %s", regimes["SPY"])
	}
	if regimes["QQQ"] != domain.RegimeUnknown {
		t.Errorf("QQQ: expected unknown, got %s", regimes["QQQ"])
	}
}
