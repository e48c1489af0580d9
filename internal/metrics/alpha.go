package metrics

import "sort"

// Alpha returns primary minus benchmark change per horizon. A missing leg
// counts as zero; a horizon where both legs are missing stays nil.
func Alpha(primary, benchmark map[string]*float64) map[string]*float64 {
	horizons := make(map[string]struct{}, len(primary))
	for h := range primary {
		horizons[h] = struct{}{}
	}
	for h := range benchmark {
		horizons[h] = struct{}{}
	}

	out := make(map[string]*float64, len(horizons))
	for h := range horizons {
		p, b := primary[h], benchmark[h]
		if p == nil && b == nil {
			out[h] = nil
			continue
		}
		v := valueOr0(p) - valueOr0(b)
		out[h] = &v
	}
	return out
}

func valueOr0(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// Derived holds every derived metric of one feature record.
type Derived struct {
	PriceChanges map[string]map[string]*float64 // ticker -> horizon -> change
	Alpha        map[string]map[string]*float64 // benchmark -> horizon -> alpha
	Momentum     map[string]*float64            // ticker -> 30d momentum
}

// ComputeDerived computes changes for every instrument, alpha of primary
// against each benchmark and momentum for all of them.
// Run only after every window of every instrument has been resolved.
func ComputeDerived(primary string, prices map[string]WindowPrices, benchmarks []string) Derived {
	d := Derived{
		PriceChanges: make(map[string]map[string]*float64, len(prices)),
		Alpha:        make(map[string]map[string]*float64, len(benchmarks)),
		Momentum:     make(map[string]*float64, len(prices)),
	}

	tickers := make([]string, 0, len(prices))
	for t := range prices {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	for _, t := range tickers {
		d.PriceChanges[t] = Changes(prices[t])
		d.Momentum[t] = Momentum(prices[t])
	}
	for _, b := range benchmarks {
		if b == primary {
			continue
		}
		d.Alpha[b] = Alpha(d.PriceChanges[primary], d.PriceChanges[b])
	}
	return d
}
