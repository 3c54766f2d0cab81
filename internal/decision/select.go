package decision

import "sort"

// SelectTop sorts admitted decisions by score*expected_net_profit
// descending and returns at most maxConcurrent of them, per §4.7's
// "sorted by s * expected_net_profit descending, top max_concurrent
// forwarded to C5/C6."
func SelectTop(decisions []Decision, maxConcurrent int) []Decision {
	admitted := make([]Decision, 0, len(decisions))
	for _, d := range decisions {
		if d.Admitted {
			admitted = append(admitted, d)
		}
	}

	sort.SliceStable(admitted, func(i, j int) bool {
		return priority(admitted[i]) > priority(admitted[j])
	})

	if len(admitted) > maxConcurrent {
		admitted = admitted[:maxConcurrent]
	}
	return admitted
}

func priority(d Decision) float64 {
	netProfit, _ := d.Candidate.ExpectedNetProfit.Float64()
	return d.Score * netProfit
}
