package blueprint

import "sort"

type ItemCount struct {
	Item  string
	Count int
}

// Tally turns per-block counts into a list sorted by descending count, then id.
func Tally(counts map[string]int) []ItemCount {
	out := make([]ItemCount, 0, len(counts))
	for item, n := range counts {
		if item == "" || n <= 0 {
			continue
		}
		out = append(out, ItemCount{Item: item, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Item < out[j].Item
	})
	return out
}

// RemainingCost subtracts blocks already in place from a material bill.
func RemainingCost(cost []ItemCount, alreadyCorrect map[string]int) []ItemCount {
	if len(cost) == 0 {
		return nil
	}
	out := make([]ItemCount, 0, len(cost))
	for _, c := range cost {
		if c.Item == "" || c.Count <= 0 {
			continue
		}
		n := c.Count
		if k := alreadyCorrect[c.Item]; k > 0 {
			if k >= n {
				n = 0
			} else {
				n -= k
			}
		}
		if n > 0 {
			out = append(out, ItemCount{Item: c.Item, Count: n})
		}
	}
	return out
}
