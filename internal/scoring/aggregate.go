package scoring

import "github.com/ppiankov/democoach/internal/model"

// Average returns each metric's mean score rounded to 2 decimals. Metrics
// without scores are left out.
func Average(scores map[string][]int) map[string]float64 {
	out := make(map[string]float64, len(scores))
	for name, list := range scores {
		if len(list) == 0 {
			continue
		}
		sum := 0
		for _, s := range list {
			sum += s
		}
		out[name] = model.Round2(float64(sum) / float64(len(list)))
	}
	return out
}

// Weighted returns the weighted sum of the averaged scores, rounded to 2
// decimals. Only metrics present in averages count; missing weight is not
// redistributed.
func Weighted(averages map[string]float64, metrics []model.Metric) float64 {
	total := 0.0
	for _, m := range metrics {
		if avg, ok := averages[m.Name]; ok {
			total += avg * m.Weight
		}
	}
	return model.Round2(total)
}
