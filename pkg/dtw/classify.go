package dtw

import "fmt"

// Template is a labelled reference sequence.
type Template struct {
	Label   string
	Vectors [][]float32
}

// Score is the normalized cost of one template.
type Score struct {
	Label string
	Cost  Cost
}

// Result of classifying one observed word.
type Result struct {
	Best   int     // Index of the best template, -1 when there are none
	Label  string  // Label of the best template
	Cost   Cost    // Cost of the best template
	Scores []Score // One entry per template, in template order
}

// Classify compares observed with every template and selects the lowest
// cost, preferring the later template on ties.
func (m *Matcher) Classify(observed [][]float32, templates []Template) (Result, error) {
	res := Result{
		Best:   -1,
		Scores: make([]Score, len(templates)),
	}
	costs := make([]Cost, len(templates))

	for i, t := range templates {
		c, err := m.Compare(observed, t.Vectors)
		if err != nil {
			return Result{Best: -1}, fmt.Errorf("template %q: %w", t.Label, err)
		}
		costs[i] = c
		res.Scores[i] = Score{Label: t.Label, Cost: c}
	}

	if res.Best = Best(costs); res.Best >= 0 {
		res.Label = templates[res.Best].Label
		res.Cost = costs[res.Best]
	}
	return res, nil
}
