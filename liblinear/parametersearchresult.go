package liblinear

// ParameterSearchResult stores the result of the parameter search
type ParameterSearchResult struct {
	BestC    float64
	BestRate float64

	// Cs and Rates list every evaluated C with its cross validation accuracy.
	Cs    []float64
	Rates []float64
}

func (r *ParameterSearchResult) add(c float64, rate float64) {
	r.Cs = append(r.Cs, c)
	r.Rates = append(r.Rates, rate)
	if rate > r.BestRate || len(r.Cs) == 1 {
		r.BestC = c
		r.BestRate = rate
	}
}
