package registry

// Grade is a derived reputation tier. It is recomputed on every read and must
// never be persisted as ground truth.
type Grade string

const (
	// GradeAAA marks companies using at most 90% of their allowance.
	GradeAAA Grade = "AAA"
	// GradeAA marks companies within their allowance but above 90% utilization.
	GradeAA Grade = "AA"
	// GradeB marks companies that consumed beyond their allowance.
	GradeB Grade = "B (Debtor)"
)

// GradeFor derives the company's grade from verified consumption versus its
// initial allowance. A zero allowance grades as over-budget so companies that
// never minted cannot rank as top performers. Boundaries are computed in
// integer arithmetic: exactly 90% is still AAA, exactly 100% is still AA.
func GradeFor(c Company) Grade {
	if c.InitialAllowance == 0 {
		return GradeB
	}
	switch {
	case c.LastVerifiedConsumption*100 <= c.InitialAllowance*90:
		return GradeAAA
	case c.LastVerifiedConsumption <= c.InitialAllowance:
		return GradeAA
	default:
		return GradeB
	}
}

// Utilization reports verified consumption as a fraction of the allowance,
// for display only; grading itself avoids floating point.
func Utilization(c Company) float64 {
	if c.InitialAllowance == 0 {
		if c.LastVerifiedConsumption == 0 {
			return 1
		}
		return float64(c.LastVerifiedConsumption)
	}
	return float64(c.LastVerifiedConsumption) / float64(c.InitialAllowance)
}

// NetSurplus is the remaining allowance after verified consumption. Negative
// for debtors.
func NetSurplus(c Company) int64 {
	return c.InitialAllowance - c.LastVerifiedConsumption
}
