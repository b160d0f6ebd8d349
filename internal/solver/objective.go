package solver

import (
	"github.com/google/or-tools/ortools/sat/go/cpmodel"
)

// objectiveWeights implements the coefficient table from spec §4.4.
type objectiveWeights struct {
	wish       int64
	dispersion int64
	quotaUtil  int64
	grouping   int64
}

func weightsFor(adaptive, grouping bool) objectiveWeights {
	switch {
	case !adaptive && grouping:
		return objectiveWeights{wish: 50, dispersion: 30, quotaUtil: 0, grouping: 20}
	case !adaptive && !grouping:
		return objectiveWeights{wish: 60, dispersion: 40, quotaUtil: 0, grouping: 0}
	case adaptive && grouping:
		return objectiveWeights{wish: 40, dispersion: 20, quotaUtil: 20, grouping: 20}
	default: // adaptive && !grouping
		return objectiveWeights{wish: 50, dispersion: 30, quotaUtil: 20, grouping: 0}
	}
}

// BuildObjective assembles the weighted linear objective (spec §4.4) and
// sets it on model. Dispersion is computed over one representative teacher
// load per grade, since grade equality (C1) already pins intra-grade load;
// only inter-grade spread is meaningful (spec §4.4 rationale).
func BuildObjective(model *cpmodel.Builder, cr ConstraintResult, honorWishes, enableGrouping bool) {
	w := weightsFor(cr.Adaptive, enableGrouping && len(cr.GroupingTerms) > 0)

	reps := make([]cpmodel.IntVar, 0, len(cr.GradeReps))
	for _, idx := range cr.GradeReps {
		reps = append(reps, cr.LoadVars[idx])
	}

	objective := cpmodel.NewLinearExpr()

	if honorWishes && w.wish != 0 {
		for _, v := range cr.WishTerms {
			objective.AddTerm(v, -w.wish)
		}
	}

	if len(reps) > 0 && w.dispersion != 0 {
		maxLoad := model.NewIntVar(0, int64(len(cr.CoverVars)))
		minLoad := model.NewIntVar(0, int64(len(cr.CoverVars)))
		model.AddMaxEquality(maxLoad, reps)
		model.AddMinEquality(minLoad, reps)
		objective.AddTerm(maxLoad, -w.dispersion)
		objective.AddTerm(minLoad, w.dispersion)
	}

	if cr.Adaptive && w.quotaUtil != 0 {
		for _, lv := range cr.LoadVars {
			objective.AddTerm(lv, w.quotaUtil)
		}
	}

	if enableGrouping && w.grouping != 0 {
		for _, dv := range cr.GroupingTerms {
			objective.AddTerm(dv, w.grouping)
		}
	}

	model.Maximize(objective)
}
