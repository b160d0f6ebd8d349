package solver

import (
	"math"
	"sort"

	"github.com/google/or-tools/ortools/sat/go/cpmodel"

	"github.com/wajdi-kharroubi/isi-surveillance/internal/models"
)

// ConstraintResult carries the auxiliary handles the objective stage needs:
// per-teacher load variables, per-session coverage variables, the soft
// wish-penalty expression, and the soft regrouping-bonus expression.
type ConstraintResult struct {
	LoadVars      []cpmodel.IntVar // indexed like VarTable.Teachers
	CoverVars     []cpmodel.IntVar // indexed like VarTable.Sessions
	GradeReps     map[string]int   // grade code -> representative teacher index
	WishTerms     []cpmodel.BoolVar // the x[s,t] vars contributing to pen_wish
	GroupingTerms []cpmodel.IntVar  // the per (teacher,day) dayScore vars contributing to R
	Adaptive      bool
	MinFloor      int // m_floor when Adaptive, else equal to m
}

// wishKey identifies an (date, slot) pair a teacher is unavailable for.
type wishKey struct {
	date string
	slot models.SlotCode
}

// ApplyConstraints emits C1-C8 into model and returns the auxiliary handles
// needed by BuildObjective.
func ApplyConstraints(
	model *cpmodel.Builder,
	vt *VarTable,
	quotas models.GradeQuotas,
	wishes []models.Wish,
	m int, // spec §4.3: minimum invigilators per exam
	allowFallback bool,
	honorWishes bool,
	enableGrouping bool,
	diag *Diagnostics,
) ConstraintResult {
	res := ConstraintResult{
		GradeReps: map[string]int{},
	}

	numSessions := len(vt.Sessions)

	// --- load variables + C1 (grade equality & quota cap) ---
	res.LoadVars = make([]cpmodel.IntVar, len(vt.Teachers))
	byGrade := map[string][]int{}
	for i, t := range vt.Teachers {
		loadVar := model.NewIntVar(0, int64(numSessions))
		model.AddEquality(loadVar, vt.LoadExpr(i))
		res.LoadVars[i] = loadVar
		byGrade[t.GradeCode] = append(byGrade[t.GradeCode], i)
	}
	for grade, idxs := range byGrade {
		quota, ok := quotas[grade]
		if !ok {
			quota = 0
			diag.Warn("no quota configured for grade %q; defaulting to 0", grade)
		}
		sort.Ints(idxs)
		rep := idxs[0]
		res.GradeReps[grade] = rep
		for _, idx := range idxs {
			model.AddLessOrEqual(res.LoadVars[idx], int64(quota))
			if idx != rep {
				model.AddEquality(res.LoadVars[idx], res.LoadVars[rep])
			}
		}
	}

	// --- Q (total available capacity) and D (ideal demand) ---
	totalQuota := 0
	for _, t := range vt.Teachers {
		totalQuota += quotas[t.GradeCode]
	}
	totalDemand := 0
	for _, s := range vt.Sessions {
		totalDemand += len(s.Exams) * m
	}
	adaptive := allowFallback && totalQuota < totalDemand
	res.Adaptive = adaptive

	minFloor := m
	if adaptive && totalDemand > 0 {
		minFloor = int(math.Floor(float64(totalQuota) / float64(totalDemand) * float64(m)))
		if minFloor < 1 {
			minFloor = 1
		}
	}
	res.MinFloor = minFloor

	if adaptive {
		diag.Info("adaptive mode engaged: available quota %d < ideal demand %d, floor=%d", totalQuota, totalDemand, minFloor)
	}

	// --- C2 (per-session coverage) ---
	res.CoverVars = make([]cpmodel.IntVar, numSessions)
	for s, sess := range vt.Sessions {
		coverVar := model.NewIntVar(0, int64(len(vt.Teachers)))
		model.AddEquality(coverVar, vt.CoverExpr(s))
		res.CoverVars[s] = coverVar

		n := len(sess.Exams)
		lower := n * minFloor
		upper := n * m
		if !adaptive {
			lower = n * m
			upper = n * m
		}
		if len(vt.Teachers) < lower {
			diag.Warn("session %s/%s day %d: only %d eligible teachers for a floor of %d; relaxing lower bound", sess.Key.Date.Format("2006-01-02"), sess.Key.Slot, sess.Key.DayIndex, len(vt.Teachers), lower)
			lower = len(vt.Teachers)
		}
		if lower == upper {
			model.AddEquality(coverVar, int64(lower))
		} else {
			model.AddGreaterOrEqual(coverVar, int64(lower))
			model.AddLessOrEqual(coverVar, int64(upper))
		}
	}

	// --- C3 (wishes to avoid, soft) ---
	if honorWishes {
		sessionsByDateSlot := map[wishKey][]int{}
		for s, sess := range vt.Sessions {
			k := wishKey{date: sess.Key.Date.Format("2006-01-02"), slot: sess.Key.Slot}
			sessionsByDateSlot[k] = append(sessionsByDateSlot[k], s)
		}
		externalToIdx := map[string]int{}
		for i, t := range vt.Teachers {
			externalToIdx[t.ExternalCode] = i
		}
		for _, w := range wishes {
			if w.TeacherExternalCode == "" || w.Date.IsZero() || w.SlotCode == "" {
				diag.Warn("wish for teacher %q skipped: missing date or slot", w.TeacherExternalCode)
				continue
			}
			tIdx, ok := externalToIdx[w.TeacherExternalCode]
			if !ok {
				diag.Warn("wish references unknown or ineligible teacher code %q", w.TeacherExternalCode)
				continue
			}
			k := wishKey{date: w.Date.Format("2006-01-02"), slot: w.SlotCode}
			for _, s := range sessionsByDateSlot[k] {
				res.WishTerms = append(res.WishTerms, vt.X[s][tIdx])
			}
		}
	}

	// --- C4 (responsible presence, hard) ---
	externalToIdx := map[string]int{}
	for i, t := range vt.Teachers {
		externalToIdx[t.ExternalCode] = i
	}
	for s, sess := range vt.Sessions {
		seen := map[string]bool{}
		for _, e := range sess.Exams {
			if e.ResponsibleExternalCode == "" || seen[e.ResponsibleExternalCode] {
				continue
			}
			seen[e.ResponsibleExternalCode] = true
			tIdx, ok := externalToIdx[e.ResponsibleExternalCode]
			if !ok {
				diag.Warn("exam %s (%s %s, room %s): responsible code %q not found among eligible teachers; presence not guaranteed",
					e.ID, sess.Key.Date.Format("2006-01-02"), sess.Key.Slot, e.Room, e.ResponsibleExternalCode)
				continue
			}
			model.AddEquality(vt.X[s][tIdx], cpmodel.NewConstant(1))
		}
	}

	// C5 is structural: a teacher is assigned per-session, not per-exam, so
	// simultaneous exams within a session share the teacher by construction.

	// --- C6 (inter-session balance, tolerance-based) ---
	bySize := map[int][]int{}
	for s, sess := range vt.Sessions {
		n := len(sess.Exams)
		bySize[n] = append(bySize[n], s)
	}
	for n, group := range bySize {
		if len(group) < 2 {
			continue
		}
		tau := interSessionTolerance(adaptive, n, m)
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				diffExpr := cpmodel.NewLinearExpr().AddTerm(res.CoverVars[group[i]], 1).AddTerm(res.CoverVars[group[j]], -1)
				model.AddLessOrEqual(diffExpr, int64(tau))
				model.AddGreaterOrEqual(diffExpr, int64(-tau))
			}
		}
	}

	// --- C7 (forbid isolated first+last) ---
	byDay := map[int][]int{}
	for s, sess := range vt.Sessions {
		byDay[sess.Key.DayIndex] = append(byDay[sess.Key.DayIndex], s)
	}
	for _, group := range byDay {
		if len(group) < 3 {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			return vt.Sessions[group[i]].Key.Slot.Index() < vt.Sessions[group[j]].Key.Slot.Index()
		})
		first, last := group[0], group[len(group)-1]
		middle := group[1 : len(group)-1]
		for t := range vt.Teachers {
			lhs := cpmodel.NewLinearExpr().AddTerm(vt.X[first][t], 1).AddTerm(vt.X[last][t], 1)
			for _, s := range middle {
				lhs.AddTerm(vt.X[s][t], -1)
			}
			model.AddLessOrEqual(lhs, 1)
		}
	}

	// --- C8 (day-grouping bonus, soft, optional) ---
	if enableGrouping {
		for day, group := range byDay {
			for t := range vt.Teachers {
				kExpr := cpmodel.NewLinearExpr()
				for _, s := range group {
					kExpr.AddTerm(vt.X[s][t], 1)
				}

				hasAny := model.NewBoolVar()
				model.AddGreaterOrEqual(kExpr, 1).OnlyEnforceIf(hasAny)
				model.AddLessOrEqual(kExpr, 0).OnlyEnforceIf(hasAny.Not())

				hasMulti := model.NewBoolVar()
				model.AddGreaterOrEqual(kExpr, 2).OnlyEnforceIf(hasMulti)
				model.AddLessOrEqual(kExpr, 1).OnlyEnforceIf(hasMulti.Not())

				isIsolated := model.NewBoolVar()
				model.AddImplication(isIsolated, hasAny)
				model.AddImplication(isIsolated, hasMulti.Not())
				model.AddBoolOr(hasAny.Not(), hasMulti, isIsolated)

				dayScore := model.NewIntVar(-2, int64(len(group)))
				model.AddEquality(dayScore, kExpr).OnlyEnforceIf(hasMulti)
				model.AddEquality(dayScore, cpmodel.NewConstant(-2)).OnlyEnforceIf(isIsolated)
				model.AddEquality(dayScore, cpmodel.NewConstant(0)).OnlyEnforceIf(hasAny.Not())

				res.GroupingTerms = append(res.GroupingTerms, dayScore)
				_ = day
			}
		}
	}

	return res
}

// interSessionTolerance implements the τ(n) formula from spec §4.3/C6.
func interSessionTolerance(adaptive bool, n, m int) int {
	if adaptive {
		v := int(math.Floor(0.5 * float64(n) * float64(m-1)))
		return maxInt(maxInt(v, n), 5)
	}
	v := int(math.Floor(0.05 * float64(n)))
	return maxInt(2, v)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
