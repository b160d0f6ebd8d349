package solver

import (
	"github.com/google/or-tools/ortools/sat/go/cpmodel"
	cmpb "github.com/google/or-tools/ortools/sat/proto/cpmodel"
	satpb "github.com/google/or-tools/ortools/sat/proto/satparameters"
	"google.golang.org/protobuf/proto"

	"github.com/wajdi-kharroubi/isi-surveillance/internal/dto"
	"github.com/wajdi-kharroubi/isi-surveillance/internal/models"
)

// diagnosticTimeBudgetSeconds caps each cascade stage's solve — these are
// throwaway models meant to localize a failure quickly, not to optimize
// anything, so they get a small fixed budget regardless of the caller's
// own time_budget_s.
const diagnosticTimeBudgetSeconds = 5

// DiagnoseInfeasibility re-solves progressively larger subsets of the hard
// constraints to localize which one a failed run is most likely blocked on,
// mirroring the original V3 optimizer's progressive diagnostic cascade
// (bare model -> +responsible presence -> +coverage -> +grade quotas):
// each stage is tried in priority order and the cascade stops at the first
// one that is itself infeasible, since everything after it is moot.
//
// Unlike the original's diagnostic stage for quotas (which tests a
// tolerance-relaxed dispersion, matching its own soft equality objective),
// this cascade's quota stage enforces the same strict intra-grade equality
// spec §4.3/C1 requires of the real model — diagnosing against a weaker
// constraint than the one actually applied would misattribute failures.
func DiagnoseInfeasibility(sessions []models.Session, teachers []models.Teacher, quotas models.GradeQuotas, m int, allowFallback bool) []dto.Remediation {
	eligible := make([]models.Teacher, 0, len(teachers))
	for _, t := range teachers {
		if t.Eligible {
			eligible = append(eligible, t)
		}
	}

	// Stage 1: bare variable universe, no constraints at all.
	baseModel := cpmodel.NewCpModelBuilder()
	BuildVariables(baseModel, sessions, eligible)
	if ok, err := diagnosticSolves(baseModel); err != nil || !ok {
		return []dto.Remediation{{
			Code:    "DIAGNOSTIC_BASE_FAILED",
			Message: "the bare decision-variable model (no constraints) did not solve; check that sessions and eligible teachers were built correctly",
		}}
	}

	// Stage 2: + responsible presence (C4).
	respModel := cpmodel.NewCpModelBuilder()
	respVT := BuildVariables(respModel, sessions, eligible)
	applyResponsiblePresenceOnly(respModel, respVT)
	if ok, err := diagnosticSolves(respModel); err != nil || !ok {
		return []dto.Remediation{{
			Code:    "DIAGNOSTIC_RESPONSIBLE_FAILED",
			Message: "the responsible-presence constraint alone is infeasible; verify every exam's responsible_external_code resolves to an eligible teacher and that no teacher is forced into two sessions at once",
		}}
	}

	// Stage 3: + per-session coverage (C2).
	covModel := cpmodel.NewCpModelBuilder()
	covVT := BuildVariables(covModel, sessions, eligible)
	applyResponsiblePresenceOnly(covModel, covVT)
	applyCoverageFloorOnly(covModel, covVT, m, allowFallback)
	if ok, err := diagnosticSolves(covModel); err != nil || !ok {
		return []dto.Remediation{{
			Code:    "DIAGNOSTIC_COVERAGE_FAILED",
			Message: "coverage cannot be met even before grade quotas are applied; there are too few eligible teachers for the busiest session — add teachers, lower min_invigilators_per_exam, or enable allow_fallback",
		}}
	}

	// Stage 4: + grade quota cap & intra-grade equality (C1).
	quotaModel := cpmodel.NewCpModelBuilder()
	quotaVT := BuildVariables(quotaModel, sessions, eligible)
	applyResponsiblePresenceOnly(quotaModel, quotaVT)
	applyCoverageFloorOnly(quotaModel, quotaVT, m, allowFallback)
	applyQuotaEqualityOnly(quotaModel, quotaVT, quotas)
	if ok, err := diagnosticSolves(quotaModel); err != nil || !ok {
		return []dto.Remediation{{
			Code:    "DIAGNOSTIC_QUOTA_FAILED",
			Message: "grade quotas are incompatible with coverage once strict intra-grade equality is applied; review grade_quotas against the number of sessions (an odd total split across an even number of same-grade teachers is a common cause)",
		}}
	}

	return []dto.Remediation{{
		Code:    "DIAGNOSTIC_BALANCE_OR_OBJECTIVE_LIMITED",
		Message: "responsible presence, coverage, and grade quotas are each satisfiable on their own; the failure likely comes from the inter-session balance / anti-isolation constraints (C6/C7) or the combined multi-criteria objective — try raising time_budget_s, disabling enable_grouping, or relaxing honor_wishes",
	}}
}

// diagnosticSolves runs a short, unoptimized solve purely to check
// feasibility of the constraints posted so far.
func diagnosticSolves(model *cpmodel.Builder) (bool, error) {
	modelProto, err := model.Model()
	if err != nil {
		return false, err
	}
	params := &satpb.SatParameters{
		MaxTimeInSeconds:  proto.Float64(diagnosticTimeBudgetSeconds),
		CpModelPresolve:   proto.Bool(true),
		LogSearchProgress: proto.Bool(false),
	}
	resp, err := cpmodel.SolveCpModelWithSatParameters(modelProto, params)
	if err != nil {
		return false, err
	}
	status := resp.GetStatus()
	return status == cmpb.CpSolverStatus_OPTIMAL || status == cmpb.CpSolverStatus_FEASIBLE, nil
}

// applyResponsiblePresenceOnly posts C4 in isolation, for diagnostic use.
func applyResponsiblePresenceOnly(model *cpmodel.Builder, vt *VarTable) {
	externalToIdx := make(map[string]int, len(vt.Teachers))
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
				continue
			}
			model.AddEquality(vt.X[s][tIdx], cpmodel.NewConstant(1))
		}
	}
}

// applyCoverageFloorOnly posts a raw lower-bound coverage check per session,
// matching the original's "nombre minimal" diagnostic test: it compares
// demand against the total pool of eligible teachers rather than per-grade
// quota capacity, since quotas are diagnosed separately in the next stage.
func applyCoverageFloorOnly(model *cpmodel.Builder, vt *VarTable, m int, allowFallback bool) {
	nTeachers := len(vt.Teachers)
	for s, sess := range vt.Sessions {
		n := len(sess.Exams)
		required := n * m
		coverExpr := vt.CoverExpr(s)
		if required > nTeachers {
			if allowFallback {
				floor := n
				if nTeachers < floor {
					floor = nTeachers
				}
				model.AddGreaterOrEqual(coverExpr, int64(floor))
			} else {
				model.AddGreaterOrEqual(coverExpr, int64(nTeachers))
			}
			continue
		}
		model.AddGreaterOrEqual(coverExpr, int64(required))
	}
}

// applyQuotaEqualityOnly posts C1 (grade quota cap + strict intra-grade
// equality against one representative) in isolation.
func applyQuotaEqualityOnly(model *cpmodel.Builder, vt *VarTable, quotas models.GradeQuotas) {
	loadVars := make([]cpmodel.IntVar, len(vt.Teachers))
	byGrade := map[string][]int{}
	for i, t := range vt.Teachers {
		loadVar := model.NewIntVar(0, int64(len(vt.Sessions)))
		model.AddEquality(loadVar, vt.LoadExpr(i))
		loadVars[i] = loadVar
		byGrade[t.GradeCode] = append(byGrade[t.GradeCode], i)
	}
	for grade, idxs := range byGrade {
		quota := quotas[grade]
		rep := idxs[0]
		for _, idx := range idxs {
			model.AddLessOrEqual(loadVars[idx], int64(quota))
			if idx != rep {
				model.AddEquality(loadVars[idx], loadVars[rep])
			}
		}
	}
}
