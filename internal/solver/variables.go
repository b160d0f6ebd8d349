package solver

import (
	"github.com/google/or-tools/ortools/sat/go/cpmodel"

	"github.com/wajdi-kharroubi/isi-surveillance/internal/models"
)

// VarTable owns the dense (session, teacher) decision-variable matrix and
// the index tables that let the rest of the pipeline address it by position
// instead of by tuple key (spec §9 design note: "represent sessions with a
// dense index after normalization, keep the variable matrix as a contiguous
// 2D array indexed [session_idx][teacher_idx]").
//
// The CP-SAT model owns the underlying variable handles; VarTable holds
// copies of those handles only (spec §9: "the driver keeps Vec<VarHandle>
// alongside its index tables").
type VarTable struct {
	Sessions []models.Session
	// Teachers holds only teachers with Eligible = true (spec §4.2);
	// ineligible teachers never enter the variable universe.
	Teachers []models.Teacher

	teacherIndex map[string]int // Teacher.ID -> index into Teachers
	X            [][]cpmodel.BoolVar
}

// BuildVariables implements the variable builder (spec §4.2): one boolean
// x[s,t] per (session, teacher) pair for every eligible teacher.
func BuildVariables(model *cpmodel.Builder, sessions []models.Session, teachers []models.Teacher) *VarTable {
	eligible := make([]models.Teacher, 0, len(teachers))
	index := make(map[string]int, len(teachers))
	for _, t := range teachers {
		if !t.Eligible {
			continue
		}
		index[t.ID] = len(eligible)
		eligible = append(eligible, t)
	}

	x := make([][]cpmodel.BoolVar, len(sessions))
	for s := range sessions {
		x[s] = make([]cpmodel.BoolVar, len(eligible))
		for t := range eligible {
			x[s][t] = model.NewBoolVar()
		}
	}

	return &VarTable{
		Sessions:     sessions,
		Teachers:     eligible,
		teacherIndex: index,
		X:            x,
	}
}

// TeacherIdx returns the column index for a teacher ID, or -1 if the
// teacher is unknown or ineligible.
func (v *VarTable) TeacherIdx(teacherID string) int {
	if idx, ok := v.teacherIndex[teacherID]; ok {
		return idx
	}
	return -1
}

// LoadExpr returns Σ_s x[s,t] for teacher column t as a LinearExpr.
func (v *VarTable) LoadExpr(t int) *cpmodel.LinearExpr {
	expr := cpmodel.NewLinearExpr()
	for s := range v.Sessions {
		expr.AddTerm(v.X[s][t], 1)
	}
	return expr
}

// CoverExpr returns Σ_t x[s,t] for session row s as a LinearExpr.
func (v *VarTable) CoverExpr(s int) *cpmodel.LinearExpr {
	expr := cpmodel.NewLinearExpr()
	for t := range v.Teachers {
		expr.AddTerm(v.X[s][t], 1)
	}
	return expr
}
