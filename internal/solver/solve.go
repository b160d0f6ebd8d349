package solver

import (
	"fmt"
	"runtime"

	"github.com/google/or-tools/ortools/sat/go/cpmodel"
	cmpb "github.com/google/or-tools/ortools/sat/proto/cpmodel"
	satpb "github.com/google/or-tools/ortools/sat/proto/satparameters"
	"google.golang.org/protobuf/proto"

	"github.com/wajdi-kharroubi/isi-surveillance/internal/dto"
	"github.com/wajdi-kharroubi/isi-surveillance/internal/models"
)

// SolveParams are the tunable knobs for the CP-SAT invocation (spec §4.5).
type SolveParams struct {
	TimeBudgetSeconds int
	Gap               float64
	MaxWorkers        int
	RandomSeed        int64
}

// solveOutcome bundles the raw CP-SAT response with the status translated
// to the caller-visible vocabulary (spec §6).
type solveOutcome struct {
	status   dto.Status
	response *cmpb.CpSolverResponse
}

// RunSolver applies spec §4.5's solver driver: worker count capped at
// min(CPU count, 16), the given time/gap budget, deterministic time budget
// at half the wall budget, presolve on, linearization level 2, probing
// level 2, search progress logging off.
func RunSolver(model *cpmodel.Builder, p SolveParams) (solveOutcome, error) {
	modelProto, err := model.Model()
	if err != nil {
		return solveOutcome{}, fmt.Errorf("failed to instantiate the CP model: %w", err)
	}

	workers := p.MaxWorkers
	if workers <= 0 || workers > runtime.NumCPU() {
		workers = runtime.NumCPU()
	}
	if workers > 16 {
		workers = 16
	}

	params := &satpb.SatParameters{
		NumSearchWorkers:     proto.Int32(int32(workers)),
		MaxTimeInSeconds:     proto.Float64(float64(p.TimeBudgetSeconds)),
		MaxDeterministicTime: proto.Float64(float64(p.TimeBudgetSeconds) / 2),
		RelativeGapLimit:     proto.Float64(p.Gap),
		CpModelPresolve:      proto.Bool(true),
		LinearizationLevel:   proto.Int32(2),
		CpModelProbingLevel:  proto.Int32(2),
		LogSearchProgress:    proto.Bool(false),
	}
	if p.RandomSeed != 0 {
		params.RandomSeed = proto.Int32(int32(p.RandomSeed))
	}

	response, err := cpmodel.SolveCpModelWithSatParameters(modelProto, params)
	if err != nil {
		return solveOutcome{}, fmt.Errorf("failed to solve the model: %w", err)
	}

	var status dto.Status
	switch response.GetStatus() {
	case cmpb.CpSolverStatus_OPTIMAL:
		status = dto.StatusOptimal
	case cmpb.CpSolverStatus_FEASIBLE:
		status = dto.StatusFeasible
	case cmpb.CpSolverStatus_INFEASIBLE:
		status = dto.StatusInfeasible
	default:
		status = dto.StatusUnknown
	}

	return solveOutcome{status: status, response: response}, nil
}

// ExpandAssignments implements stage 5's assignment expansion (spec §4.6):
// for each session, collect the chosen teachers and emit one assignment per
// (exam, teacher) pair in that session.
func ExpandAssignments(vt *VarTable, response *cmpb.CpSolverResponse) []models.Assignment {
	var out []models.Assignment
	for s, sess := range vt.Sessions {
		var chosen []int
		for t := range vt.Teachers {
			if cpmodel.SolutionBooleanValue(response, vt.X[s][t]) {
				chosen = append(chosen, t)
			}
		}
		for _, e := range sess.Exams {
			for _, t := range chosen {
				teacher := vt.Teachers[t]
				out = append(out, models.Assignment{
					ExamID:        e.ID,
					TeacherID:     teacher.ID,
					Room:          e.Room,
					IsResponsible: teacher.ExternalCode == e.ResponsibleExternalCode && e.ResponsibleExternalCode != "",
				})
			}
		}
	}
	return out
}
