package solver

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/or-tools/ortools/sat/go/cpmodel"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wajdi-kharroubi/isi-surveillance/internal/dto"
	"github.com/wajdi-kharroubi/isi-surveillance/internal/models"
	appErrors "github.com/wajdi-kharroubi/isi-surveillance/pkg/errors"
)

// Service orchestrates the full five-stage CP-SAT pipeline (spec §2, §4):
// session building, variable construction, constraint posting, objective
// assembly, solving, and assignment/statistics expansion.
type Service struct {
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *Metrics
}

// NewService wires a Service the way the teacher's generator services are
// wired: validator and logger default to usable zero values when omitted.
func NewService(validate *validator.Validate, logger *zap.Logger, metrics *Metrics) *Service {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{validator: validate, logger: logger, metrics: metrics}
}

// Run executes one end-to-end scheduling request (spec §6): validates the
// bundle, builds and solves the CP-SAT model, then expands it into the
// caller-visible response.
func (s *Service) Run(ctx context.Context, req dto.Request) (*dto.Response, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scheduling request")
	}
	if len(req.Teachers) == 0 {
		return nil, appErrors.ErrNoTeachers
	}
	if len(req.Exams) == 0 {
		return nil, appErrors.ErrNoExams
	}

	runID := uuid.NewString()
	diag := &Diagnostics{}

	teachers := toTeachers(req.Teachers)
	quotas := models.GradeQuotas(req.GradeQuotas)
	exams, err := toExams(req.Exams, diag)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam data")
	}
	wishes := toWishes(req.Wishes)

	sessions := BuildSessions(exams)
	if len(sessions) == 0 {
		return nil, appErrors.ErrNoExams
	}

	model := cpmodel.NewCpModelBuilder()
	vt := BuildVariables(model, sessions, teachers)

	s.logger.Info("scheduler run started",
		zap.String("run_id", runID),
		zap.Int("sessions", len(sessions)),
		zap.Int("eligible_teachers", len(vt.Teachers)),
	)

	cr := ApplyConstraints(model, vt, quotas, wishes, req.Params.MinInvigilatorsPerExam,
		req.Params.AllowFallback, req.Params.HonorWishes, req.Params.EnableGrouping, diag)

	BuildObjective(model, cr, req.Params.HonorWishes, req.Params.EnableGrouping)

	if s.metrics != nil {
		s.metrics.SetModelSize(len(sessions)*len(vt.Teachers), cr.Adaptive)
	}

	sp := SolveParams{
		TimeBudgetSeconds: req.Params.TimeBudgetSeconds,
		Gap:               req.Params.Gap,
		MaxWorkers:        0,
		RandomSeed:        req.Params.RandomSeed,
	}

	start := time.Now()
	outcome, err := RunSolver(model, sp)
	elapsed := time.Since(start)
	if err != nil {
		if s.metrics != nil {
			s.metrics.ObserveSolve("error", elapsed)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrSolveFailed.Code, appErrors.ErrSolveFailed.Status, appErrors.ErrSolveFailed.Message)
	}
	if s.metrics != nil {
		s.metrics.ObserveSolve(string(outcome.status), elapsed)
	}

	s.logger.Info("scheduler run finished",
		zap.String("run_id", runID),
		zap.String("status", string(outcome.status)),
		zap.Duration("elapsed", elapsed),
	)

	resp := &dto.Response{
		RunID:  runID,
		Status: outcome.status,
	}

	if outcome.status == dto.StatusInfeasible || outcome.status == dto.StatusUnknown {
		resp.Remediations = DiagnoseInfeasibility(sessions, teachers, quotas, req.Params.MinInvigilatorsPerExam, req.Params.AllowFallback)
		resp.Remediations = append(resp.Remediations, remediationsFor(outcome.status, cr, req)...)
		resp.Diagnostics = diag.Lines()
		return resp, nil
	}

	assignments := ExpandAssignments(vt, outcome.response)
	resp.Assignments = toAssignmentOutputs(assignments)
	resp.Stats = BuildStats(vt, quotas, wishes, assignments, req.Params.HonorWishes)
	resp.Diagnostics = diag.Lines()

	return resp, nil
}

func toTeachers(in []dto.TeacherInput) []models.Teacher {
	out := make([]models.Teacher, len(in))
	for i, t := range in {
		out[i] = models.Teacher{
			ID:           t.ID,
			GradeCode:    t.GradeCode,
			ExternalCode: t.ExternalCode,
			Eligible:     t.Eligible,
		}
	}
	return out
}

func toExams(in []dto.ExamInput, diag *Diagnostics) ([]models.Exam, error) {
	out := make([]models.Exam, len(in))
	for i, e := range in {
		start, err := parseClockTime(e.StartTime)
		if err != nil {
			return nil, fmt.Errorf("exam %s: invalid start_time %q: %w", e.ID, e.StartTime, err)
		}
		end, err := parseClockTime(e.EndTime)
		if err != nil {
			return nil, fmt.Errorf("exam %s: invalid end_time %q: %w", e.ID, e.EndTime, err)
		}
		if !start.Before(end) {
			diag.Warn("exam %s: start_time %s is not before end_time %s", e.ID, e.StartTime, e.EndTime)
		}
		out[i] = models.Exam{
			ID:                      e.ID,
			Date:                    e.Date,
			StartTime:               start,
			EndTime:                 end,
			Semester:                e.Semester,
			SessionType:             e.SessionType,
			Room:                    e.Room,
			ResponsibleExternalCode: e.ResponsibleExternalCode,
		}
	}
	return out, nil
}

func toWishes(in []dto.WishInput) []models.Wish {
	out := make([]models.Wish, len(in))
	for i, w := range in {
		out[i] = models.Wish{
			TeacherExternalCode: w.TeacherExternalCode,
			Date:                w.Date,
			SlotCode:            models.SlotCode(w.SlotCode),
		}
	}
	return out
}

func toAssignmentOutputs(in []models.Assignment) []dto.AssignmentOutput {
	out := make([]dto.AssignmentOutput, len(in))
	for i, a := range in {
		out[i] = dto.AssignmentOutput{
			ExamID:        a.ExamID,
			TeacherID:     a.TeacherID,
			Room:          a.Room,
			IsResponsible: a.IsResponsible,
		}
	}
	return out
}

// parseClockTime parses an "HH:MM" string into a ClockTime.
func parseClockTime(raw string) (models.ClockTime, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(raw, "%d:%d", &hour, &minute); err != nil {
		return models.ClockTime{}, err
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return models.ClockTime{}, fmt.Errorf("time out of range: %q", raw)
	}
	return models.NewClockTime(hour, minute), nil
}

// remediationsFor builds the actionable suggestions attached to a failed
// run (spec §7): which parameters to relax to reach feasibility.
func remediationsFor(status dto.Status, cr ConstraintResult, req dto.Request) []dto.Remediation {
	var out []dto.Remediation
	if status == dto.StatusUnknown {
		out = append(out, dto.Remediation{
			Code:    "INCREASE_TIME_BUDGET",
			Message: "the solver did not converge within the time budget; raise time_budget_s or relax the optimality gap",
		})
	}
	if !req.Params.AllowFallback {
		out = append(out, dto.Remediation{
			Code:    "ENABLE_ALLOW_FALLBACK",
			Message: "allow_fallback is disabled; enabling it lets the solver reduce coverage below the nominal minimum when quota is insufficient",
		})
	}
	if req.Params.MinInvigilatorsPerExam > 1 {
		out = append(out, dto.Remediation{
			Code:    "LOWER_MIN_INVIGILATORS",
			Message: "lowering min_invigilators_per_exam reduces total demand and may restore feasibility",
		})
	}
	out = append(out, dto.Remediation{
		Code:    "INCREASE_GRADE_QUOTAS",
		Message: "grade quotas may be too low relative to the number of sessions; review grade_quotas",
	})
	return out
}
