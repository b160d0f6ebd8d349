package solver

import (
	"cmp"
	"slices"

	"github.com/wajdi-kharroubi/isi-surveillance/internal/dto"
	"github.com/wajdi-kharroubi/isi-surveillance/internal/models"
)

// The three wish outcomes from spec §4.7.
const (
	wishRespected  = "respected"
	wishViolated   = "violated"
	wishOutOfScope = "out_of_scope"
)

// BuildStats implements the post-solve statistics and wish accounting stage
// (spec §4.7): per-teacher load, per-grade mean load and equality check, and
// a classification of every wish into respected/violated/out_of_scope.
func BuildStats(vt *VarTable, quotas models.GradeQuotas, wishes []models.Wish, assignments []models.Assignment, honorWishes bool) dto.Stats {
	assignedPair := make(map[[2]string]bool, len(assignments)) // (examID, teacherID)
	for _, a := range assignments {
		assignedPair[[2]string{a.ExamID, a.TeacherID}] = true
	}

	// A teacher's load is the number of sessions they cover, not the number
	// of assignments: a session with several exams counts once.
	perTeacherLoad := make(map[string]int, len(vt.Teachers))
	for _, t := range vt.Teachers {
		perTeacherLoad[t.ID] = 0
		for _, sess := range vt.Sessions {
			for _, e := range sess.Exams {
				if assignedPair[[2]string{e.ID, t.ID}] {
					perTeacherLoad[t.ID]++
					break
				}
			}
		}
	}

	byGrade := map[string][]string{} // grade -> teacher IDs
	for _, t := range vt.Teachers {
		byGrade[t.GradeCode] = append(byGrade[t.GradeCode], t.ID)
	}

	grades := make([]string, 0, len(byGrade))
	for g := range byGrade {
		grades = append(grades, g)
	}
	slices.Sort(grades)

	perGradeEquality := true
	perGrade := make([]dto.GradeStat, 0, len(grades))
	for _, g := range grades {
		ids := byGrade[g]
		total := 0
		first := -1
		equal := true
		for _, id := range ids {
			load := perTeacherLoad[id]
			total += load
			if first == -1 {
				first = load
			} else if load != first {
				equal = false
			}
		}
		if !equal {
			perGradeEquality = false
		}
		mean := 0.0
		if len(ids) > 0 {
			mean = float64(total) / float64(len(ids))
		}
		perGrade = append(perGrade, dto.GradeStat{
			GradeCode:  g,
			MeanLoad:   mean,
			Quota:      quotas[g],
			EqualityOK: equal,
		})
	}

	stats := dto.Stats{
		PerTeacherLoad:   perTeacherLoad,
		PerGrade:         perGrade,
		PerGradeEquality: perGradeEquality,
	}

	if !honorWishes {
		stats.WishOutOfScope = len(wishes)
		return stats
	}

	assignedAt := map[string]map[wishKey]bool{} // teacher external code -> (date, slot) assigned
	scheduledKeys := map[wishKey]bool{}          // every (date, slot) the batch actually scheduled
	for _, sess := range vt.Sessions {
		k := wishKey{date: sess.Key.Date.Format("2006-01-02"), slot: sess.Key.Slot}
		scheduledKeys[k] = true
		for _, t := range vt.Teachers {
			present := false
			for _, e := range sess.Exams {
				if assignedPair[[2]string{e.ID, t.ID}] {
					present = true
					break
				}
			}
			if !present {
				continue
			}
			if assignedAt[t.ExternalCode] == nil {
				assignedAt[t.ExternalCode] = map[wishKey]bool{}
			}
			assignedAt[t.ExternalCode][k] = true
		}
	}

	externalKnown := map[string]bool{}
	for _, t := range vt.Teachers {
		externalKnown[t.ExternalCode] = true
	}

	for _, w := range wishes {
		outcome := dto.WishOutcome{
			TeacherExternalCode: w.TeacherExternalCode,
			Date:                w.Date.Format("2006-01-02"),
			SlotCode:            string(w.SlotCode),
		}
		// spec §4.7(c): a wish whose (date, slot) falls outside every
		// scheduled session is "out of scope" and tallied in WishOutOfScope,
		// as is a wish whose teacher code is not among the eligible teachers.
		k := wishKey{date: w.Date.Format("2006-01-02"), slot: w.SlotCode}
		if !externalKnown[w.TeacherExternalCode] || !scheduledKeys[k] {
			outcome.Status = wishOutOfScope
			stats.WishOutOfScope++
			continue
		}
		if assignedAt[w.TeacherExternalCode][k] {
			outcome.Status = wishViolated
			stats.WishViolated++
			stats.WishViolations = append(stats.WishViolations, outcome)
		} else {
			outcome.Status = wishRespected
			stats.WishRespected++
		}
	}

	slices.SortFunc(stats.WishViolations, func(a, b dto.WishOutcome) int {
		if c := cmp.Compare(a.TeacherExternalCode, b.TeacherExternalCode); c != 0 {
			return c
		}
		return cmp.Compare(a.Date, b.Date)
	})

	return stats
}
