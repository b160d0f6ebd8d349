package solver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wajdi-kharroubi/isi-surveillance/internal/models"
)

func vtFixture() *VarTable {
	return &VarTable{
		Teachers: []models.Teacher{
			{ID: "t1", ExternalCode: "a", GradeCode: "G1"},
			{ID: "t2", ExternalCode: "b", GradeCode: "G1"},
			{ID: "t3", ExternalCode: "c", GradeCode: "G2"},
		},
		Sessions: []models.Session{
			{
				Key:   models.SessionKey{Date: mustDateStats("2025-06-10"), Slot: models.SlotS1},
				Exams: []models.Exam{{ID: "e1"}},
			},
		},
	}
}

func mustDateStats(s string) time.Time {
	d, _ := time.Parse("2006-01-02", s)
	return d
}

func TestBuildStatsPerGradeEquality(t *testing.T) {
	vt := vtFixture()
	assignments := []models.Assignment{
		{ExamID: "e1", TeacherID: "t1"},
		{ExamID: "e1", TeacherID: "t2"},
	}
	quotas := models.GradeQuotas{"G1": 2, "G2": 1}

	stats := BuildStats(vt, quotas, nil, assignments, false)

	assert.Equal(t, 1, stats.PerTeacherLoad["t1"])
	assert.Equal(t, 1, stats.PerTeacherLoad["t2"])
	assert.Equal(t, 0, stats.PerTeacherLoad["t3"])
	assert.True(t, stats.PerGradeEquality, "both G1 teachers have equal load, G2 has a single teacher")

	require.Len(t, stats.PerGrade, 2)
	assert.Equal(t, "G1", stats.PerGrade[0].GradeCode)
	assert.Equal(t, 1.0, stats.PerGrade[0].MeanLoad)
}

func TestBuildStatsWishClassification(t *testing.T) {
	vt := vtFixture()
	assignments := []models.Assignment{
		{ExamID: "e1", TeacherID: "t1"},
	}
	wishes := []models.Wish{
		{TeacherExternalCode: "a", Date: mustDateStats("2025-06-10"), SlotCode: models.SlotS1}, // violated: t1 assigned anyway
		{TeacherExternalCode: "b", Date: mustDateStats("2025-06-10"), SlotCode: models.SlotS1}, // respected: t2 not assigned
		{TeacherExternalCode: "unknown", Date: mustDateStats("2025-06-10"), SlotCode: models.SlotS1},
	}

	stats := BuildStats(vt, nil, wishes, assignments, true)

	assert.Equal(t, 1, stats.WishRespected)
	assert.Equal(t, 1, stats.WishViolated)
	assert.Equal(t, 1, stats.WishOutOfScope)
}

func TestBuildStatsWishesOutOfScopeWhenNotHonored(t *testing.T) {
	vt := vtFixture()
	wishes := []models.Wish{
		{TeacherExternalCode: "a", Date: mustDateStats("2025-06-10"), SlotCode: models.SlotS1},
	}

	stats := BuildStats(vt, nil, wishes, nil, false)

	assert.Equal(t, 0, stats.WishRespected)
	assert.Equal(t, 0, stats.WishViolated)
	assert.Equal(t, 1, stats.WishOutOfScope)
}
