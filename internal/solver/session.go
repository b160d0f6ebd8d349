package solver

import (
	"sort"

	"github.com/wajdi-kharroubi/isi-surveillance/internal/models"
)

// BuildSessions implements the session builder (spec §4.1): partition exams
// by (date, derived slot, semester, session-type), sort keys by
// (date, slot index, semester, session-type), then walk the sorted keys to
// assign a 1-based day index per distinct date in encounter order.
//
// Empty input returns an empty, non-nil slice; the caller (Run) is
// responsible for surfacing the "nothing to schedule" error.
func BuildSessions(exams []models.Exam) []models.Session {
	if len(exams) == 0 {
		return []models.Session{}
	}

	type groupKey struct {
		date        string
		slot        models.SlotCode
		semester    string
		sessionType string
	}

	groups := make(map[groupKey][]models.Exam)
	var keys []groupKey
	for _, e := range exams {
		slot := models.DeriveSlotCode(e.StartTime)
		k := groupKey{
			date:        e.DateKey().Format("2006-01-02"),
			slot:        slot,
			semester:    e.Semester,
			sessionType: e.SessionType,
		}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], e)
	}

	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.date != b.date {
			return a.date < b.date
		}
		if a.slot.Index() != b.slot.Index() {
			return a.slot.Index() < b.slot.Index()
		}
		if a.semester != b.semester {
			return a.semester < b.semester
		}
		return a.sessionType < b.sessionType
	})

	dayIndex := make(map[string]int)
	nextDay := 1
	sessions := make([]models.Session, 0, len(keys))
	for _, k := range keys {
		if _, ok := dayIndex[k.date]; !ok {
			dayIndex[k.date] = nextDay
			nextDay++
		}
		examGroup := groups[k]
		sessions = append(sessions, models.Session{
			Key: models.SessionKey{
				Date:        examGroup[0].DateKey(),
				Slot:        k.slot,
				Semester:    k.semester,
				SessionType: k.sessionType,
				DayIndex:    dayIndex[k.date],
			},
			Exams: examGroup,
		})
	}
	return sessions
}
