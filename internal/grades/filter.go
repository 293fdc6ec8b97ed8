package grades

import (
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/circademic/gradetrack/internal/models"
)

// SortKey selects the ordering of a course listing
type SortKey string

const (
	SortByName     SortKey = "name"     // Ascending, locale collation
	SortByGrade    SortKey = "grade"    // Descending
	SortByCredits  SortKey = "credits"  // Descending
	SortBySemester SortKey = "semester" // Ascending
)

// ParseSortKey returns the matching key, SortByName for anything unknown
func ParseSortKey(s string) SortKey {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case SortByGrade, SortByCredits, SortBySemester:
		return k
	default:
		return SortByName
	}
}

// Filter narrows and orders a course listing. Zero values disable a
// clause.
type Filter struct {
	Search   string
	Semester int
	Category string
	Sort     SortKey
	// Language drives name collation; language.Und uses the root order.
	Language language.Tag
}

// Match reports whether c passes every enabled clause of f
func (f Filter) Match(c *models.Course) bool {
	if f.Search != "" && !strings.Contains(strings.ToLower(c.Name), strings.ToLower(f.Search)) {
		return false
	}
	if f.Semester != 0 && c.Semester != f.Semester {
		return false
	}
	if f.Category != "" && c.Category != f.Category {
		return false
	}
	return true
}

// FilterAndSort returns the courses matching f in display order. The sort
// is stable, so ties keep their input order. The input slice is not
// modified.
func FilterAndSort(courses []models.Course, f Filter) []models.Course {
	result := make([]models.Course, 0, len(courses))
	for i := range courses {
		if f.Match(&courses[i]) {
			result = append(result, courses[i])
		}
	}

	switch ParseSortKey(string(f.Sort)) {
	case SortByGrade:
		slices.SortStableFunc(result, func(a, b models.Course) int {
			return compareFloat(b.Grade, a.Grade)
		})
	case SortByCredits:
		slices.SortStableFunc(result, func(a, b models.Course) int {
			return compareFloat(b.Credits, a.Credits)
		})
	case SortBySemester:
		slices.SortStableFunc(result, func(a, b models.Course) int {
			return a.Semester - b.Semester
		})
	default:
		// Collators keep internal buffers and are not safe to share
		col := collate.New(f.Language, collate.IgnoreCase)
		slices.SortStableFunc(result, func(a, b models.Course) int {
			return col.CompareString(a.Name, b.Name)
		})
	}

	return result
}

// FilterOptions lists the values offered by the semester and category
// filters: distinct semesters ascending, categories in first-seen order.
func FilterOptions(courses []models.Course) (semesters []int, categories []string) {
	seenSem := make(map[int]bool)
	seenCat := make(map[string]bool)
	for _, c := range courses {
		if !seenSem[c.Semester] {
			seenSem[c.Semester] = true
			semesters = append(semesters, c.Semester)
		}
		if !seenCat[c.Category] {
			seenCat[c.Category] = true
			categories = append(categories, c.Category)
		}
	}
	slices.Sort(semesters)
	return semesters, categories
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
