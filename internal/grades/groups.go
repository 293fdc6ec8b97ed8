package grades

import (
	"sort"

	"github.com/circademic/gradetrack/internal/models"
)

// SemesterAverage is the weighted average of one semester
type SemesterAverage struct {
	Semester int     `json:"semester"`
	Average  float64 `json:"average"`
}

// CategoryStat aggregates the graded courses of one category
type CategoryStat struct {
	Category string  `json:"category"`
	Average  float64 `json:"average"`
	Credits  float64 `json:"credits"`
	Count    int     `json:"count"`
}

// BySemester groups graded courses by semester, ordered by semester number
func BySemester(courses []models.Course) []SemesterAverage {
	sums := make(map[int]*weightedSum)
	for i := range courses {
		c := &courses[i]
		if !c.Graded() {
			continue
		}
		if sums[c.Semester] == nil {
			sums[c.Semester] = &weightedSum{}
		}
		sums[c.Semester].add(c)
	}

	result := make([]SemesterAverage, 0, len(sums))
	for semester, sum := range sums {
		result = append(result, SemesterAverage{Semester: semester, Average: sum.average()})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Semester < result[j].Semester
	})
	return result
}

// ByCategory groups graded courses by category. Categories without a
// graded course are absent from the result.
func ByCategory(courses []models.Course) map[string]CategoryStat {
	sums := make(map[string]*weightedSum)
	counts := make(map[string]int)
	for i := range courses {
		c := &courses[i]
		if !c.Graded() {
			continue
		}
		if sums[c.Category] == nil {
			sums[c.Category] = &weightedSum{}
		}
		sums[c.Category].add(c)
		counts[c.Category]++
	}

	result := make(map[string]CategoryStat, len(sums))
	for category, sum := range sums {
		if sum.credits <= 0 {
			continue
		}
		result[category] = CategoryStat{
			Category: category,
			Average:  sum.average(),
			Credits:  round(sum.credits, 1),
			Count:    counts[category],
		}
	}
	return result
}

// ByExamType counts courses per exam type over all courses
func ByExamType(courses []models.Course) map[string]int {
	result := make(map[string]int)
	for _, c := range courses {
		result[c.ExamType]++
	}
	return result
}

// orderCategories lists stats in the profile's declared order, followed by
// categories no longer declared, sorted by name.
func orderCategories(stats map[string]CategoryStat, declared []string) []CategoryStat {
	result := make([]CategoryStat, 0, len(stats))
	seen := make(map[string]bool, len(declared))
	for _, name := range declared {
		if st, ok := stats[name]; ok && !seen[name] {
			result = append(result, st)
			seen[name] = true
		}
	}

	var rest []string
	for name := range stats {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		result = append(result, stats[name])
	}
	return result
}
