package grades

import (
	"strconv"

	"github.com/circademic/gradetrack/internal/models"
)

// Stats are the headline numbers of the dashboard
type Stats struct {
	Average      float64 `json:"average"`
	TotalCredits float64 `json:"total_credits"`
	Progress     float64 `json:"progress"`
	HighestGrade float64 `json:"highest_grade"`
	CourseCount  int     `json:"course_count"`
	PendingCount int     `json:"pending_count"`

	AverageText  string `json:"average_text"`
	CreditsText  string `json:"credits_text"`
	ProgressText string `json:"progress_text"`
	HighestText  string `json:"highest_text"`
}

// Progress describes where the user stands in the degree
type Progress struct {
	CreditsEarned   float64 `json:"credits_earned"`
	CreditsRequired float64 `json:"credits_required"`
	Percent         float64 `json:"percent"`
	CurrentSemester int     `json:"current_semester"`
	CurrentYear     int     `json:"current_year"`
	YearLabel       string  `json:"year_label"`
}

// FilterChoices are the values the course filters can take
type FilterChoices struct {
	Semesters  []int    `json:"semesters"`
	Categories []string `json:"categories"`
}

// Dashboard is the view model of one render cycle
type Dashboard struct {
	Stats      Stats             `json:"stats"`
	Progress   Progress          `json:"progress"`
	Semesters  []SemesterAverage `json:"semesters"`
	Categories []CategoryStat    `json:"categories"`
	ExamTypes  map[string]int    `json:"exam_types"`
	Courses    []models.Course   `json:"courses"`
	Filters    FilterChoices     `json:"filters"`
}

// BuildDashboard computes every dashboard figure from the full course list.
// Statistics always cover all courses; f only shapes the Courses listing.
func BuildDashboard(courses []models.Course, profile *models.Profile, f Filter, yearLabels []string) *Dashboard {
	total := round(TotalCredits(courses), 1)
	required := profile.RequiredCredits()
	progress := DegreeProgress(total, required)
	average := WeightedAverage(courses)
	highest := HighestGrade(courses)
	semester, year := CurrentSemester(courses)

	pending := 0
	for i := range courses {
		if courses[i].Pending() {
			pending++
		}
	}

	var declared []string
	if profile != nil {
		declared = profile.Categories
	}

	semesters, categories := FilterOptions(courses)
	if semesters == nil {
		semesters = []int{}
	}
	if categories == nil {
		categories = []string{}
	}

	return &Dashboard{
		Stats: Stats{
			Average:      average,
			TotalCredits: total,
			Progress:     progress,
			HighestGrade: highest,
			CourseCount:  len(courses),
			PendingCount: pending,
			AverageText:  FormatAverage(average),
			CreditsText:  FormatCredits(total),
			ProgressText: FormatPercent(progress),
			HighestText:  strconv.FormatFloat(highest, 'f', -1, 64),
		},
		Progress: Progress{
			CreditsEarned:   total,
			CreditsRequired: required,
			Percent:         progress,
			CurrentSemester: semester,
			CurrentYear:     year,
			YearLabel:       YearLabel(year, yearLabels),
		},
		Semesters:  BySemester(courses),
		Categories: orderCategories(ByCategory(courses), declared),
		ExamTypes:  ByExamType(courses),
		Courses:    FilterAndSort(courses, f),
		Filters:    FilterChoices{Semesters: semesters, Categories: categories},
	}
}

// FormatAverage renders an average with two decimals ("0.00")
func FormatAverage(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// FormatCredits renders credits with one decimal ("0.0")
func FormatCredits(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// FormatPercent renders a percentage with one decimal ("0.0%")
func FormatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}
