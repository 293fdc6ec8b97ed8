package grades

import (
	"testing"

	"github.com/circademic/gradetrack/internal/models"
)

var yearLabels = []string{"first", "second", "third", "fourth", "fifth", "sixth"}

func TestBuildDashboardEmpty(t *testing.T) {
	d := BuildDashboard(nil, nil, Filter{}, yearLabels)

	if d.Stats.AverageText != "0.00" {
		t.Errorf("average text = %q, want 0.00", d.Stats.AverageText)
	}
	if d.Stats.CreditsText != "0.0" {
		t.Errorf("credits text = %q, want 0.0", d.Stats.CreditsText)
	}
	if d.Stats.ProgressText != "0.0%" {
		t.Errorf("progress text = %q, want 0.0%%", d.Stats.ProgressText)
	}
	if d.Stats.HighestGrade != 0 || d.Stats.HighestText != "0" {
		t.Errorf("highest = %v / %q", d.Stats.HighestGrade, d.Stats.HighestText)
	}
	if d.Progress.CurrentSemester != 1 || d.Progress.CurrentYear != 1 || d.Progress.YearLabel != "first" {
		t.Errorf("progress = %+v", d.Progress)
	}
	if d.Progress.CreditsRequired != models.DefaultCreditsRequired {
		t.Errorf("credits required = %v", d.Progress.CreditsRequired)
	}
	if d.Courses == nil || len(d.Courses) != 0 {
		t.Errorf("courses should be an empty list, got %v", d.Courses)
	}
	if d.Filters.Semesters == nil || d.Filters.Categories == nil {
		t.Error("filter choices should be empty lists, not nil")
	}
}

func TestBuildDashboard(t *testing.T) {
	profile := &models.Profile{
		TotalCreditsRequired: 40,
		Categories:           []string{"general", "mandatory", "elective", "sport"},
	}
	d := BuildDashboard(sampleCourses(), profile, Filter{Category: "mandatory", Sort: SortByGrade}, yearLabels)

	// (85*5 + 92*4 + 78*4 + 95*2) / 15 = 1295 / 15
	if d.Stats.Average != 86.33 || d.Stats.AverageText != "86.33" {
		t.Errorf("average = %v / %q", d.Stats.Average, d.Stats.AverageText)
	}
	if d.Stats.TotalCredits != 20 || d.Stats.CreditsText != "20.0" {
		t.Errorf("total credits = %v / %q", d.Stats.TotalCredits, d.Stats.CreditsText)
	}
	if d.Stats.Progress != 50 || d.Stats.ProgressText != "50.0%" {
		t.Errorf("progress = %v / %q", d.Stats.Progress, d.Stats.ProgressText)
	}
	if d.Stats.HighestGrade != 95 {
		t.Errorf("highest = %v", d.Stats.HighestGrade)
	}
	if d.Stats.CourseCount != 6 || d.Stats.PendingCount != 1 {
		t.Errorf("counts = %d / %d", d.Stats.CourseCount, d.Stats.PendingCount)
	}
	if d.Progress.CurrentSemester != 3 || d.Progress.CurrentYear != 2 || d.Progress.YearLabel != "second" {
		t.Errorf("progress = %+v", d.Progress)
	}

	if len(d.Categories) != 2 || d.Categories[0].Category != "general" || d.Categories[1].Category != "mandatory" {
		t.Errorf("categories = %+v", d.Categories)
	}
	if len(d.Semesters) != 2 {
		t.Errorf("semesters = %+v", d.Semesters)
	}

	if len(d.Courses) != 4 {
		t.Fatalf("filtered courses = %v", names(d.Courses))
	}
	if d.Courses[0].Name != "Linear Algebra" {
		t.Errorf("expected highest mandatory grade first, got %v", names(d.Courses))
	}
}

func TestBuildDashboardIsIdempotent(t *testing.T) {
	courses := sampleCourses()
	profile := &models.Profile{Categories: []string{"mandatory"}}
	first := BuildDashboard(courses, profile, Filter{}, yearLabels)
	second := BuildDashboard(courses, profile, Filter{}, yearLabels)

	if first.Stats != second.Stats || first.Progress != second.Progress {
		t.Error("repeated builds over the same input differ")
	}
}
