// Package grades computes the statistics shown on a user's dashboard from
// their course records. Every function is pure: same input, same output,
// no I/O.
package grades

import (
	"math"
	"strconv"

	"github.com/circademic/gradetrack/internal/models"
)

// weightedSum accumulates grade*credits over graded courses
type weightedSum struct {
	points  float64
	credits float64
}

func (w *weightedSum) add(c *models.Course) {
	w.points += c.Grade * c.Credits
	w.credits += c.Credits
}

func (w weightedSum) average() float64 {
	if w.credits <= 0 {
		return 0
	}
	return round(w.points/w.credits, 2)
}

// WeightedAverage returns the credit-weighted mean of numeric, graded
// courses rounded to 2 decimals. Pending (grade 0) and binary courses are
// skipped; an empty set averages 0.
func WeightedAverage(courses []models.Course) float64 {
	var sum weightedSum
	for i := range courses {
		if courses[i].Graded() {
			sum.add(&courses[i])
		}
	}
	return sum.average()
}

// TotalCredits sums credits over every course, graded or not
func TotalCredits(courses []models.Course) float64 {
	total := 0.0
	for _, c := range courses {
		total += c.Credits
	}
	return total
}

// DegreeProgress returns completion percentage rounded to 1 decimal,
// clamped to 100.
func DegreeProgress(totalCredits, requiredCredits float64) float64 {
	if requiredCredits <= 0 {
		requiredCredits = models.DefaultCreditsRequired
	}
	return round(math.Min(100, totalCredits/requiredCredits*100), 1)
}

// HighestGrade returns the best graded numeric result, 0 if none
func HighestGrade(courses []models.Course) float64 {
	highest := 0.0
	for i := range courses {
		if courses[i].Graded() && courses[i].Grade > highest {
			highest = courses[i].Grade
		}
	}
	return highest
}

// CurrentSemester infers the semester the user is in from the latest
// logged semester (1 with no courses) and the academic year assuming two
// semesters per year.
func CurrentSemester(courses []models.Course) (semester, year int) {
	semester = 1
	for i, c := range courses {
		if i == 0 || c.Semester > semester {
			semester = c.Semester
		}
	}
	if semester < 1 {
		semester = 1
	}
	year = (semester + 1) / 2
	return semester, year
}

// YearLabel maps an academic year to its ordinal label. Years beyond the
// label table fall back to the number itself.
func YearLabel(year int, labels []string) string {
	if year >= 1 && year <= len(labels) {
		return labels[year-1]
	}
	return strconv.Itoa(year)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
