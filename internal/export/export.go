// Package export renders a user's courses as CSV or XLSX files and reads
// them back for import.
package export

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/circademic/gradetrack/internal/apperr"
	"github.com/circademic/gradetrack/internal/locale"
	"github.com/circademic/gradetrack/internal/models"
)

// File names offered to the browser
const (
	CSVFilename  = "courses.csv"
	XLSXFilename = "courses.xlsx"
)

// columnCount is the number of fields in a course row:
// name, credits, grade, semester, category, exam type, grade type.
const columnCount = 7

// Labels are the localized texts written into exported files
type Labels struct {
	Headers []string
	Summary map[string]string
}

// LabelsFrom takes the export texts of a locale bundle
func LabelsFrom(b *locale.Bundle) Labels {
	return Labels{Headers: b.CSVHeaders, Summary: b.SummaryLabels}
}

func (l Labels) headers() []string {
	if len(l.Headers) == columnCount {
		return l.Headers
	}
	return []string{"name", "credits", "grade", "semester", "category", "exam_type", "grade_type"}
}

func (l Labels) summary(key string) string {
	if v, ok := l.Summary[key]; ok {
		return v
	}
	return key
}

// courseRow renders the fields of c in column order. Numbers use their
// shortest representation.
func courseRow(c *models.Course) []string {
	return []string{
		c.Name,
		formatNumber(c.Credits),
		formatNumber(c.Grade),
		strconv.Itoa(c.Semester),
		c.Category,
		c.ExamType,
		string(c.GradeType),
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// parseRow converts one imported row into a course input. line is the
// 1-based position used in error details.
func parseRow(fields []string, line int) (models.CourseInput, error) {
	if len(fields) < columnCount {
		return models.CourseInput{}, invalidRow(line, "expected %d columns, got %d", columnCount, len(fields))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	credits, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return models.CourseInput{}, invalidRow(line, "invalid credits %q", fields[1])
	}

	grade := 0.0
	if fields[2] != "" {
		grade, err = strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return models.CourseInput{}, invalidRow(line, "invalid grade %q", fields[2])
		}
	}

	semester, err := strconv.Atoi(fields[3])
	if err != nil {
		return models.CourseInput{}, invalidRow(line, "invalid semester %q", fields[3])
	}

	gradeType := models.GradeType(strings.ToLower(fields[6]))
	if gradeType == "" {
		gradeType = models.GradeNumeric
	}

	return models.CourseInput{
		Name:      fields[0],
		Credits:   credits,
		Grade:     grade,
		Semester:  semester,
		Category:  fields[4],
		ExamType:  fields[5],
		GradeType: gradeType,
	}, nil
}

func invalidRow(line int, format string, args ...any) error {
	return apperr.New(apperr.CodeInvalidImport, fmt.Sprintf("row %d: ", line)+fmt.Sprintf(format, args...))
}

func noCourses(courses []models.Course) error {
	if len(courses) == 0 {
		return apperr.New(apperr.CodeNoCourses, "")
	}
	return nil
}
