package export

import (
	"bytes"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/circademic/gradetrack/internal/apperr"
	"github.com/circademic/gradetrack/internal/grades"
	"github.com/circademic/gradetrack/internal/models"
)

// Sheet names of the workbook
const (
	CoursesSheet = "Courses"
	SummarySheet = "Summary"
)

// WriteXLSX writes a workbook with the course table and a summary sheet
// holding the headline statistics.
func WriteXLSX(w io.Writer, courses []models.Course, stats grades.Stats, labels Labels) error {
	if err := noCourses(courses); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", CoursesSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeCourses(f, courses, labels, bold); err != nil {
		return err
	}
	if err := writeSummary(f, stats, labels, bold); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeCourses(f *excelize.File, courses []models.Course, labels Labels, headerStyle int) error {
	headers := labels.headers()
	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(CoursesSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	lastHeader, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(CoursesSheet, "A1", lastHeader, headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, c := range courses {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{c.Name, c.Credits, c.Grade, c.Semester, c.Category, c.ExamType, string(c.GradeType)}
		if err := f.SetSheetRow(CoursesSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	return f.SetColWidth(CoursesSheet, "A", "A", 32)
}

func writeSummary(f *excelize.File, stats grades.Stats, labels Labels, labelStyle int) error {
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}

	rows := [][]interface{}{
		{labels.summary("average"), stats.Average},
		{labels.summary("credits"), stats.TotalCredits},
		{labels.summary("progress"), stats.ProgressText},
		{labels.summary("highest"), stats.HighestGrade},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
	}

	if err := f.SetCellStyle(SummarySheet, "A1", fmt.Sprintf("A%d", len(rows)), labelStyle); err != nil {
		return fmt.Errorf("failed to style summary: %w", err)
	}
	return f.SetColWidth(SummarySheet, "A", "A", 24)
}

// ParseXLSX reads the course sheet of a workbook produced by WriteXLSX, or
// the first sheet of any workbook with the same column layout.
func ParseXLSX(data []byte) ([]models.CourseInput, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidImport, err)
	}
	defer f.Close()

	sheet := CoursesSheet
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, apperr.New(apperr.CodeInvalidImport, "workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidImport, err)
	}
	if len(rows) < 2 { // Header + at least one data row
		return nil, apperr.New(apperr.CodeInvalidImport, "no course rows")
	}

	var inputs []models.CourseInput
	for i, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		// GetRows trims trailing empty cells
		for len(row) < columnCount {
			row = append(row, "")
		}
		in, err := parseRow(row, i+2)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, in)
	}

	if len(inputs) == 0 {
		return nil, apperr.New(apperr.CodeInvalidImport, "no course rows")
	}
	return inputs, nil
}
