package export

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/circademic/gradetrack/internal/apperr"
	"github.com/circademic/gradetrack/internal/models"
)

// utf8BOM lets spreadsheet programs detect the encoding
const utf8BOM = "\ufeff"

// WriteCSV writes courses as a UTF-8 CSV file with a BOM and a localized
// header row. Fields containing commas, quotes or newlines are quoted.
func WriteCSV(w io.Writer, courses []models.Course, labels Labels) error {
	if err := noCourses(courses); err != nil {
		return err
	}

	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(labels.headers()); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for i := range courses {
		if err := cw.Write(courseRow(&courses[i])); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ParseCSV reads a file produced by WriteCSV. The first row is taken as the
// header and skipped.
func ParseCSV(r io.Reader) ([]models.CourseInput, error) {
	br := bufio.NewReader(r)
	if bom, err := br.Peek(len(utf8BOM)); err == nil && string(bom) == utf8BOM {
		br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1

	var inputs []models.CourseInput
	for line := 1; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeInvalidImport, err)
		}
		if line == 1 || isBlank(record) {
			continue
		}

		in, err := parseRow(record, line)
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

func isBlank(record []string) bool {
	for _, f := range record {
		if f != "" {
			return false
		}
	}
	return true
}
