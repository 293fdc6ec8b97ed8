package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/circademic/gradetrack/internal/apperr"
	"github.com/circademic/gradetrack/internal/export"
	"github.com/circademic/gradetrack/internal/grades"
	"github.com/circademic/gradetrack/internal/models"
)

// maxImportSize bounds uploaded course files
const maxImportSize = 5 << 20

const (
	contentTypeCSV  = "text/csv"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type courseResponse struct {
	Course *models.Course `json:"course"`
	Notice string         `json:"notice,omitempty"`
}

type coursesResponse struct {
	Courses []models.Course `json:"courses"`
	Total   int             `json:"total"`
	Notice  string          `json:"notice,omitempty"`
}

func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := s.tracker.Courses(r.Context(), UserFromContext(r.Context()))
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	if courses == nil {
		courses = []models.Course{}
	}
	respondJSON(w, http.StatusOK, coursesResponse{Courses: courses, Total: len(courses)})
}

func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	course, err := s.tracker.Course(r.Context(), UserFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, courseResponse{Course: course})
}

func (s *Server) handleAddCourse(w http.ResponseWriter, r *http.Request) {
	var req models.CourseInput
	if !decodeJSON(w, r, &req) {
		return
	}

	course, err := s.tracker.AddCourse(r.Context(), UserFromContext(r.Context()), req)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, courseResponse{
		Course: course,
		Notice: notice(r, "course_added"),
	})
}

func (s *Server) handleUpdateCourse(w http.ResponseWriter, r *http.Request) {
	var req models.CourseInput
	if !decodeJSON(w, r, &req) {
		return
	}

	course, err := s.tracker.UpdateCourse(r.Context(), UserFromContext(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, courseResponse{
		Course: course,
		Notice: notice(r, "course_updated"),
	})
}

func (s *Server) handleDeleteCourse(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.DeleteCourse(r.Context(), UserFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, noticeResponse{Notice: notice(r, "course_deleted")})
}

// Dashboard

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	bundle := BundleFromContext(r.Context())
	f := parseFilter(r)
	f.Language = bundle.Tag

	dashboard, err := s.tracker.Dashboard(r.Context(), UserFromContext(r.Context()), f, bundle.YearLabels)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, dashboard)
}

// parseFilter reads the listing clauses from the query string. Malformed
// values disable their clause.
func parseFilter(r *http.Request) grades.Filter {
	q := r.URL.Query()
	f := grades.Filter{
		Search:   q.Get("q"),
		Category: q.Get("category"),
		Sort:     grades.ParseSortKey(q.Get("sort")),
	}
	if v := q.Get("semester"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			f.Semester = n
		}
	}
	return f
}

// Export and import

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	courses, err := s.tracker.Courses(r.Context(), UserFromContext(r.Context()))
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, courses, export.LabelsFrom(BundleFromContext(r.Context()))); err != nil {
		respondAppError(w, r, err)
		return
	}
	sendAttachment(w, contentTypeCSV+"; charset=utf-8", export.CSVFilename, buf.Bytes())
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	bundle := BundleFromContext(r.Context())

	profile, err := s.tracker.Profile(r.Context(), user)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	courses, err := s.tracker.Courses(r.Context(), user)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	stats := grades.BuildDashboard(courses, profile, grades.Filter{}, bundle.YearLabels).Stats

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, courses, stats, export.LabelsFrom(bundle)); err != nil {
		respondAppError(w, r, err)
		return
	}
	sendAttachment(w, contentTypeXLSX, export.XLSXFilename, buf.Bytes())
}

func sendAttachment(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// handleImportCourses accepts a CSV or XLSX file, either as the raw body or
// as the "file" field of a multipart form.
func (s *Server) handleImportCourses(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)

	inputs, err := readImport(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, string(apperr.CodeInvalidImport),
				BundleFromContext(r.Context()).Message(apperr.CodeInvalidImport))
			return
		}
		respondAppError(w, r, err)
		return
	}

	courses, err := s.tracker.ImportCourses(r.Context(), UserFromContext(r.Context()), inputs)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, coursesResponse{
		Courses: courses,
		Total:   len(courses),
		Notice:  notice(r, "courses_imported"),
	})
}

func readImport(r *http.Request) ([]models.CourseInput, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		mediaType = contentTypeCSV
	}

	body := io.Reader(r.Body)
	filename := ""
	if mediaType == "multipart/form-data" {
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeInvalidImport, fmt.Errorf("missing file field: %w", err))
		}
		defer file.Close()
		body = file
		filename = header.Filename
		mediaType = header.Header.Get("Content-Type")
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}

	if isXLSX(mediaType, filename) {
		return export.ParseXLSX(data)
	}
	return export.ParseCSV(bytes.NewReader(data))
}

func isXLSX(mediaType, filename string) bool {
	return strings.HasPrefix(mediaType, contentTypeXLSX) ||
		strings.EqualFold(path.Ext(filename), ".xlsx")
}
