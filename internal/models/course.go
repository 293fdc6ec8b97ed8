package models

import "time"

// GradeType says whether a course enters the weighted average
type GradeType string

const (
	GradeNumeric GradeType = "numeric" // Scored 0-100
	GradeBinary  GradeType = "binary"  // Pass/fail, credits only
)

// Valid reports whether t is a known grade type
func (t GradeType) Valid() bool {
	return t == GradeNumeric || t == GradeBinary
}

// Course is one logged course instance owned by a single user.
// A numeric course with Grade 0 is pending: it has no result yet.
type Course struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Name      string    `json:"name"`
	Credits   float64   `json:"credits"`
	Grade     float64   `json:"grade"`
	Semester  int       `json:"semester"`
	Category  string    `json:"category"`
	ExamType  string    `json:"exam_type"`
	GradeType GradeType `json:"grade_type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Graded returns true if the course contributes to weighted averages
func (c *Course) Graded() bool {
	return c.GradeType == GradeNumeric && c.Grade > 0
}

// Pending returns true for numeric courses still waiting for a grade
func (c *Course) Pending() bool {
	return c.GradeType == GradeNumeric && c.Grade == 0
}

// CourseInput represents the user-editable fields of a course
type CourseInput struct {
	Name      string    `json:"name" validate:"required,max=200"`
	Credits   float64   `json:"credits" validate:"gt=0,lte=100"`
	Grade     float64   `json:"grade" validate:"gte=0,lte=100"`
	Semester  int       `json:"semester" validate:"gte=1,lte=40"`
	Category  string    `json:"category" validate:"required,max=50"`
	ExamType  string    `json:"exam_type" validate:"max=50"`
	GradeType GradeType `json:"grade_type" validate:"required,oneof=numeric binary"`
}

// Validate checks field constraints; category membership is checked by
// the owner's profile, not here.
func (in *CourseInput) Validate() error {
	return validateStruct(in)
}

// Course builds a course record from the input. ID and ownership are left
// to the storage layer.
func (in *CourseInput) Course() *Course {
	return &Course{
		Name:      in.Name,
		Credits:   in.Credits,
		Grade:     in.Grade,
		Semester:  in.Semester,
		Category:  in.Category,
		ExamType:  in.ExamType,
		GradeType: in.GradeType,
	}
}

// Input returns the editable fields of c
func (c *Course) Input() CourseInput {
	return CourseInput{
		Name:      c.Name,
		Credits:   c.Credits,
		Grade:     c.Grade,
		Semester:  c.Semester,
		Category:  c.Category,
		ExamType:  c.ExamType,
		GradeType: c.GradeType,
	}
}
