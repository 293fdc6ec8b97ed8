package models

import (
	"slices"
	"strings"
	"time"
)

// DefaultCreditsRequired is the degree requirement assumed for new profiles
const DefaultCreditsRequired = 120

// Profile holds per-user settings. Email and CreatedAt never change after
// creation.
type Profile struct {
	UserID               string    `json:"user_id"`
	Name                 string    `json:"name"`
	Email                string    `json:"email"`
	CreatedAt            time.Time `json:"created_at"`
	Institution          string    `json:"institution"`
	Major                string    `json:"major"`
	TotalCreditsRequired float64   `json:"total_credits_required"`
	TargetAverage        float64   `json:"target_average"`
	Categories           []string  `json:"categories"`
	IsWriter             bool      `json:"is_writer"`
}

// DefaultProfile returns the profile created at sign-up or on first
// federated sign-in.
func DefaultProfile(userID, name, email string, categories []string, now time.Time) *Profile {
	if name == "" {
		name = email
	}
	return &Profile{
		UserID:               userID,
		Name:                 name,
		Email:                email,
		CreatedAt:            now.UTC(),
		TotalCreditsRequired: DefaultCreditsRequired,
		Categories:           slices.Clone(categories),
	}
}

// RequiredCredits returns the progress denominator, falling back to the
// default for unset values.
func (p *Profile) RequiredCredits() float64 {
	if p == nil || p.TotalCreditsRequired <= 0 {
		return DefaultCreditsRequired
	}
	return p.TotalCreditsRequired
}

// HasCategory reports whether category is one of the declared categories
func (p *Profile) HasCategory(category string) bool {
	return slices.Contains(p.Categories, category)
}

// Initials returns up to two upper-case initials of the display name
func (p *Profile) Initials() string {
	var initials []rune
	for _, part := range strings.Fields(p.Name) {
		initials = append(initials, []rune(part)[0])
		if len(initials) == 2 {
			break
		}
	}
	return strings.ToUpper(string(initials))
}

// ProfileUpdate carries the editable profile fields. Nil fields are left
// unchanged.
type ProfileUpdate struct {
	Name                 *string  `json:"name,omitempty" validate:"omitempty,max=200"`
	Institution          *string  `json:"institution,omitempty" validate:"omitempty,max=200"`
	Major                *string  `json:"major,omitempty" validate:"omitempty,max=200"`
	TotalCreditsRequired *float64 `json:"total_credits_required,omitempty" validate:"omitempty,gt=0"`
	TargetAverage        *float64 `json:"target_average,omitempty" validate:"omitempty,gte=0,lte=100"`
	Categories           []string `json:"categories,omitempty" validate:"omitempty,min=1,unique,dive,required,max=50"`
}

// Validate checks field constraints
func (u *ProfileUpdate) Validate() error {
	return validateStruct(u)
}

// Apply copies the set fields of u onto p
func (u *ProfileUpdate) Apply(p *Profile) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Institution != nil {
		p.Institution = *u.Institution
	}
	if u.Major != nil {
		p.Major = *u.Major
	}
	if u.TotalCreditsRequired != nil {
		p.TotalCreditsRequired = *u.TotalCreditsRequired
	}
	if u.TargetAverage != nil {
		p.TargetAverage = *u.TargetAverage
	}
	if u.Categories != nil {
		p.Categories = slices.Clone(u.Categories)
	}
}
