package form

import (
	"fmt"
	"strconv"
)

// GroupKind names one of the repeatable sections of the form.
type GroupKind string

const (
	GroupProjects  GroupKind = "projects"
	GroupEducation GroupKind = "education"
	GroupHistory   GroupKind = "professionalHistory"
)

// ParseGroupKind maps a path segment to a GroupKind.
func ParseGroupKind(s string) (GroupKind, error) {
	switch GroupKind(s) {
	case GroupProjects, GroupEducation, GroupHistory:
		return GroupKind(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownGroup, s)
}

// Field names as sent by the browser.
const (
	FieldTitle             = "title"
	FieldDescription       = "description"
	FieldLink              = "link"
	FieldCollegeName       = "collegeName"
	FieldDegree            = "degree"
	FieldBranch            = "branch"
	FieldCGPAOrPercentage  = "cgpaOrPercentage"
	FieldYearOfJoining     = "yearOfJoining"
	FieldYearOfPassing     = "yearOfPassing"
	FieldCompanyName       = "companyName"
	FieldPosition          = "position"
	FieldResponsibility    = "responsibility"
	FieldYearOfLeaving     = "yearOfLeaving"
	FieldIsCurrentEmployee = "isCurrentEmployee"
	FieldGithub            = "github"
	FieldLeetcode          = "leetcode"
	FieldGFG               = "gfg"
)

// ProjectEntry is one project of the projects section.
type ProjectEntry struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link"`
}

// ProjectErrors mirrors ProjectEntry.
type ProjectErrors struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link"`
}

// Empty reports whether no field has an error.
func (e ProjectErrors) Empty() bool {
	return e.Title == "" && e.Description == "" && e.Link == ""
}

func (p *ProjectEntry) set(field, value string) error {
	switch field {
	case FieldTitle:
		p.Title = value
	case FieldDescription:
		p.Description = value
	case FieldLink:
		p.Link = value
	default:
		return fmt.Errorf("%w: project %q", ErrUnknownField, field)
	}
	return nil
}

func (e *ProjectErrors) set(field, msg string) {
	switch field {
	case FieldTitle:
		e.Title = msg
	case FieldDescription:
		e.Description = msg
	case FieldLink:
		e.Link = msg
	}
}

func validateProjectField(field, value string) string {
	switch field {
	case FieldTitle:
		return ValidateTitle(value)
	case FieldDescription:
		return ValidateDescription(value)
	case FieldLink:
		return ValidateLink(value)
	}
	return ""
}

// EducationEntry is one entry of the education section. Dates hold
// date-input values (YYYY-MM-DD).
type EducationEntry struct {
	CollegeName      string `json:"collegeName"`
	Degree           string `json:"degree"`
	Branch           string `json:"branch"`
	CGPAOrPercentage string `json:"cgpaOrPercentage"`
	YearOfJoining    string `json:"yearOfJoining"`
	YearOfPassing    string `json:"yearOfPassing"`
}

// EducationErrors mirrors EducationEntry.
type EducationErrors struct {
	CollegeName      string `json:"collegeName"`
	Degree           string `json:"degree"`
	Branch           string `json:"branch"`
	CGPAOrPercentage string `json:"cgpaOrPercentage"`
	YearOfJoining    string `json:"yearOfJoining"`
	YearOfPassing    string `json:"yearOfPassing"`
}

// Empty reports whether no field has an error.
func (e EducationErrors) Empty() bool {
	return e == EducationErrors{}
}

func (ed *EducationEntry) set(field, value string) error {
	switch field {
	case FieldCollegeName:
		ed.CollegeName = value
	case FieldDegree:
		ed.Degree = value
	case FieldBranch:
		ed.Branch = value
	case FieldCGPAOrPercentage:
		ed.CGPAOrPercentage = value
	case FieldYearOfJoining:
		ed.YearOfJoining = value
	case FieldYearOfPassing:
		ed.YearOfPassing = value
	default:
		return fmt.Errorf("%w: education %q", ErrUnknownField, field)
	}
	return nil
}

func (e *EducationErrors) set(field, msg string) {
	switch field {
	case FieldCollegeName:
		e.CollegeName = msg
	case FieldDegree:
		e.Degree = msg
	case FieldBranch:
		e.Branch = msg
	case FieldCGPAOrPercentage:
		e.CGPAOrPercentage = msg
	case FieldYearOfJoining:
		e.YearOfJoining = msg
	case FieldYearOfPassing:
		e.YearOfPassing = msg
	}
}

func (ed EducationEntry) get(field string) string {
	switch field {
	case FieldCollegeName:
		return ed.CollegeName
	case FieldDegree:
		return ed.Degree
	case FieldBranch:
		return ed.Branch
	case FieldCGPAOrPercentage:
		return ed.CGPAOrPercentage
	case FieldYearOfJoining:
		return ed.YearOfJoining
	case FieldYearOfPassing:
		return ed.YearOfPassing
	}
	return ""
}

// EmploymentEntry is one entry of the professional history section.
// YearOfLeaving is ignored while IsCurrentEmployee is set.
type EmploymentEntry struct {
	CompanyName       string `json:"companyName"`
	Position          string `json:"position"`
	Responsibility    string `json:"responsibility"`
	YearOfJoining     string `json:"yearOfJoining"`
	YearOfLeaving     string `json:"yearOfLeaving"`
	IsCurrentEmployee bool   `json:"isCurrentEmployee"`
}

// EmploymentErrors mirrors EmploymentEntry; the flag has no error slot.
type EmploymentErrors struct {
	CompanyName    string `json:"companyName"`
	Position       string `json:"position"`
	Responsibility string `json:"responsibility"`
	YearOfJoining  string `json:"yearOfJoining"`
	YearOfLeaving  string `json:"yearOfLeaving"`
}

// Empty reports whether no field has an error.
func (e EmploymentErrors) Empty() bool {
	return e == EmploymentErrors{}
}

func (em *EmploymentEntry) set(field, value string) error {
	switch field {
	case FieldCompanyName:
		em.CompanyName = value
	case FieldPosition:
		em.Position = value
	case FieldResponsibility:
		em.Responsibility = value
	case FieldYearOfJoining:
		em.YearOfJoining = value
	case FieldYearOfLeaving:
		em.YearOfLeaving = value
	case FieldIsCurrentEmployee:
		current, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("parse %s: %w", FieldIsCurrentEmployee, err)
		}
		em.IsCurrentEmployee = current
		if current {
			em.YearOfLeaving = ""
		}
	default:
		return fmt.Errorf("%w: professional history %q", ErrUnknownField, field)
	}
	return nil
}

func (em EmploymentEntry) get(field string) string {
	switch field {
	case FieldCompanyName:
		return em.CompanyName
	case FieldPosition:
		return em.Position
	case FieldResponsibility:
		return em.Responsibility
	case FieldYearOfJoining:
		return em.YearOfJoining
	case FieldYearOfLeaving:
		return em.YearOfLeaving
	case FieldIsCurrentEmployee:
		return strconv.FormatBool(em.IsCurrentEmployee)
	}
	return ""
}

func (e *EmploymentErrors) set(field, msg string) {
	switch field {
	case FieldCompanyName:
		e.CompanyName = msg
	case FieldPosition:
		e.Position = msg
	case FieldResponsibility:
		e.Responsibility = msg
	case FieldYearOfJoining:
		e.YearOfJoining = msg
	case FieldYearOfLeaving:
		e.YearOfLeaving = msg
	}
}

// LinksRecord holds the optional profile links.
type LinksRecord struct {
	Github   string `json:"github"`
	Leetcode string `json:"leetcode"`
	GFG      string `json:"gfg"`
}

// LinksErrors mirrors LinksRecord.
type LinksErrors struct {
	Github   string `json:"github"`
	Leetcode string `json:"leetcode"`
	GFG      string `json:"gfg"`
}

// Empty reports whether no link has an error.
func (e LinksErrors) Empty() bool {
	return e == LinksErrors{}
}

// Attachment references a PDF staged for upload.
type Attachment struct {
	ObjectKey   string `json:"objectKey"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
}
