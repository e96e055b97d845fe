package form

import (
	"fmt"
	"strings"
	"time"

	"portfolioHub/internal/portfolio"
)

// Link field paths accepted by SetField.
const (
	LinkPrefix        = "portfolioLinks."
	FieldGithubLink   = LinkPrefix + FieldGithub
	FieldLeetcodeLink = LinkPrefix + FieldLeetcode
	FieldGFGLink      = LinkPrefix + FieldGFG
)

// Form is the in-progress portfolio: scalar fields, the three entry groups,
// the links record and the optional PDF attachment, each carrying the
// current validation result of its fields.
type Form struct {
	Title            string `json:"title"`
	TitleError       string `json:"titleError"`
	Description      string `json:"description"`
	DescriptionError string `json:"descriptionError"`

	Projects  Group[ProjectEntry, ProjectErrors]       `json:"projects"`
	Education Group[EducationEntry, EducationErrors]   `json:"education"`
	History   Group[EmploymentEntry, EmploymentErrors] `json:"professionalHistory"`

	Links      LinksRecord `json:"portfolioLinks"`
	LinkErrors LinksErrors `json:"portfolioLinksErrors"`

	Attachment *Attachment `json:"attachment,omitempty"`

	// RemoteID and RemoteUser identify the hydrated remote record; both are
	// empty in the create flow.
	RemoteID   string `json:"remoteId,omitempty"`
	RemoteUser string `json:"remoteUser,omitempty"`
}

// Values is the data half of a Form, shaped like the browser's form state.
type Values struct {
	Title               string            `json:"title"`
	Description         string            `json:"description"`
	Projects            []ProjectEntry    `json:"projects"`
	Education           []EducationEntry  `json:"education"`
	ProfessionalHistory []EmploymentEntry `json:"professionalHistory"`
	PortfolioLinks      LinksRecord       `json:"portfolioLinks"`
	Attachment          *Attachment       `json:"attachment,omitempty"`
}

// ErrorAggregate mirrors the shape of Values with error strings.
type ErrorAggregate struct {
	Title               string             `json:"title"`
	Description         string             `json:"description"`
	Projects            []ProjectErrors    `json:"projects"`
	Education           []EducationErrors  `json:"education"`
	ProfessionalHistory []EmploymentErrors `json:"professionalHistory"`
	PortfolioLinks      LinksErrors        `json:"portfolioLinks"`
}

// Empty reports whether every error in the tree is the empty string.
func (a ErrorAggregate) Empty() bool {
	if a.Title != "" || a.Description != "" || !a.PortfolioLinks.Empty() {
		return false
	}
	for _, e := range a.Projects {
		if !e.Empty() {
			return false
		}
	}
	for _, e := range a.Education {
		if !e.Empty() {
			return false
		}
	}
	for _, e := range a.ProfessionalHistory {
		if !e.Empty() {
			return false
		}
	}
	return true
}

// NewForm returns the create-flow form with one blank entry per group.
func NewForm() *Form {
	f := &Form{}
	f.Projects.Append(ProjectEntry{}, ProjectErrors{})
	f.Education.Append(EducationEntry{}, EducationErrors{})
	f.History.Append(EmploymentEntry{}, EmploymentErrors{})
	return f
}

// SetField updates a scalar or link field and validates it.
func (f *Form) SetField(field, value string) error {
	switch field {
	case FieldTitle:
		f.Title = value
		f.TitleError = ValidateTitle(value)
	case FieldDescription:
		f.Description = value
		f.DescriptionError = ValidateDescription(value)
	case FieldGithubLink:
		f.Links.Github = value
		f.LinkErrors.Github = ValidateOptionalLink(value)
	case FieldLeetcodeLink:
		f.Links.Leetcode = value
		f.LinkErrors.Leetcode = ValidateOptionalLink(value)
	case FieldGFGLink:
		f.Links.GFG = value
		f.LinkErrors.GFG = ValidateOptionalLink(value)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return nil
}

// AddEntry appends a blank entry to the group and returns its index.
func (f *Form) AddEntry(kind GroupKind) (int, error) {
	switch kind {
	case GroupProjects:
		return f.Projects.Append(ProjectEntry{}, ProjectErrors{}), nil
	case GroupEducation:
		return f.Education.Append(EducationEntry{}, EducationErrors{}), nil
	case GroupHistory:
		return f.History.Append(EmploymentEntry{}, EmploymentErrors{}), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownGroup, kind)
}

// RemoveEntry deletes the entry at index, shifting later entries down.
func (f *Form) RemoveEntry(kind GroupKind, index int) error {
	switch kind {
	case GroupProjects:
		return f.Projects.RemoveAt(index)
	case GroupEducation:
		return f.Education.RemoveAt(index)
	case GroupHistory:
		return f.History.RemoveAt(index)
	}
	return fmt.Errorf("%w: %q", ErrUnknownGroup, kind)
}

// Len returns the number of entries in the group, or -1 for an unknown kind.
func (f *Form) Len(kind GroupKind) int {
	switch kind {
	case GroupProjects:
		return f.Projects.Len()
	case GroupEducation:
		return f.Education.Len()
	case GroupHistory:
		return f.History.Len()
	}
	return -1
}

// UpdateEntryField sets field on the entry at index and refreshes the errors
// of that field and of the fields whose cross-field rules it affects.
func (f *Form) UpdateEntryField(kind GroupKind, index int, field, value string) error {
	switch kind {
	case GroupProjects:
		return f.Projects.Update(index, func(e *Entry[ProjectEntry, ProjectErrors]) error {
			if err := e.Value.set(field, value); err != nil {
				return err
			}
			e.Errors.set(field, validateProjectField(field, value))
			return nil
		})
	case GroupEducation:
		return f.Education.Update(index, func(e *Entry[EducationEntry, EducationErrors]) error {
			if err := e.Value.set(field, value); err != nil {
				return err
			}
			refreshEducation(e.Value, &e.Errors, field)
			return nil
		})
	case GroupHistory:
		return f.History.Update(index, func(e *Entry[EmploymentEntry, EmploymentErrors]) error {
			if err := e.Value.set(field, value); err != nil {
				return err
			}
			refreshEmployment(e.Value, &e.Errors, field)
			return nil
		})
	}
	return fmt.Errorf("%w: %q", ErrUnknownGroup, kind)
}

// refreshEducation recomputes the error of field for v, including the
// yearOfPassing ordering rule whenever either date changes.
func refreshEducation(v EducationEntry, errs *EducationErrors, field string) {
	errs.set(field, ValidateEducationField(field, v.get(field)))
	switch field {
	case FieldYearOfPassing:
		if errs.YearOfPassing == "" {
			errs.YearOfPassing = ValidateEducationDates(v.YearOfJoining, v.YearOfPassing)
		}
	case FieldYearOfJoining:
		if v.YearOfPassing != "" {
			errs.YearOfPassing = ValidateEducationField(FieldYearOfPassing, v.YearOfPassing)
			if errs.YearOfPassing == "" {
				errs.YearOfPassing = ValidateEducationDates(v.YearOfJoining, v.YearOfPassing)
			}
		}
	}
}

// refreshEmployment recomputes the error of field and of the paired date
// field for v.
func refreshEmployment(v EmploymentEntry, errs *EmploymentErrors, field string) {
	switch field {
	case FieldIsCurrentEmployee:
		errs.YearOfLeaving = ValidateEmploymentField(FieldYearOfLeaving, v.YearOfLeaving, v)
		if v.YearOfJoining != "" {
			errs.YearOfJoining = ValidateEmploymentField(FieldYearOfJoining, v.YearOfJoining, v)
		}
	case FieldYearOfJoining:
		errs.YearOfJoining = ValidateEmploymentField(field, v.YearOfJoining, v)
		if v.YearOfLeaving != "" {
			errs.YearOfLeaving = ValidateEmploymentField(FieldYearOfLeaving, v.YearOfLeaving, v)
		}
	case FieldYearOfLeaving:
		errs.YearOfLeaving = ValidateEmploymentField(field, v.YearOfLeaving, v)
		if v.YearOfJoining != "" {
			errs.YearOfJoining = ValidateEmploymentField(FieldYearOfJoining, v.YearOfJoining, v)
		}
	default:
		errs.set(field, ValidateEmploymentField(field, v.get(field), v))
	}
}

// BlurEntryField validates value for field without storing it, running the
// same rules as UpdateEntryField against the entry as it would be. Used where
// errors surface on blur rather than on every keystroke.
func (f *Form) BlurEntryField(kind GroupKind, index int, field, value string) error {
	switch kind {
	case GroupProjects:
		return f.Projects.Update(index, func(e *Entry[ProjectEntry, ProjectErrors]) error {
			pending := e.Value
			if err := pending.set(field, value); err != nil {
				return err
			}
			e.Errors.set(field, validateProjectField(field, value))
			return nil
		})
	case GroupEducation:
		return f.Education.Update(index, func(e *Entry[EducationEntry, EducationErrors]) error {
			pending := e.Value
			if err := pending.set(field, value); err != nil {
				return err
			}
			refreshEducation(pending, &e.Errors, field)
			return nil
		})
	case GroupHistory:
		return f.History.Update(index, func(e *Entry[EmploymentEntry, EmploymentErrors]) error {
			pending := e.Value
			if err := pending.set(field, value); err != nil {
				return err
			}
			refreshEmployment(pending, &e.Errors, field)
			return nil
		})
	}
	return fmt.Errorf("%w: %q", ErrUnknownGroup, kind)
}

// Valid reports whether the form can be submitted. It only reads the stored
// errors; validators run on the mutation path.
func (f *Form) Valid() bool {
	return f.Errors().Empty()
}

// Errors returns the error tree; group slices have the same lengths as the
// corresponding slices of Values.
func (f *Form) Errors() ErrorAggregate {
	return ErrorAggregate{
		Title:               f.TitleError,
		Description:         f.DescriptionError,
		Projects:            f.Projects.ErrorRecords(),
		Education:           f.Education.ErrorRecords(),
		ProfessionalHistory: f.History.ErrorRecords(),
		PortfolioLinks:      f.LinkErrors,
	}
}

// Values returns the data half of the form.
func (f *Form) Values() Values {
	return Values{
		Title:               f.Title,
		Description:         f.Description,
		Projects:            f.Projects.Values(),
		Education:           f.Education.Values(),
		ProfessionalHistory: f.History.Values(),
		PortfolioLinks:      f.Links,
		Attachment:          f.Attachment,
	}
}

// ValidateAll runs every validator against the current values, surfacing
// errors on fields the user never touched.
func (f *Form) ValidateAll() {
	f.TitleError = ValidateTitle(f.Title)
	f.DescriptionError = ValidateDescription(f.Description)
	f.LinkErrors = LinksErrors{
		Github:   ValidateOptionalLink(f.Links.Github),
		Leetcode: ValidateOptionalLink(f.Links.Leetcode),
		GFG:      ValidateOptionalLink(f.Links.GFG),
	}

	for i := range f.Projects.entries {
		e := &f.Projects.entries[i]
		e.Errors = ProjectErrors{
			Title:       ValidateTitle(e.Value.Title),
			Description: ValidateDescription(e.Value.Description),
			Link:        ValidateLink(e.Value.Link),
		}
	}

	for i := range f.Education.entries {
		e := &f.Education.entries[i]
		var errs EducationErrors
		for _, field := range []string{FieldCollegeName, FieldDegree, FieldBranch, FieldCGPAOrPercentage, FieldYearOfJoining, FieldYearOfPassing} {
			errs.set(field, ValidateEducationField(field, e.Value.get(field)))
		}
		if errs.YearOfPassing == "" {
			errs.YearOfPassing = ValidateEducationDates(e.Value.YearOfJoining, e.Value.YearOfPassing)
		}
		e.Errors = errs
	}

	for i := range f.History.entries {
		e := &f.History.entries[i]
		var errs EmploymentErrors
		for _, field := range []string{FieldCompanyName, FieldPosition, FieldResponsibility, FieldYearOfJoining, FieldYearOfLeaving} {
			errs.set(field, ValidateEmploymentField(field, e.Value.get(field), e.Value))
		}
		e.Errors = errs
	}
}

// SetAttachment records the staged PDF.
func (f *Form) SetAttachment(a *Attachment) { f.Attachment = a }

// ClearAttachment drops the staged PDF reference and returns it.
func (f *Form) ClearAttachment() *Attachment {
	a := f.Attachment
	f.Attachment = nil
	return a
}

// FromRemote hydrates an edit-flow form from the stored portfolio. Date
// instants are cut down to their UTC calendar date; missing sections become
// empty ones. It never fails.
func FromRemote(rec portfolio.Record) *Form {
	f := &Form{
		Title:       rec.Title,
		Description: rec.Description,
		RemoteID:    rec.ID,
		RemoteUser:  rec.User,
	}
	for _, p := range rec.Projects {
		f.Projects.Append(ProjectEntry{
			Title:       p.Title,
			Description: p.Description,
			Link:        p.Link,
		}, ProjectErrors{})
	}
	for _, ed := range rec.Education {
		f.Education.Append(EducationEntry{
			CollegeName:      ed.CollegeName,
			Degree:           ed.Degree,
			Branch:           ed.Branch,
			CGPAOrPercentage: ed.CGPAOrPercentage,
			YearOfJoining:    DateOnly(ed.YearOfJoining),
			YearOfPassing:    DateOnly(ed.YearOfPassing),
		}, EducationErrors{})
	}
	for _, h := range rec.ProfessionalHistory {
		entry := EmploymentEntry{
			CompanyName:       h.CompanyName,
			Position:          h.Position,
			Responsibility:    h.Responsibility,
			YearOfJoining:     DateOnly(h.YearOfJoining),
			YearOfLeaving:     DateOnly(h.YearOfLeaving),
			IsCurrentEmployee: h.IsCurrentEmployee,
		}
		if entry.IsCurrentEmployee {
			entry.YearOfLeaving = ""
		}
		f.History.Append(entry, EmploymentErrors{})
	}
	if rec.PortfolioLinks != nil {
		f.Links = LinksRecord{
			Github:   rec.PortfolioLinks.Github,
			Leetcode: rec.PortfolioLinks.Leetcode,
			GFG:      rec.PortfolioLinks.GFG,
		}
	}
	return f
}

// DateOnly converts a stored instant to a date-input value. Values that are
// already dates pass through; anything unparsable becomes empty.
func DateOnly(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC().Format(DateLayout)
	}
	if _, ok := ParseDate(value); ok {
		return value
	}
	return ""
}
