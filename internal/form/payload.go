package form

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strconv"
	"strings"
)

// CurrentEmployeeSentinel is sent as yearOfLeaving for current employees.
// The portfolio service expects this exact instant.
const CurrentEmployeeSentinel = "1970-01-01T00:00:00.000Z"

// AttachmentField is the multipart field name of the PDF.
const AttachmentField = "pdf"

const instantLayout = "2006-01-02T15:04:05.000Z"

// Field is one multipart form value.
type Field struct {
	Name  string
	Value string
}

// EncodeOptions tunes EncodeFields.
type EncodeOptions struct {
	// WireCompatible sends CurrentEmployeeSentinel for current employees;
	// when false the yearOfLeaving field is omitted for them instead.
	WireCompatible bool
}

// DefaultEncodeOptions matches the portfolio service contract.
func DefaultEncodeOptions() EncodeOptions {
	return EncodeOptions{WireCompatible: true}
}

// EncodeFields flattens the form into ordered multipart fields. Entries use
// indexed paths (group[i][field]) in form order; the service rebuilds each
// sequence by index.
func EncodeFields(f *Form, opts EncodeOptions) []Field {
	fields := []Field{
		{Name: FieldTitle, Value: f.Title},
		{Name: FieldDescription, Value: f.Description},
	}

	for i, p := range f.Projects.Values() {
		prefix := indexed(GroupProjects, i)
		fields = append(fields,
			Field{Name: prefix + "[" + FieldTitle + "]", Value: p.Title},
			Field{Name: prefix + "[" + FieldDescription + "]", Value: p.Description},
			Field{Name: prefix + "[" + FieldLink + "]", Value: p.Link},
		)
	}

	for i, ed := range f.Education.Values() {
		prefix := indexed(GroupEducation, i)
		fields = append(fields,
			Field{Name: prefix + "[" + FieldCollegeName + "]", Value: ed.CollegeName},
			Field{Name: prefix + "[" + FieldDegree + "]", Value: ed.Degree},
			Field{Name: prefix + "[" + FieldBranch + "]", Value: ed.Branch},
			Field{Name: prefix + "[" + FieldCGPAOrPercentage + "]", Value: ed.CGPAOrPercentage},
			Field{Name: prefix + "[" + FieldYearOfJoining + "]", Value: ToInstant(ed.YearOfJoining)},
			Field{Name: prefix + "[" + FieldYearOfPassing + "]", Value: ToInstant(ed.YearOfPassing)},
		)
	}

	for i, h := range f.History.Values() {
		prefix := indexed(GroupHistory, i)
		fields = append(fields,
			Field{Name: prefix + "[" + FieldCompanyName + "]", Value: h.CompanyName},
			Field{Name: prefix + "[" + FieldPosition + "]", Value: h.Position},
			Field{Name: prefix + "[" + FieldResponsibility + "]", Value: h.Responsibility},
			Field{Name: prefix + "[" + FieldYearOfJoining + "]", Value: ToInstant(h.YearOfJoining)},
		)
		switch {
		case !h.IsCurrentEmployee:
			fields = append(fields, Field{Name: prefix + "[" + FieldYearOfLeaving + "]", Value: ToInstant(h.YearOfLeaving)})
		case opts.WireCompatible:
			fields = append(fields, Field{Name: prefix + "[" + FieldYearOfLeaving + "]", Value: CurrentEmployeeSentinel})
		}
		fields = append(fields, Field{Name: prefix + "[" + FieldIsCurrentEmployee + "]", Value: strconv.FormatBool(h.IsCurrentEmployee)})
	}

	fields = append(fields,
		Field{Name: "portfolioLinks[" + FieldGithub + "]", Value: f.Links.Github},
		Field{Name: "portfolioLinks[" + FieldLeetcode + "]", Value: f.Links.Leetcode},
		Field{Name: "portfolioLinks[" + FieldGFG + "]", Value: f.Links.GFG},
	)
	return fields
}

func indexed(kind GroupKind, i int) string {
	return string(kind) + "[" + strconv.Itoa(i) + "]"
}

// ToInstant expands a date-input value to midnight UTC in the service's
// instant format. Empty stays empty; unparsable values are sent unchanged
// so the service reports them.
func ToInstant(date string) string {
	if strings.TrimSpace(date) == "" {
		return ""
	}
	t, ok := ParseDate(date)
	if !ok {
		return date
	}
	return t.UTC().Format(instantLayout)
}

// FilePart is the binary attachment written after the fields.
type FilePart struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// WriteMultipart writes fields in order followed by the optional file part.
// The writer is not closed.
func WriteMultipart(w *multipart.Writer, fields []Field, file *FilePart) error {
	for _, field := range fields {
		if err := w.WriteField(field.Name, field.Value); err != nil {
			return fmt.Errorf("write field %s: %w", field.Name, err)
		}
	}
	if file == nil {
		return nil
	}

	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, AttachmentField, file.Filename))
	header.Set("Content-Type", contentType)

	part, err := w.CreatePart(header)
	if err != nil {
		return fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, file.Body); err != nil {
		return fmt.Errorf("copy file part: %w", err)
	}
	return nil
}
