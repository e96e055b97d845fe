package form

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: "Title cannot be empty"},
		{name: "blank", input: "   ", want: "Title cannot be empty"},
		{name: "too short", input: "ab", want: "Title must be at least 3 characters long"},
		{name: "digits", input: "Ab1", want: "Title cannot contain numbers"},
		{name: "punctuation", input: "Hello!", want: "Title cannot contain numbers"},
		{name: "valid", input: "Valid Name", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateTitle(tt.input))
		})
	}
}

func TestValidateLink(t *testing.T) {
	assert.Equal(t, "Link is required", ValidateLink(""))
	assert.Equal(t, "Invalid URL format", ValidateLink("not-a-url"))
	assert.Equal(t, "Invalid URL format", ValidateLink("https://x.com/with space"))
	assert.Equal(t, "Invalid URL format", ValidateLink(`https://x.com/"quoted"`))
	assert.Equal(t, "", ValidateLink("https://x.com"))
	assert.Equal(t, "", ValidateLink("ftp://files.example.org/cv.pdf"))

	assert.Equal(t, "", ValidateOptionalLink(""))
	assert.Equal(t, "Invalid URL format", ValidateOptionalLink("github.com/me"))
}

func TestIsPointWise(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Built a compiler.", true},
		{"Built a compiler. Shipped it!", true},
		{"Built a compiler.\nLed a team of four?", true},
		{"Wait... Then it worked.", true},
		{"built a compiler.", false},
		{"Built a compiler", false},
		{"Built a compiler. then shipped it.", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsPointWise(tt.text), tt.text)
	}
}

func TestValidateDescription(t *testing.T) {
	assert.Equal(t, "Description cannot be empty", ValidateDescription("  "))
	assert.Contains(t, ValidateDescription("lowercase start."), "point-wise format")
	assert.Equal(t, "", ValidateDescription("Wrote tests. Fixed bugs."))
}

func TestValidateEducationField(t *testing.T) {
	assert.Equal(t, "College Name is required.", ValidateEducationField(FieldCollegeName, " "))
	assert.Equal(t, "Degree is required.", ValidateEducationField(FieldDegree, ""))
	assert.Contains(t, ValidateEducationField(FieldDegree, "PhD"), "Degree must be one of")
	assert.Equal(t, "", ValidateEducationField(FieldDegree, DegreeMtech))
	assert.Equal(t, "Branch is required.", ValidateEducationField(FieldBranch, ""))
	assert.Equal(t, "", ValidateEducationField(FieldBranch, BranchElectricalEngineering))
	assert.Equal(t, "CGPA or Percentage is required.", ValidateEducationField(FieldCGPAOrPercentage, ""))
	assert.Equal(t, "Year of Joining is required.", ValidateEducationField(FieldYearOfJoining, ""))
	assert.Equal(t, "Year of Joining must be a valid date.", ValidateEducationField(FieldYearOfJoining, "2020-13-01"))
	assert.Equal(t, "Year of Passing is required.", ValidateEducationField(FieldYearOfPassing, ""))
	assert.Equal(t, "", ValidateEducationField("unknown", ""))
}

func TestValidateEducationDates(t *testing.T) {
	assert.NotEmpty(t, ValidateEducationDates("2020-01-01", "2019-01-01"))
	assert.NotEmpty(t, ValidateEducationDates("2020-01-01", "2020-01-01"))
	assert.Empty(t, ValidateEducationDates("2019-01-01", "2020-01-01"))
	assert.Empty(t, ValidateEducationDates("", "2020-01-01"))
}

func TestValidateEmploymentField(t *testing.T) {
	entry := EmploymentEntry{YearOfJoining: "2021-01-01", YearOfLeaving: "2020-01-01"}

	assert.Equal(t, "Company name is required", ValidateEmploymentField(FieldCompanyName, "", entry))
	assert.Equal(t, "Position is required", ValidateEmploymentField(FieldPosition, " ", entry))
	assert.Equal(t, "Responsibility is required", ValidateEmploymentField(FieldResponsibility, "", entry))
	assert.Contains(t, ValidateEmploymentField(FieldResponsibility, "did things", entry), "Responsibility must be in point-wise format")
	assert.Equal(t, "Year of joining must be before Year of leaving", ValidateEmploymentField(FieldYearOfJoining, entry.YearOfJoining, entry))
	assert.Equal(t, "Year of leaving must be after Year of joining", ValidateEmploymentField(FieldYearOfLeaving, entry.YearOfLeaving, entry))

	current := EmploymentEntry{YearOfJoining: "2021-01-01", IsCurrentEmployee: true}
	assert.Empty(t, ValidateEmploymentField(FieldYearOfLeaving, "", current))
	assert.Empty(t, ValidateEmploymentField(FieldYearOfJoining, current.YearOfJoining, current))

	past := EmploymentEntry{YearOfJoining: "2021-01-01"}
	assert.Equal(t, "Year of leaving is required", ValidateEmploymentField(FieldYearOfLeaving, "", past))
	assert.Equal(t, "Year of joining is required", ValidateEmploymentField(FieldYearOfJoining, "", past))
}
