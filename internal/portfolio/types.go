package portfolio

// Record is the portfolio document as returned by GET /api/portfolio.
// Date fields are ISO-8601 instants.
type Record struct {
	ID                  string       `json:"_id" yaml:"_id"`
	User                string       `json:"user" yaml:"user"`
	Title               string       `json:"title" yaml:"title"`
	Description         string       `json:"description" yaml:"description"`
	Projects            []Project    `json:"projects" yaml:"projects"`
	Education           []Education  `json:"education" yaml:"education"`
	ProfessionalHistory []Employment `json:"professionalHistory" yaml:"professionalHistory"`
	PortfolioLinks      *Links       `json:"portfolioLinks,omitempty" yaml:"portfolioLinks"`
}

// Project is one entry of the projects section.
type Project struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Link        string `json:"link" yaml:"link"`
}

// Education is one entry of the education section.
type Education struct {
	CollegeName      string `json:"collegeName" yaml:"collegeName"`
	Degree           string `json:"degree" yaml:"degree"`
	Branch           string `json:"branch" yaml:"branch"`
	CGPAOrPercentage string `json:"cgpaOrPercentage" yaml:"cgpaOrPercentage"`
	YearOfJoining    string `json:"yearOfJoining" yaml:"yearOfJoining"`
	YearOfPassing    string `json:"yearOfPassing" yaml:"yearOfPassing"`
}

// Employment is one entry of the professional history section.
type Employment struct {
	CompanyName       string `json:"companyName" yaml:"companyName"`
	Position          string `json:"position" yaml:"position"`
	Responsibility    string `json:"responsibility" yaml:"responsibility"`
	YearOfJoining     string `json:"yearOfJoining" yaml:"yearOfJoining"`
	YearOfLeaving     string `json:"yearOfLeaving" yaml:"yearOfLeaving"`
	IsCurrentEmployee bool   `json:"isCurrentEmployee" yaml:"isCurrentEmployee"`
}

// Links holds the optional coding-profile URLs.
type Links struct {
	Github   string `json:"github" yaml:"github"`
	Leetcode string `json:"leetcode" yaml:"leetcode"`
	GFG      string `json:"gfg" yaml:"gfg"`
}

// User is the account projection returned by GET /api/auth/user.
type User struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ContactMessage is the payload relayed to POST /api/contact.
type ContactMessage struct {
	Name   string `json:"name" validate:"required,min=2,max=100"`
	Email  string `json:"email" validate:"required,email"`
	Phone  string `json:"phone" validate:"omitempty,max=32"`
	Reason string `json:"reason" validate:"required,max=2000"`
	// Recipient is the public profile owner the message is addressed to.
	Recipient string `json:"recipient,omitempty" validate:"omitempty,max=64"`
}
