package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"portfolioHub/internal/form"
	"portfolioHub/internal/portfolio"
)

// Exit codes.
const (
	exitOK      = 0
	exitInvalid = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("portfoliolint", flag.ContinueOnError)
	fs.SetOutput(stderr)
	showFields := fs.Bool("fields", false, "print the multipart fields a valid document would submit")
	wireCompatible := fs.Bool("wire-compatible", true, "send the current-employee sentinel instead of omitting yearOfLeaving")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: portfoliolint [flags] <portfolio.yaml|portfolio.json|->")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return exitUsage
	}

	rec, err := readRecord(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "portfoliolint: %v\n", err)
		return exitUsage
	}

	f := form.FromRemote(rec)
	f.ValidateAll()
	if problems := collectProblems(f.Errors()); len(problems) > 0 {
		for _, p := range problems {
			fmt.Fprintf(stdout, "%s: %s\n", p.path, p.message)
		}
		fmt.Fprintf(stdout, "%d problem(s) found\n", len(problems))
		return exitInvalid
	}

	if *showFields {
		for _, field := range form.EncodeFields(f, form.EncodeOptions{WireCompatible: *wireCompatible}) {
			fmt.Fprintf(stdout, "%s=%s\n", field.Name, field.Value)
		}
		return exitOK
	}
	fmt.Fprintln(stdout, "ok")
	return exitOK
}

// readRecord decodes a portfolio document. JSON is valid YAML, so one
// decoder covers both formats. "-" reads stdin.
func readRecord(path string) (portfolio.Record, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return portfolio.Record{}, fmt.Errorf("read %s: %w", path, err)
	}
	return decodeRecord(data)
}

func decodeRecord(data []byte) (portfolio.Record, error) {
	var rec portfolio.Record
	if len(bytes.TrimSpace(data)) == 0 {
		return rec, errors.New("document is empty")
	}
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("decode document: %w", err)
	}
	return rec, nil
}

type problem struct {
	path    string
	message string
}

func collectProblems(agg form.ErrorAggregate) []problem {
	var out []problem
	add := func(path, msg string) {
		if msg != "" {
			out = append(out, problem{path: path, message: msg})
		}
	}

	add("title", agg.Title)
	add("description", agg.Description)
	for i, e := range agg.Projects {
		prefix := fmt.Sprintf("projects[%d].", i)
		add(prefix+"title", e.Title)
		add(prefix+"description", e.Description)
		add(prefix+"link", e.Link)
	}
	for i, e := range agg.Education {
		prefix := fmt.Sprintf("education[%d].", i)
		add(prefix+"collegeName", e.CollegeName)
		add(prefix+"degree", e.Degree)
		add(prefix+"branch", e.Branch)
		add(prefix+"cgpaOrPercentage", e.CGPAOrPercentage)
		add(prefix+"yearOfJoining", e.YearOfJoining)
		add(prefix+"yearOfPassing", e.YearOfPassing)
	}
	for i, e := range agg.ProfessionalHistory {
		prefix := fmt.Sprintf("professionalHistory[%d].", i)
		add(prefix+"companyName", e.CompanyName)
		add(prefix+"position", e.Position)
		add(prefix+"responsibility", e.Responsibility)
		add(prefix+"yearOfJoining", e.YearOfJoining)
		add(prefix+"yearOfLeaving", e.YearOfLeaving)
	}
	add("portfolioLinks.github", agg.PortfolioLinks.Github)
	add("portfolioLinks.leetcode", agg.PortfolioLinks.Leetcode)
	add("portfolioLinks.gfg", agg.PortfolioLinks.GFG)
	return out
}
