package reporter

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
)

func writePlain(w io.Writer, violations []Violation) error {
	for _, v := range violations {
		if _, err := fmt.Fprintln(w, v.String()); err != nil {
			return err
		}
	}
	return nil
}

func writePlainGrouped(w io.Writer, violations []Violation) error {
	current := ""
	for _, v := range violations {
		if v.File != current {
			current = v.File
			if _, err := fmt.Fprintln(w, current); err != nil {
				return err
			}
		}
		line := fmt.Sprintf("  %d:%d %s", v.Line, v.Col, v.Message)
		if v.Rule != "" {
			line += " (" + v.Rule + ")"
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

type checkstyleReport struct {
	XMLName xml.Name         `xml:"checkstyle"`
	Version string           `xml:"version,attr"`
	Files   []checkstyleFile `xml:"file"`
}

type checkstyleFile struct {
	Name   string            `xml:"name,attr"`
	Errors []checkstyleError `xml:"error"`
}

type checkstyleError struct {
	Line     int    `xml:"line,attr"`
	Column   int    `xml:"column,attr"`
	Severity string `xml:"severity,attr"`
	Message  string `xml:"message,attr"`
	Source   string `xml:"source,attr"`
}

func writeCheckstyle(w io.Writer, violations []Violation) error {
	report := checkstyleReport{Version: "8.0"}
	for _, v := range violations {
		if n := len(report.Files); n == 0 || report.Files[n-1].Name != v.File {
			report.Files = append(report.Files, checkstyleFile{Name: v.File})
		}
		f := &report.Files[len(report.Files)-1]
		f.Errors = append(f.Errors, checkstyleError{
			Line:     v.Line,
			Column:   v.Col,
			Severity: "error",
			Message:  v.Message,
			Source:   v.Rule,
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "    ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

type jsonFile struct {
	File   string      `json:"file"`
	Errors []jsonError `json:"errors"`
}

type jsonError struct {
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Message string `json:"message"`
	Rule    string `json:"rule"`
}

func writeJSON(w io.Writer, violations []Violation) error {
	files := []jsonFile{}
	for _, v := range violations {
		if n := len(files); n == 0 || files[n-1].File != v.File {
			files = append(files, jsonFile{File: v.File, Errors: []jsonError{}})
		}
		f := &files[len(files)-1]
		f.Errors = append(f.Errors, jsonError{Line: v.Line, Column: v.Col, Message: v.Message, Rule: v.Rule})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(files)
}
