// Package markdown converts between the structured résumé and a small
// Markdown dialect that people can edit by hand.
package markdown

import (
	"fmt"
	"strings"

	"resumeflow/internal/types"
)

const (
	contactSeparator = " | "
	metaSeparator    = " | "
	titleSeparator   = " - "
	degreeSeparator  = " in "
	dateSeparator    = " - "
	gpaPrefix        = "GPA:"
	highlightsHeader = "#### Highlights"
)

// ToMarkdown renders a résumé. Blank fields are left out entirely.
func ToMarkdown(r types.Resume) string {
	var w writer

	if name := clean(r.Contact.Name); name != "" {
		w.block("# " + name)
	}
	if line := contactLine(r.Contact); line != "" {
		w.block(line)
	}

	if summary := clean(r.Summary); summary != "" {
		w.block("## Summary")
		w.block(summary)
	}

	if skills := skillLines(r.Skills); len(skills) > 0 {
		w.block("## Skills")
		w.block(skills...)
	}

	if len(r.Experience) > 0 {
		w.block("## Experience")
		for _, exp := range r.Experience {
			writeExperience(&w, exp)
		}
	}

	if len(r.Education) > 0 {
		w.block("## Education")
		for _, edu := range r.Education {
			writeEducation(&w, edu)
		}
	}

	return w.String()
}

// writer collects blocks of lines separated by one blank line.
type writer struct {
	sb strings.Builder
}

func (w *writer) block(lines ...string) {
	if len(lines) == 0 {
		return
	}
	if w.sb.Len() > 0 {
		w.sb.WriteString("\n")
	}
	for _, line := range lines {
		w.sb.WriteString(line)
		w.sb.WriteString("\n")
	}
}

func (w *writer) String() string {
	return w.sb.String()
}

func clean(s string) string {
	return strings.TrimSpace(s)
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = clean(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

// metaLine writes "location | dates | GPA: x". The location slot is
// positional: a missing location leaves the line starting with a separator
// and a lone location keeps a trailing one, so neither reads back as a
// company or institution.
func metaLine(location string, rest ...string) string {
	location = clean(location)
	tail := joinNonEmpty(metaSeparator, rest...)
	switch {
	case tail == "":
		if location == "" {
			return ""
		}
		return location + strings.TrimRight(metaSeparator, " ")
	case location == "":
		return strings.TrimLeft(metaSeparator, " ") + tail
	}
	return location + metaSeparator + tail
}

func contactLine(c types.ContactInfo) string {
	return joinNonEmpty(contactSeparator, c.Email, c.Phone, c.Location, c.LinkedIn, c.GitHub, c.Website)
}

func skillLines(skills []types.Skill) []string {
	var lines []string
	for _, s := range skills {
		items := joinNonEmpty(", ", s.Items...)
		category := clean(s.Category)
		if category == "" || items == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("**%s:** %s", category, items))
	}
	return lines
}

func bullets(items []string) []string {
	var lines []string
	for _, item := range items {
		if item = clean(item); item != "" {
			lines = append(lines, "- "+item)
		}
	}
	return lines
}

// dateRange renders "start - end". A lone end date is written as "- end".
func dateRange(start, end string) string {
	if clean(start) == "" && clean(end) != "" {
		return strings.TrimLeft(dateSeparator, " ") + clean(end)
	}
	return joinNonEmpty(dateSeparator, start, end)
}

func writeExperience(w *writer, exp types.Experience) {
	position, company := clean(exp.Position), clean(exp.Company)
	switch {
	case position != "" && company != "":
		w.block("### " + position + titleSeparator + company)
	case position != "":
		w.block("### " + position)
	case company != "":
		w.block("### - " + company)
	default:
		w.block("###")
	}

	if meta := metaLine(exp.Location, dateRange(exp.StartDate, exp.EndDate)); meta != "" {
		w.block(meta)
	}
	w.block(bullets(exp.Description)...)
	if highlights := bullets(exp.Highlights); len(highlights) > 0 {
		w.block(highlightsHeader)
		w.block(highlights...)
	}
}

func writeEducation(w *writer, edu types.Education) {
	degree, field := clean(edu.Degree), clean(edu.Field)
	switch {
	case degree != "" && field != "":
		w.block("### " + degree + degreeSeparator + field)
	case degree != "":
		w.block("### " + degree)
	case field != "":
		w.block("### in " + field)
	default:
		w.block("###")
	}

	if institution := clean(edu.Institution); institution != "" {
		w.block(institution)
	}

	gpa := ""
	if g := clean(edu.GPA); g != "" {
		gpa = gpaPrefix + " " + g
	}
	if meta := metaLine(edu.Location, dateRange(edu.StartDate, edu.EndDate), gpa); meta != "" {
		w.block(meta)
	}
	w.block(bullets(edu.Achievements)...)
}

// CoverLetterToMarkdown renders a cover letter under a "Cover Letter" title.
func CoverLetterToMarkdown(c types.CoverLetter) string {
	var w writer
	w.block("# Cover Letter")
	for _, part := range append(append([]string{c.Greeting, c.Opening}, c.Body...), c.Closing, c.Signature) {
		if part = clean(part); part != "" {
			w.block(part)
		}
	}
	return w.String()
}
