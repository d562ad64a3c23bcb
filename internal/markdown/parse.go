package markdown

import (
	"regexp"
	"strings"

	"resumeflow/internal/types"
)

type section int

const (
	sectionNone section = iota
	sectionSummary
	sectionExperience
	sectionEducation
	sectionSkills
	sectionOther
)

var (
	headingPattern  = regexp.MustCompile(`^(#{1,6})(?:\s+(.*))?$`)
	phonePattern    = regexp.MustCompile(`^\+?[\d\s().-]{7,}$`)
	urlPattern      = regexp.MustCompile(`(?i)^(https?://)?([\w-]+\.)+[a-z]{2,}(/\S*)?$`)
	datePattern     = regexp.MustCompile(`(?i)\b(\d{4}|present|current)\b`)
	boldLinePattern = regexp.MustCompile(`^\*\*(.+?)\*\*(.*)$`)
	labelPattern    = regexp.MustCompile(`(?i)^(linkedin|github|website|email|phone|location):\s*(.+)$`)
)

// parser tracks the section being read and the entry being built.
type parser struct {
	resume   types.Resume
	section  section
	exp      *types.Experience
	edu      *types.Education
	metaSeen bool
	inHigh   bool
	category string
	contact  bool
}

// FromMarkdown reads a résumé back from the dialect ToMarkdown writes.
//
// The scanner is heuristic: text that itself contains pipes, a leading
// '#', a leading '-' or '•', or " in " inside a degree heading is
// misread. Parsed entries receive fresh ids.
func FromMarkdown(text string) types.Resume {
	p := &parser{}
	for _, raw := range strings.Split(text, "\n") {
		p.line(strings.TrimSpace(raw))
	}
	p.finishEntry()

	if p.resume.Experience == nil {
		p.resume.Experience = []types.Experience{}
	}
	if p.resume.Education == nil {
		p.resume.Education = []types.Education{}
	}
	if p.resume.Skills == nil {
		p.resume.Skills = []types.Skill{}
	}
	return p.resume
}

func (p *parser) line(line string) {
	if line == "" {
		return
	}

	if level, title, ok := heading(line); ok {
		switch {
		case level == 1 && p.section == sectionNone:
			p.resume.Contact.Name = title
			return
		case level <= 2:
			p.startSection(title)
			return
		}
	}

	switch p.section {
	case sectionNone:
		p.contactLine(line)
	case sectionSummary:
		if !strings.HasPrefix(line, "#") {
			if p.resume.Summary != "" {
				p.resume.Summary += " "
			}
			p.resume.Summary += line
		}
	case sectionExperience:
		p.experienceLine(line)
	case sectionEducation:
		p.educationLine(line)
	case sectionSkills:
		p.skillLine(line)
	}
}

func heading(line string) (int, string, bool) {
	m := headingPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, "", false
	}
	return len(m[1]), strings.TrimSpace(m[2]), true
}

func (p *parser) startSection(title string) {
	p.finishEntry()
	p.category = ""

	name := strings.ToLower(title)
	switch {
	case strings.Contains(name, "experience") || strings.Contains(name, "work") || strings.Contains(name, "employment"):
		p.section = sectionExperience
	case strings.Contains(name, "education"):
		p.section = sectionEducation
	case strings.Contains(name, "skill"):
		p.section = sectionSkills
	case strings.Contains(name, "summary") || strings.Contains(name, "about") || strings.Contains(name, "profile"):
		p.section = sectionSummary
	default:
		p.section = sectionOther
	}
}

func (p *parser) contactLine(line string) {
	c := &p.resume.Contact

	if m := labelPattern.FindStringSubmatch(line); m != nil {
		value := strings.TrimSpace(m[2])
		switch strings.ToLower(m[1]) {
		case "linkedin":
			c.LinkedIn = value
		case "github":
			c.GitHub = value
		case "website":
			c.Website = value
		case "email":
			c.Email = value
		case "phone":
			c.Phone = value
		case "location":
			c.Location = value
		}
		return
	}

	// The first line of the header is always read; later ones only when pipe-delimited.
	if p.contact && !strings.Contains(line, "|") {
		return
	}
	p.contact = true
	for _, part := range splitTrim(line, "|") {
		lower := strings.ToLower(part)
		switch {
		case part == "":
		case strings.Contains(part, "@") && !strings.Contains(lower, "://"):
			c.Email = part
		case strings.Contains(lower, "linkedin.com"):
			c.LinkedIn = part
		case strings.Contains(lower, "github.com"):
			c.GitHub = part
		case urlPattern.MatchString(part):
			c.Website = part
		case phonePattern.MatchString(part) && countDigits(part) >= 7:
			c.Phone = part
		case c.Location == "":
			c.Location = part
		}
	}
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

func splitTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func bulletText(line string) (string, bool) {
	for _, marker := range []string{"- ", "• ", "* "} {
		if strings.HasPrefix(line, marker) {
			return strings.TrimSpace(line[len(marker):]), true
		}
	}
	if line == "-" || line == "•" {
		return "", true
	}
	return "", false
}

// entryTitle returns the heading text when line starts a new entry.
func entryTitle(line string) (string, bool) {
	if level, title, ok := heading(line); ok && level == 3 {
		return title, true
	}
	if m := boldLinePattern.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(strings.ReplaceAll(m[1]+m[2], "**", "")), true
	}
	return "", false
}

func isHighlightsMarker(line string) bool {
	if level, title, ok := heading(line); ok && level >= 4 {
		return strings.Contains(strings.ToLower(title), "highlight")
	}
	lower := strings.ToLower(strings.Trim(line, "*: "))
	return strings.HasPrefix(line, "**") && strings.Contains(lower, "highlight")
}

func isMetaLine(line string) bool {
	return strings.Contains(line, "|") || datePattern.MatchString(line)
}

func (p *parser) experienceLine(line string) {
	if isHighlightsMarker(line) {
		p.inHigh = true
		return
	}
	if title, ok := entryTitle(line); ok {
		p.finishEntry()
		exp := types.NewExperience()
		exp.Position, exp.Company = splitTitle(title)
		p.exp = &exp
		return
	}
	if p.exp == nil || strings.HasPrefix(line, "#") {
		return
	}

	if text, ok := bulletText(line); ok {
		if text == "" {
			return
		}
		if p.inHigh {
			p.exp.Highlights = append(p.exp.Highlights, text)
		} else {
			p.exp.Description = append(p.exp.Description, text)
		}
		return
	}

	switch {
	case isMetaLine(line) && !p.metaSeen:
		p.metaSeen = true
		p.exp.Location, p.exp.StartDate, p.exp.EndDate, _ = parseMeta(line)
	case p.exp.Company == "":
		p.exp.Company = strings.ReplaceAll(line, "**", "")
	case !p.metaSeen && p.exp.Location == "":
		p.metaSeen = true
		p.exp.Location = line
	}
}

func splitTitle(title string) (position, company string) {
	if rest, ok := strings.CutPrefix(title, "- "); ok {
		return "", strings.TrimSpace(rest)
	}
	if before, after, ok := strings.Cut(title, titleSeparator); ok {
		return strings.TrimSpace(before), strings.TrimSpace(after)
	}
	return title, ""
}

func (p *parser) educationLine(line string) {
	if title, ok := entryTitle(line); ok {
		p.finishEntry()
		edu := types.NewEducation()
		edu.Degree, edu.Field = splitDegree(title)
		p.edu = &edu
		return
	}
	if p.edu == nil || strings.HasPrefix(line, "#") {
		return
	}

	if text, ok := bulletText(line); ok {
		if text != "" {
			p.edu.Achievements = append(p.edu.Achievements, text)
		}
		return
	}

	switch {
	case isMetaLine(line) && !p.metaSeen:
		p.metaSeen = true
		p.edu.Location, p.edu.StartDate, p.edu.EndDate, p.edu.GPA = parseMeta(line)
	case p.edu.Institution == "":
		p.edu.Institution = strings.ReplaceAll(line, "**", "")
	case !p.metaSeen && p.edu.Location == "":
		p.metaSeen = true
		p.edu.Location = line
	}
}

func splitDegree(title string) (degree, field string) {
	if rest, ok := strings.CutPrefix(title, "in "); ok {
		return "", strings.TrimSpace(rest)
	}
	if before, after, ok := strings.Cut(title, degreeSeparator); ok {
		return strings.TrimSpace(before), strings.TrimSpace(after)
	}
	return title, ""
}

// parseMeta splits "location | start - end | GPA: x". The first part is the
// location unless it looks like a date or a GPA, which older layouts put
// first; any later part that is not a GPA holds the dates.
func parseMeta(line string) (location, start, end, gpa string) {
	datesSeen := false
	for i, part := range splitTrim(line, "|") {
		switch {
		case part == "":
		case strings.HasPrefix(strings.ToUpper(part), gpaPrefix):
			gpa = strings.TrimSpace(part[len(gpaPrefix):])
		case !datesSeen && (i > 0 || isDatePart(part)):
			datesSeen = true
			start, end = splitDates(part)
		case location == "":
			location = part
		}
	}
	return location, start, end, gpa
}

func isDatePart(s string) bool {
	return datePattern.MatchString(s) || strings.Contains(s, dateSeparator) || strings.HasPrefix(s, "-")
}

func splitDates(s string) (start, end string) {
	if rest, ok := strings.CutPrefix(s, "-"); ok {
		return "", strings.TrimSpace(rest)
	}
	for _, sep := range []string{dateSeparator, " – ", " — "} {
		if before, after, ok := strings.Cut(s, sep); ok {
			return strings.TrimSpace(before), strings.TrimSpace(after)
		}
	}
	return strings.TrimSpace(s), ""
}

func (p *parser) skillLine(line string) {
	if m := boldLinePattern.FindStringSubmatch(line); m != nil {
		category := strings.TrimSuffix(strings.TrimSpace(m[1]), ":")
		rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(m[2]), ":"))
		p.category = strings.TrimSpace(category)
		if rest != "" {
			p.resume.MergeSkills(p.category, splitItems(rest)...)
		}
		return
	}
	if level, title, ok := heading(line); ok && level >= 3 {
		p.category = strings.TrimSuffix(title, ":")
		return
	}

	if text, ok := bulletText(line); ok {
		if text != "" && p.category != "" {
			p.resume.MergeSkills(p.category, text)
		}
		return
	}

	if category, rest, ok := strings.Cut(line, ":"); ok && !strings.Contains(category, ",") {
		p.category = strings.TrimSpace(category)
		if items := splitItems(rest); len(items) > 0 {
			p.resume.MergeSkills(p.category, items...)
		}
		return
	}

	if p.category != "" {
		p.resume.MergeSkills(p.category, splitItems(line)...)
	}
}

func splitItems(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func (p *parser) finishEntry() {
	if p.exp != nil {
		if p.exp.Company != "" || p.exp.Position != "" {
			p.resume.Experience = append(p.resume.Experience, *p.exp)
		}
		p.exp = nil
	}
	if p.edu != nil {
		if p.edu.Institution != "" || p.edu.Degree != "" {
			p.resume.Education = append(p.resume.Education, *p.edu)
		}
		p.edu = nil
	}
	p.metaSeen = false
	p.inHigh = false
}
