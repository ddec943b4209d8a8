// Package workflow parses text-encoded project plans and lays them out on a
// calendar.
//
// Phases are written one per line as
//
//	Phase name [N]: first task; second task
//
// where [N] is the phase duration in days (default 7) and the task list is
// optional. Milestones are written one per line as
//
//	Milestone name @ N
//
// where N is the day offset from the project start. Blank lines and lines
// starting with # are ignored in both.
package workflow

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Limits on encoded values
const (
	DefaultPhaseDays = 7
	MaxPhaseDays     = 365
	MaxMilestoneDay  = 3650
)

// ErrNoPhases is returned when the phase text contains no entries
var ErrNoPhases = errors.New("at least one phase is required")

// Phase is a named block of work with a duration and tasks
type Phase struct {
	Name         string   `json:"name"`
	DurationDays int      `json:"duration_days"`
	Tasks        []string `json:"tasks"`
}

// Milestone is a named checkpoint at a day offset
type Milestone struct {
	Name      string `json:"name"`
	OffsetDay int    `json:"offset_day"`
}

// Plan is a parsed workflow template
type Plan struct {
	Phases     []Phase     `json:"phases"`
	Milestones []Milestone `json:"milestones"`
}

// ParseError reports a malformed line
type ParseError struct {
	Section string
	Line    int
	Msg     string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s line %d: %s", e.Section, e.Line, e.Msg)
}

// Parse decodes both sections of a template
func Parse(phases, milestones string) (*Plan, error) {
	ph, err := ParsePhases(phases)
	if err != nil {
		return nil, err
	}
	ms, err := ParseMilestones(milestones)
	if err != nil {
		return nil, err
	}
	return &Plan{Phases: ph, Milestones: ms}, nil
}

// ParsePhases decodes the phase section
func ParsePhases(text string) ([]Phase, error) {
	var phases []Phase
	err := eachLine(text, func(n int, line string) error {
		head, rest, hasTasks := strings.Cut(line, ":")
		name, days, err := parseHead(strings.TrimSpace(head))
		if err != nil {
			return &ParseError{Section: "phases", Line: n, Msg: err.Error()}
		}

		p := Phase{Name: name, DurationDays: days, Tasks: []string{}}
		if hasTasks {
			for _, t := range strings.Split(rest, ";") {
				if t = strings.TrimSpace(t); t != "" {
					p.Tasks = append(p.Tasks, t)
				}
			}
		}
		phases = append(phases, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(phases) == 0 {
		return nil, ErrNoPhases
	}
	return phases, nil
}

func parseHead(head string) (string, int, error) {
	days := DefaultPhaseDays
	if strings.HasSuffix(head, "]") {
		open := strings.LastIndex(head, "[")
		if open < 0 {
			return "", 0, fmt.Errorf("unbalanced ']' in phase name")
		}
		raw := strings.TrimSpace(head[open+1 : len(head)-1])
		n, err := strconv.Atoi(raw)
		if err != nil {
			return "", 0, fmt.Errorf("invalid duration %q", raw)
		}
		if n < 1 || n > MaxPhaseDays {
			return "", 0, fmt.Errorf("duration must be between 1 and %d days", MaxPhaseDays)
		}
		days = n
		head = strings.TrimSpace(head[:open])
	}
	if head == "" {
		return "", 0, fmt.Errorf("phase name is required")
	}
	return head, days, nil
}

// ParseMilestones decodes the milestone section. An empty section yields no
// milestones.
func ParseMilestones(text string) ([]Milestone, error) {
	milestones := []Milestone{}
	err := eachLine(text, func(n int, line string) error {
		at := strings.LastIndex(line, "@")
		if at < 0 {
			return &ParseError{Section: "milestones", Line: n, Msg: "expected 'name @ day'"}
		}
		name := strings.TrimSpace(line[:at])
		if name == "" {
			return &ParseError{Section: "milestones", Line: n, Msg: "milestone name is required"}
		}
		raw := strings.TrimSpace(line[at+1:])
		day, err := strconv.Atoi(raw)
		if err != nil {
			return &ParseError{Section: "milestones", Line: n, Msg: fmt.Sprintf("invalid day offset %q", raw)}
		}
		if day < 0 || day > MaxMilestoneDay {
			return &ParseError{Section: "milestones", Line: n, Msg: fmt.Sprintf("day offset must be between 0 and %d", MaxMilestoneDay)}
		}
		milestones = append(milestones, Milestone{Name: name, OffsetDay: day})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return milestones, nil
}

// eachLine calls fn with the 1-based number and trimmed text of every
// non-blank, non-comment line
func eachLine(text string, fn func(n int, line string) error) error {
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := fn(i+1, line); err != nil {
			return err
		}
	}
	return nil
}
