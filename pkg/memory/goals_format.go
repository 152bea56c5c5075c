package memory

import (
	"bufio"
	"fmt"
	"strings"
	"time"
)

const goalTimeLayout = time.RFC3339

// serializeGoalsDocument renders goals as a markdown document: one
// level-2 heading per goal carrying id/title/status/timestamps/tags as a
// fenced metadata line, followed by progress notes as
// "- [iso] (source) note-with-pipes-replaced".
func serializeGoalsDocument(goals []Goal) string {
	var b strings.Builder
	for _, g := range goals {
		fmt.Fprintf(&b, "## %s\n", g.Title)
		fmt.Fprintf(&b, "id: %s | status: %s | created: %s | updated: %s | tags: %s\n\n",
			g.ID, g.Status, g.CreatedAt.Format(goalTimeLayout), g.UpdatedAt.Format(goalTimeLayout),
			strings.Join(g.Tags, ","))
		for _, p := range g.Progress {
			fmt.Fprintf(&b, "- [%s] (%s) %s\n", p.At.Format(goalTimeLayout), p.Source,
				strings.ReplaceAll(p.Note, "|", "/"))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// parseGoalsDocument is the inverse of serializeGoalsDocument.
func parseGoalsDocument(content string) ([]Goal, error) {
	var goals []Goal
	var current *Goal

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, "## "):
			if current != nil {
				goals = append(goals, *current)
			}
			current = &Goal{Title: strings.TrimSpace(strings.TrimPrefix(trimmed, "## "))}

		case strings.HasPrefix(trimmed, "id:") && current != nil:
			parseGoalMetaLine(current, trimmed)

		case strings.HasPrefix(trimmed, "- [") && current != nil:
			note, ok := parseProgressLine(trimmed)
			if ok {
				current.Progress = append(current.Progress, note)
			}
		}
	}
	if current != nil {
		goals = append(goals, *current)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("memory: parse goals document: %w", err)
	}
	return goals, nil
}

func parseGoalMetaLine(g *Goal, line string) {
	for _, field := range strings.Split(line, "|") {
		field = strings.TrimSpace(field)
		kv := strings.SplitN(field, ":", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		value := strings.TrimSpace(kv[1])
		switch key {
		case "id":
			g.ID = value
		case "status":
			g.Status = GoalStatus(value)
		case "created":
			if t, err := time.Parse(goalTimeLayout, value); err == nil {
				g.CreatedAt = t
			}
		case "updated":
			if t, err := time.Parse(goalTimeLayout, value); err == nil {
				g.UpdatedAt = t
			}
		case "tags":
			if value != "" {
				g.Tags = strings.Split(value, ",")
				if len(g.Tags) > maxGoalTags {
					g.Tags = g.Tags[:maxGoalTags]
				}
			}
		}
	}
}

func parseProgressLine(line string) (ProgressNote, bool) {
	rest := strings.TrimPrefix(line, "- [")
	closeIdx := strings.Index(rest, "]")
	if closeIdx < 0 {
		return ProgressNote{}, false
	}
	tsRaw := rest[:closeIdx]
	ts, err := time.Parse(goalTimeLayout, tsRaw)
	if err != nil {
		return ProgressNote{}, false
	}

	rest = strings.TrimSpace(rest[closeIdx+1:])
	if !strings.HasPrefix(rest, "(") {
		return ProgressNote{}, false
	}
	rest = strings.TrimPrefix(rest, "(")
	parenIdx := strings.Index(rest, ")")
	if parenIdx < 0 {
		return ProgressNote{}, false
	}
	source := ProgressSource(rest[:parenIdx])
	note := strings.TrimSpace(rest[parenIdx+1:])

	return ProgressNote{At: ts, Source: source, Note: note}, true
}
