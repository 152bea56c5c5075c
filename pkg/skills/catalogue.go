// Package skills loads a read-only catalogue of markdown-with-frontmatter
// skill files and scores them against user text to pick, at most, one
// active skill per turn.
package skills

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Skill is one entry of the catalogue: an id, a human name, a description
// used both for the system-prompt summary and for scoring, a set of
// trigger phrases, a tie-break priority, and the body injected into the
// prompt when the skill is selected.
type Skill struct {
	ID          string
	Name        string
	Description string
	Triggers    []string
	Priority    int
	Body        string
	Path        string
}

const (
	maxNameLen        = 64
	minSelectionScore = 10
	nameMatchScore    = 20
	triggerHitScore   = 10
	minDescWordLen    = 3
)

var namePattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

type frontmatter struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Triggers    []string `yaml:"triggers"`
	Priority    int      `yaml:"priority"`
}

// Catalogue is the loaded, read-only set of skills, keyed by id.
type Catalogue struct {
	skills map[string]Skill
	order  []string
}

// Load scans dir for *.md files, each parsed as a markdown-with-frontmatter
// skill definition.
func Load(dir string) (*Catalogue, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return &Catalogue{skills: map[string]Skill{}}, nil
		}
		return nil, fmt.Errorf("skills: read directory: %w", err)
	}

	c := &Catalogue{skills: make(map[string]Skill)}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		skill, err := loadFile(path)
		if err != nil {
			log.Warn().Str("path", path).Err(err).Msg("skipping invalid skill file")
			continue
		}
		if _, exists := c.skills[skill.ID]; exists {
			log.Warn().Str("id", skill.ID).Msg("duplicate skill id, keeping first")
			continue
		}
		c.skills[skill.ID] = skill
		c.order = append(c.order, skill.ID)
	}
	sort.Strings(c.order)

	log.Info().Int("skills", len(c.skills)).Str("dir", dir).Msg("skill catalogue loaded")
	return c, nil
}

func loadFile(path string) (Skill, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Skill{}, err
	}
	fm, body, err := splitFrontmatter(string(data))
	if err != nil {
		return Skill{}, err
	}

	var parsed frontmatter
	if err := yaml.Unmarshal([]byte(fm), &parsed); err != nil {
		return Skill{}, fmt.Errorf("parse frontmatter: %w", err)
	}

	skill := Skill{
		ID:          strings.TrimSpace(parsed.ID),
		Name:        strings.TrimSpace(parsed.Name),
		Description: strings.TrimSpace(parsed.Description),
		Triggers:    parsed.Triggers,
		Priority:    parsed.Priority,
		Body:        strings.TrimSpace(body),
		Path:        path,
	}
	if skill.ID == "" {
		skill.ID = strings.TrimSuffix(filepath.Base(path), ".md")
	}
	if err := validate(skill); err != nil {
		return Skill{}, err
	}
	return skill, nil
}

func splitFrontmatter(content string) (string, string, error) {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "---") {
		return "", "", errors.New("missing frontmatter")
	}
	parts := strings.SplitN(trimmed, "---", 3)
	if len(parts) < 3 {
		return "", "", errors.New("invalid frontmatter")
	}
	return strings.TrimSpace(parts[1]), strings.TrimSpace(parts[2]), nil
}

func validate(s Skill) error {
	if s.ID == "" {
		return errors.New("id is required")
	}
	if !namePattern.MatchString(s.ID) {
		return fmt.Errorf("id must match %s", namePattern.String())
	}
	if len(s.ID) > maxNameLen {
		return fmt.Errorf("id exceeds %d characters", maxNameLen)
	}
	if s.Description == "" {
		return errors.New("description is required")
	}
	return nil
}

// normalize lowercases and collapses runs of non-alphanumeric characters
// into single spaces, the same treatment applied to both the user text
// and every string matched against it.
func normalize(s string) string {
	var b strings.Builder
	lastWasSpace := false
	for _, r := range strings.ToLower(s) {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if isAlnum {
			b.WriteRune(r)
			lastWasSpace = false
		} else if !lastWasSpace {
			b.WriteByte(' ')
			lastWasSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Score computes the match score of skill against normalized user text.
func Score(skill Skill, userText string) int {
	normUser := normalize(userText)
	score := 0

	if skill.Name != "" && strings.Contains(normUser, normalize(skill.Name)) {
		score += nameMatchScore
	}

	for _, trigger := range skill.Triggers {
		if trigger == "" {
			continue
		}
		if strings.Contains(normUser, normalize(trigger)) {
			score += triggerHitScore
		}
	}

	for _, word := range strings.Fields(normalize(skill.Description)) {
		if len(word) < minDescWordLen {
			continue
		}
		if strings.Contains(normUser, word) {
			score++
		}
	}

	return score
}

// Match selects the single highest-scoring skill for userText, with ties
// broken by higher priority then lexicographically smaller id. Returns
// ok=false if no skill reaches the minimum selection score.
func (c *Catalogue) Match(userText string) (Skill, bool) {
	var best Skill
	bestScore := -1
	found := false

	for _, id := range c.order {
		skill := c.skills[id]
		score := Score(skill, userText)
		if score < minSelectionScore {
			continue
		}
		if !found || score > bestScore ||
			(score == bestScore && skill.Priority > best.Priority) ||
			(score == bestScore && skill.Priority == best.Priority && skill.ID < best.ID) {
			best = skill
			bestScore = score
			found = true
		}
	}

	return best, found
}

// Get returns the skill with id, or ok=false if unregistered.
func (c *Catalogue) Get(id string) (Skill, bool) {
	s, ok := c.skills[id]
	return s, ok
}

// All returns every loaded skill, ordered by id.
func (c *Catalogue) All() []Skill {
	out := make([]Skill, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.skills[id])
	}
	return out
}

// Summarize renders a compact one-line-per-skill listing for the system
// prompt: "<id>: <description>".
func (c *Catalogue) Summarize() string {
	if len(c.order) == 0 {
		return ""
	}
	var b strings.Builder
	for _, id := range c.order {
		s := c.skills[id]
		fmt.Fprintf(&b, "- %s: %s\n", s.ID, s.Description)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
