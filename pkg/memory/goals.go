package memory

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// GoalStatus is the lifecycle state of a Goal.
type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalPaused    GoalStatus = "paused"
	GoalCancelled GoalStatus = "cancelled"
)

// ProgressSource identifies who produced a Goal's progress note.
type ProgressSource string

const (
	ProgressFromUser      ProgressSource = "user"
	ProgressFromAssistant ProgressSource = "assistant"
	ProgressFromSystem    ProgressSource = "system"
)

const maxGoalTags = 12
const maxGoalProgress = 24
const goalTitleJaccardThreshold = 0.72

// ProgressNote is one timestamped entry in a Goal's progress log.
type ProgressNote struct {
	At     time.Time
	Source ProgressSource
	Note   string
}

// Goal is a persistent mission-state record.
type Goal struct {
	ID        string
	Title     string
	Status    GoalStatus
	CreatedAt time.Time
	UpdatedAt time.Time
	Tags      []string
	Progress  []ProgressNote
}

// goalStore persists goals as a markdown document under goals/goals.md,
// one level-2 heading per goal, parseable by parseGoalsDocument.
type goalStore struct {
	mu     sync.Mutex
	path   string
	nextID int
}

func newGoalStore(path string) *goalStore {
	return &goalStore{path: path}
}

func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(title))), " ")
}

// titlesEquivalent implements §3's goal-identity rule: normalized forms
// equal, one contains the other, or token Jaccard overlap >= 0.72.
func titlesEquivalent(a, b string) bool {
	na, nb := normalizeTitle(a), normalizeTitle(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return true
	}
	return jaccardTokens(na, nb) >= goalTitleJaccardThreshold
}

// Load reads every goal from the document.
func (gs *goalStore) Load() ([]Goal, error) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	return gs.loadLocked()
}

func (gs *goalStore) loadLocked() ([]Goal, error) {
	content, err := readFile(gs.path)
	if err != nil {
		return nil, err
	}
	goals, err := parseGoalsDocument(content)
	if err != nil {
		return nil, err
	}
	for _, g := range goals {
		if n := idSuffixNumber(g.ID); n >= gs.nextID {
			gs.nextID = n + 1
		}
	}
	return goals, nil
}

func idSuffixNumber(id string) int {
	idx := strings.LastIndex(id, "-")
	if idx < 0 {
		return 0
	}
	n := 0
	for _, c := range id[idx+1:] {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}

func (gs *goalStore) saveLocked(goals []Goal) error {
	sort.Slice(goals, func(i, j int) bool { return goals[i].ID < goals[j].ID })
	return atomicWriteFile(gs.path, []byte(serializeGoalsDocument(goals)))
}

// Upsert finds an existing goal whose title is equivalent to title and
// appends a progress note to it; otherwise creates a new active goal
// with an initial progress note.
func (gs *goalStore) Upsert(title string, source ProgressSource, note string, now time.Time) (Goal, error) {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	goals, err := gs.loadLocked()
	if err != nil {
		return Goal{}, err
	}

	for i := range goals {
		if titlesEquivalent(goals[i].Title, title) {
			goals[i].UpdatedAt = now
			goals[i].Status = GoalActive
			appendProgress(&goals[i], source, note, now)
			if err := gs.saveLocked(goals); err != nil {
				return Goal{}, err
			}
			return goals[i], nil
		}
	}

	goal := Goal{
		ID:        fmt.Sprintf("goal-%d", gs.nextID),
		Title:     strings.TrimSpace(title),
		Status:    GoalActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	gs.nextID++
	appendProgress(&goal, source, note, now)
	goals = append(goals, goal)

	if err := gs.saveLocked(goals); err != nil {
		return Goal{}, err
	}
	return goal, nil
}

func appendProgress(g *Goal, source ProgressSource, note string, now time.Time) {
	note = strings.ReplaceAll(strings.TrimSpace(note), "|", "/")
	if note == "" {
		return
	}
	for _, existing := range g.Progress {
		if bulletEquivalent(existing.Note, note) {
			return
		}
	}
	g.Progress = append(g.Progress, ProgressNote{At: now, Source: source, Note: note})
	if len(g.Progress) > maxGoalProgress {
		g.Progress = g.Progress[len(g.Progress)-maxGoalProgress:]
	}
}

// AppendProgress appends a progress note to the goal with the given id,
// returning false if no such goal exists.
func (gs *goalStore) AppendProgress(id string, source ProgressSource, note string, now time.Time) (bool, error) {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	goals, err := gs.loadLocked()
	if err != nil {
		return false, err
	}
	for i := range goals {
		if goals[i].ID == id {
			appendProgress(&goals[i], source, note, now)
			goals[i].UpdatedAt = now
			return true, gs.saveLocked(goals)
		}
	}
	return false, nil
}

// SetStatus updates the status of the goal with the given title
// equivalence match, returning the matched goal if found.
func (gs *goalStore) SetStatusByTitle(title string, status GoalStatus, now time.Time) (Goal, bool, error) {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	goals, err := gs.loadLocked()
	if err != nil {
		return Goal{}, false, err
	}
	for i := range goals {
		if titlesEquivalent(goals[i].Title, title) {
			goals[i].Status = status
			goals[i].UpdatedAt = now
			if err := gs.saveLocked(goals); err != nil {
				return Goal{}, false, err
			}
			return goals[i], true, nil
		}
	}
	return Goal{}, false, nil
}

// MergeTags unions tags onto the goal with the given id, capped at
// maxGoalTags, returning false if no such goal exists.
func (gs *goalStore) MergeTags(id string, tags []string, now time.Time) (bool, error) {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	goals, err := gs.loadLocked()
	if err != nil {
		return false, err
	}
	for i := range goals {
		if goals[i].ID != id {
			continue
		}
		seen := map[string]bool{}
		merged := append([]string{}, goals[i].Tags...)
		for _, t := range merged {
			seen[t] = true
		}
		for _, t := range tags {
			if !seen[t] {
				merged = append(merged, t)
				seen[t] = true
			}
		}
		if len(merged) > maxGoalTags {
			merged = merged[:maxGoalTags]
		}
		goals[i].Tags = merged
		goals[i].UpdatedAt = now
		return true, gs.saveLocked(goals)
	}
	return false, nil
}

// CountsByStatus returns the number of goals in each status.
func (gs *goalStore) CountsByStatus() (map[GoalStatus]int, error) {
	goals, err := gs.Load()
	if err != nil {
		return nil, err
	}
	counts := map[GoalStatus]int{}
	for _, g := range goals {
		counts[g.Status]++
	}
	return counts, nil
}
