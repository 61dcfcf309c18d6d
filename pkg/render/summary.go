package render

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jwebster45206/scene-engine/pkg/manifest"
	"github.com/jwebster45206/scene-engine/pkg/state"
)

// Summary presents the aggregate results of a finished session. The session
// is already complete when a summary is shown; Close reports that the
// learner dismissed it.
type Summary struct {
	base
	caser cases.Caser
}

// SummaryView is the display model of a summary scene.
type SummaryView struct {
	Title        string
	Score        int
	TotalScore   int
	Percentage   float64
	TimeSpent    time.Duration
	Scenes       int
	Achievements []string
}

func NewSummary(scene *manifest.Scene, cfg Config) *Summary {
	tag := language.English
	if cfg.Language != "" {
		if t, err := language.Parse(cfg.Language); err == nil {
			tag = t
		}
	}
	return &Summary{base: newBase(scene, cfg), caser: cases.Title(tag)}
}

// View builds the display model. Titles are cased for the manifest's language.
func (s *Summary) View() SummaryView {
	title := s.scene.Title
	if title == "" {
		title = "results"
	}
	v := SummaryView{Title: s.caser.String(title)}

	res := s.cfg.Results
	if res == nil {
		return v
	}
	v.Score = res.Score
	v.TotalScore = res.TotalScore
	v.Percentage = res.Percentage
	v.TimeSpent = time.Duration(res.TimeSpent) * time.Millisecond
	v.Scenes = len(res.ScenesCompleted)
	for _, a := range res.Achievements {
		v.Achievements = append(v.Achievements, s.caser.String(a.Title))
	}
	return v
}

// String renders the view as plain text.
func (v SummaryView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", v.Title)
	fmt.Fprintf(&b, "Score: %d / %d (%.0f%%)\n", v.Score, v.TotalScore, v.Percentage)
	fmt.Fprintf(&b, "Time: %s\n", v.TimeSpent.Round(time.Second))
	fmt.Fprintf(&b, "Scenes completed: %d\n", v.Scenes)
	for _, a := range v.Achievements {
		fmt.Fprintf(&b, "* %s\n", a)
	}
	return b.String()
}

// Close completes the visit.
func (s *Summary) Close() error {
	s.mu.Lock()
	if !s.markDone() {
		s.mu.Unlock()
		return ErrCompleted
	}
	s.mu.Unlock()
	s.emit(state.SceneResults{})
	return nil
}
