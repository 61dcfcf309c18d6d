package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jwebster45206/scene-engine/pkg/manifest"
	"github.com/jwebster45206/scene-engine/pkg/playhost"
	"github.com/jwebster45206/scene-engine/pkg/render"
	"github.com/jwebster45206/scene-engine/pkg/state"
)

const refreshInterval = 200 * time.Millisecond

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	player       *Player
	mainViewport viewport.Model
	metaViewport viewport.Model
	ready        bool
	width        int
	height       int
	status       string
	err          error

	// Per-scene interaction state, reset whenever a new scene is mounted
	question int // Assessment question on screen
	resource int // Opened resource, -1 for none

	// Quit confirmation state
	showQuitModal bool

	// Progress bar state, animated during quiz feedback
	progressTick int
}

type sceneCompletedMsg struct {
	results state.SceneResults
}

type refreshMsg struct{}

type clipboardMsg struct {
	err error
}

var (
	mainPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	speakerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	correctStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

func NewConsoleUI(player *Player) ConsoleUI {
	mainVp := viewport.New(50, 20)
	mainVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	return ConsoleUI{
		player:       player,
		mainViewport: mainVp,
		metaViewport: metaVp,
		resource:     -1,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return tea.Batch(waitForCompletion(m.player.Completions()), refresh())
}

// waitForCompletion turns the next renderer completion into a message.
func waitForCompletion(ch <-chan state.SceneResults) tea.Cmd {
	return func() tea.Msg {
		return sceneCompletedMsg{results: <-ch}
	}
}

// refresh redraws periodically so timer-driven changes (dialogue
// auto-advance, quiz feedback) show up.
func refresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return refreshMsg{}
	})
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		mainWidth := int(float64(m.width)*0.75) - 4
		metaWidth := m.width - mainWidth - 6

		m.mainViewport.Width = mainWidth - 2
		m.mainViewport.Height = m.height - 6
		m.metaViewport.Width = metaWidth - 2
		m.metaViewport.Height = m.height - 4
		m.ready = true
		m.writeContent()

	case sceneCompletedMsg:
		before := m.sceneID()
		if err := m.player.Complete(msg.results); err != nil {
			m.err = err
		} else {
			m.err = nil
		}
		if m.sceneID() != before || m.player.LastStep().Kind == playhost.StepRetry {
			m.question = 0
			m.resource = -1
		}
		if step := m.player.LastStep(); step.Kind == playhost.StepRetry {
			m.status = fmt.Sprintf("Not quite. Try again (%d attempts left).", step.AttemptsLeft)
		}
		m.writeContent()
		return m, waitForCompletion(m.player.Completions())

	case refreshMsg:
		m.progressTick++
		m.writeContent()
		return m, refresh()

	case clipboardMsg:
		if msg.err != nil {
			m.status = "Could not copy results: " + msg.err.Error()
		} else {
			m.status = "Results copied to the clipboard."
		}
		m.writeContent()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		}
		if cmd, handled := m.handleKey(msg.String()); handled {
			m.writeContent()
			return m, cmd
		}
	}

	m.mainViewport, vpCmd = m.mainViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)
	return m, tea.Batch(vpCmd, mvCmd)
}

func (m *ConsoleUI) sceneID() string {
	if r := m.player.Renderer(); r != nil {
		return r.Scene().ID
	}
	return ""
}

// handleKey applies a key press to the active renderer. It reports whether
// the key was consumed.
func (m *ConsoleUI) handleKey(key string) (tea.Cmd, bool) {
	m.status = ""

	if key == "c" {
		if _, ok := m.player.Results(); ok {
			return m.copyResults(), true
		}
	}

	if m.player.Finished() || m.player.Renderer() == nil {
		switch key {
		case "r":
			m.restart()
			return nil, true
		case "q", "enter":
			return tea.Quit, true
		}
		return nil, false
	}

	var err error
	switch r := m.player.Renderer().(type) {
	case *render.Dialogue:
		err = m.dialogueKey(r, key)
	case *render.Quiz:
		err = m.quizKey(r, key)
	case *render.Assessment:
		err = m.assessmentKey(r, key)
	case *render.Resource:
		err = m.resourceKey(r, key)
	case *render.Summary:
		if key == "enter" {
			err = r.Close()
		}
	case *render.Fallback:
		switch key {
		case "r":
			m.restart()
		case "enter":
			err = m.player.Abort(r.Err().Error())
		}
	default:
		return nil, false
	}
	if err != nil {
		m.status = err.Error()
	}
	return nil, true
}

func (m *ConsoleUI) dialogueKey(d *render.Dialogue, key string) error {
	if key == "enter" || key == " " {
		return d.Advance()
	}
	if i, ok := digit(key); ok {
		choices := d.Choices()
		if i < len(choices) {
			return d.Choose(choices[i].ID)
		}
	}
	return nil
}

func (m *ConsoleUI) quizKey(q *render.Quiz, key string) error {
	if key == "enter" {
		if q.Submitted() {
			return q.Continue()
		}
		_, err := q.Submit()
		return err
	}
	if i, ok := digit(key); ok && i < len(q.Scene().Options) {
		return q.Toggle(q.Scene().Options[i].ID)
	}
	return nil
}

func (m *ConsoleUI) assessmentKey(a *render.Assessment, key string) error {
	items := assessmentItems(a.Scene())
	switch key {
	case "left", "h":
		if m.question > 0 {
			m.question--
		}
	case "right", "l":
		if m.question < len(items)-1 {
			m.question++
		}
	case "enter":
		_, err := a.Finish()
		return err
	default:
		i, ok := digit(key)
		if !ok || m.question >= len(items) {
			return nil
		}
		q := items[m.question].question
		if i >= len(q.Options) {
			return nil
		}
		if err := a.Answer(q.ID, q.Options[i].ID); err != nil {
			return err
		}
		if m.question < len(items)-1 {
			m.question++
		}
	}
	return nil
}

func (m *ConsoleUI) resourceKey(r *render.Resource, key string) error {
	if key == "enter" {
		return r.Acknowledge()
	}
	if i, ok := digit(key); ok {
		if _, err := r.Open(i); err != nil {
			return err
		}
		m.resource = i
	}
	return nil
}

func (m *ConsoleUI) restart() {
	m.question = 0
	m.resource = -1
	if err := m.player.Start(); err != nil {
		m.err = err
		return
	}
	m.err = nil
	m.status = "Game restarted."
}

func (m ConsoleUI) copyResults() tea.Cmd {
	data, err := m.player.ResultsJSON()
	return func() tea.Msg {
		if err != nil {
			return clipboardMsg{err: err}
		}
		return clipboardMsg{err: clipboard.WriteAll(string(data))}
	}
}

// digit maps "1".."9" to a zero-based index.
func digit(key string) (int, bool) {
	if len(key) != 1 || key[0] < '1' || key[0] > '9' {
		return 0, false
	}
	return int(key[0] - '1'), true
}

type assessmentItem struct {
	category string
	question manifest.AssessmentQuestion
}

func assessmentItems(s *manifest.Scene) []assessmentItem {
	var items []assessmentItem
	for _, c := range s.Categories {
		for _, q := range c.Questions {
			items = append(items, assessmentItem{category: c.Title, question: q})
		}
	}
	return items
}

// writeContent rebuilds both panels for the current viewport width.
func (m *ConsoleUI) writeContent() {
	if !m.ready {
		return
	}
	width := m.mainViewport.Width - 6 // Account for left(3) + right(3) padding
	if width < 20 {
		width = 20
	}

	var content strings.Builder
	title := m.player.manifest.Metadata.Title
	if title == "" {
		title = m.player.manifest.GameID
	}
	content.WriteString(titleStyle.Render(strings.ToUpper(title)) + "\n\n")

	switch {
	case m.player.Finished() || m.player.Renderer() == nil:
		content.WriteString(m.finishedContent(width))
	default:
		content.WriteString(m.sceneContent(width))
	}

	if m.err != nil {
		content.WriteString("\n" + errorStyle.Render(wordwrap.String("Error: "+m.err.Error(), width)) + "\n")
	}
	if m.status != "" {
		content.WriteString("\n" + loadingStyle.Render(wordwrap.String(m.status, width)) + "\n")
	}

	m.mainViewport.SetContent(content.String())
	m.metaViewport.SetContent(m.metadata())
}

func (m *ConsoleUI) sceneContent(width int) string {
	var b strings.Builder
	r := m.player.Renderer()
	scene := r.Scene()
	if scene.Title != "" {
		b.WriteString(speakerStyle.Render(scene.Title) + "\n\n")
	}

	switch r := r.(type) {
	case *render.Dialogue:
		msg := r.Current()
		if msg.Speaker != "" {
			b.WriteString(speakerStyle.Render(msg.Speaker+":") + " ")
		}
		b.WriteString(wordwrap.String(msg.Text, width) + "\n\n")
		b.WriteString(promptStyle.Render(fmt.Sprintf("Message %d of %d", r.MessagesSeen(), len(scene.Messages))) + "\n\n")
		if choices := r.Choices(); len(choices) > 0 {
			for i, c := range choices {
				fmt.Fprintf(&b, "  %d) %s\n", i+1, wordwrap.String(c.Text, width-5))
			}
			b.WriteString("\n" + promptStyle.Render("Press a number to choose"))
		} else {
			b.WriteString(promptStyle.Render("Enter: continue"))
		}

	case *render.Quiz:
		b.WriteString(wordwrap.String(scene.Question, width) + "\n\n")
		selected := make(map[string]bool)
		for _, id := range r.Selected() {
			selected[id] = true
		}
		result, submitted := r.Result()
		verdicts := make(map[string]string)
		for _, v := range result.Feedback {
			verdicts[v.OptionID] = v.Feedback
		}
		for i, o := range scene.Options {
			mark := "[ ]"
			if selected[o.ID] {
				mark = "[x]"
			}
			line := fmt.Sprintf("  %d) %s %s", i+1, mark, o.Text)
			switch {
			case submitted && o.IsCorrect:
				line = correctStyle.Render(line)
			case selected[o.ID]:
				line = selectedStyle.Render(line)
			}
			b.WriteString(line + "\n")
			if submitted && verdicts[o.ID] != "" && (selected[o.ID] || o.IsCorrect) {
				b.WriteString(promptStyle.Render(wordwrap.String("       "+verdicts[o.ID], width)) + "\n")
			}
		}
		b.WriteString("\n")
		if submitted {
			if result.Correct {
				b.WriteString(correctStyle.Render("Correct!") + "\n\n")
			} else {
				b.WriteString(errorStyle.Render("Incorrect.") + "\n\n")
			}
			if !r.Done() {
				b.WriteString(m.renderProgressBar(width) + "\n")
			}
			b.WriteString(promptStyle.Render("Enter: continue"))
		} else {
			hint := "Number: select an option, Enter: submit"
			if scene.AllowMultiple {
				hint = "Numbers: toggle options, Enter: submit"
			}
			b.WriteString(promptStyle.Render(fmt.Sprintf("Attempt %d of %d. %s", r.Attempt(), scene.Attempts(), hint)))
		}

	case *render.Assessment:
		items := assessmentItems(scene)
		if m.question < len(items) {
			item := items[m.question]
			b.WriteString(promptStyle.Render(fmt.Sprintf("%s · question %d of %d", item.category, m.question+1, len(items))) + "\n\n")
			b.WriteString(wordwrap.String(item.question.Text, width) + "\n\n")
			chosen, _ := r.Answered(item.question.ID)
			for i, o := range item.question.Options {
				line := fmt.Sprintf("  %d) %s", i+1, o.Text)
				if o.ID == chosen {
					line = selectedStyle.Render("▶" + line[1:])
				}
				b.WriteString(line + "\n")
			}
		}
		b.WriteString("\n" + promptStyle.Render(fmt.Sprintf("%d unanswered. Number: answer, ←/→: move, Enter: finish", r.Remaining())))

	case *render.Resource:
		if scene.Body != "" {
			b.WriteString(wordwrap.String(scene.Body, width) + "\n\n")
		}
		for i, res := range scene.Resources {
			fmt.Fprintf(&b, "  %d) %s\n", i+1, res.Title)
		}
		if m.resource >= 0 && m.resource < len(scene.Resources) {
			res := scene.Resources[m.resource]
			b.WriteString("\n" + speakerStyle.Render(res.Title) + "\n")
			if res.URL != "" {
				b.WriteString(selectedStyle.Render(res.URL) + "\n")
			}
			if res.Body != "" {
				b.WriteString(wordwrap.String(res.Body, width) + "\n")
			}
		}
		b.WriteString("\n" + promptStyle.Render("Number: open a resource, Enter: continue"))

	case *render.Summary:
		b.WriteString(wordwrap.String(r.View().String(), width) + "\n")
		b.WriteString(promptStyle.Render("c: copy results, Enter: close"))

	case *render.Fallback:
		b.WriteString(errorStyle.Render(wordwrap.String(r.Message(), width)) + "\n\n")
		b.WriteString(promptStyle.Render("r: restart, Enter: leave the game"))
	}
	return b.String()
}

func (m *ConsoleUI) finishedContent(width int) string {
	var b strings.Builder
	if res, ok := m.player.Results(); ok {
		b.WriteString(correctStyle.Render("Game complete") + "\n\n")
		fmt.Fprintf(&b, "Score: %d / %d (%.0f%%)\n", res.Score, res.TotalScore, res.Percentage)
		fmt.Fprintf(&b, "Time: %s\n", (time.Duration(res.TimeSpent) * time.Millisecond).Round(time.Second))
		fmt.Fprintf(&b, "Scenes completed: %d\n", len(res.ScenesCompleted))
		for _, a := range res.Achievements {
			b.WriteString("  ★ " + a.Title + "\n")
		}
		b.WriteString("\n" + promptStyle.Render("c: copy results, r: play again, q: quit"))
		return b.String()
	}

	if s := m.player.State(); s != nil && s.Status == state.StatusFailed {
		b.WriteString(errorStyle.Render("The game ended early.") + "\n\n")
		if s.FailureReason != "" {
			b.WriteString(wordwrap.String(s.FailureReason, width) + "\n")
		}
	}
	b.WriteString("\n" + promptStyle.Render("r: restart, q: quit"))
	return b.String()
}

func (m *ConsoleUI) metadata() string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("SESSION") + "\n\n")

	s := m.player.State()
	if s == nil {
		content.WriteString("Not started\n")
		return content.String()
	}

	content.WriteString("Session ID:\n")
	content.WriteString(s.ID.String()[:8] + "...\n\n")
	content.WriteString("Status:\n")
	content.WriteString(string(s.Status) + "\n\n")
	content.WriteString("Scene:\n")
	content.WriteString(s.CurrentSceneID + "\n\n")
	content.WriteString("Score:\n")
	content.WriteString(fmt.Sprintf("%d / %d\n\n", s.Score, s.MaxScore))
	content.WriteString("Completed:\n")
	content.WriteString(fmt.Sprintf("%d scenes\n\n", len(s.ScenesCompleted)))

	if events := m.player.Events(); len(events) > 0 {
		content.WriteString("Events:\n")
		for _, e := range events {
			content.WriteString("• " + e + "\n")
		}
		content.WriteString("\n")
	}

	content.WriteString("Commands:\n")
	content.WriteString("• Ctrl+C: Quit\n")
	content.WriteString("• Enter: Continue\n")
	content.WriteString("• 1-9: Choose\n")
	return content.String()
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case sceneCompletedMsg:
		// Keep draining while the modal is open
		if err := m.player.Complete(msg.results); err != nil {
			m.err = err
		}
		return m, waitForCompletion(m.player.Completions())

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				m.writeContent()
				return m, refresh()
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit Game?"))
	content.WriteString("\n\n")
	content.WriteString("Your progress in this session will be lost.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	mainWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - mainWidth - 6

	mainPanel := mainPanelStyle.Width(mainWidth).Height(m.height - 3).Render(
		m.mainViewport.View(),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, mainPanel, metaPanel)
}

// renderProgressBar animates the quiz feedback pause.
func (m ConsoleUI) renderProgressBar(usable int) string {
	// Clamp bar width to a sensible range
	if usable > 80 {
		usable = 80
	} else if usable < 10 {
		usable = 10
	}

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		if i < filled {
			bar.WriteString("█")
		} else if i == filled && frame%4 < 2 {
			bar.WriteString("▓") // Blinking effect at the progress point
		} else {
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}
