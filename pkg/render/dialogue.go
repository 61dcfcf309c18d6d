package render

import (
	"errors"
	"fmt"
	"time"

	"github.com/jwebster45206/scene-engine/pkg/manifest"
	"github.com/jwebster45206/scene-engine/pkg/state"
)

var ErrChoicesPending = errors.New("dialogue is waiting for a choice")

// Dialogue steps through a scene's messages. Messages with a delay advance
// on their own; Advance moves on immediately. When the scene has choices
// they are offered after the last message and Choose finalizes the scene.
type Dialogue struct {
	base
	index       int // Message currently shown
	cancelTimer func()
}

// NewDialogue shows the first message and arms its delay timer.
func NewDialogue(scene *manifest.Scene, cfg Config) *Dialogue {
	d := &Dialogue{base: newBase(scene, cfg)}
	d.mu.Lock()
	d.arm()
	d.mu.Unlock()
	return d
}

// Current returns the message on screen.
func (d *Dialogue) Current() manifest.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.scene.Messages) == 0 {
		return manifest.Message{}
	}
	return d.scene.Messages[d.index]
}

// MessagesSeen counts the messages shown so far, including the current one.
func (d *Dialogue) MessagesSeen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen()
}

func (d *Dialogue) seen() int {
	return min(d.index+1, len(d.scene.Messages))
}

// Choices returns the choices on offer, or nil before the last message.
func (d *Dialogue) Choices() []manifest.Choice {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.atLast() {
		return nil
	}
	return d.scene.Choices
}

func (d *Dialogue) atLast() bool {
	return d.index >= len(d.scene.Messages)-1
}

// Advance moves to the next message. On the last message of a scene without
// choices it completes the scene.
func (d *Dialogue) Advance() error {
	d.mu.Lock()
	if d.done {
		d.mu.Unlock()
		return ErrCompleted
	}
	d.stopTimer()

	if !d.atLast() {
		d.index++
		d.arm()
		d.mu.Unlock()
		return nil
	}
	if len(d.scene.Choices) > 0 {
		d.mu.Unlock()
		return ErrChoicesPending
	}

	seen := d.seen()
	if !d.markDone() {
		d.mu.Unlock()
		return ErrCompleted
	}
	d.mu.Unlock()
	d.emit(state.SceneResults{MessagesSeen: seen})
	return nil
}

// Choose picks a choice after the last message and completes the scene.
func (d *Dialogue) Choose(choiceID string) error {
	d.mu.Lock()
	if d.done {
		d.mu.Unlock()
		return ErrCompleted
	}
	if !d.atLast() {
		d.mu.Unlock()
		return fmt.Errorf("choices are offered after the last message")
	}
	choice, ok := d.scene.Choice(choiceID)
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownOption, choiceID)
	}
	d.stopTimer()

	seen := d.seen()
	if !d.markDone() {
		d.mu.Unlock()
		return ErrCompleted
	}
	d.mu.Unlock()

	d.emit(state.SceneResults{
		MessagesSeen: seen,
		ChoiceID:     choice.ID,
		NextScene:    choice.NextScene,
		Score:        state.IntPtr(max(choice.Points, 0)),
	})
	return nil
}

// arm schedules auto-advance for the current message. Called with mu held.
func (d *Dialogue) arm() {
	if len(d.scene.Messages) == 0 {
		return
	}
	delay := d.scene.Messages[d.index].DelayMs
	if delay <= 0 {
		return
	}
	if d.atLast() && len(d.scene.Choices) > 0 {
		return
	}
	d.cancelTimer = d.cfg.Scope.After(time.Duration(delay)*time.Millisecond, func() {
		if err := d.Advance(); err != nil && !errors.Is(err, ErrCompleted) {
			d.cfg.Logger.Debug("Dialogue auto-advance skipped", "scene_id", d.scene.ID, "error", err)
		}
	})
}

func (d *Dialogue) stopTimer() {
	if d.cancelTimer != nil {
		d.cancelTimer()
		d.cancelTimer = nil
	}
}
