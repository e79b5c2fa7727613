// Package window wraps a GLFW window without a client API so Vulkan can
// present to it.
package window

import (
	"fmt"

	"github.com/vulkan-go/glfw/v3.3/glfw"

	"meshspin/internal/config"
	"meshspin/internal/render"
)

// Window is a GLFW window that queues its callbacks as render events.
// GLFW must be initialized, and every method called from the main thread.
type Window struct {
	glw    *glfw.Window
	events eventQueue
}

var _ render.Window = (*Window)(nil)

// New creates a hidden, resizable window of the configured size.
func New(cfg config.Window) (*Window, error) {
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glw, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create window: %w", err)
	}

	w := &Window{glw: glw}
	glw.SetCloseCallback(func(*glfw.Window) {
		w.events.push(render.Event{Kind: render.EventQuit})
	})
	glw.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if ev, ok := keyEvent(key, action); ok {
			w.events.push(ev)
		}
	})
	glw.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.events.push(render.Event{Kind: render.EventResize, Width: width, Height: height})
	})
	return w, nil
}

// GLFW returns the underlying window for surface creation.
func (w *Window) GLFW() *glfw.Window { return w.glw }

func (w *Window) Size() (width, height int) {
	return w.glw.GetFramebufferSize()
}

// PollEvents processes pending window system events and returns what the
// callbacks queued.
func (w *Window) PollEvents() []render.Event {
	glfw.PollEvents()
	if w.glw.ShouldClose() && !w.events.has(render.EventQuit) {
		w.events.push(render.Event{Kind: render.EventQuit})
	}
	return w.events.drain()
}

func (w *Window) Show() { w.glw.Show() }

func (w *Window) Destroy() {
	if w.glw != nil {
		w.glw.Destroy()
		w.glw = nil
	}
}

func keyEvent(key glfw.Key, action glfw.Action) (render.Event, bool) {
	if key == glfw.KeyEscape && action == glfw.Press {
		return render.Event{Kind: render.EventQuit}, true
	}
	return render.Event{}, false
}

type eventQueue struct {
	events []render.Event
}

// push appends ev. Consecutive resizes collapse into the latest one.
func (q *eventQueue) push(ev render.Event) {
	if n := len(q.events); n > 0 && ev.Kind == render.EventResize && q.events[n-1].Kind == render.EventResize {
		q.events[n-1] = ev
		return
	}
	q.events = append(q.events, ev)
}

func (q *eventQueue) has(kind render.EventKind) bool {
	for _, ev := range q.events {
		if ev.Kind == kind {
			return true
		}
	}
	return false
}

func (q *eventQueue) drain() []render.Event {
	out := q.events
	q.events = nil
	return out
}
