package main

import (
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/wirechat-client/internal/chatview"
	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/inbox"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	senderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	selfStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)
)

// renderer prints view changes as an append-only transcript. Messages are
// shown once history settled; later arrivals are printed as they come.
type renderer struct {
	mu      sync.Mutex
	out     io.Writer
	self    string
	key     core.ConversationKey
	loading bool
	printed map[int64]struct{}
}

func newRenderer(out io.Writer, self string) *renderer {
	return &renderer{out: out, self: self, printed: make(map[int64]struct{})}
}

// ViewChanged implements chatview.Observer.
func (r *renderer) ViewChanged(v chatview.View) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !v.Active {
		if r.key != (core.ConversationKey{}) {
			fmt.Fprintln(r.out, headerStyle.Render("-- closed "+r.key.String()+" --"))
		}
		r.key = core.ConversationKey{}
		r.loading = false
		clear(r.printed)
		return
	}

	if v.Key != r.key || (v.Loading && !r.loading) {
		r.key = v.Key
		clear(r.printed)
		fmt.Fprintln(r.out, headerStyle.Render("-- "+v.Key.String()+" --"))
	}
	r.loading = v.Loading
	if v.Loading {
		return
	}

	// View order is newest first; the transcript is oldest first.
	for _, m := range slices.Backward(v.Messages) {
		if _, ok := r.printed[m.ID]; ok {
			continue
		}
		r.printed[m.ID] = struct{}{}
		fmt.Fprintln(r.out, r.line(m))
	}
}

// HistoryFailed implements chatview.Observer.
func (r *renderer) HistoryFailed(key core.ConversationKey, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, errorStyle.Render(fmt.Sprintf("history for %s unavailable: %v", key, err)))
}

func (r *renderer) line(m core.Message) string {
	style := senderStyle
	if m.Sender == r.self {
		style = selfStyle
	}
	return fmt.Sprintf("%s %s %s",
		timeStyle.Render(m.SentAt.Local().Format("15:04")),
		style.Render(m.Sender+":"),
		m.Body,
	)
}

func (r *renderer) notice(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, timeStyle.Render(msg))
}

func (r *renderer) unread(counts []inbox.Unread) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(counts) == 0 {
		fmt.Fprintln(r.out, timeStyle.Render("no unread messages"))
		return
	}
	for _, u := range counts {
		fmt.Fprintf(r.out, "%s %s  %s: %s\n",
			countStyle.Render(fmt.Sprintf("%3d", u.Count)),
			headerStyle.Render(u.Key.String()),
			u.LastSender,
			u.LastBody,
		)
	}
}
