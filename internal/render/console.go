package render

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mishka20003-proger/live-sales-notifications/internal/feed"
	"github.com/mishka20003-proger/live-sales-notifications/internal/settings"
)

const (
	toastWidthSmall  = 32
	toastWidthMedium = 42
	toastWidthLarge  = 54
)

var (
	toastStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("42")).
			Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Bold(true)
	footerStyle = lipgloss.NewStyle().Faint(true)
	noteStyle   = lipgloss.NewStyle().Faint(true).Italic(true)
)

// Console draws notifications as toast boxes on a terminal, placed
// horizontally according to the configured position.
type Console struct {
	mu      sync.Mutex
	w       io.Writer
	columns int
	now     func() time.Time

	pos     settings.Position
	size    settings.Size
	visible string
}

// NewConsole writes toasts to w, laid out for a terminal columns wide.
func NewConsole(w io.Writer, columns int, now func() time.Time) *Console {
	if columns <= 0 {
		columns = 80
	}
	if now == nil {
		now = time.Now
	}
	return &Console{w: w, columns: columns, now: now, pos: settings.BottomLeft, size: settings.Medium}
}

// SetColumns updates the terminal width used for placement.
func (c *Console) SetColumns(n int) {
	if n <= 0 {
		return
	}
	c.mu.Lock()
	c.columns = n
	c.mu.Unlock()
}

func (c *Console) Show(ev feed.PurchaseEvent, flags settings.DisplayFlags) {
	n := Build(ev, flags, c.now())

	c.mu.Lock()
	defer c.mu.Unlock()
	c.visible = n.ID
	fmt.Fprintln(c.w, c.place(c.box(n)))
}

func (c *Console) Hide(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id == "" || id != c.visible {
		return
	}
	c.visible = ""
	fmt.Fprintln(c.w, c.place(noteStyle.Render("dismissed")))
}

func (c *Console) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.visible == "" {
		return
	}
	c.visible = ""
	fmt.Fprintln(c.w, c.place(noteStyle.Render("cleared")))
}

func (c *Console) Classify(pos settings.Position, size settings.Size) {
	c.mu.Lock()
	c.pos, c.size = pos, size
	c.mu.Unlock()
}

func (c *Console) box(n Notification) string {
	lines := []string{headerStyle.Render(n.Header)}
	if n.Body != "" {
		lines = append(lines, n.Body)
	}
	if f := n.Footer(); f != "" {
		lines = append(lines, footerStyle.Render(f))
	}
	return toastStyle.Width(toastWidth(c.size)).Render(strings.Join(lines, "\n"))
}

func (c *Console) place(s string) string {
	return lipgloss.PlaceHorizontal(c.columns, alignment(c.pos), s)
}

func toastWidth(size settings.Size) int {
	switch size {
	case settings.Small:
		return toastWidthSmall
	case settings.Large:
		return toastWidthLarge
	default:
		return toastWidthMedium
	}
}

func alignment(pos settings.Position) lipgloss.Position {
	switch pos {
	case settings.BottomRight:
		return lipgloss.Right
	case settings.TopCenter:
		return lipgloss.Center
	default:
		return lipgloss.Left
	}
}
