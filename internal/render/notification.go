package render

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/mishka20003-proger/live-sales-notifications/internal/feed"
	"github.com/mishka20003-proger/live-sales-notifications/internal/settings"
)

const genericBuyer = "Someone"

// Notification is the rendered payload for one purchase event. Text fields
// are plain; HTML carries the same content escaped into markup.
type Notification struct {
	ID     string
	Header string
	Body   string
	Price  string
	Age    string
	HTML   string
}

// Footer joins price and age into the trailing line.
func (n Notification) Footer() string {
	switch {
	case n.Price != "" && n.Age != "":
		return n.Price + " · " + n.Age
	case n.Price != "":
		return n.Price
	default:
		return n.Age
	}
}

// Lines returns the non-empty text lines in display order.
func (n Notification) Lines() []string {
	out := []string{n.Header}
	if n.Body != "" {
		out = append(out, n.Body)
	}
	if f := n.Footer(); f != "" {
		out = append(out, f)
	}
	return out
}

func Build(ev feed.PurchaseEvent, flags settings.DisplayFlags, now time.Time) Notification {
	n := Notification{ID: ev.ID}

	buyer := genericBuyer
	if flags.CustomerName {
		buyer = ev.DisplayName(genericBuyer)
	}
	n.Header = buyer + " just purchased"

	switch {
	case strings.TrimSpace(ev.ProductName) != "":
		n.Body = strings.TrimSpace(ev.ProductName)
	case flags.OrderNumber && ev.OrderNumber != "":
		n.Body = "Order " + ev.OrderNumber
	}

	if flags.TotalPrice {
		n.Price = strings.TrimSpace(ev.TotalPrice.String() + " " + ev.Currency)
	}
	if !ev.CreatedAt.IsZero() {
		n.Age = Age(ev.CreatedAt, now)
	}
	n.HTML = markup(n)
	return n
}

// Age renders how long ago t was, relative to now.
func Age(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d/time.Minute), "minute")
	case d < 24*time.Hour:
		return plural(int(d/time.Hour), "hour")
	default:
		return plural(int(d/(24*time.Hour)), "day")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

func markup(n Notification) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<div class="sales-popup" data-id="%s">`, html.EscapeString(n.ID))
	fmt.Fprintf(&b, `<div class="sales-popup__header">%s</div>`, html.EscapeString(n.Header))
	if n.Body != "" {
		fmt.Fprintf(&b, `<div class="sales-popup__body">%s</div>`, html.EscapeString(n.Body))
	}
	if n.Price != "" || n.Age != "" {
		b.WriteString(`<div class="sales-popup__meta">`)
		if n.Price != "" {
			fmt.Fprintf(&b, `<span class="sales-popup__price">%s</span>`, html.EscapeString(n.Price))
		}
		if n.Age != "" {
			fmt.Fprintf(&b, `<span class="sales-popup__age">%s</span>`, html.EscapeString(n.Age))
		}
		b.WriteString(`</div>`)
	}
	b.WriteString(`<button class="sales-popup__close" aria-label="Close">&times;</button></div>`)
	return b.String()
}

// telegramText is the HTML-mode message body for chat mirrors.
func telegramText(n Notification) string {
	var b strings.Builder
	b.WriteString("<b>" + html.EscapeString(n.Header) + "</b>")
	if n.Body != "" {
		b.WriteString("\n" + html.EscapeString(n.Body))
	}
	if f := n.Footer(); f != "" {
		b.WriteString("\n<i>" + html.EscapeString(f) + "</i>")
	}
	return b.String()
}
