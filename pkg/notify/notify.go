// Package notify delivers rendered reports to chat channels. Each transport
// enforces its own message-size cap; the renderer always hands over the
// full text. Delivery failures are reported to the caller, never retried
// here beyond the HTTP client's own transient-error retries.
package notify

import (
	"context"
	"fmt"
	"strings"
)

type Notifier interface {
	Name() string
	Send(ctx context.Context, text string) error
}

// Truncate cuts text to at most limit runes without splitting a rune.
func Truncate(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

// Multi fans a report out to every transport and aggregates failures. One
// failing transport does not stop the others.
type Multi []Notifier

func (m Multi) Name() string { return "multi" }

func (m Multi) Send(ctx context.Context, text string) error {
	var failed []string
	for _, n := range m {
		if err := n.Send(ctx, text); err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", n.Name(), err))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("notify: %s", strings.Join(failed, "; "))
	}
	return nil
}
