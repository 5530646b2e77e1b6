package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/kirillkom/prashnly-client/internal/core/domain"
	"github.com/kirillkom/prashnly-client/internal/core/ports"
)

// Notifier prints notices as single lines. It counts error notices so a
// failed command does not print the same problem twice.
type Notifier struct {
	mu     sync.Mutex
	w      io.Writer
	errors int
}

var _ ports.Notifier = (*Notifier)(nil)

func NewNotifier(w io.Writer) *Notifier {
	return &Notifier{w: w}
}

func (n *Notifier) Notify(notice domain.Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if notice.Level == domain.NoticeError {
		n.errors++
		fmt.Fprintf(n.w, "error: %s\n", notice.Message)
		return
	}
	fmt.Fprintln(n.w, notice.Message)
}

func (n *Notifier) Errors() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.errors
}
