package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/mesh-intelligence/magsav/pkg/types"
)

// terminalNotifier prints notices, one per line. Notices may arrive from
// background saves.
type terminalNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

func newTerminalNotifier(w io.Writer) *terminalNotifier {
	return &terminalNotifier{w: w}
}

func (n *terminalNotifier) Notify(notice types.Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.w, "%s: %s: %s\n", notice.Level, notice.Title, notice.Message)
}

// terminalConfirmer asks on out and reads the answer from in. With
// assumeYes set it approves without asking.
type terminalConfirmer struct {
	in        *bufio.Reader
	out       io.Writer
	assumeYes bool
}

func newTerminalConfirmer(in io.Reader, out io.Writer, assumeYes bool) *terminalConfirmer {
	return &terminalConfirmer{in: bufio.NewReader(in), out: out, assumeYes: assumeYes}
}

func (c *terminalConfirmer) Confirm(ctx context.Context, req types.ConfirmRequest) (bool, error) {
	if c.assumeYes {
		return true, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fmt.Fprintf(c.out, "%s [y/N] ", req.Message)
	line, err := c.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "o", "oui":
		return true, nil
	}
	return false, nil
}
