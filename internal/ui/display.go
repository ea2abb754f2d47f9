package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"

	"github.com/haricheung/hadron/internal/types"
)

// ANSI codes
const (
	ansiReset   = "\033[0m"
	ansiBold    = "\033[1m"
	ansiDim     = "\033[2m"
	ansiCyan    = "\033[36m"
	ansiYellow  = "\033[33m"
	ansiGreen   = "\033[32m"
	ansiRed     = "\033[31m"
	ansiMagenta = "\033[35m"
)

var eventEmoji = map[types.MessageType]string{
	types.MsgHadronCreated: "✨",
	types.MsgHadronRefused: "🚫",
	types.MsgReinforced:    "🔁",
	types.MsgBlackHoles:    "🕳 ",
	types.MsgCollapse:      "🎯",
	types.MsgInput:         "📝",
}

var eventColor = map[types.MessageType]string{
	types.MsgHadronCreated: ansiGreen,
	types.MsgHadronRefused: ansiRed,
	types.MsgReinforced:    ansiCyan,
	types.MsgBlackHoles:    ansiMagenta,
	types.MsgCollapse:      ansiYellow,
	types.MsgInput:         ansiDim,
}

// colorEnabled reports whether w is a terminal that should get ANSI codes.
func colorEnabled(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Feed prints engine events as they arrive, one line each.
// All writes happen on the Run goroutine.
type Feed struct {
	in    <-chan types.Message
	w     io.Writer
	color bool
}

// NewFeed creates a Feed reading from in and writing to w. Color is enabled
// only when w is a terminal.
func NewFeed(in <-chan types.Message, w io.Writer) *Feed {
	return &Feed{in: in, w: w, color: colorEnabled(w)}
}

// WithColor forces color on or off.
func (f *Feed) WithColor(on bool) *Feed {
	f.color = on
	return f
}

// Run prints until ctx is cancelled or the channel closes.
func (f *Feed) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-f.in:
			if !ok {
				return
			}
			if line := f.line(msg); line != "" {
				fmt.Fprintln(f.w, line)
			}
		}
	}
}

// line renders msg, or "" for messages the feed does not show.
func (f *Feed) line(msg types.Message) string {
	det := eventDetail(msg)
	if det == "" {
		return ""
	}
	emoji, ok := eventEmoji[msg.Type]
	if !ok {
		emoji = "•"
	}
	label := string(msg.Type)
	if !f.color {
		return fmt.Sprintf("  %s [%s] %s", emoji, label, det)
	}
	color := eventColor[msg.Type]
	if color == "" {
		color = ansiDim
	}
	return fmt.Sprintf("  %s [%s%s%s] %s%s%s", emoji, color, label, ansiReset, ansiDim, det, ansiReset)
}

func eventDetail(msg types.Message) string {
	switch msg.Type {
	case types.MsgHadronCreated, types.MsgReinforced:
		var ev types.HadronEvent
		if remarshal(msg.Payload, &ev) != nil {
			return ""
		}
		subject := ev.Origin
		if ev.Token != "" {
			subject = fmt.Sprintf("%q", clip(ev.Token, 24))
		}
		return fmt.Sprintf("%s %s %s p=%.2f", shortID(ev.HadronID), subject, ev.Quark, ev.Persistence)
	case types.MsgHadronRefused:
		var ev types.HadronEvent
		if remarshal(msg.Payload, &ev) != nil {
			return ""
		}
		subject := ev.Origin
		if ev.Token != "" {
			subject = fmt.Sprintf("%q", clip(ev.Token, 24))
		}
		return fmt.Sprintf("%s refused: %s (area=%.2f coherence=%.2f)", subject, ev.Reason, ev.Area, ev.Coherence)
	case types.MsgBlackHoles:
		var ev types.BlackHoleEvent
		if remarshal(msg.Payload, &ev) != nil {
			return ""
		}
		n := len(ev.Regions)
		if n == 1 {
			return fmt.Sprintf("cycle %d — 1 region", ev.Cycle)
		}
		return fmt.Sprintf("cycle %d — %d regions", ev.Cycle, n)
	}
	return ""
}

// shortID returns the first 8 characters of a hadron ID.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// clip truncates s to at most n display cells, appending "…" if trimmed.
func clip(s string, n int) string {
	return runewidth.Truncate(s, n, "…")
}

func remarshal(src, dst any) error {
	b, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}
