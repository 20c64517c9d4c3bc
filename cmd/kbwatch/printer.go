package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/gosuda/kanbansync/internal/domain"
	"github.com/gosuda/kanbansync/internal/realtime"
	"github.com/gosuda/kanbansync/internal/realtime/event"
	"github.com/gosuda/kanbansync/internal/realtime/presence"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)
)

// describe renders one received event and what the session did with it.
func describe(e event.Event, o realtime.Outcome) string {
	h := e.Header()
	var tag string
	switch o {
	case realtime.OutcomeOverlayApplied:
		tag = green.Sprint("overlay")
	case realtime.OutcomeRefreshTriggered:
		tag = yellow.Sprint("refresh")
	default:
		tag = faint.Sprint(o.String())
	}

	line := fmt.Sprintf("%s %-28s by %s", tag, h.Type, h.UserID)
	if o == realtime.OutcomeOverlayApplied {
		var parts []string
		for _, p := range event.Resolve(e).Patches {
			parts = append(parts, fmt.Sprintf("%s/%s.%s=%v", p.Namespace, p.EntityID, p.Field, p.Value))
		}
		line += " " + cyan.Sprint(strings.Join(parts, " "))
	}
	return line
}

func describePresence(p presence.Presence) string {
	name := p.User.ID
	if p.User.Name != "" {
		name = p.User.Name
	}
	switch {
	case p.DraggingCardID != "":
		return fmt.Sprintf("%s dragging card %s", name, p.DraggingCardID)
	case p.DraggingListID != "":
		return fmt.Sprintf("%s dragging list %s", name, p.DraggingListID)
	case p.EditingCardID != "":
		return fmt.Sprintf("%s editing card %s", name, p.EditingCardID)
	default:
		return name
	}
}

func renderSnapshot(w io.Writer, snap *domain.BoardSnapshot) {
	if snap.Board != nil {
		fmt.Fprintf(w, "%s\n", cyan.Sprint(snap.Board.Title))
	}
	for _, l := range snap.Lists {
		fmt.Fprintf(w, "  %s (%d)\n", l.Title, len(l.Cards))
		for _, c := range l.Cards {
			fmt.Fprintf(w, "    - %s\n", c.Title)
		}
	}
}

func printInfo(format string, a ...any) {
	fmt.Fprintf(os.Stdout, format+"\n", a...)
}

func printWarning(format string, a ...any) {
	yellow.Fprintf(os.Stderr, "warning: "+format+"\n", a...)
}

// printError writes a colored error to stderr and returns a plain error for
// cobra, which is configured not to print it again.
func printError(title, detail string) error {
	red.Fprintf(os.Stderr, "%s\n", title)
	fmt.Fprintf(os.Stderr, "%s\n", detail)
	return errors.New(title)
}
