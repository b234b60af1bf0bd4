package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/pkg/errors"

	"github.com/beblucech/entry"
	"github.com/beblucech/entry/central"
	"github.com/beblucech/entry/pipeline"
	"github.com/beblucech/entry/room"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed)
	dimColor  = color.New(color.Faint)
)

func outcomeColor(s pipeline.State) *color.Color {
	switch s {
	case pipeline.Success:
		return okColor
	case pipeline.DeviceIssue, pipeline.NetworkIssue:
		return warnColor
	}
	return errColor
}

func outcomeMessage(out pipeline.Outcome, mode pipeline.Mode) string {
	switch out.State {
	case pipeline.Success:
		if mode == pipeline.ModeEnroll {
			return fmt.Sprintf("Member %s add successful", out.Member.Name)
		}
		return fmt.Sprintf("Welcome, %s. ACCESS GRANTED", out.Member.Name)
	case pipeline.Retry, pipeline.Expired:
		return "Please try again. ACCESS DENIED"
	case pipeline.DeviceIssue:
		return "Please contact security guard for assist"
	case pipeline.NetworkIssue:
		return "Network issue, please contact security guard"
	}
	if errors.Is(out.Err, room.ErrDuplicateMember) {
		return fmt.Sprintf("Member %s already granted", out.Member.Name)
	}
	return "Please contact administrator. ACCESS DENIED"
}

func printOutcome(w io.Writer, out pipeline.Outcome, mode pipeline.Mode) {
	outcomeColor(out.State).Fprintln(w, outcomeMessage(out, mode))
	if out.Err != nil {
		dimColor.Fprintf(w, "  %s: %v\n", out.State, out.Err)
	}
}

func printLinkState(w io.Writer, s central.State) {
	c := warnColor
	switch s {
	case central.Ready:
		c = okColor
	case central.Disconnected:
		c = errColor
	}
	c.Fprintf(w, "entry %s\n", s)
}

func printRecord(w io.Writer, rec entry.EntryLogRecord) {
	fmt.Fprintf(w, "%s  %-6s %s\n",
		dimColor.Sprint(rec.Time().Format("2006-01-02 15:04:05")),
		rec.DisplayID(), rec.DisplayName())
}
