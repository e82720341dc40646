// Package commands implements the sta-log CLI commands.
package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/stamgmt/stamgmt-go/pkg/log"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	SessionID string
	Station   string
	Layer     *log.Layer
	Direction *log.Direction
	Category  *log.Category
}

func (f ViewFilter) toFilter() log.Filter {
	return log.Filter{
		SessionID: f.SessionID,
		Station:   f.Station,
		Layer:     f.Layer,
		Direction: f.Direction,
		Category:  f.Category,
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [sess:id] DIRECTION LAYER Type
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	sess := shortenSessionID(event.SessionID)

	var typeLabel string
	switch {
	case event.Frame != nil:
		typeLabel = "Frame"
	case event.Primitive != nil:
		typeLabel = event.Primitive.Kind.String() + " " + event.Primitive.Type.String()
	case event.StateChange != nil:
		typeLabel = "State"
	case event.Notification != nil:
		typeLabel = event.Notification.Type.String()
	case event.Error != nil:
		typeLabel = "Error"
	default:
		typeLabel = "Unknown"
	}

	fmt.Fprintf(w, "%s [sess:%s] %-3s %s %s\n", ts, sess, event.Direction.String(), event.Layer.String(), typeLabel)

	switch {
	case event.Frame != nil:
		formatFrameDetails(w, event.Frame)
	case event.Primitive != nil:
		formatPrimitiveDetails(w, event.Primitive)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Notification != nil:
		if event.Notification.Detail != "" {
			fmt.Fprintf(w, "  Detail: %s\n", event.Notification.Detail)
		}
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

// shortenSessionID returns the first 8 characters of the session ID.
func shortenSessionID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatFrameDetails(w io.Writer, frame *log.FrameEvent) {
	fmt.Fprintf(w, "  Size: %d bytes\n", frame.Size)
	if len(frame.Data) > 0 {
		fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(frame.Data))
		if frame.Truncated {
			fmt.Fprintf(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

func formatPrimitiveDetails(w io.Writer, p *log.PrimitiveEvent) {
	fmt.Fprintf(w, "  Seq: %d", p.Seq)
	if p.Stale {
		fmt.Fprint(w, " (stale)")
	}
	fmt.Fprintln(w)
	if p.Address != "" {
		fmt.Fprintf(w, "  Address: %s\n", p.Address)
	}
	if p.Result != nil {
		fmt.Fprintf(w, "  Result: %s (%d)\n", p.Result.String(), *p.Result)
	}
	if p.Candidates != nil {
		fmt.Fprintf(w, "  Candidates: %d\n", *p.Candidates)
	}
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Target != "" {
		fmt.Fprintf(w, "  Target: %s\n", sc.Target)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// ParseLayerFlag parses a layer string from command-line flag (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "link":
		return log.LayerLink, nil
	case "mlme":
		return log.LayerMLME, nil
	case "agent":
		return log.LayerAgent, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be link, mlme, or agent)", s)
	}
}

// ParseDirectionFlag parses a direction string from command-line flag (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	case "none", "-":
		return log.DirectionNone, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in, out, or none)", s)
	}
}

// ParseCategoryFlag parses a category string from command-line flag (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "primitive":
		return log.CategoryPrimitive, nil
	case "state":
		return log.CategoryState, nil
	case "notification":
		return log.CategoryNotification, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be primitive, state, notification, or error)", s)
	}
}

// RunView prints every event matching filter.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	return eachEvent(path, filter.toFilter(), func(event log.Event) error {
		formatEvent(output, event)
		return nil
	})
}
