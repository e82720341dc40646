package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/stamgmt/stamgmt-go/pkg/log"
)

// RunExport exports the capture file to the specified format. An empty
// output writes to stdout.
func RunExport(path, format, output string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "jsonl":
		return exportJSONL(path, w)
	case "csv":
		return exportCSV(path, w)
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
}

func exportJSONL(path string, w io.Writer) error {
	enc := json.NewEncoder(w)
	return eachEvent(path, log.Filter{}, func(event log.Event) error {
		if err := enc.Encode(event); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
		return nil
	})
}

var csvHeader = []string{"timestamp", "session_id", "station", "direction", "layer", "category", "type", "seq", "detail"}

func exportCSV(path string, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	err := eachEvent(path, log.Filter{}, func(event log.Event) error {
		kind, seq, detail := csvFields(event)
		return cw.Write([]string{
			event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
			event.SessionID,
			event.Station,
			event.Direction.String(),
			event.Layer.String(),
			event.Category.String(),
			kind,
			seq,
			detail,
		})
	})
	if err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func csvFields(event log.Event) (eventType, seq, detail string) {
	switch {
	case event.Frame != nil:
		return "frame", "", strconv.Itoa(event.Frame.Size)
	case event.Primitive != nil:
		p := event.Primitive
		eventType = p.Kind.String() + "_" + p.Type.String()
		seq = strconv.FormatUint(uint64(p.Seq), 10)
		detail = p.Address
		if p.Result != nil {
			if detail != "" {
				detail += " "
			}
			detail += p.Result.String()
		}
		if p.Stale {
			detail += " stale"
		}
		return eventType, seq, detail
	case event.StateChange != nil:
		return "state", "", event.StateChange.OldState + "->" + event.StateChange.NewState
	case event.Notification != nil:
		return event.Notification.Type.String(), "", event.Notification.Detail
	case event.Error != nil:
		return "error", "", event.Error.Message
	default:
		return "unknown", "", ""
	}
}
