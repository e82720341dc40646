package commands

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stamgmt/stamgmt-go/pkg/log"
	"github.com/stamgmt/stamgmt-go/pkg/mlme"
)

const (
	testSession = "3f2a9c1e-7b4d-4e5f-8a6b-9c0d1e2f3a4b"
	testStation = "02:00:00:00:00:01"
	testBSSID   = "02:aa:00:00:00:01"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.stalog")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

func intPtr(n int) *int { return &n }

func resultPtr(r mlme.ResultCode) *mlme.ResultCode { return &r }

// connectSession returns the events of one scan, authenticate, associate
// cycle followed by a link loss.
func connectSession(session string, start time.Time) []log.Event {
	at := func(ms int) time.Time { return start.Add(time.Duration(ms) * time.Millisecond) }
	ev := func(ms int, dir log.Direction, layer log.Layer, cat log.Category) log.Event {
		return log.Event{
			Timestamp: at(ms),
			SessionID: session,
			Station:   testStation,
			Direction: dir,
			Layer:     layer,
			Category:  cat,
		}
	}

	var events []log.Event

	e := ev(0, log.DirectionOut, log.LayerMLME, log.CategoryPrimitive)
	e.Primitive = &log.PrimitiveEvent{Type: log.PrimitiveRequest, Kind: mlme.KindScan, Seq: 1}
	events = append(events, e)

	e = ev(1, log.DirectionOut, log.LayerLink, log.CategoryPrimitive)
	e.Frame = &log.FrameEvent{Size: 20, Data: []byte{0xa2, 0x01, 0x01}}
	events = append(events, e)

	e = ev(300, log.DirectionIn, log.LayerMLME, log.CategoryPrimitive)
	e.Primitive = &log.PrimitiveEvent{Type: log.PrimitiveConfirm, Kind: mlme.KindScan, Seq: 1,
		Result: resultPtr(mlme.ResultSuccess), Candidates: intPtr(2)}
	events = append(events, e)

	e = ev(301, log.DirectionNone, log.LayerAgent, log.CategoryState)
	e.StateChange = &log.StateChangeEvent{OldState: "SCANNING", NewState: "AUTHENTICATING", Target: testBSSID}
	events = append(events, e)

	e = ev(302, log.DirectionOut, log.LayerMLME, log.CategoryPrimitive)
	e.Primitive = &log.PrimitiveEvent{Type: log.PrimitiveRequest, Kind: mlme.KindAuthenticate, Seq: 2, Address: testBSSID}
	events = append(events, e)

	e = ev(310, log.DirectionIn, log.LayerMLME, log.CategoryPrimitive)
	e.Primitive = &log.PrimitiveEvent{Type: log.PrimitiveConfirm, Kind: mlme.KindAuthenticate, Seq: 2,
		Result: resultPtr(mlme.ResultSuccess), Address: testBSSID}
	events = append(events, e)

	e = ev(311, log.DirectionOut, log.LayerMLME, log.CategoryPrimitive)
	e.Primitive = &log.PrimitiveEvent{Type: log.PrimitiveRequest, Kind: mlme.KindAssociate, Seq: 3, Address: testBSSID}
	events = append(events, e)

	e = ev(320, log.DirectionIn, log.LayerMLME, log.CategoryPrimitive)
	e.Primitive = &log.PrimitiveEvent{Type: log.PrimitiveConfirm, Kind: mlme.KindAssociate, Seq: 3,
		Result: resultPtr(mlme.ResultSuccess), Address: testBSSID}
	events = append(events, e)

	e = ev(321, log.DirectionNone, log.LayerAgent, log.CategoryState)
	e.StateChange = &log.StateChangeEvent{OldState: "ASSOCIATING", NewState: "CONNECTED", Target: testBSSID}
	events = append(events, e)

	e = ev(5000, log.DirectionIn, log.LayerAgent, log.CategoryNotification)
	e.Notification = &log.NotificationEvent{Type: log.NotificationLinkLost, Detail: testBSSID}
	events = append(events, e)

	return events
}
