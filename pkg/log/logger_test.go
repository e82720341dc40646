package log

import (
	"sync"
	"testing"

	"github.com/stamgmt/stamgmt-go/pkg/mlme"
)

type recordingLogger struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingLogger) Log(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func TestNoopLogger(t *testing.T) {
	var l Logger = NoopLogger{}
	l.Log(Event{}) // must not panic

	if _, ok := OrNoop(nil).(NoopLogger); !ok {
		t.Error("OrNoop(nil) should return NoopLogger")
	}
	rec := &recordingLogger{}
	if OrNoop(rec) != rec {
		t.Error("OrNoop should return a non-nil logger unchanged")
	}
}

func TestMultiLogger(t *testing.T) {
	a, b := &recordingLogger{}, &recordingLogger{}
	m := NewMultiLogger(a, nil, b)

	m.Log(Event{SessionID: "x"})
	m.Log(Event{SessionID: "y"})

	for name, r := range map[string]*recordingLogger{"a": a, "b": b} {
		if len(r.events) != 2 {
			t.Errorf("%s got %d events, want 2", name, len(r.events))
		}
	}
}

func TestRequestEvent(t *testing.T) {
	addr := mlme.MustParseMAC("02:00:00:00:00:aa")

	ev := RequestEvent(&mlme.AssociateRequest{Seq: 5, Address: addr})
	if ev.Type != PrimitiveRequest || ev.Kind != mlme.KindAssociate || ev.Seq != 5 {
		t.Errorf("unexpected event %+v", ev)
	}
	if ev.Address != addr.String() {
		t.Errorf("Address = %q, want %q", ev.Address, addr)
	}

	ev = RequestEvent(&mlme.ScanRequest{Seq: 6})
	if ev.Address != "" || ev.Result != nil {
		t.Errorf("scan request event should carry no address/result: %+v", ev)
	}
}

func TestConfirmEvent(t *testing.T) {
	ev := ConfirmEvent(&mlme.ScanConfirm{Seq: 1, BSSList: make([]mlme.BSSDescription, 4)})
	if ev.Candidates == nil || *ev.Candidates != 4 {
		t.Errorf("Candidates = %v, want 4", ev.Candidates)
	}
	if ev.Result == nil || *ev.Result != mlme.ResultSuccess {
		t.Errorf("Result = %v, want SUCCESS", ev.Result)
	}

	ev = ConfirmEvent(&mlme.AuthenticateConfirm{Seq: 2, Result: mlme.ResultTimeout})
	if ev.Kind != mlme.KindAuthenticate || *ev.Result != mlme.ResultTimeout {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestEnumStrings(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{DirectionIn.String(), "IN"},
		{DirectionNone.String(), "-"},
		{Direction(9).String(), "UNKNOWN"},
		{LayerLink.String(), "LINK"},
		{LayerAgent.String(), "AGENT"},
		{CategoryNotification.String(), "NOTIFICATION"},
		{PrimitiveConfirm.String(), "CONFIRM"},
		{NotificationLinkLost.String(), "LINK_LOST"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}
