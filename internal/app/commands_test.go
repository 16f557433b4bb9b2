package app

import (
	"errors"
	"testing"
	"time"
)

func TestExpiryTickCmd(t *testing.T) {
	if expiryTickCmd() == nil {
		t.Error("expiryTickCmd returned nil")
	}
}

func TestNotify(t *testing.T) {
	tests := []struct {
		name string
		typ  NotificationType
		dur  time.Duration
	}{
		{"Success", NotificationSuccess, DefaultNotificationDuration},
		{"Error", NotificationError, LongNotificationDuration},
		{"Warning", NotificationWarning, DefaultNotificationDuration},
		{"Info", NotificationInfo, QuickNotificationDuration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := notify(tt.typ, "msg")()

			addMsg, ok := msg.(AddNotificationMsg)
			if !ok {
				t.Fatalf("Expected AddNotificationMsg, got %T", msg)
			}
			if addMsg.Type != tt.typ || addMsg.Duration != tt.dur || addMsg.Message != "msg" {
				t.Errorf("notify(%v) = %+v", tt.typ, addMsg)
			}
		})
	}
}

func TestCopyToClipboardCmd(t *testing.T) {
	orig := copyToClipboard
	defer func() { copyToClipboard = orig }()

	var copied string
	copyToClipboard = func(text string) error {
		copied = text
		return nil
	}

	msg := copyToClipboardCmd("s3cret", "secret")()
	res, ok := msg.(ClipboardResultMsg)
	if !ok {
		t.Fatalf("Expected ClipboardResultMsg, got %T", msg)
	}
	if res.Error != nil || res.Label != "secret" || copied != "s3cret" {
		t.Errorf("unexpected result %+v, copied %q", res, copied)
	}

	copyToClipboard = func(string) error { return errors.New("no clipboard") }
	res = copyToClipboardCmd("x", "secret")().(ClipboardResultMsg)
	if res.Error == nil {
		t.Error("expected clipboard error")
	}
}

func TestClearNotificationCmd(t *testing.T) {
	msg := clearNotificationCmd("abc", time.Millisecond)()
	rm, ok := msg.(RemoveNotificationMsg)
	if !ok || rm.ID != "abc" {
		t.Errorf("unexpected message %#v", msg)
	}
}
