package events

import (
	"context"
	"testing"
)

func TestUserNotificationSubject(t *testing.T) {
	if got := UserNotificationSubject("abc"); got != "notifications.user.abc" {
		t.Errorf("subject = %q", got)
	}
}

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	if err := p.Publish(context.Background(), "x", nil); err != nil {
		t.Errorf("Noop.Publish returned %v", err)
	}
	p.Close()
}
