package main

import (
	"strings"
	"testing"
)

func TestDisconnectHelpMentionsRunningDaemon(t *testing.T) {
	cmd := newApp().Command("disconnect")
	if cmd == nil {
		t.Fatal("disconnect command not registered")
	}
	if !strings.Contains(cmd.Description, "Restart the\n   daemon") {
		t.Fatalf("disconnect help doesn't explain the live link: %q", cmd.Description)
	}
}
