package ipc

import (
	"path/filepath"
	"testing"
	"time"
)

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctl.sock")
	srv, err := StartServer(path, func(m ControlMessage) Reply {
		if m.Cmd != CmdSay {
			return Reply{Error: "unknown command " + m.Cmd}
		}
		return Reply{OK: true, Text: "heard: " + m.Text}
	})
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Close()

	r, err := SendCommand(path, ControlMessage{Cmd: CmdSay, Text: "go to settings"}, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if !r.OK || r.Text != "heard: go to settings" {
		t.Errorf("reply = %+v", r)
	}

	r, err = SendCommand(path, ControlMessage{Cmd: "reboot"}, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if r.OK || r.Error == "" {
		t.Errorf("reply = %+v, want an error", r)
	}
}

func TestSendWithoutServer(t *testing.T) {
	if _, err := SendCommand(filepath.Join(t.TempDir(), "none.sock"), ControlMessage{Cmd: CmdOpen}, time.Second); err == nil {
		t.Error("SendCommand() succeeded without a daemon")
	}
}
