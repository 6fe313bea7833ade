package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	cli "github.com/spf13/pflag"

	"pawvox/internal/ipc"
)

func main() {
	socket := cli.StringP("socket", "s", ipc.SocketPath, "Daemon control socket")
	timeout := cli.DurationP("timeout", "t", 90*time.Second, "Reply timeout")
	cli.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: pawvox-ctl [flags] say <text> | open | close")
		cli.PrintDefaults()
	}
	cli.Parse()

	args := cli.Args()
	if len(args) == 0 {
		cli.Usage()
		os.Exit(2)
	}

	msg := ipc.ControlMessage{Cmd: args[0]}
	switch msg.Cmd {
	case ipc.CmdSay:
		msg.Text = strings.Join(args[1:], " ")
		if msg.Text == "" {
			fmt.Fprintln(os.Stderr, "say needs some text")
			os.Exit(2)
		}
	case ipc.CmdOpen, ipc.CmdClose:
	default:
		cli.Usage()
		os.Exit(2)
	}

	reply, err := ipc.SendCommand(*socket, msg, *timeout)
	if err != nil {
		fmt.Println("pawvox-daemon not running:", err)
		os.Exit(1)
	}
	if !reply.OK {
		fmt.Println("error:", reply.Error)
		os.Exit(1)
	}
	if reply.Text != "" {
		fmt.Println(reply.Text)
	}
}
