package main

import (
	"context"
	"fmt"
	"os"
	"time"

	cli "github.com/spf13/pflag"

	"purple/internal/ipc"
)

func main() {
	socket := cli.StringP("socket", "s", ipc.SocketPath, "Control socket path")
	timeout := cli.DurationP("timeout", "t", 30*time.Second, "How long to wait for a reply")
	cli.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: purple-ctl [flags] [trigger|status]")
		cli.PrintDefaults()
	}
	cli.Parse()

	cmd := cli.Arg(0)
	if cmd == "" {
		cmd = "trigger"
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	reply, err := ipc.Send(ctx, *socket, cmd)
	if err != nil {
		fmt.Println("purple-hotword not running:", err)
		os.Exit(1)
	}

	fmt.Println(reply.Message)
	if !reply.OK {
		os.Exit(1)
	}
}
