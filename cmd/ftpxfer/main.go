// Command ftpxfer downloads and uploads single files over FTP.
//
// Usage:
//
//	ftpxfer get --host ftp.example.com /pub/readme.txt
//	ftpxfer put --host ftp.example.com --dir /incoming a.bin b.bin
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/gonzalop/miniftp/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.NewRootCommand(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
