// Command blobctl uploads and downloads single files to and from a blob
// storage container.
//
//	blobctl --container products upload --product s2 scene.zip
//	blobctl --container products download Sentinel-2/L2A/T32TQM/2021/06/01/scene.zip ./data
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).RunContext(ctx, os.Args); err != nil {
		// cli.Exit errors are handled inside RunContext.
		os.Exit(1)
	}
}
