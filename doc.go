/*
Package vitrine is a client for live data-report servers: a remote script
streams a report as a sequence of element updates, and vitrine keeps a local
view of it in sync, sends the operator's control requests back, and can
record finished reports for later replay.

# Concept

A report server pushes envelopes over a websocket. Each session owns a
document (an ordered, sparse list of elements), the run state of the remote
script and the user settings. Envelopes are applied one at a time on the
session loop, so the document is always consistent with the order the server
sent them in. Control requests (rerun, stop, clear cache, widget updates) are
only forwarded while the connection can carry them.

# Usage

	package main

	import (
		"context"
		"log"
		"os"
		"os/signal"

		"github.com/aretw0/vitrine"
	)

	func main() {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		client := vitrine.Dial("ws://localhost:8501/stream")

		go func() {
			views, err := client.Controller().Subscribe(ctx)
			if err != nil {
				return
			}
			for v := range views {
				log.Printf("%s: %d elements (%s)", v.ReportName, len(v.Elements), v.RunState)
			}
		}()

		if err := client.Run(ctx); err != nil {
			log.Fatal(err)
		}
	}

Recorded reports are replayed with Replay, which serves a static, read-only
session from any ports.ReportSource.
*/
package vitrine
