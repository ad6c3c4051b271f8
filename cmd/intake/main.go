// Command intake is a terminal front-end for filling client intake forms
// against the SmartGains API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		log.WithError(err).Error("intake failed")
		stop()
		os.Exit(1)
	}
}
