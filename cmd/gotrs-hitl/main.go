// Command gotrs-hitl is the human-in-the-loop client: it manages HITL types,
// listens for hand-off requests and claims conversations.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		if errors.Is(err, errLostRace) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
