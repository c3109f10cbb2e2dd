package main

import (
	"fmt"
	"os"

	"github.com/soyeahso/smsrelay/internal/cli"
	"github.com/tillberg/autorestart"
)

func main() {
	// Restart on binary rebuilds during development only.
	if os.Getenv("SMSRELAY_AUTORESTART") == "1" {
		go autorestart.RestartOnChange()
	}

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
