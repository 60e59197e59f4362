package main

import (
	"os"

	"github.com/okian/taskpulse/internal/testevents"
)

func main() {
	if err := testevents.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
