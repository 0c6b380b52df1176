package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fatal(err.Error())
	}
}

func logStderr(msg string) {
	fmt.Fprintln(os.Stderr, "zephyr-prover:", msg)
}

func fatal(msg string) {
	logStderr("ERROR: " + msg)
	os.Exit(1)
}
