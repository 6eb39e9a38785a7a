package main

import (
	"os"

	"taskbridge/cmd/taskbridge/cmd"
)

func main() {
	os.Exit(cmd.Execute(os.Args[1:], os.Stdout, os.Stderr, nil))
}
