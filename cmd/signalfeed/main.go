package main

import "signal-feed/internal/cli"

func main() {
	cli.Execute()
}
