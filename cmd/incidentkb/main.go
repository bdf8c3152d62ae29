package main

import "incidentkb/internal/cli"

func main() {
	cli.Execute()
}
