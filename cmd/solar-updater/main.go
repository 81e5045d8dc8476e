package main

import "github.com/oshokin/solar-monitor/cmd/solar-updater/cmd"

func main() {
	cmd.Execute()
}
