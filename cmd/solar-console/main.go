package main

import "github.com/oshokin/solar-monitor/cmd/solar-console/cmd"

func main() {
	cmd.Execute()
}
