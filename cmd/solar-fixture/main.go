package main

import "github.com/oshokin/solar-monitor/cmd/solar-fixture/cmd"

func main() {
	cmd.Execute()
}
