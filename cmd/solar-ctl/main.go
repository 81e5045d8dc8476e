package main

import "github.com/oshokin/solar-monitor/cmd/solar-ctl/cmd"

func main() {
	cmd.Execute()
}
