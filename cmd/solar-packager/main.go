package main

import "github.com/oshokin/solar-monitor/cmd/solar-packager/cmd"

func main() {
	cmd.Execute()
}
