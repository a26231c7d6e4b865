package main

import "github.com/powertap/powertap/cmd"

func main() {
	cmd.Execute()
}
