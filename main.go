package main

import "github.com/relayq/relayq/cmd"

func main() {
	cmd.Execute()
}
