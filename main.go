package main

import "github.com/csouto/channel-scout/cmd"

func main() {
	cmd.Execute()
}
