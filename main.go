package main

import "nathanbeddoewebdev/fleet/cmd"

func main() {
	cmd.Execute()
}
