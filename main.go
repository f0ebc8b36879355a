package main

import "github.com/fansqz/debug-engine/cmd"

func main() {
	cmd.Execute()
}
