package main

import "github.com/RyanBlaney/stream-session/cmd"

func main() {
	cmd.Execute()
}
