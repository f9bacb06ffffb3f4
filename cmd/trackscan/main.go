package main

import "github.com/MeKo-Tech/trackscan/cmd/trackscan/cmd"

func main() {
	cmd.Execute()
}
