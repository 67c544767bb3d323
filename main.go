package main

import "github.com/kozaktomas/facedb/cmd"

func main() {
	cmd.Execute()
}
