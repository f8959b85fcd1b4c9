package main

import "github.com/courseloom/platform/cmd"

func main() {
	cmd.Execute()
}
