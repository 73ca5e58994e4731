package main

import "github.com/cratenav/cratenav/cmd"

func main() {
	cmd.Execute()
}
