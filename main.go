package main

import "github.com/mwbgen/mwbgen/cmd"

func main() {
	cmd.Execute()
}
