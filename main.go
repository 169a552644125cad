package main

import "github.com/agubarev/handbook/cmd"

func main() {
	cmd.Execute()
}
