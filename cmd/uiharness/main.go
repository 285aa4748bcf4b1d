package main

import "github.com/devicelab-dev/uiharness/pkg/cli"

func main() {
	cli.Execute()
}
