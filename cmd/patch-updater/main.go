package main

import "github.com/oshokin/patch-updater/cmd/patch-updater/cmd"

func main() {
	cmd.Execute()
}
