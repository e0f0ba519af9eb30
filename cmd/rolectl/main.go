package main

import "github.com/spec-kit/tenant-session/cmd/rolectl/cmd"

func main() {
	cmd.Execute()
}
