package main

import "github.com/theirongolddev/agentlens/cmd"

func main() {
	cmd.Execute()
}
