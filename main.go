package main

import "github.com/agentic-research/treeforge/cmd"

func main() {
	cmd.Execute()
}
