package main

import "bulkops/internal/cmd"

func main() {
	cmd.Execute()
}
