package main

import "snapshot-restore/cmd"

func main() {
	cmd.Execute()
}
