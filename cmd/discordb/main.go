package main

import "github.com/unkn0wn-root/discordb/cmd/discordb/cmd"

func main() {
	cmd.Execute()
}
