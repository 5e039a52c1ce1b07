package main

import (
	"context"
	"rehabgo/cmd/rehabgo/commands"
)

func main() {
	commands.ExecuteContext(context.Background())
}
