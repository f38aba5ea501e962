package main

import (
	"context"

	"portalproxy-backend/cmd/portal-cli/commands"
)

func main() {
	commands.ExecuteContext(context.Background())
}
