package main

import (
	"context"
	"texbot/cmd/texbot/commands"
	"texbot/lib/telemetry"
)

func main() {
	telemetry.SetupFromEnv(context.Background(), "texbot")
	commands.ExecuteContext(context.Background())
}
