// Package middleware holds the cmd.Middleware chain applied to every Discord
// command: guild-only gate, permission check and command logger.
package middleware

import (
	"moobot/internal/command"
	"moobot/pkg/cmd"
)

func messageContext(inv *cmd.Invocation) (*command.MessageContext, bool) {
	mc, ok := inv.Data.(*command.MessageContext)
	return mc, ok && mc.Event != nil && mc.Event.Message != nil
}
