package tool

import (
	"fmt"
	"strings"

	shellwords "github.com/mattn/go-shellwords"
)

// bashDenylist blocks obviously destructive commands before a process is
// ever spawned. Substring matching is case-insensitive. This is syntax
// filtering as defense in depth; the sandbox resolver is the boundary.
var bashDenylist = []string{
	"rm -rf /",
	"rm -rf ~",
	"rm -rf *",
	"mkfs",
	"dd if=",
	"chmod -r 777 /",
	"chown -r",
	"shutdown",
	"reboot",
	"halt",
	":(){ :|:& };:",
	"> /dev/sda",
}

// privilegeToken matches only as a standalone command name or a path
// ending in /sudo, never as a substring of an unrelated word.
const privilegeToken = "sudo"

// CheckCommand applies the denylist to a shell command string.
func CheckCommand(command string) error {
	if strings.TrimSpace(command) == "" {
		return NewValidationFailed("command is empty", "empty_command")
	}
	lower := strings.ToLower(command)
	for _, pattern := range bashDenylist {
		if strings.Contains(lower, pattern) {
			return bannedCommand(pattern)
		}
	}
	if containsPrivilegeToken(lower) {
		return bannedCommand(privilegeToken)
	}
	return nil
}

func bannedCommand(pattern string) error {
	return NewPermissionDenied(
		fmt.Sprintf("command blocked by policy: %s", pattern),
		"banned_command",
		map[string]any{"pattern": pattern},
	)
}

func containsPrivilegeToken(command string) bool {
	words, err := shellwords.Parse(command)
	if err != nil {
		words = strings.Fields(command)
	}
	for _, w := range words {
		if w == privilegeToken || strings.HasSuffix(w, "/"+privilegeToken) {
			return true
		}
	}
	return false
}
