package toolset

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	ToolPwdHash = "pwdhash"
	ToolJWTApi  = "jwt-api"
)

// Settings are the parts of the daemon configuration the tools work with.
type Settings struct {
	JWTIssuer         string
	JWTSecret         string
	JWTSessionTimeout time.Duration
}

type tool struct {
	description string
	run         func(settings *Settings, args []string) error
}

var tools = map[string]tool{
	ToolPwdHash: {"generates a scrypt hash from your password and salt", hashPasswordAndSalt},
	ToolJWTApi:  {"issues a REST API token for an account", generateJWTApiToken},
}

// SplitArgs separates the daemon arguments from the arguments following "tool".
// toolArgs is nil if no tool was requested.
func SplitArgs(args []string) (daemonArgs []string, toolArgs []string) {
	for i, arg := range args {
		if strings.ToLower(arg) == "tool" || strings.ToLower(arg) == "tools" {
			return args[:i], args[i+1:]
		}
	}
	return args, nil
}

// HandleTools runs the requested tool and exits the process.
func HandleTools(settings *Settings, args []string) {
	if len(args) == 0 {
		listTools()
		os.Exit(1)
	}

	t, exists := tools[strings.ToLower(args[0])]
	if !exists {
		fmt.Print("tool not found.\n\n")
		listTools()
		os.Exit(1)
	}

	if err := t.run(settings, args[1:]); err != nil {
		fmt.Printf("\nerror: %s\n", err)
		os.Exit(1)
	}

	os.Exit(0)
}

func listTools() {
	for _, name := range []string{ToolPwdHash, ToolJWTApi} {
		fmt.Printf("%-15s %s\n", name+":", tools[name].description)
	}
}
