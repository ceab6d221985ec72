package toolset

import (
	"fmt"

	"github.com/gohornet/fundgov/pkg/jwt"
)

func generateJWTApiToken(settings *Settings, args []string) error {

	printUsage := func() {
		println("Usage:")
		println(fmt.Sprintf("	%s [ACCOUNT]", ToolJWTApi))
		println()
		println("	[ACCOUNT] - the account the token acts for")
		println()
		println(fmt.Sprintf("example: %s %s", ToolJWTApi, "alice"))
	}

	if len(args) != 1 {
		printUsage()
		return fmt.Errorf("'%s' expects exactly one account", ToolJWTApi)
	}

	auth, err := jwt.NewAuth(settings.JWTIssuer, settings.JWTSessionTimeout, settings.JWTSecret)
	if err != nil {
		return fmt.Errorf("JWT auth initialization failed: %w", err)
	}

	token, err := auth.IssueJWT(args[0])
	if err != nil {
		return fmt.Errorf("issuing JWT token failed: %w", err)
	}

	fmt.Printf("Your API JWT token for %s: %s\n", args[0], token)
	return nil
}
