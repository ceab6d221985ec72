package toolset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/gohornet/fundgov/pkg/basicauth"
)

const (
	passwordEnvKey = "FUNDGOV_TOOL_PASSWORD"
)

func readPasswordFromStdin() ([]byte, error) {
	var password []byte

	// get terminal state to be able to restore it in case of an interrupt
	originalTerminalState, err := term.GetState(int(syscall.Stdin))
	if err != nil {
		return nil, errors.New("failed to get terminal state")
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt)
	go func() {
		<-signalChan
		// reset the terminal to the original state if we receive an interrupt
		_ = term.Restore(int(syscall.Stdin), originalTerminalState)
		fmt.Println("\naborted... Bye!")
		os.Exit(1)
	}()

	fmt.Print("Enter a password: ")
	password, err = term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return nil, fmt.Errorf("read password failed: %w", err)
	}

	fmt.Print("\nRe-enter your password: ")
	passwordReenter, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return nil, fmt.Errorf("read password failed: %w", err)
	}

	if !bytes.Equal(password, passwordReenter) {
		return nil, errors.New("re-entered password doesn't match")
	}
	fmt.Println()
	return password, nil
}

func hashPasswordAndSalt(_ *Settings, args []string) error {

	fs := flag.NewFlagSet("", flag.ContinueOnError)
	passwordFlag := fs.String("password", "", fmt.Sprintf("password to hash (optional). Can also be passed as %s environment variable.", passwordEnvKey))
	outputJSON := fs.Bool("json", false, "format output as JSON")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", ToolPwdHash)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 0 {
		fs.Usage()
		return fmt.Errorf("too many arguments for '%s'", ToolPwdHash)
	}

	var password string
	if p, exists := os.LookupEnv(passwordEnvKey); exists && len(p) > 0 {
		password = p
	} else if len(*passwordFlag) > 0 {
		password = *passwordFlag
	} else {
		p, err := readPasswordFromStdin()
		if err != nil {
			return err
		}
		password = string(p)
	}

	passwordHash, passwordSalt, err := basicauth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing the password failed: %w", err)
	}

	if *outputJSON {
		result := struct {
			Password string `json:"passwordHash"`
			Salt     string `json:"passwordSalt"`
		}{
			Password: passwordHash,
			Salt:     passwordSalt,
		}

		output, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("\nSuccess!\nYour hash: %s\nYour salt: %s\n", passwordHash, passwordSalt)
	return nil
}
