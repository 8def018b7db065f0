package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/finpal/internal/credential"
)

// tokenCmd manages the backend API token
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the backend API token kept in the system keyring",
}

var tokenSetCmd = &cobra.Command{
	Use:   "set [token]",
	Short: "Store the API token (reads stdin when omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tok, err := readToken(cmd, args)
		if err != nil {
			return err
		}
		vault, err := credential.Open()
		if err != nil {
			return err
		}
		if err := vault.Set(credential.APITokenKey, tok); err != nil {
			return err
		}
		cmd.Println("token saved")
		return nil
	},
}

var tokenClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored API token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		vault, err := credential.Open()
		if err != nil {
			return err
		}
		if err := vault.Delete(credential.APITokenKey); err != nil {
			return err
		}
		cmd.Println("token removed")
		return nil
	},
}

var tokenStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show where the API token comes from",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if tok, _ := credential.APIToken(nil); tok != "" {
			cmd.Printf("token set via %s\n", credential.TokenEnv)
			return nil
		}
		vault, err := credential.Open()
		if err != nil {
			return err
		}
		tok, err := credential.APIToken(vault)
		if err != nil {
			return err
		}
		if tok == "" {
			cmd.Println("no token configured")
			return nil
		}
		cmd.Println("token set in keyring")
		return nil
	},
}

func readToken(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		if tok := strings.TrimSpace(args[0]); tok != "" {
			return tok, nil
		}
		return "", errors.New("token is empty")
	}

	cmd.Print("API token: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading token: %w", err)
	}
	tok := strings.TrimSpace(line)
	if tok == "" {
		return "", errors.New("token is empty")
	}
	return tok, nil
}
