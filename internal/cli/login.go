package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	loginUsername string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate against the backend and store the token",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Discard the stored token",
	RunE:  runLogout,
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Operator username")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Password (prompted if omitted)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	printHeader("🔐 diagctl Login")

	username := strings.TrimSpace(loginUsername)
	if username == "" {
		fmt.Print("Username: ")
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read username: %w", err)
		}
		username = strings.TrimSpace(line)
	}
	if username == "" {
		return fmt.Errorf("username must not be empty")
	}

	password := loginPassword
	if password == "" {
		fmt.Print("Password: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		password = string(raw)
	}

	client, _, err := loadClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()
	resp, err := client.Login(ctx, username, password)
	if err != nil {
		return err
	}

	tokens, err := loadTokenStore()
	if err != nil {
		return err
	}
	if err := tokens.Save(resp.AccessToken); err != nil {
		return fmt.Errorf("store token: %w", err)
	}

	fmt.Printf("Logged in as %s (role %s)\n", resp.User.Username, resp.User.Role)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	client, _, err := loadClient()
	if err != nil {
		return err
	}

	// Server-side invalidation is best-effort; the local token always goes.
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()
	if err := client.Logout(ctx); err != nil {
		fmt.Println("Warning: backend logout failed:", err)
	}

	tokens, err := loadTokenStore()
	if err != nil {
		return err
	}
	if err := tokens.Clear(); err != nil {
		return err
	}
	fmt.Println("Logged out.")
	return nil
}
