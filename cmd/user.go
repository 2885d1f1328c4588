package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/vaxboard/internal/config"
	"github.com/jon4hz/vaxboard/internal/database"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage dashboard accounts",
}

var userAddCmd = &cobra.Command{
	Use:     "add <username>",
	Short:   "Create an account",
	Long:    `Create an account in the credential store. The password is read from the terminal without echo.`,
	Example: `vaxboard user add alice`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(rootCmdPersistentFlags.ConfigFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		password, err := readPassword(cmd)
		if err != nil {
			return err
		}

		db, err := database.New(cfg.Database.UsersPath)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close() //nolint:errcheck

		if _, err := db.Register(cmd.Context(), args[0], password); err != nil {
			return err
		}
		log.Info("User created", "username", args[0])
		return nil
	},
}

func init() {
	userCmd.AddCommand(userAddCmd)
	rootCmd.AddCommand(userCmd)
}

func readPassword(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd()) //nolint:gosec
	if !term.IsTerminal(fd) {
		return "", errors.New("password must be entered on a terminal")
	}

	out := cmd.ErrOrStderr()
	fmt.Fprint(out, "Password: ") //nolint:errcheck
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(out) //nolint:errcheck
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Fprint(out, "Repeat password: ") //nolint:errcheck
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(out) //nolint:errcheck
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}
