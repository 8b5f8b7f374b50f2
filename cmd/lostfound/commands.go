package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/unilost/lostfound/internal/auth"
	"github.com/unilost/lostfound/internal/config"
	"github.com/unilost/lostfound/internal/db"
	"github.com/unilost/lostfound/internal/model"
	"github.com/unilost/lostfound/internal/store"
)

// migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		st, err := db.Status(database, cfg.Database.Driver)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Schema at version %d\n", st.Version)
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		database, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()

		st, err := db.Status(database, cfg.Database.Driver)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Driver:  %s\n", cfg.Database.Driver)
		fmt.Fprintf(out, "Version: %d\n", st.Version)
		fmt.Fprintf(out, "Latest:  %d\n", st.Latest)
		switch {
		case st.Dirty:
			fmt.Fprintln(out, "State:   dirty (a migration failed part way)")
		case st.Pending():
			fmt.Fprintln(out, "State:   pending")
		default:
			fmt.Fprintln(out, "State:   up to date")
		}
		return nil
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Init(configPath, config.Default()); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration initialized at %s\n", configPath)
		return nil
	},
}

// user command
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var (
	newUserName     string
	newUserRole     string
	newUserGenerate bool
)

var userCreateCmd = &cobra.Command{
	Use:   "create <email>",
	Short: "Create an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email := strings.ToLower(strings.TrimSpace(args[0]))
		if !model.ValidEmail(email) {
			return fmt.Errorf("invalid email address %q", email)
		}
		role := model.Role(newUserRole)
		if !role.Valid() {
			return fmt.Errorf("invalid role %q", newUserRole)
		}
		name := strings.TrimSpace(newUserName)
		if name == "" {
			name = strings.SplitN(email, "@", 2)[0]
		}

		var password string
		if newUserGenerate {
			p, err := generatePassword(16)
			if err != nil {
				return fmt.Errorf("generating password: %w", err)
			}
			password = p
		} else {
			p, err := promptPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			password = p
		}
		if err := model.ValidatePassword(password); err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}
		user, err := store.CreateUser(context.Background(), database, name, email, hash, role)
		if errors.Is(err, store.ErrDuplicate) {
			return fmt.Errorf("email %s is already registered", email)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Created %s account %s (id %d)\n", user.Role, user.Email, user.ID)
		if newUserGenerate {
			fmt.Fprintf(out, "  Password: %s\n", password)
			fmt.Fprintln(out, "Save this password, it cannot be recovered.")
		}
		return nil
	},
}

var userSetRoleCmd = &cobra.Command{
	Use:   "set-role <email> <role>",
	Short: "Change an account's role",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		role := model.Role(args[1])
		if !role.Valid() {
			return fmt.Errorf("invalid role %q (want user, admin or super_admin)", args[1])
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		ctx := context.Background()
		user, err := store.GetUserByEmail(ctx, database, args[0])
		if err != nil {
			return err
		}
		if user == nil {
			return fmt.Errorf("no account with email %s", args[0])
		}
		if _, err := store.UpdateUserRole(ctx, database, user.ID, role); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", user.Email, role)
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateStatusCmd)
	configCmd.AddCommand(configInitCmd)

	userCreateCmd.Flags().StringVar(&newUserName, "name", "", "display name (default: the part of the email before @)")
	userCreateCmd.Flags().StringVar(&newUserRole, "role", string(model.RoleUser), "user, admin or super_admin")
	userCreateCmd.Flags().BoolVar(&newUserGenerate, "generate-password", false, "generate and print a random password")
	userCmd.AddCommand(userCreateCmd, userSetRoleCmd)
}

// promptPassword reads a password twice without echo when in is a
// terminal, and a single line otherwise.
func promptPassword(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Password: ")
		first, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		fmt.Fprint(prompt, "Repeat password: ")
		second, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		if string(first) != string(second) {
			return "", errors.New("passwords do not match")
		}
		return string(first), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
