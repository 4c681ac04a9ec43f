package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/teavision/internal/store"
)

// userCmd groups account maintenance commands.
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
	Long: `Manage accounts in the teavision database.

Accounts registered through the API are never administrators; use
"teavision user create --admin" to provision one.`,
}

var userCreateCmd = &cobra.Command{
	Use:   "create [email]",
	Short: "Create a user account",
	Long: `Create a user account. The password is taken from --password or, when the
flag is not set, from the TEAVISION_USER_PASSWORD environment variable.

Examples:
  teavision user create admin@example.com --admin --password s3cret
  TEAVISION_USER_PASSWORD=s3cret teavision user create grader@example.com`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			password = os.Getenv("TEAVISION_USER_PASSWORD")
		}
		if password == "" {
			return errors.New("password is required (--password or TEAVISION_USER_PASSWORD)")
		}
		admin, _ := cmd.Flags().GetBool("admin")

		db, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		u, err := db.Register(cmd.Context(), args[0], password, admin)
		if err != nil {
			return err
		}
		role := "user"
		if u.IsAdmin {
			role = "admin"
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created %s %s (id %d)\n", role, u.Email, u.ID)
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:          "list",
	Short:        "List user accounts",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		users, err := db.ListUsers(cmd.Context())
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "ID\tEMAIL\tADMIN\tCREATED")
		for _, u := range users {
			_, _ = fmt.Fprintf(tw, "%d\t%s\t%t\t%s\n", u.ID, u.Email, u.IsAdmin, u.CreatedAt)
		}
		return tw.Flush()
	},
}

// openStore opens the database named by --db or the configuration.
func openStore(cmd *cobra.Command) (*store.SQLiteStore, error) {
	path := GetConfig().Store.Path
	if cmd.Flags().Changed("db") {
		path, _ = cmd.Flags().GetString("db")
	}
	db, err := store.Open(cmd.Context(), path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return db, nil
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userCreateCmd, userListCmd)
	userCmd.PersistentFlags().String("db", "teavision.db", "SQLite database path")
	userCreateCmd.Flags().String("password", "", "account password")
	userCreateCmd.Flags().Bool("admin", false, "grant administrator rights")
}
