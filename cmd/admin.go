package cmd

import (
	"errors"
	"fmt"
	"io"
	"net/mail"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/devroom/devroom/internal/auth"
	"github.com/devroom/devroom/internal/output"
	"github.com/devroom/devroom/internal/serverdb"
)

var errLastAdmin = errors.New("cannot revoke last admin")

var adminCmd = &cobra.Command{
	Use:     "admin",
	Short:   "Manage accounts and rooms in the database",
	GroupID: "admin",
}

var adminGrantCmd = &cobra.Command{
	Use:   "grant <email>",
	Short: "Grant admin privileges to a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.SetUserAdmin(args[0], true); err != nil {
			return err
		}
		output.Success("granted admin to %s", serverdb.NormalizeEmail(args[0]))
		return nil
	},
}

var adminRevokeCmd = &cobra.Command{
	Use:   "revoke <email>",
	Short: "Revoke admin privileges from a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := revokeAdmin(store, args[0]); err != nil {
			return err
		}
		output.Success("revoked admin from %s", serverdb.NormalizeEmail(args[0]))
		return nil
	},
}

// revokeAdmin clears the admin flag unless the user is the last admin.
func revokeAdmin(store *serverdb.ServerDB, email string) error {
	user, err := store.GetUserByEmail(email)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("user not found: %s", email)
	}

	// Check if this would remove the last admin
	count, err := store.CountAdmins()
	if err != nil {
		return err
	}
	if user.IsAdmin && count <= 1 {
		return errLastAdmin
	}
	return store.SetUserAdmin(email, false)
}

// accountInput holds the fields for a new account or password reset.
type accountInput struct {
	Name     string
	Email    string
	Password string
}

func (in accountInput) validate(needName bool) error {
	if needName && strings.TrimSpace(in.Name) == "" {
		return errors.New("name is required")
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(in.Email)); err != nil {
		return fmt.Errorf("valid email is required")
	}
	if in.Password == "" {
		return errors.New("password is required")
	}
	return nil
}

// promptAccount asks for any field left empty, when attached to a terminal.
func promptAccount(in *accountInput, needName bool) error {
	if in.validate(needName) == nil {
		return nil
	}
	if !output.IsTerminal(os.Stdin) {
		return in.validate(needName)
	}

	var fields []huh.Field
	if needName && strings.TrimSpace(in.Name) == "" {
		fields = append(fields, huh.NewInput().Title("Name").Value(&in.Name).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("name is required")
				}
				return nil
			}))
	}
	if strings.TrimSpace(in.Email) == "" {
		fields = append(fields, huh.NewInput().Title("Email").Value(&in.Email).
			Validate(func(s string) error {
				_, err := mail.ParseAddress(strings.TrimSpace(s))
				return err
			}))
	}
	if in.Password == "" {
		fields = append(fields, huh.NewInput().Title("Password").
			EchoMode(huh.EchoModePassword).Value(&in.Password).
			Validate(func(s string) error {
				if s == "" {
					return errors.New("password is required")
				}
				return nil
			}))
	}
	if len(fields) > 0 {
		if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
			return err
		}
	}
	return in.validate(needName)
}

// createAccount hashes the password and stores a new user.
func createAccount(store *serverdb.ServerDB, in accountInput, admin bool) (*serverdb.User, error) {
	if err := in.validate(true); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user, err := store.CreateUser(in.Name, in.Email, hash)
	if err != nil {
		return nil, err
	}
	if admin {
		if err := store.SetUserAdmin(user.Email, true); err != nil {
			return nil, err
		}
		user.IsAdmin = true
	}
	return user, nil
}

var adminCreateUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Create an account (prompts for missing fields)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var in accountInput
		in.Name, _ = cmd.Flags().GetString("name")
		in.Email, _ = cmd.Flags().GetString("email")
		in.Password, _ = cmd.Flags().GetString("password")
		admin, _ := cmd.Flags().GetBool("admin")

		if err := promptAccount(&in, true); err != nil {
			return err
		}

		store, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		user, err := createAccount(store, in, admin)
		if err != nil {
			return err
		}
		output.Success("created %s", output.FormatUser(user))
		return nil
	},
}

var adminSetPasswordCmd = &cobra.Command{
	Use:   "set-password <email>",
	Short: "Reset a user's password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := accountInput{Email: args[0]}
		in.Password, _ = cmd.Flags().GetString("password")
		if err := promptAccount(&in, false); err != nil {
			return err
		}

		store, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		user, err := store.GetUserByEmail(in.Email)
		if err != nil {
			return err
		}
		if user == nil {
			return fmt.Errorf("user not found: %s", in.Email)
		}
		hash, err := auth.HashPassword(in.Password)
		if err != nil {
			return err
		}
		if err := store.SetPassword(user.ID, hash); err != nil {
			return err
		}
		output.Success("password updated for %s", user.Email)
		return nil
	},
}

var adminUsersCmd = &cobra.Command{
	Use:   "users",
	Short: "List accounts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		users, err := store.ListUsers()
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return output.JSON(users)
		}
		printUsers(cmd.OutOrStdout(), users)
		return nil
	},
}

func printUsers(w io.Writer, users []*serverdb.User) {
	if len(users) == 0 {
		fmt.Fprintln(w, "No users")
		return
	}
	for _, u := range users {
		fmt.Fprintln(w, output.FormatUser(u))
	}
}

var adminRoomsCmd = &cobra.Command{
	Use:     "rooms [room-id]",
	Aliases: []string{"room"},
	Short:   "List rooms, or show one room in detail",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()
		asJSON, _ := cmd.Flags().GetBool("json")

		if len(args) == 1 {
			room, err := store.GetRoom(args[0])
			if err != nil {
				return err
			}
			if room == nil {
				return fmt.Errorf("room not found: %s", args[0])
			}
			if asJSON {
				return output.JSON(room)
			}
			fmt.Fprint(cmd.OutOrStdout(), output.FormatRoomLong(room))
			return nil
		}

		rooms, err := store.ListRooms()
		if err != nil {
			return err
		}
		if asJSON {
			return output.JSON(rooms)
		}
		printRooms(cmd.OutOrStdout(), rooms)
		return nil
	},
}

func printRooms(w io.Writer, rooms []*serverdb.Room) {
	if len(rooms) == 0 {
		fmt.Fprintln(w, "No rooms")
		return
	}
	for _, r := range rooms {
		fmt.Fprintln(w, output.FormatRoomShort(r))
	}
}

var adminDeleteRoomCmd = &cobra.Command{
	Use:     "delete-room <room-id>",
	Aliases: []string{"rm-room"},
	Short:   "Delete a room with its presence and membership",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.DeleteRoom(args[0]); err != nil {
			return err
		}
		output.Success("deleted room %s", args[0])
		return nil
	},
}

var adminStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show account, room and presence counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := store.AdminStats()
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return output.JSON(stats)
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Users:          %d\n", stats.Users)
		fmt.Fprintf(w, "Rooms:          %d\n", stats.Rooms)
		fmt.Fprintf(w, "Occupied rooms: %d\n", stats.OccupiedRooms)
		fmt.Fprintf(w, "Active sockets: %d\n", stats.ActiveSockets)
		return nil
	},
}

var adminEventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recent auth or rate limit events",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		w := cmd.OutOrStdout()

		if rl, _ := cmd.Flags().GetBool("rate-limit"); rl {
			events, err := store.ListRateLimitEvents(limit)
			if err != nil {
				return err
			}
			for _, e := range events {
				subject := e.Subject
				if subject == "" {
					subject = "-"
				}
				fmt.Fprintf(w, "%s  %-6s  %-15s  %s\n", e.CreatedAt, e.EndpointClass, e.IP, subject)
			}
			return nil
		}

		eventType, _ := cmd.Flags().GetString("type")
		events, err := store.ListAuthEvents(eventType, limit)
		if err != nil {
			return err
		}
		for _, e := range events {
			fmt.Fprintf(w, "%s  %-12s  %s\n", e.CreatedAt, e.EventType, e.Email)
		}
		return nil
	},
}

func init() {
	addDBFlags(adminCmd.PersistentFlags())

	adminCreateUserCmd.Flags().String("name", "", "display name")
	adminCreateUserCmd.Flags().String("email", "", "email address")
	adminCreateUserCmd.Flags().String("password", "", "password (prompted when omitted)")
	adminCreateUserCmd.Flags().Bool("admin", false, "grant admin privileges")

	adminSetPasswordCmd.Flags().String("password", "", "new password (prompted when omitted)")

	adminUsersCmd.Flags().Bool("json", false, "output JSON")
	adminRoomsCmd.Flags().Bool("json", false, "output JSON")
	adminStatsCmd.Flags().Bool("json", false, "output JSON")

	adminEventsCmd.Flags().String("type", "", "auth event type: signup, login or login_failed")
	adminEventsCmd.Flags().Int("limit", serverdb.DefaultListLimit, "maximum events to show")
	adminEventsCmd.Flags().Bool("rate-limit", false, "show rate limit events instead of auth events")

	adminCmd.AddCommand(
		adminGrantCmd,
		adminRevokeCmd,
		adminCreateUserCmd,
		adminSetPasswordCmd,
		adminUsersCmd,
		adminRoomsCmd,
		adminDeleteRoomCmd,
		adminStatsCmd,
		adminEventsCmd,
	)
	rootCmd.AddCommand(adminCmd)
}
