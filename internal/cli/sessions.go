package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/law-makers/revscrape/internal/auth"
	"github.com/law-makers/revscrape/internal/ui"
)

var sessionsDeleteYes bool

// sessionsCmd represents the sessions command
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage saved cookie sessions",
	Long: `List, view, import and delete saved cookie sessions.

A session holds cookies (cookie consent, region or store selection) that are
set in the browser before the product page is opened. Sessions are stored in
the OS keyring, or as files when no keyring is available.`,
	Example: `  # List all saved sessions
  revscrape sessions list

  # View details of a specific session
  revscrape sessions view shop-eu

  # Delete a session without confirmation
  revscrape sessions delete shop-eu --yes`,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all saved sessions",
	Args:  cobra.NoArgs,
	RunE:  runSessionsList,
}

var sessionsViewCmd = &cobra.Command{
	Use:   "view <session-name>",
	Short: "View details of a saved session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsView,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-name>",
	Short: "Delete a saved session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsViewCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)

	sessionsDeleteCmd.Flags().BoolVarP(&sessionsDeleteYes, "yes", "y", false, "Delete without asking")
}

func sessionStore(cmd *cobra.Command) (*auth.Store, error) {
	a := GetAppFromCmd(cmd)
	if a == nil {
		return nil, fmt.Errorf("application not initialized")
	}
	return a.Sessions, nil
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	store, err := sessionStore(cmd)
	if err != nil {
		return err
	}
	names, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	w := cmd.OutOrStdout()
	if len(names) == 0 {
		fmt.Fprintln(w, "\nNo saved sessions found.")
		fmt.Fprintln(w, "\nCreate one with:")
		fmt.Fprintln(w, "  revscrape sessions import <name> --url=<url> --format=netscape < cookies.txt")
		fmt.Fprintln(w)
		return nil
	}

	fmt.Fprintf(w, "\n%s (%d)\n\n", ui.Bold("Saved sessions"), len(names))
	for i, name := range names {
		fmt.Fprintf(w, "%d. %s\n", i+1, ui.Accent(name))

		session, err := store.Load(name)
		switch {
		case errors.Is(err, auth.ErrSessionExpired):
			fmt.Fprintf(w, "   %s\n", ui.Warn("expired"))
			continue
		case err != nil:
			fmt.Fprintf(w, "   %s\n", ui.Error("error loading: "+err.Error()))
			continue
		}

		fmt.Fprintf(w, "   URL:     %s\n", session.URL)
		fmt.Fprintf(w, "   Cookies: %d\n", len(session.Cookies))
		fmt.Fprintf(w, "   Created: %s\n", session.CreatedAt.Format(time.RFC1123))
		if !session.ExpiresAt.IsZero() {
			fmt.Fprintf(w, "   Expires: %s (in %s)\n",
				session.ExpiresAt.Format(time.RFC1123),
				time.Until(session.ExpiresAt).Round(time.Hour))
		}
	}
	fmt.Fprintln(w)
	return nil
}

func runSessionsView(cmd *cobra.Command, args []string) error {
	store, err := sessionStore(cmd)
	if err != nil {
		return err
	}
	name := args[0]

	session, err := store.Load(name)
	if err != nil {
		return fmt.Errorf("failed to load session '%s': %w", name, err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "\n%s %s\n\n", ui.Bold("Session"), ui.Accent(name))
	fmt.Fprintf(w, "URL:      %s\n", session.URL)
	fmt.Fprintf(w, "Created:  %s\n", session.CreatedAt.Format(time.RFC1123))
	if !session.ExpiresAt.IsZero() {
		fmt.Fprintf(w, "Expires:  %s\n", session.ExpiresAt.Format(time.RFC1123))
	}

	applies := len(session.ForURL(session.URL))
	fmt.Fprintf(w, "\nCookies (%d, %d sent to %s):\n", len(session.Cookies), applies, session.URL)
	for i, cookie := range session.Cookies {
		if i >= 10 {
			fmt.Fprintf(w, "  ... and %d more\n", len(session.Cookies)-10)
			break
		}
		fmt.Fprintf(w, "  • %s %s\n", cookie.Name, ui.Dim("(domain: "+cookie.Domain+")"))
	}

	if len(session.Headers) > 0 {
		fmt.Fprintf(w, "\nHeaders (%d):\n", len(session.Headers))
		for key, value := range session.Headers {
			fmt.Fprintf(w, "  • %s: %s\n", key, value)
		}
	}
	fmt.Fprintln(w)
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	store, err := sessionStore(cmd)
	if err != nil {
		return err
	}
	name := args[0]
	w := cmd.OutOrStdout()

	if !sessionsDeleteYes {
		fmt.Fprintf(w, "\nDelete session '%s'? [y/N]: ", name)
		answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if a := strings.TrimSpace(answer); a != "y" && a != "Y" {
			fmt.Fprintln(w, "Cancelled.")
			return nil
		}
	}

	if err := store.Delete(name); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	fmt.Fprintf(w, "%s Session '%s' deleted.\n", ui.Success("✓"), name)
	return nil
}
