package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hackwave/hackwave/internal/session"
	"github.com/hackwave/hackwave/pkg/types"
)

var (
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
)

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Sign in to the platform",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear the local session",
	RunE:  runLogout,
}

var registerCmd = &cobra.Command{
	Use:   "register <email>",
	Short: "Create an account",
	RunE:  runRegister,
	Args:  cobra.ExactArgs(1),
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in identity",
	RunE:  runWhoami,
}

func prompt(label string) (string, error) {
	fmt.Printf("%s: ", label)
	reader := bufio.NewReader(os.Stdin)
	value, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

// renderResult prints a session operation result and reports whether the
// session ended up authenticated.
func renderResult(res *session.Result) bool {
	switch res.Outcome {
	case session.OutcomeOK:
		green.Printf("Signed in as %s\n", res.User.Email)
		return true
	case session.OutcomeRejected:
		red.Printf("Sign-in rejected: %s\n", res.Message)
	case session.OutcomeSuspended:
		red.Printf("Account suspended: %s\n", res.Reason)
	case session.OutcomeRateLimited:
		yellow.Printf("Too many attempts, retry in %s\n", res.RetryAfter)
	case session.OutcomeSessionExpired:
		yellow.Println("Verification session expired, sign in again")
	}
	return false
}

func runLogin(cmd *cobra.Command, args []string) error {
	controller, err := newController()
	if err != nil {
		return err
	}
	ctx := context.Background()

	password, err := prompt("Password")
	if err != nil {
		return err
	}

	res, err := controller.Login(ctx, args[0], password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	if res.Outcome == session.OutcomeMFARequired {
		code, err := prompt("Verification code")
		if err != nil {
			return err
		}
		res, err = controller.VerifyMFA(ctx, code)
		if err != nil {
			return fmt.Errorf("verification failed: %w", err)
		}
	}

	renderResult(res)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	controller, err := newController()
	if err != nil {
		return err
	}
	controller.Logout(context.Background())
	green.Println("Signed out")
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	controller, err := newController()
	if err != nil {
		return err
	}

	first, err := prompt("First name")
	if err != nil {
		return err
	}
	last, err := prompt("Last name")
	if err != nil {
		return err
	}
	password, err := prompt("Password")
	if err != nil {
		return err
	}

	res, err := controller.Register(context.Background(), types.RegisterRequest{
		Email:     args[0],
		Password:  password,
		FirstName: first,
		LastName:  last,
	})
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	if renderResult(res) && !res.User.EmailVerified {
		yellow.Println("Check your inbox to verify your email address")
	}
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	controller, err := newController()
	if err != nil {
		return err
	}

	controller.Start(context.Background(), bootstrapFromEnv())

	switch controller.Status() {
	case session.StatusAuthenticated:
		user := controller.User()
		fmt.Printf("%s <%s>\n", user.FullName(), user.Email)
		if !user.EmailVerified {
			yellow.Println("email not verified")
		}
	case session.StatusSuspended:
		red.Printf("Account suspended: %s\n", controller.SuspensionReason())
	default:
		fmt.Println("Not signed in")
	}
	return nil
}
