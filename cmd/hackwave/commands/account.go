package commands

import (
	"context"

	"github.com/spf13/cobra"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Account maintenance",
	Long: `Account maintenance flows.

Subcommands:
  forgot-password   Request a password reset email
  reset-password    Set a new password with an emailed token
  verify-email      Confirm an email address with an emailed token`,
}

var forgotPasswordCmd = &cobra.Command{
	Use:   "forgot-password <email>",
	Short: "Request a password reset email",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		controller, err := newController()
		if err != nil {
			return err
		}
		if err := controller.ForgotPassword(context.Background(), args[0]); err != nil {
			return err
		}
		green.Println("Reset email sent if the address is registered")
		return nil
	},
}

var resetPasswordCmd = &cobra.Command{
	Use:   "reset-password <token>",
	Short: "Set a new password using an emailed reset token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		controller, err := newController()
		if err != nil {
			return err
		}
		password, err := prompt("New password")
		if err != nil {
			return err
		}
		if err := controller.ResetPassword(context.Background(), args[0], password); err != nil {
			return err
		}
		green.Println("Password updated, sign in with the new password")
		return nil
	},
}

var verifyEmailCmd = &cobra.Command{
	Use:   "verify-email <token>",
	Short: "Confirm an email address using an emailed token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		controller, err := newController()
		if err != nil {
			return err
		}
		if err := controller.VerifyEmail(context.Background(), args[0]); err != nil {
			return err
		}
		green.Println("Email verified")
		return nil
	},
}

func init() {
	accountCmd.AddCommand(forgotPasswordCmd)
	accountCmd.AddCommand(resetPasswordCmd)
	accountCmd.AddCommand(verifyEmailCmd)
}
