package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/todopro/internal/api"
	"github.com/nhle/todopro/internal/inbox"
	"github.com/nhle/todopro/internal/mailer"
	"github.com/nhle/todopro/internal/model"
)

const (
	requestTimeout = 30 * time.Second
	inboxTimeout   = 5 * time.Minute
	inboxPoll      = 10 * time.Second
)

var (
	registerEmail     string
	registerFromInbox bool
	registerSkip      bool

	verifyToken     string
	verifyLink      string
	verifyFromInbox bool
	verifySince     time.Duration

	resetEmail     string
	resetCode      string
	resetFromInbox bool
	resetSince     time.Duration
)

var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Sign in and store the session",
	Args:  cobra.MaximumNArgs(1),
	RunE: withClient(func(ctx context.Context, cmd *cobra.Command, env *clientEnv, args []string) error {
		var username, password string
		if len(args) == 1 {
			username = args[0]
		}
		if err := ask("Username", &username, false); err != nil {
			return err
		}
		if err := ask("Password", &password, true); err != nil {
			return err
		}

		user, err := env.manager.Login(ctx, username, password)
		if err != nil {
			return userError(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%d tasks)\n", user.Username, env.tasks.Len())
		return nil
	}),
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	Args:  cobra.NoArgs,
	RunE: withClient(func(ctx context.Context, cmd *cobra.Command, env *clientEnv, _ []string) error {
		if ok, _ := env.manager.RestoreSession(ctx); !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
			return nil
		}
		if err := env.manager.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
		return nil
	}),
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE: withClient(func(ctx context.Context, cmd *cobra.Command, env *clientEnv, _ []string) error {
		sess, err := env.requireSession(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s <%s>\n", sess.User.Username, sess.User.Email)
		fmt.Fprintf(out, "server:  %s\n", cfg.Client.ServerURL)
		fmt.Fprintf(out, "expires: %s\n", sess.Expiry.Local().Format(time.DateTime))
		return nil
	}),
}

var registerCmd = &cobra.Command{
	Use:   "register [username]",
	Short: "Create an account and confirm the e-mail address",
	Long: `Create an account. The server mails a 6-digit code and a link.

By default the command then asks for the code. With --from-inbox it reads
the mail from the IMAP inbox configured in the inbox section instead.
A confirmed account is signed in right away.`,
	Args: cobra.MaximumNArgs(1),
	RunE: withClient(func(ctx context.Context, cmd *cobra.Command, env *clientEnv, args []string) error {
		var username string
		if len(args) == 1 {
			username = args[0]
		}
		if err := ask("Username", &username, false); err != nil {
			return err
		}
		if err := ask("E-mail", &registerEmail, false); err != nil {
			return err
		}
		password, err := askNewPassword("Password")
		if err != nil {
			return err
		}

		since := time.Now()
		v, err := env.manager.Register(ctx, username, registerEmail, password)
		if err != nil {
			return userError(err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Account created. A confirmation was sent to %s\n", registerEmail)
		if registerSkip {
			fmt.Fprintf(out, "Confirm later with: todopro verify --link %s\n", v.Token)
			return nil
		}

		var user model.User
		if registerFromInbox {
			text, err := waitForMail(ctx, mailer.VerificationSubject, since)
			if err != nil {
				return err
			}
			found, err := inbox.ExtractVerification(text)
			if err != nil {
				return err
			}
			user, err = confirm(ctx, env, found.Code, found.Token)
			if err != nil {
				return err
			}
		} else {
			var code string
			if err := ask("Code from the e-mail", &code, false); err != nil {
				return err
			}
			if user, err = env.manager.VerifyEmail(ctx, code, ""); err != nil {
				return userError(err)
			}
		}

		fmt.Fprintf(out, "E-mail confirmed. Logged in as %s\n", user.Username)
		return nil
	}),
}

var verifyCmd = &cobra.Command{
	Use:   "verify [code]",
	Short: "Confirm an e-mail address",
	Long: `Confirm an e-mail address with the mailed code and the registration
token, with the token of the mailed link, or by reading the mail from the
configured IMAP inbox.

Examples:
  todopro verify 123456 --token 4f9c...
  todopro verify --link 4f9c...
  todopro verify --from-inbox --since 2h`,
	Args: cobra.MaximumNArgs(1),
	RunE: withClient(func(ctx context.Context, cmd *cobra.Command, env *clientEnv, args []string) error {
		var user model.User
		var err error

		switch {
		case verifyLink != "":
			user, err = env.manager.VerifyEmailLink(ctx, verifyLink)
		case verifyFromInbox:
			text, werr := waitForMail(ctx, mailer.VerificationSubject, time.Now().Add(-verifySince))
			if werr != nil {
				return werr
			}
			found, xerr := inbox.ExtractVerification(text)
			if xerr != nil {
				return xerr
			}
			user, err = confirm(ctx, env, found.Code, found.Token)
		case len(args) == 1:
			if verifyToken == "" {
				return errors.New("--token is required with a code")
			}
			user, err = env.manager.VerifyEmail(ctx, args[0], verifyToken)
		default:
			return errors.New("give a code with --token, --link or --from-inbox")
		}
		if err != nil {
			return userError(err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "E-mail of %s confirmed. You can now log in.\n", user.Username)
		return nil
	}),
}

var forgotCmd = &cobra.Command{
	Use:   "forgot [email]",
	Short: "Request a password reset code",
	Args:  cobra.MaximumNArgs(1),
	RunE: withClient(func(ctx context.Context, cmd *cobra.Command, env *clientEnv, args []string) error {
		var email string
		if len(args) == 1 {
			email = args[0]
		}
		if err := ask("E-mail", &email, false); err != nil {
			return err
		}

		msg, err := env.manager.ForgotPassword(ctx, email)
		if err != nil {
			return userError(err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg)
		return nil
	}),
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Set a new password with a reset code",
	Args:  cobra.NoArgs,
	RunE: withClient(func(ctx context.Context, cmd *cobra.Command, env *clientEnv, _ []string) error {
		if err := ask("E-mail", &resetEmail, false); err != nil {
			return err
		}

		if resetFromInbox && resetCode == "" {
			text, err := waitForMail(ctx, mailer.ResetSubject, time.Now().Add(-resetSince))
			if err != nil {
				return err
			}
			if resetCode, err = inbox.ExtractResetCode(text); err != nil {
				return err
			}
		}
		if err := ask("Reset code", &resetCode, false); err != nil {
			return err
		}
		password, err := askNewPassword("New password")
		if err != nil {
			return err
		}

		msg, err := env.manager.ResetPassword(ctx, resetEmail, resetCode, password)
		if err != nil {
			return userError(err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg)
		return nil
	}),
}

var renameCmd = &cobra.Command{
	Use:   "rename <new-username>",
	Short: "Change the username",
	Args:  cobra.ExactArgs(1),
	RunE: withClient(func(ctx context.Context, cmd *cobra.Command, env *clientEnv, args []string) error {
		if _, err := env.requireSession(ctx); err != nil {
			return err
		}
		user, err := env.manager.ChangeUsername(ctx, args[0])
		if err != nil {
			return userError(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Username changed to %s\n", user.Username)
		return nil
	}),
}

var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change the password",
	Args:  cobra.NoArgs,
	RunE: withClient(func(ctx context.Context, cmd *cobra.Command, env *clientEnv, _ []string) error {
		if _, err := env.requireSession(ctx); err != nil {
			return err
		}
		var current string
		if err := ask("Current password", &current, true); err != nil {
			return err
		}
		next, err := askNewPassword("New password")
		if err != nil {
			return err
		}

		msg, err := env.manager.ChangePassword(ctx, current, next)
		if err != nil {
			return userError(err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg)
		return nil
	}),
}

func init() {
	registerCmd.Flags().StringVar(&registerEmail, "email", "", "e-mail address")
	registerCmd.Flags().BoolVar(&registerFromInbox, "from-inbox", false, "read the confirmation from the configured inbox")
	registerCmd.Flags().BoolVar(&registerSkip, "no-verify", false, "stop after creating the account")

	verifyCmd.Flags().StringVar(&verifyToken, "token", "", "registration token that goes with the code")
	verifyCmd.Flags().StringVar(&verifyLink, "link", "", "token of the mailed confirmation link")
	verifyCmd.Flags().BoolVar(&verifyFromInbox, "from-inbox", false, "read the confirmation from the configured inbox")
	verifyCmd.Flags().DurationVar(&verifySince, "since", time.Hour, "how far back to look in the inbox")

	resetCmd.Flags().StringVar(&resetEmail, "email", "", "e-mail address of the account")
	resetCmd.Flags().StringVar(&resetCode, "code", "", "reset code from the e-mail")
	resetCmd.Flags().BoolVar(&resetFromInbox, "from-inbox", false, "read the reset code from the configured inbox")
	resetCmd.Flags().DurationVar(&resetSince, "since", time.Hour, "how far back to look in the inbox")
}

type clientFunc func(ctx context.Context, cmd *cobra.Command, env *clientEnv, args []string) error

// withClient opens the client core around fn and closes it afterwards,
// pushing any changes fn made.
func withClient(fn clientFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		env, err := openClient(cfg)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := env.close(); err == nil {
				err = cerr
			}
		}()
		return fn(cmd.Context(), cmd, env, args)
	}
}

// confirm verifies with a link token when the mail carried one, and with
// the code otherwise.
func confirm(ctx context.Context, env *clientEnv, code, token string) (model.User, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var user model.User
	var err error
	if token != "" {
		user, err = env.manager.VerifyEmailLink(ctx, token)
	} else {
		user, err = env.manager.VerifyEmail(ctx, code, "")
	}
	if err != nil {
		return model.User{}, userError(err)
	}
	return user, nil
}

// waitForMail polls the configured inbox for a mail with subject that
// arrived after since and returns its text.
func waitForMail(ctx context.Context, subject string, since time.Time) (string, error) {
	ib := inbox.NewClient(cfg.Inbox)
	if !ib.Configured() {
		return "", errors.New("inbox is not configured, set inbox.host and inbox.username")
	}

	ctx, cancel := context.WithTimeout(ctx, inboxTimeout)
	defer cancel()

	msg, err := ib.WaitFor(ctx, subject, since, inboxPoll)
	if err != nil {
		return "", err
	}
	return msg.Text, nil
}

// userError turns a remote refusal into its message; other errors pass
// through.
func userError(err error) error {
	if api.IsAuthError(err) || api.IsTransportError(err) {
		return errors.New(api.Message(err))
	}
	return err
}
