package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/suryansh-business-work/party-wings-website/infrastructure/authapi"
	"github.com/suryansh-business-work/party-wings-website/infrastructure/storage"
	apperrors "github.com/suryansh-business-work/party-wings-website/pkg/errors"
)

// sessionOwner marks session writes made by quotectl in the visitor's store.
const sessionOwner = "quotectl"

func (s *session) area(visitor string) *storage.Area {
	return storage.NewArea(s.backend, visitor, sessionOwner)
}

func signupCmd(o *options) *cobra.Command {
	var req authapi.SignupRequest
	var otp string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Register as a vendor with a phone OTP",
		Long: `Without --otp, signup asks the auth service to send a registration OTP
to --phone. Run it again with --otp to verify the code and store the session.`,
		Args: cobra.NoArgs,
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "business or vendor name")
	cmd.Flags().StringVar(&req.Phone, "phone", "", "10 digit phone number")
	cmd.Flags().StringVar(&otp, "otp", "", "OTP received by SMS")
	_ = cmd.MarkFlagRequired("phone")
	cmd.RunE = func(c *cobra.Command, args []string) error {
		return withSession(o, func(ctx context.Context, s *session) error {
			client := authapi.NewClientFromConfig(o.auth, s.logger)
			if otp != "" {
				return verify(ctx, s, o.visitor, client, req.Phone, otp, "Registered")
			}
			env, err := client.Signup(ctx, req)
			if err != nil {
				return authError(env, err)
			}
			fmt.Fprintf(s.out, "%s OTP sent to %s\n", green("✓"), req.Phone)
			return nil
		})(c, args)
	}
	return cmd
}

func loginCmd(o *options) *cobra.Command {
	var phone, otp string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in as a vendor with a phone OTP",
		Long: `Without --otp, login asks the auth service to send an OTP to --phone.
Run it again with --otp to verify the code and store the session.`,
		Args: cobra.NoArgs,
	}
	cmd.Flags().StringVar(&phone, "phone", "", "10 digit phone number")
	cmd.Flags().StringVar(&otp, "otp", "", "OTP received by SMS")
	_ = cmd.MarkFlagRequired("phone")
	cmd.RunE = func(c *cobra.Command, args []string) error {
		return withSession(o, func(ctx context.Context, s *session) error {
			client := authapi.NewClientFromConfig(o.auth, s.logger)
			if otp != "" {
				return verify(ctx, s, o.visitor, client, phone, otp, "Logged in")
			}
			env, err := client.Login(ctx, phone)
			if err != nil {
				return authError(env, err)
			}
			fmt.Fprintf(s.out, "%s OTP sent to %s\n", green("✓"), phone)
			return nil
		})(c, args)
	}
	return cmd
}

func verify(ctx context.Context, s *session, visitor string, client *authapi.Client, phone, otp, done string) error {
	env, err := client.VerifyOTP(ctx, phone, otp)
	if err != nil {
		return authError(env, err)
	}
	if err := authapi.SaveSession(ctx, s.area(visitor), env.Data); err != nil {
		return apperrors.NewStorageError("save session", err)
	}
	fmt.Fprintf(s.out, "%s %s as %s\n", green("✓"), done, phone)
	return nil
}

func whoamiCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored vendor session",
		Args:  cobra.NoArgs,
		RunE: withSession(o, func(ctx context.Context, s *session) error {
			sess, ok, err := authapi.LoadSession(ctx, s.area(o.visitor))
			if err != nil {
				return apperrors.NewStorageError("load session", err)
			}
			printSession(s.out, sess, ok)
			return nil
		}),
	}
}

func printSession(out io.Writer, sess *authapi.Session, ok bool) {
	if !ok {
		fmt.Fprintln(out, "Not logged in.")
		return
	}
	fmt.Fprintf(out, "%s %s\n", bold("User:"), string(sess.User))
	exp, err := sess.ExpiresAt()
	switch {
	case errors.Is(err, authapi.ErrNoExpiry):
		fmt.Fprintln(out, "Session does not expire.")
	case err != nil || sess.Expired(time.Now()):
		fmt.Fprintf(out, "%s session expired, log in again\n", yellow("!"))
	default:
		fmt.Fprintf(out, "Session valid until %s\n", exp.Local().Format(time.RFC1123))
	}
}

func logoutCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored vendor session",
		Args:  cobra.NoArgs,
		RunE: withSession(o, func(ctx context.Context, s *session) error {
			if err := authapi.ClearSession(ctx, s.area(o.visitor)); err != nil {
				return apperrors.NewStorageError("clear session", err)
			}
			fmt.Fprintf(s.out, "%s Logged out\n", green("✓"))
			return nil
		}),
	}
}

// authError turns auth client failures into messages for the terminal.
func authError(env *authapi.Envelope, err error) error {
	switch {
	case apperrors.IsValidation(err):
		fields := slices.Sorted(maps.Keys(apperrors.GetAppError(err).Details))
		return fmt.Errorf("invalid %s", strings.Join(fields, ", "))
	case apperrors.IsUnavailable(err):
		return errors.New("auth service is unavailable, try again shortly")
	case errors.Is(err, authapi.ErrRejected) && env != nil && env.Message != "":
		return errors.New(env.Message)
	}
	return err
}
