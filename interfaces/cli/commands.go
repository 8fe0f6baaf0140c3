package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/suryansh-business-work/party-wings-website/application/quoteform"
	"github.com/suryansh-business-work/party-wings-website/domain/quote"
)

const defaultPoll = 500 * time.Millisecond

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func addCmd(o *options) *cobra.Command {
	var sel quote.Selection
	cmd := &cobra.Command{
		Use:   "add [id]",
		Short: "Add a service to the quote",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().StringVar(&sel.Title, "title", "", "service title")
	cmd.Flags().StringVar(&sel.Category, "category", "", "service category")
	cmd.Flags().StringVar(&sel.Price, "price", "", "display price")
	cmd.Flags().StringVar(&sel.Description, "description", "", "short description")
	cmd.Flags().StringVar(&sel.Image, "image", "", "image URL")
	cmd.RunE = func(c *cobra.Command, args []string) error {
		sel.ID = args[0]
		return withSession(o, func(_ context.Context, s *session) error {
			before, err := s.doc.Quote()
			if err != nil {
				return err
			}
			after, err := s.doc.Add(sel)
			if err != nil {
				return err
			}
			if before.Contains(sel.ID) {
				fmt.Fprintf(c.OutOrStdout(), "%s %s already in quote\n", yellow("!"), sel.ID)
				return nil
			}
			fmt.Fprintf(c.OutOrStdout(), "%s Added %s (%d in quote)\n", green("✓"), sel.ID, len(after))
			return nil
		})(c, args)
	}
	return cmd
}

func removeCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "remove [id]",
		Short: "Remove a service from the quote",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			id := args[0]
			return withSession(o, func(_ context.Context, s *session) error {
				before, err := s.doc.Quote()
				if err != nil {
					return err
				}
				after, err := s.doc.Remove(id)
				if err != nil {
					return err
				}
				if !before.Contains(id) {
					fmt.Fprintf(c.OutOrStdout(), "%s %s not in quote\n", yellow("!"), id)
					return nil
				}
				fmt.Fprintf(c.OutOrStdout(), "%s Removed %s (%d in quote)\n", green("✓"), id, len(after))
				return nil
			})(c, args)
		},
	}
}

func clearCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every service from the quote",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return withSession(o, func(_ context.Context, s *session) error {
				if _, err := s.doc.Clear(); err != nil {
					return err
				}
				fmt.Fprintf(c.OutOrStdout(), "%s Quote cleared\n", green("✓"))
				return nil
			})(c, args)
		},
	}
}

func listCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the services in the quote",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return withSession(o, func(_ context.Context, s *session) error {
				items, err := s.doc.Quote()
				if err != nil {
					return err
				}
				printQuote(c.OutOrStdout(), items)
				return nil
			})(c, args)
		},
	}
}

func printQuote(w io.Writer, items quote.Collection) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No services selected yet.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, bold("ID")+"\t"+bold("TITLE")+"\t"+bold("CATEGORY")+"\t"+bold("PRICE"))
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", it.ID, it.Title, it.Category, it.Price)
	}
	tw.Flush()
	fmt.Fprintf(w, "%d in quote\n", len(items))
}

func watchCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the quote whenever it changes",
		Long:  "Print the quote now and after every change made by any tab or process sharing the store.",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return withSession(o, func(ctx context.Context, s *session) error {
				out := c.OutOrStdout()
				updates := make(chan quote.Collection, 16)
				unwatch, err := s.doc.Watch(func(items quote.Collection) {
					select {
					case updates <- items:
					default:
					}
				})
				if err != nil {
					return err
				}
				defer unwatch()

				for {
					select {
					case <-ctx.Done():
						return nil
					case items := <-updates:
						fmt.Fprintf(out, "%s %s\n", bold(time.Now().Format("15:04:05")), green("quote updated"))
						printQuote(out, items)
					}
				}
			})(c, args)
		},
	}
}

func submitCmd(o *options) *cobra.Command {
	var (
		server  string
		contact quoteform.Contact
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Send the quote as a quote request",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&server, "server", "http://localhost:8080", "quote API base URL")
	cmd.Flags().StringVar(&contact.Name, "name", "", "your name")
	cmd.Flags().StringVar(&contact.Phone, "phone", "", "your phone number")
	cmd.Flags().StringVar(&contact.Email, "email", "", "your email")
	cmd.Flags().StringVar(&contact.EventDate, "date", "", "event date")
	cmd.Flags().StringVar(&contact.EventLocation, "location", "", "city or venue")
	cmd.Flags().StringVar(&contact.Notes, "notes", "", "notes")
	cmd.RunE = func(c *cobra.Command, args []string) error {
		return withSession(o, func(ctx context.Context, s *session) error {
			receipt, err := quoteform.New(server, s.doc, s.logger).Submit(ctx, contact)
			var rejected *quoteform.RejectedError
			switch {
			case errors.As(err, &rejected):
				return errors.New(rejected.Message)
			case errors.Is(err, quoteform.ErrNetwork):
				return errors.New(quoteform.MessageNetwork)
			case err != nil:
				return err
			}
			fmt.Fprintf(c.OutOrStdout(), "%s %s\n", green("✓"), quoteform.MessageSent)
			fmt.Fprintf(c.OutOrStdout(), "  %d services sent for %s\n", len(receipt.Services), receipt.Name)
			return nil
		})(c, args)
	}
	return cmd
}
