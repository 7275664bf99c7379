package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/aussiebroadwan/neupass/internal/app"
	"github.com/spf13/cobra"
)

// newRootCmd builds the command tree. The application is created lazily so
// help and argument errors work without credentials.
func newRootCmd() *cobra.Command {
	var application *app.Application

	loadApp := func(cmd *cobra.Command, args []string) error {
		cfg, err := app.LoadConfig()
		if err != nil {
			return err
		}
		application, err = app.New(cfg)
		if err != nil {
			return err
		}
		cmd.SetContext(application.Context(cmd.Context()))
		return nil
	}

	root := &cobra.Command{
		Use:   "neupass",
		Short: "Log in to NEU campus services through the unified SSO",
		Long: `neupass drives the NEU unified SSO login and the apps behind it.

Credentials are read from NEUPASS_STUDENT_ID and NEUPASS_PASSWORD (a .env
file in the working directory is loaded first). Results are printed as JSON.`,
		SilenceUsage: true,
	}

	ecode := &cobra.Command{
		Use:               "ecode",
		Short:             "Campus identity QR code",
		PersistentPreRunE: loadApp,
	}
	ecode.AddCommand(
		&cobra.Command{
			Use:   "qr",
			Short: "Print the current identity QR code",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				qr, err := application.ECode.QRCode(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to fetch qr code: %w", err)
				}
				return writeJSON(cmd.OutOrStdout(), qr)
			},
		},
		&cobra.Command{
			Use:   "user",
			Short: "Print the identity behind the QR code",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				info, err := application.ECode.UserInfo(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to fetch ecode user info: %w", err)
				}
				return writeJSON(cmd.OutOrStdout(), info)
			},
		},
	)

	personal := &cobra.Command{
		Use:               "personal",
		Short:             "Personal data portal",
		PersistentPreRunE: loadApp,
	}
	personal.AddCommand(
		&cobra.Command{
			Use:   "info",
			Short: "Print the portal profile",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				info, err := application.Personal.UserInfo(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to fetch user info: %w", err)
				}
				return writeJSON(cmd.OutOrStdout(), info)
			},
		},
		&cobra.Command{
			Use:   "keys",
			Short: "List the available personal data keys",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				ids, err := application.Personal.DataIDs(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to list data keys: %w", err)
				}
				return writeJSON(cmd.OutOrStdout(), ids)
			},
		},
		&cobra.Command{
			Use:   "item <key>",
			Short: "Print one personal data value, e.g. card_balance",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ids, err := application.Personal.DataIDs(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to list data keys: %w", err)
				}
				item, err := application.Personal.DataItem(cmd.Context(), ids, args[0])
				if err != nil {
					return fmt.Errorf("failed to fetch %q: %w", args[0], err)
				}
				value, _ := item.ValueString()
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"key":   args[0],
					"value": value,
					"unit":  item.Unit,
					"url":   item.URL,
				})
			},
		},
	)

	assistant := &cobra.Command{
		Use:               "assistant",
		Short:             "Campus AI assistant",
		PersistentPreRunE: loadApp,
	}
	assistant.AddCommand(
		&cobra.Command{
			Use:   "new-session",
			Short: "Create a new assistant conversation and print its id",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := application.Assistant.NewSessionID(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to create assistant session: %w", err)
				}
				return writeJSON(cmd.OutOrStdout(), map[string]string{"session_id": id})
			},
		},
		&cobra.Command{
			Use:   "sessions",
			Short: "List assistant conversations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				raw, err := application.Assistant.SessionList(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to list assistant sessions: %w", err)
				}
				return writeJSON(cmd.OutOrStdout(), raw)
			},
		},
	)

	root.AddCommand(ecode, personal, assistant)
	return root
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
