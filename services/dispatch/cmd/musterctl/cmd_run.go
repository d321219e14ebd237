package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"muster/services/dispatch"
)

func newRunCommand() *cobra.Command {
	var (
		tf       targetFlags
		bf       batchFlags
		sf       secretFlags
		command  string
		document string
		params   []string
		secretP  string
		comment  string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Dispatch a command to the selected targets and wait for convergence",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			specs, err := tf.specs()
			if err != nil {
				return err
			}
			if command == "" && document == "" {
				return errors.New("--command or --document is required")
			}

			cmdParams := make(map[string]string, len(params)+1)
			for _, p := range params {
				key, value, ok := strings.Cut(p, "=")
				if !ok || strings.TrimSpace(key) == "" {
					return fmt.Errorf("invalid parameter %q, expected key=value", p)
				}
				cmdParams[strings.TrimSpace(key)] = value
			}

			p, err := newPipeline(ctx)
			if err != nil {
				return err
			}
			defer p.Close()

			if secretP != "" {
				// Secrets ride document parameters so the channel
				// substitutes them server-side; they are never folded
				// into command text.
				if document == "" {
					return errors.New("--secret-param requires a parameterized --document")
				}
				src, err := sf.source("Secret value", false)
				if err != nil {
					return err
				}
				value, err := src.Secret(ctx)
				if err != nil {
					return err
				}
				p.tel.Redact(value)
				cmdParams[secretP] = value
			}

			return executeBatch(ctx, p, specs, dispatch.Command{
				Document: document,
				Text:     command,
				Params:   cmdParams,
				Comment:  comment,
			}, bf)
		},
	}

	tf.register(cmd)
	bf.register(cmd)
	sf.register(cmd)
	cmd.Flags().StringVar(&command, "command", "", "Shell command text (must not embed secret material)")
	cmd.Flags().StringVar(&document, "document", "", "Execution document name (default from MUSTER_SSM_DOCUMENT)")
	cmd.Flags().StringArrayVar(&params, "param", nil, "Document parameter key=value (repeatable)")
	cmd.Flags().StringVar(&secretP, "secret-param", "", "Document parameter to fill from the secret source")
	cmd.Flags().StringVar(&comment, "comment", "", "Free-text comment attached to the batch")
	return cmd
}
