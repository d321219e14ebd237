package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"muster/services/dispatch"
)

// defaultPasswdDocument is the parameterized execution document that
// applies a password change. The password parameter is substituted by the
// channel on the target, never rendered into shell text here.
const defaultPasswdDocument = "Muster-UpdateLocalPassword"

func newPasswdCommand() *cobra.Command {
	var (
		tf       targetFlags
		bf       batchFlags
		sf       secretFlags
		user     string
		document string
	)

	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Update a local user's password on the selected targets",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			specs, err := tf.specs()
			if err != nil {
				return err
			}

			p, err := newPipeline(ctx)
			if err != nil {
				return err
			}
			defer p.Close()

			src, err := sf.source(fmt.Sprintf("New password for %s", user), true)
			if err != nil {
				return err
			}
			password, err := src.Secret(ctx)
			if err != nil {
				return err
			}
			p.tel.Redact(password)

			doc := document
			if doc == "" {
				doc = strings.TrimSpace(os.Getenv("MUSTER_PASSWD_DOCUMENT"))
			}
			if doc == "" {
				doc = defaultPasswdDocument
			}

			return executeBatch(ctx, p, specs, dispatch.Command{
				Document: doc,
				Params: map[string]string{
					"username":    user,
					"newPassword": password,
				},
				Comment: fmt.Sprintf("update password for user %s", user),
			}, bf)
		},
	}

	tf.register(cmd)
	bf.register(cmd)
	sf.register(cmd)
	cmd.Flags().StringVar(&user, "user", "", "Local user whose password will be changed")
	cmd.Flags().StringVar(&document, "document", "", "Parameterized password-change document (default from MUSTER_PASSWD_DOCUMENT)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
