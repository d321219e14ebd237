package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"muster/services/dispatch"
)

func newResolveCommand() *cobra.Command {
	var tf targetFlags

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve selectors and report availability without dispatching",
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

			resolver, err := dispatch.NewResolver(p.inv, p.tel.Logger)
			if err != nil {
				return err
			}
			checker, err := dispatch.NewAvailabilityChecker(p.ch, p.tel.Logger)
			if err != nil {
				return err
			}

			resolved, unresolved, err := resolver.Resolve(ctx, specs)
			if err != nil {
				return err
			}

			availability := map[string]bool{}
			if len(resolved) > 0 {
				availability, err = checker.Check(ctx, resolved)
				if err != nil {
					return err
				}
			}

			type row struct {
				Target    dispatch.ResolvedTarget
				Reachable bool
			}
			view := struct {
				Rows       []row
				Unresolved []string
			}{}
			for _, t := range resolved {
				view.Rows = append(view.Rows, row{Target: t, Reachable: availability[t.CanonicalID]})
			}
			for _, spec := range unresolved {
				view.Unresolved = append(view.Unresolved, spec.String())
			}

			text, err := p.renderer.Render("resolve.tmpl", view)
			if err != nil {
				return err
			}
			fmt.Println(text)
			return nil
		},
	}

	tf.register(cmd)
	return cmd
}
