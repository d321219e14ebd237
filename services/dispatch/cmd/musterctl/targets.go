package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"muster/services/dispatch"
)

// targetFlags collect the selector inputs shared by every subcommand.
type targetFlags struct {
	ids       []string
	addresses []string
	tags      []string
	plan      string
}

func (f *targetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.ids, "id", nil, "Target canonical id (repeatable)")
	cmd.Flags().StringSliceVar(&f.addresses, "address", nil, "Target private IP address (repeatable)")
	cmd.Flags().StringArrayVar(&f.tags, "tag", nil, "Tag selector key=value (repeatable)")
	cmd.Flags().StringVar(&f.plan, "plan", "", "YAML plan file with ids, addresses and tag selectors")
}

func (f *targetFlags) specs() ([]dispatch.TargetSpec, error) {
	var specs []dispatch.TargetSpec

	if f.plan != "" {
		planSpecs, err := dispatch.LoadPlan(f.plan)
		if err != nil {
			return nil, err
		}
		specs = append(specs, planSpecs...)
	}

	for _, id := range f.ids {
		if id = strings.TrimSpace(id); id != "" {
			specs = append(specs, dispatch.ExplicitID(id))
		}
	}
	for _, addr := range f.addresses {
		if addr = strings.TrimSpace(addr); addr != "" {
			specs = append(specs, dispatch.Address(addr))
		}
	}
	for _, tag := range f.tags {
		key, value, ok := strings.Cut(tag, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid tag selector %q, expected key=value", tag)
		}
		specs = append(specs, dispatch.Tag(strings.TrimSpace(key), strings.TrimSpace(value)))
	}

	if len(specs) == 0 {
		return nil, errors.New("no targets selected; use --id, --address, --tag or --plan")
	}
	return specs, nil
}
