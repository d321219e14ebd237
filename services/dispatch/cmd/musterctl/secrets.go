package main

import (
	"errors"

	"github.com/spf13/cobra"

	"muster/pkg/secret"
)

// secretFlags select where a command's sensitive payload comes from. With
// none set the value is prompted for on the terminal.
type secretFlags struct {
	envVar      string
	file        string
	ageFile     string
	ageIdentity string
}

func (f *secretFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.envVar, "secret-env", "", "Read the secret value from this environment variable")
	cmd.Flags().StringVar(&f.file, "secret-file", "", "Read the secret value from this file")
	cmd.Flags().StringVar(&f.ageFile, "secret-age", "", "Read the secret value from this age-encrypted file")
	cmd.Flags().StringVar(&f.ageIdentity, "age-identity", "", "Age identity file for --secret-age")
}

func (f *secretFlags) source(promptLabel string, confirm bool) (secret.Source, error) {
	set := 0
	for _, v := range []string{f.envVar, f.file, f.ageFile} {
		if v != "" {
			set++
		}
	}
	if set > 1 {
		return nil, errors.New("at most one of --secret-env, --secret-file, --secret-age may be set")
	}

	switch {
	case f.envVar != "":
		return secret.EnvSource{Var: f.envVar}, nil
	case f.file != "":
		return secret.FileSource{Path: f.file}, nil
	case f.ageFile != "":
		if f.ageIdentity == "" {
			return nil, errors.New("--secret-age requires --age-identity")
		}
		return secret.AgeFileSource{Path: f.ageFile, IdentityPath: f.ageIdentity}, nil
	default:
		return secret.PromptSource{Label: promptLabel, Confirm: confirm}, nil
	}
}
