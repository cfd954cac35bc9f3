package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cgast/gramtest/pkg/checker"
	"github.com/cgast/gramtest/pkg/spec"
)

func newValidateCmd(g *globalFlags) *cobra.Command {
	var checkSpec bool
	cmd := &cobra.Command{
		Use:   "validate <file.yaml>...",
		Short: "Check test files without running a checker",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, g)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				suite, err := spec.LoadFile(path)
				if err == nil && checkSpec {
					err = validatePipeSpec(suite)
				}
				if err != nil {
					failed++
					fmt.Fprintf(out, "%s: invalid\n", path)
					var vr spec.ValidationResult
					if errors.As(err, &vr) {
						for _, ve := range vr.Errors {
							fmt.Fprintf(out, "  %s\n", ve.Error())
						}
					} else {
						fmt.Fprintf(out, "  %v\n", err)
					}
					continue
				}
				e.log.Debug("valid test file", "path", path, "cases", len(suite.Tests))
				fmt.Fprintf(out, "%s: %d cases ok\n", path, len(suite.Tests))
			}
			if failed > 0 {
				return infraError(fmt.Errorf("%d of %d test files invalid", failed, len(args)))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkSpec, "check-spec", false, "also read the pipeline spec and check the configured variants")
	return cmd
}

func validatePipeSpec(suite spec.Suite) error {
	if suite.Config.Spec == "" {
		return nil
	}
	path := suite.Config.Spec
	if !filepath.IsAbs(path) {
		path = filepath.Join(suite.Dir(), path)
	}
	ps, err := checker.ReadPipeSpec(path)
	if err != nil {
		return err
	}
	_, err = checker.SelectVariant(ps, suite.Config.Variants, path)
	return err
}
