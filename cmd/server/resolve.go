package main

import (
	"fmt"

	"beatstore-media-service/internal/repository"

	"github.com/spf13/cobra"
)

func newResolveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <reference>",
		Short: "Show how a stored file reference maps onto the storage root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			storage, err := repository.NewStorageRepository(cfg)
			if err != nil {
				return err
			}
			return printResolution(cmd, storage, args[0])
		},
	}
}

func printResolution(cmd *cobra.Command, storage *repository.StorageRepository, ref string) error {
	out := cmd.OutOrStdout()

	key, ok := repository.NormalizeKey(ref)
	if !ok {
		fmt.Fprintln(out, "key:      <empty>")
	} else {
		fmt.Fprintf(out, "key:      %s\n", key)
	}

	path, err := storage.Resolve(ref)
	if err != nil {
		fmt.Fprintf(out, "rejected: %v\n", err)
		return nil
	}
	fmt.Fprintf(out, "path:     %s\n", path)
	return nil
}
