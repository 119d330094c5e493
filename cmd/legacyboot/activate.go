package main

import (
	"fmt"
	"strconv"

	"github.com/apex/log"
	"github.com/spf13/cobra"

	"legacyboot/internal/host"
	"legacyboot/internal/image/partition"
	"legacyboot/internal/volume"
)

var activateCmd = &cobra.Command{
	Use:   "activate <IMAGE> <INDEX>",
	Short: "Mark one MBR partition of a disk image active",
	Long: `Mark one MBR partition of a raw disk image active and clear the flag on
every other partition. Indices 0-3 are primary slots, 4 and up are logical
partitions in chain order. A boot stub is written when the MBR has no boot code.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("bad partition index %q: %w", args[1], err)
		}
		d, err := host.OpenDisk(args[0], volume.Internal, false, 0)
		if err != nil {
			return err
		}
		defer d.Release()
		if d.Scratch() {
			return fmt.Errorf("%s is compressed; activate a raw image", args[0])
		}

		stub := partition.DefaultBootStub
		if cfg.BootStub != "" {
			if stub, err = partition.LoadBootStub(cfg.BootStub); err != nil {
				return err
			}
		}
		if err := partition.ActivateWithStub(d, index, stub); err != nil {
			return err
		}
		log.WithFields(log.Fields{"image": args[0], "index": index}).Info("partition activated")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(activateCmd)
}
