package main

import (
	"fmt"

	"github.com/apex/log"
	"github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/partition/mbr"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"legacyboot/internal/host"
	"legacyboot/internal/image/partition"
	"legacyboot/internal/volume"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <IMAGE>",
	Short: "Print the partition table of a disk image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := host.OpenDisk(args[0], volume.Internal, true, 0)
		if err != nil {
			return err
		}
		defer d.Release()

		t, err := partition.DetectR(d.Reader())
		if err != nil {
			return err
		}
		hdr := color.New(color.Bold, color.FgCyan).SprintFunc()
		fmt.Printf("%s %s, %s\n", hdr(args[0]), t.Scheme, humanize.IBytes(d.Sectors()*uint64(d.BlockSize())))
		if t.Scheme == partition.MBR {
			fmt.Printf("  signature %08X, boot code %t\n", t.DiskSignature, t.BootCode)
		}
		for _, e := range t.Entries {
			active := " "
			if e.Bootable {
				active = "*"
			}
			kind := "primary"
			if e.Logical {
				kind = "logical"
			}
			fmt.Printf("  %s %2d  %-7s %#04x %-20s %10d %10s\n", active, e.Index, kind, e.TypeCode, e.Type,
				e.StartLBA, humanize.IBytes(e.Sectors()*uint64(t.SectorSize)))
		}
		if t.Scheme == partition.MBR && !d.Scratch() {
			crossCheck(args[0], t)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

// crossCheck compares the primary slots with what go-diskfs reads from the
// same image.
func crossCheck(path string, t *partition.Table) {
	disk, err := diskfs.Open(path, diskfs.WithOpenMode(diskfs.ReadOnly))
	if err != nil {
		log.WithError(err).Debug("diskfs cross-check skipped")
		return
	}
	defer disk.Close()
	pt, err := disk.GetPartitionTable()
	if err != nil {
		log.WithError(err).Debug("diskfs cross-check skipped")
		return
	}
	table, ok := pt.(*mbr.Table)
	if !ok {
		return
	}
	var want []partition.Entry
	for _, e := range t.Entries {
		if !e.Logical {
			want = append(want, e)
		}
	}
	var got []*mbr.Partition
	for _, p := range table.Partitions {
		if p.Size != 0 {
			got = append(got, p)
		}
	}
	if len(got) != len(want) {
		log.Warnf("diskfs reads %d primary partitions, %d parsed", len(got), len(want))
		return
	}
	for i, p := range got {
		if uint64(p.Start) != want[i].StartLBA || byte(p.Type) != want[i].TypeCode {
			log.Warnf("primary %d differs: diskfs start %d type %#02x", i, p.Start, byte(p.Type))
		}
	}
}
