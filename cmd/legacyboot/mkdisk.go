package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"legacyboot/internal/common"
	"legacyboot/internal/compress"
	"legacyboot/internal/image/diskimage"
	"legacyboot/internal/image/partition"
)

var (
	mkPrimary   []string
	mkLogical   []string
	mkAlign     uint64
	mkSignature string
	mkCompress  string
	mkNoStub    bool
)

var mkdiskCmd = &cobra.Command{
	Use:   "mkdisk <OUT>",
	Short: "Create an MBR disk image for a machine profile",
	Long: `Create an MBR disk image. Each partition is TYPE:SIZE[:FLAG...] where TYPE
is the hex MBR type, SIZE a byte size such as 32MiB (rounded up to whole
sectors) and FLAG one of active,
boot (VBR boot code), fat, exfat or ntfs.

  legacyboot mkdisk win.img --part 07:64MiB:ntfs:boot --part 0b:16MiB:fat
  legacyboot mkdisk usb.img.zst --part 0c:8MiB:fat:active --logical 83:4MiB`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l := diskimage.Layout{Align: mkAlign}
		if !mkNoStub {
			l.BootCode = partition.DefaultBootStub
		}
		if mkSignature != "" {
			sig, err := strconv.ParseUint(strings.TrimPrefix(mkSignature, "0x"), 16, 32)
			if err != nil {
				return fmt.Errorf("bad disk signature %q: %w", mkSignature, err)
			}
			l.Signature = uint32(sig)
		}
		for _, s := range mkPrimary {
			p, err := parsePartition(s)
			if err != nil {
				return err
			}
			l.Primary = append(l.Primary, p)
		}
		for _, s := range mkLogical {
			p, err := parsePartition(s)
			if err != nil {
				return err
			}
			l.Logical = append(l.Logical, p)
		}

		codec := compress.Normalize(mkCompress)
		if codec == "auto" {
			codec = compress.FromExt(args[0])
		}
		if err := diskimage.WriteFile(args[0], l, codec); err != nil {
			return err
		}
		log.WithFields(log.Fields{
			"image":   args[0],
			"primary": len(l.Primary),
			"logical": len(l.Logical),
			"codec":   codec,
		}).Info("disk image written")
		return nil
	},
}

func init() {
	mkdiskCmd.Flags().StringArrayVarP(&mkPrimary, "part", "p", nil, "primary partition TYPE:SIZE[:FLAG...]")
	mkdiskCmd.Flags().StringArrayVarP(&mkLogical, "logical", "l", nil, "logical partition TYPE:SIZE[:FLAG...]")
	mkdiskCmd.Flags().Uint64Var(&mkAlign, "align", 2048, "partition alignment in sectors")
	mkdiskCmd.Flags().StringVar(&mkSignature, "signature", "", "hex MBR disk signature")
	mkdiskCmd.Flags().StringVar(&mkCompress, "compress", "auto", "codec: none, gzip, zstd, lz4, xz, lzma, bzip2 or auto (from the file name)")
	mkdiskCmd.Flags().BoolVar(&mkNoStub, "no-boot-code", false, "leave the MBR boot code empty")
	rootCmd.AddCommand(mkdiskCmd)
}

// parsePartition reads TYPE:SIZE[:FLAG...].
func parsePartition(s string) (diskimage.Partition, error) {
	var p diskimage.Partition
	fields := strings.Split(s, ":")
	if len(fields) < 2 {
		return p, fmt.Errorf("partition %q: want TYPE:SIZE[:FLAG...]", s)
	}
	t, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(fields[0]), "0x"), 16, 8)
	if err != nil {
		return p, fmt.Errorf("partition %q: bad type: %w", s, err)
	}
	p.Type = byte(t)
	size, err := humanize.ParseBytes(fields[1])
	if err != nil {
		return p, fmt.Errorf("partition %q: bad size: %w", s, err)
	}
	if size == 0 {
		return p, fmt.Errorf("partition %q: empty partition", s)
	}
	p.Sectors = common.Sectors(size, partition.SectorSize)
	for _, f := range fields[2:] {
		f = strings.ToLower(f)
		switch f {
		case "active":
			p.Active = true
		case "boot":
			p.BootCode = true
		default:
			fs, err := diskimage.ParseFS(f)
			if err != nil {
				return p, fmt.Errorf("partition %q: %w", s, err)
			}
			p.FS = fs
		}
	}
	return p, nil
}
