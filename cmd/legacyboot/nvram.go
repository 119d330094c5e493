package main

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"legacyboot/internal/firmware"
	"legacyboot/internal/host"
)

var nvramCmd = &cobra.Command{
	Use:   "nvram [NAME]",
	Short: "Show the variables of the NVRAM store",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nv, err := host.LoadNVRAM(nvramPath())
		if err != nil {
			return err
		}
		name := color.New(color.FgYellow).SprintFunc()
		found := false
		for _, v := range nv.Variables() {
			if len(args) == 1 && !strings.EqualFold(v.Name, args[0]) {
				continue
			}
			found = true
			fmt.Printf("%s-%s [%s]\n    %s\n", v.GUID, name(v.Name), attrString(v.Attributes), describeVariable(v))
		}
		if !found && len(args) == 1 {
			return fmt.Errorf("variable %q not found in %s", args[0], nvramPath())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(nvramCmd)
}

func attrString(a firmware.VariableAttributes) string {
	var parts []string
	if a&firmware.NonVolatile != 0 {
		parts = append(parts, "NV")
	}
	if a&firmware.BootserviceAccess != 0 {
		parts = append(parts, "BS")
	}
	if a&firmware.RuntimeAccess != 0 {
		parts = append(parts, "RT")
	}
	return strings.Join(parts, "+")
}

// describeVariable decodes the variables the boot manager writes and shows
// anything else as hex.
func describeVariable(v host.Variable) string {
	switch {
	case v.Name == "BootCampHD":
		return firmware.DevicePath(v.Data).String()
	case v.Name == "PreviousBoot":
		return strconv.Quote(decodeUCS2(v.Data))
	case v.Name == "BootOrder" && len(v.Data)%2 == 0:
		var nums []string
		for i := 0; i < len(v.Data); i += 2 {
			nums = append(nums, fmt.Sprintf("%04X", binary.LittleEndian.Uint16(v.Data[i:])))
		}
		return strings.Join(nums, ",")
	case strings.HasPrefix(v.Name, "Boot") && len(v.Name) == 8:
		num, err := strconv.ParseUint(v.Name[4:], 16, 16)
		if err != nil {
			break
		}
		opt, err := firmware.DecodeBootOption(uint16(num), v.Data)
		if err != nil {
			break
		}
		return fmt.Sprintf("%q %s", opt.Description, opt.DevicePath)
	}
	return hex.EncodeToString(v.Data)
}

func decodeUCS2(b []byte) string {
	u := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		c := binary.LittleEndian.Uint16(b[i:])
		if c == 0 {
			break
		}
		u = append(u, c)
	}
	return string(utf16.Decode(u))
}
