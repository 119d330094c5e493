package legacy

import (
	"bytes"

	"github.com/apex/log"

	"legacyboot/internal/firmware"
)

// MaxDiscoveredPaths is the capacity used when launching a Mac-style
// legacy loader.
const MaxDiscoveredPaths = 16

// LegacyLoaderMediaPath names the legacy loader file inside a memory-mapped
// firmware volume.
var LegacyLoaderMediaPath = firmware.DevicePath{
	0x04, 0x06, 0x14, 0x00, 0xEB, 0x85, 0x05, 0x2B,
	0xB8, 0xD8, 0xA9, 0x49, 0x8B, 0x8C, 0xE2, 0x1B,
	0x01, 0xAE, 0xF2, 0xB7, 0x7F, 0xFF, 0x04, 0x00,
}

// memory-mapped I/O
const memMapType = 0x0B

// LegacyLoaderList holds the loader locations known from Apple firmware.
var LegacyLoaderList = []firmware.DevicePath{
	loaderPath(0xFFE00000, 0xFFF9FFFF),
	loaderPath(0xFFE00000, 0xFFF7FFFF),
	loaderPath(0xFFE00000, 0xFFF8FFFF),
	loaderPath(0xFFC00000, 0xFFF8FFFF),
	loaderPath(0xFFCB4000, 0xFFFFBFFF),
}

func loaderPath(start, end uint64) firmware.DevicePath {
	return firmware.NewDevicePath(firmware.MemMapNode(memMapType, start, end)).Append(LegacyLoaderMediaPath)
}

// ExtractLoaderPaths collects candidate legacy loader paths. Every loaded
// image whose device path starts with a memory-map node contributes that
// path with LegacyLoaderMediaPath appended; paths whose first node was
// already seen are skipped. fallbacks fill the remaining room. At most
// capacity-1 paths are returned.
func ExtractLoaderPaths(bs firmware.BootServices, capacity int, fallbacks []firmware.DevicePath) []firmware.DevicePath {
	room := capacity - 1
	if room <= 0 {
		return nil
	}
	out := make([]firmware.DevicePath, 0, room)

	handles, err := bs.LocateHandles(firmware.LoadedImageProtocol)
	if err != nil {
		log.WithError(err).Warn("while listing LoadedImage handles")
	}
	for _, h := range handles {
		if len(out) >= room {
			break
		}
		img, err := bs.LoadedImage(h)
		if err != nil {
			continue
		}
		dp, err := bs.DevicePath(img.DeviceHandle)
		if err != nil {
			continue
		}
		if dp.Type() != firmware.HardwareType || dp.SubType() != firmware.HWMemMapSubType {
			continue
		}
		if seenFirstNode(out, dp) {
			continue
		}
		log.WithField("path", dp.String()).Debug("found legacy loader device")
		out = append(out, dp.Append(LegacyLoaderMediaPath))
	}

	for _, p := range fallbacks {
		if len(out) >= room {
			break
		}
		out = append(out, p)
	}
	return out
}

// seenFirstNode compares only the leading node of each path.
func seenFirstNode(list []firmware.DevicePath, dp firmware.DevicePath) bool {
	n := dp.NodeLength()
	for _, p := range list {
		if p.NodeLength() != n {
			continue
		}
		if bytes.Equal(p.FirstNode(), dp.FirstNode()) {
			return true
		}
	}
	return false
}
