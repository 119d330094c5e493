package legacy

import (
	"testing"

	"github.com/apex/log"
	"github.com/apex/log/handlers/memory"

	"legacyboot/internal/firmware"
	"legacyboot/internal/firmware/fwtest"
	"legacyboot/internal/volume"
)

type harness struct {
	fw  *fwtest.Firmware
	lib *fwtest.Lib
	con *fwtest.Console
	log *memory.Handler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fw := fwtest.New()
	h := &harness{
		fw:  fw,
		lib: &fwtest.Lib{FW: fw},
		con: &fwtest.Console{},
		log: memory.New(),
	}
	logger := log.Log.(*log.Logger)
	prevHandler, prevLevel := logger.Handler, logger.Level
	log.SetHandler(h.log)
	log.SetLevel(log.DebugLevel)
	t.Cleanup(func() {
		log.SetHandler(prevHandler)
		log.SetLevel(prevLevel)
	})
	return h
}

func (h *harness) context(opts Options, vols ...*volume.Volume) *Context {
	return New(h.fw, h.lib, h.con, opts, vols)
}

func (h *harness) messages() []string {
	out := make([]string, 0, len(h.log.Entries))
	for _, e := range h.log.Entries {
		out = append(out, e.Message)
	}
	return out
}

func bbsOption(num uint16, t firmware.BBSType, status uint16, desc string) *firmware.BootOption {
	return &firmware.BootOption{
		Number:      num,
		Attributes:  1,
		Description: desc,
		DevicePath:  firmware.NewDevicePath(firmware.BBSDevicePathNode(t, status, desc)),
	}
}

func memMapPath(start, end uint64) firmware.DevicePath {
	return firmware.NewDevicePath(firmware.MemMapNode(memMapType, start, end))
}
