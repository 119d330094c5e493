package legacy

import (
	"fmt"

	"github.com/apex/log"
)

type lineStyle int

const (
	lineNormal lineStyle = iota
	lineThinSep
	lineThreeStarSep
	lineThreeStarMid
	lineStarSep
)

func (s lineStyle) decorate(msg string) string {
	switch s {
	case lineThinSep:
		return "-------------------[ " + msg + " ]-------------------"
	case lineThreeStarSep:
		return ". . . . . . . . ***[ " + msg + " ]*** . . . . . . . ."
	case lineThreeStarMid:
		return "                ***[ " + msg
	case lineStarSep:
		return "* ** ** *** *** ***[ " + msg + " ]*** *** *** ** ** *"
	default:
		return msg
	}
}

func logLine(style lineStyle, format string, a ...any) {
	log.Info(style.decorate(fmt.Sprintf(format, a...)))
}

// logScanItem marks the first item of a scan pass differently from the
// ones that follow it.
func (c *Context) logScanItem(format string, a ...any) {
	style := lineThreeStarSep
	if c.firstScan {
		style = lineThreeStarMid
	}
	c.firstScan = false
	logLine(style, format, a...)
}
