package host

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

var (
	errorColor  = color.New(color.FgHiRed, color.Bold).SprintFunc()
	screenColor = color.New(color.FgHiWhite, color.BgBlue).SprintFunc()
	promptColor = color.New(color.Faint, color.FgWhite).SprintFunc()
)

// Console is the emulated text console. PauseForKey waits for a line on
// In; with In nil it returns at once.
type Console struct {
	Out io.Writer
	In  io.Reader

	mu sync.Mutex
	rd *bufio.Reader
}

func NewConsole(out io.Writer, in io.Reader) *Console {
	return &Console{Out: out, In: in}
}

func (c *Console) Printf(format string, a ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.Out, format, a...)
}

func (c *Console) Errorln(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.Out, errorColor(msg))
}

func (c *Console) PauseForKey() {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.Out, promptColor("* Hit Any Key to Continue *"))
	if c.In == nil {
		return
	}
	if c.rd == nil {
		c.rd = bufio.NewReader(c.In)
	}
	c.rd.ReadString('\n')
}

func (c *Console) BeginExternalScreen(title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.Out, screenColor(" "+title+" "))
}

func (c *Console) FinishExternalScreen() {}
