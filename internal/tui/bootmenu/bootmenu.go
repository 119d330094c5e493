// Package bootmenu shows a menu.Screen as a full-screen terminal menu and
// reports which entry the user picked.
package bootmenu

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"legacyboot/internal/menu"
)

const colTitleWidth = 64

type ui struct {
	app    *tview.Application
	pages  *tview.Pages
	grid   *tview.Grid
	header *tview.TextView
	list   *tview.TextView
	footer *tview.TextView

	nav    *navigator
	chosen menu.Entry
}

// Run shows main until the user boots an entry or quits. A nil entry
// means the user quit.
func Run(main *menu.Screen) (menu.Entry, error) {
	if main == nil || len(main.Entries) == 0 {
		return nil, fmt.Errorf("menu %q has no entries", titleOf(main))
	}
	u := &ui{
		app:    tview.NewApplication(),
		pages:  tview.NewPages(),
		grid:   tview.NewGrid(),
		header: tview.NewTextView(),
		list:   tview.NewTextView(),
		footer: tview.NewTextView(),
		nav:    newNavigator(main),
	}

	u.style()
	u.layout()
	u.bindKeys()
	u.draw()

	u.pages.AddAndSwitchToPage("main", u.grid, true)
	u.app.SetRoot(u.pages, true)
	u.app.SetFocus(u.list)
	if err := u.app.Run(); err != nil {
		return nil, err
	}
	return u.chosen, nil
}

func (u *ui) style() {
	tview.Styles.PrimitiveBackgroundColor = tcell.ColorNavy
	tview.Styles.ContrastBackgroundColor = tcell.ColorBlue
	tview.Styles.BorderColor = tcell.ColorSkyblue
	tview.Styles.PrimaryTextColor = tcell.ColorWhite

	u.header.SetBorder(true)
	u.header.SetDynamicColors(true)
	u.header.SetTitleColor(tcell.ColorSkyblue)

	u.footer.SetBorder(true)
	u.footer.SetDynamicColors(true)

	u.list.SetBorder(true)
	u.list.SetTitleAlign(tview.AlignLeft)
	u.list.SetBackgroundColor(tcell.ColorBlue)
	u.list.SetDynamicColors(true)
	u.list.SetScrollable(false)
}

func (u *ui) layout() {
	u.grid.SetRows(4, 0, 3).SetColumns(0).SetBorders(false)
	u.grid.AddItem(u.header, 0, 0, 1, 1, 0, 0, false)
	u.grid.AddItem(u.list, 1, 0, 1, 1, 0, 0, true)
	u.grid.AddItem(u.footer, 2, 0, 1, 1, 0, 0, false)
}

func footerText() string {
	lbl := func(fn, t string) string { return fmt.Sprintf("[black:white] %s [-:-:-] [yellow]%s[-]", fn, t) }
	return strings.Join([]string{
		lbl("Enter", "Boot"),
		lbl("F2", "Options"),
		lbl("Esc", "Back"),
		lbl("F10", "Quit"),
	}, "  ")
}

func (u *ui) draw() {
	s := u.nav.screen()
	u.header.Clear()
	u.header.SetTitle(" " + s.Title + " ")
	for _, h := range []string{s.Hint1, s.Hint2} {
		if h != "" {
			fmt.Fprintf(u.header, "[white]%s[-]\n", tview.Escape(h))
		}
	}

	u.list.Clear()
	u.list.SetTitle(fmt.Sprintf(" %d entries ", len(s.Entries)))
	for i, line := range u.nav.lines() {
		if i == u.nav.index() {
			fmt.Fprintf(u.list, "[black:teal]%s[-:-:-]\n", tview.Escape(line))
		} else {
			fmt.Fprintf(u.list, "%s\n", tview.Escape(line))
		}
	}

	u.footer.Clear()
	fmt.Fprint(u.footer, footerText())
}

func (u *ui) bindKeys() {
	u.app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if u.pages.HasPage("modal") {
			return ev
		}
		switch ev.Key() {
		case tcell.KeyUp:
			u.nav.move(-1)
		case tcell.KeyDown:
			u.nav.move(+1)
		case tcell.KeyHome:
			u.nav.setIndex(0)
		case tcell.KeyEnd:
			u.nav.setIndex(1<<30 - 1)
		case tcell.KeyEnter:
			u.pick(u.nav.enter())
		case tcell.KeyF2, tcell.KeyInsert, tcell.KeyTab:
			if !u.nav.openSubScreen() {
				u.alert("This entry has no options")
			}
		case tcell.KeyEsc:
			if !u.nav.back() {
				u.app.Stop()
			}
			return nil
		case tcell.KeyF10:
			u.app.Stop()
			return nil
		case tcell.KeyRune:
			u.pick(u.nav.shortcut(ev.Rune()))
		default:
			return ev
		}
		u.draw()
		return nil
	})
}

func (u *ui) pick(e menu.Entry) {
	if e == nil {
		return
	}
	u.chosen = e
	u.app.Stop()
}

func (u *ui) alert(text string) {
	m := tview.NewModal().SetText(text).AddButtons([]string{"OK"})
	u.pages.AddAndSwitchToPage("modal", m, true)
	m.SetDoneFunc(func(_ int, _ string) {
		u.pages.RemovePage("modal")
		u.app.SetFocus(u.list)
	})
}

func titleOf(s *menu.Screen) string {
	if s == nil {
		return ""
	}
	return s.Title
}

// navigator is the screen stack behind the UI.
type navigator struct {
	stack []*menu.Screen
	pos   []int
}

func newNavigator(main *menu.Screen) *navigator {
	return &navigator{stack: []*menu.Screen{main}, pos: []int{0}}
}

func (n *navigator) screen() *menu.Screen { return n.stack[len(n.stack)-1] }

func (n *navigator) index() int { return n.pos[len(n.pos)-1] }

func (n *navigator) setIndex(i int) {
	count := len(n.screen().Entries)
	if count == 0 {
		return
	}
	if i < 0 {
		i = 0
	}
	if i >= count {
		i = count - 1
	}
	n.pos[len(n.pos)-1] = i
}

func (n *navigator) move(d int) { n.setIndex(n.index() + d) }

func (n *navigator) current() menu.Entry {
	s := n.screen()
	if len(s.Entries) == 0 {
		return nil
	}
	return s.Entries[n.index()]
}

// enter returns the entry to boot, or nil when the selection was a return
// entry and the submenu was left instead.
func (n *navigator) enter() menu.Entry {
	e := n.current()
	if e == nil {
		return nil
	}
	if e.Common().Tag == menu.TagReturn {
		n.back()
		return nil
	}
	return e
}

func (n *navigator) openSubScreen() bool {
	e := n.current()
	if e == nil || e.Common().SubScreen == nil || len(e.Common().SubScreen.Entries) == 0 {
		return false
	}
	n.stack = append(n.stack, e.Common().SubScreen)
	n.pos = append(n.pos, 0)
	return true
}

// back leaves a submenu. It reports false on the main menu.
func (n *navigator) back() bool {
	if len(n.stack) == 1 {
		return false
	}
	n.stack = n.stack[:len(n.stack)-1]
	n.pos = n.pos[:len(n.pos)-1]
	return true
}

// shortcut selects the entry whose shortcut letter matches r, ignoring
// case, and returns it.
func (n *navigator) shortcut(r rune) menu.Entry {
	r = unicode.ToUpper(r)
	for i, e := range n.screen().Entries {
		if e.Common().ShortcutLetter != 0 && unicode.ToUpper(e.Common().ShortcutLetter) == r {
			n.setIndex(i)
			return n.enter()
		}
	}
	return nil
}

func (n *navigator) lines() []string {
	entries := n.screen().Entries
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = formatEntry(e.Common())
	}
	return out
}

func formatEntry(b *menu.Base) string {
	key := "   "
	if b.ShortcutLetter != 0 {
		key = fmt.Sprintf("[%c]", b.ShortcutLetter)
	}
	title := b.Title
	if r := []rune(title); len(r) > colTitleWidth {
		title = string(r[:colTitleWidth-3]) + "..."
	}
	line := fmt.Sprintf("%s %-*s", key, colTitleWidth, title)
	if b.Badge != "" {
		line += " (" + strings.TrimPrefix(b.Badge, "vol_") + ")"
	}
	return strings.TrimRight(line, " ")
}
