package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/aujit/aujit/audio"
)

// runDashboard renders a live tview stats panel over buf, polling its
// size and Ajb debug counters on a fixed tick, for the duration given.
func runDashboard(buf *audio.AuBuf, duration time.Duration) {
	app := tview.NewApplication()

	tview.Styles.PrimitiveBackgroundColor = tcell.ColorBlack
	tview.Styles.BorderColor = tcell.ColorDarkCyan
	tview.Styles.TitleColor = tcell.ColorLightCyan
	tview.Styles.PrimaryTextColor = tcell.ColorLightCyan

	statsView := tview.NewTextView().SetDynamicColors(true)
	statsView.SetBorder(true).SetTitle(" Jitter Buffer ").SetTitleAlign(tview.AlignLeft)

	app.SetRoot(statsView, true)

	start := time.Now()
	go func() {
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()

		for range ticker.C {
			elapsed := time.Since(start)
			app.QueueUpdateDraw(func() {
				statsView.SetText(renderStats(buf, elapsed))
			})
			if elapsed >= duration {
				app.Stop()
				return
			}
		}
	}()

	app.Run()
}

func renderStats(buf *audio.AuBuf, elapsed time.Duration) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("[white::b]Elapsed:[-] %s\n\n", elapsed.Round(100*time.Millisecond)))
	sb.WriteString(fmt.Sprintf("[white::b]Buffered:[-] %d bytes\n", buf.CurSize()))
	sb.WriteString(fmt.Sprintf("\n[darkcyan]%s[-]\n", buf.Debug()))

	return sb.String()
}
