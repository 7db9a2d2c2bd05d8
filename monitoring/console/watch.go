package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jroimartin/gocui"
)

const (
	statsView  = "stats"
	framesView = "frames"
	statusView = "status"
)

// Watch shows the region in a terminal UI and refreshes it every interval
// until the user presses q or Ctrl-C, or the context is done.
func Watch(
	ctx context.Context,
	client *Client,
	key string,
	interval time.Duration,
) error {
	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		return err
	}
	defer g.Close()

	g.SetManagerFunc(layout)

	for _, k := range []interface{}{gocui.KeyCtrlC, 'q'} {
		err = g.SetKeybinding("", k, gocui.ModNone, quit)
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go refreshLoop(ctx, g, client, key, interval)

	err = g.MainLoop()
	if err != nil && !errors.Is(err, gocui.ErrQuit) {
		return err
	}

	return nil
}

func refreshLoop(
	ctx context.Context,
	g *gocui.Gui,
	client *Client,
	key string,
	interval time.Duration,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		snapshot, fetchErr := client.Snapshot(ctx, key)

		g.Update(func(g *gocui.Gui) error {
			if fetchErr != nil {
				return showText(g, statusView, func(w io.Writer) {
					fmt.Fprintf(w, " %v", fetchErr)
				})
			}

			err := showText(g, statusView, func(w io.Writer) {
				fmt.Fprintf(w, " updated %s, q to quit",
					time.Now().Format(time.TimeOnly))
			})
			if err != nil {
				return err
			}

			err = showText(g, statsView, func(w io.Writer) {
				RenderStats(w, snapshot)
			})
			if err != nil {
				return err
			}

			return showText(g, framesView, func(w io.Writer) {
				RenderFrames(w, snapshot)
			})
		})

		select {
		case <-ctx.Done():
			g.Update(func(*gocui.Gui) error { return gocui.ErrQuit })
			return
		case <-ticker.C:
		}
	}
}

// showText replaces the content of a view. Views that the layout has not
// created yet are skipped.
func showText(g *gocui.Gui, name string, write func(w io.Writer)) error {
	v, err := g.View(name)
	if errors.Is(err, gocui.ErrUnknownView) {
		return nil
	}

	if err != nil {
		return err
	}

	v.Clear()
	write(v)

	return nil
}

func layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()

	if v, err := g.SetView(statsView, 0, 0, maxX-1, 4); err != nil {
		if !errors.Is(err, gocui.ErrUnknownView) {
			return err
		}
		v.Title = "Region"
	}

	if v, err := g.SetView(framesView, 0, 5, maxX-1, maxY-4); err != nil {
		if !errors.Is(err, gocui.ErrUnknownView) {
			return err
		}
		v.Title = "Frames"
	}

	if v, err := g.SetView(statusView, 0, maxY-3, maxX-1, maxY-1); err != nil {
		if !errors.Is(err, gocui.ErrUnknownView) {
			return err
		}
		v.Title = "Status"
	}

	return nil
}

func quit(*gocui.Gui, *gocui.View) error {
	return gocui.ErrQuit
}
