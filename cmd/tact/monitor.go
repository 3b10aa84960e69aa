//go:build !tinygo

package main

import (
	"fmt"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/spf13/cobra"

	"tact/internal/buildinfo"
	"tact/kernel"
	"tact/port/hostsim"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run a demo workload and display live task states in a window",
	RunE: func(cmd *cobra.Command, args []string) error {
		p := hostsim.New(hostsim.Config{})
		defer p.Close()
		k := kernel.New(p)

		startDemoWorkload(k)
		go k.Start()

		g := &monitorGame{k: k}
		ebiten.SetWindowTitle("tact monitor (" + buildinfo.Short() + ")")
		ebiten.SetWindowSize(480, 360)
		ebiten.SetTPS(30)
		return ebiten.RunGame(g)
	},
}

// startDemoWorkload spins up tasks that exercise each primitive so the
// monitor has something to show.
func startDemoWorkload(k *kernel.Kernel) {
	m := k.NewMutex()
	q := k.NewMsgQueue(8, 4)

	k.NewTask(kernel.TaskConfig{
		Name:     "producer",
		Priority: 10,
		Entry: func(any) {
			var n uint32
			item := make([]byte, 4)
			for {
				n++
				item[0], item[1], item[2], item[3] = byte(n), byte(n>>8), byte(n>>16), byte(n>>24)
				q.Send(item, kernel.MaxWait)
				k.SleepMS(50)
			}
		},
	}).Start()
	k.NewTask(kernel.TaskConfig{
		Name:     "consumer",
		Priority: 12,
		Entry: func(any) {
			item := make([]byte, 4)
			for {
				q.Receive(item, kernel.MaxWait)
				k.SleepMS(120)
			}
		},
	}).Start()
	k.NewTask(kernel.TaskConfig{
		Name:     "worker",
		Priority: 30,
		Entry: func(any) {
			for {
				m.Lock(kernel.MaxWait)
				k.SleepMS(30)
				m.Unlock()
				k.SleepMS(70)
			}
		},
	}).Start()

	blinker := k.NewTimer(func() {}, kernel.TimerPeriodic)
	blinker.Start(250)
}

type monitorGame struct {
	k *kernel.Kernel
}

func (g *monitorGame) Update() error {
	return nil
}

func (g *monitorGame) Draw(screen *ebiten.Image) {
	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %4s  %-9s %-12s %s\n", "task", "prio", "status", "blocked on", "last wake")
	for _, ti := range g.k.Tasks() {
		fmt.Fprintf(&b, "%-12s %4d  %-9s %-12s %s\n",
			ti.Name, ti.Priority, ti.Status, ti.BlockedOn, ti.WakeReason)
	}
	st := g.k.Stats()
	fmt.Fprintf(&b, "\nhandler drops: %d\n", st.HandlerDrops)
	ebitenutil.DebugPrint(screen, b.String())
}

func (g *monitorGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	return 480, 360
}
