//go:build !tinygo

package main

import (
	"fmt"

	"github.com/mattn/go-tty"
	"github.com/spf13/cobra"

	"tact/kernel"
	"tact/port/hostsim"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Feed keystrokes through a bounded message queue into an echo task",
	Long: `Reads keys from the terminal on a foreign goroutine (the stand-in for an
interrupt handler), pushes them into a bounded kernel message queue with the
non-blocking send, and lets a kernel task drain and echo them. Press q or
Ctrl-C to quit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		term, err := tty.Open()
		if err != nil {
			return fmt.Errorf("open tty: %w", err)
		}
		defer term.Close()

		p := hostsim.New(hostsim.Config{})
		defer p.Close()
		k := kernel.New(p)

		keys := k.NewMsgQueue(64, 4)
		dropped := 0

		k.NewTask(kernel.TaskConfig{
			Name:     "echo",
			Priority: 10,
			Entry: func(any) {
				buf := make([]byte, 4)
				for {
					if st := keys.Receive(buf, kernel.MaxWait); st != kernel.StatusSuccess {
						continue
					}
					r := rune(uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24)
					fmt.Printf("echo: %q\r\n", r)
				}
			},
		}).Start()

		go k.Start()

		for {
			r, err := term.ReadRune()
			if err != nil {
				return fmt.Errorf("read key: %w", err)
			}
			if r == 'q' || r == 3 {
				if dropped > 0 {
					fmt.Printf("dropped %d keys on the full queue\r\n", dropped)
				}
				return nil
			}
			item := []byte{byte(r), byte(r >> 8), byte(r >> 16), byte(r >> 24)}
			if st := keys.Send(item, kernel.NoWait); st != kernel.StatusSuccess {
				dropped++
			}
		}
	},
}
