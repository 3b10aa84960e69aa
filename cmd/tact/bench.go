//go:build !tinygo

package main

import (
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/stat"

	"tact/kernel"
	"tact/port/hostsim"
)

var benchSamples int

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure tick-to-wakeup latency of a sleeping task",
	Long: `A task sleeps one tick at a time while the bench injects ticks manually and
timestamps each injection; the task timestamps its wakeup. The spread between
the two is the scheduler wakeup latency on this host.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := hostsim.New(hostsim.Config{ManualTick: true})
		defer p.Close()
		k := kernel.New(p)

		var woke atomic.Int64
		k.NewTask(kernel.TaskConfig{
			Name:     "sleeper",
			Priority: 10,
			Entry: func(any) {
				for {
					k.SleepMS(1)
					woke.Store(time.Now().UnixNano())
				}
			},
		}).Start()

		go k.Start()
		time.Sleep(10 * time.Millisecond)

		samples := make([]float64, 0, benchSamples)
		for len(samples) < benchSamples {
			woke.Store(0)
			injected := time.Now().UnixNano()
			p.TriggerTick()
			deadline := time.Now().Add(2 * time.Millisecond)
			missed := false
			for woke.Load() == 0 {
				if time.Now().After(deadline) {
					// The task had not re-blocked when the tick landed;
					// retry the sample.
					missed = true
					break
				}
				time.Sleep(10 * time.Microsecond)
			}
			if missed {
				continue
			}
			samples = append(samples, float64(woke.Load()-injected)/1e3)
		}

		sort.Float64s(samples)
		mean, std := stat.MeanStdDev(samples, nil)
		fmt.Printf("samples: %d\n", len(samples))
		fmt.Printf("wakeup latency (us): mean %.1f  stddev %.1f\n", mean, std)
		fmt.Printf("p50 %.1f  p90 %.1f  p99 %.1f  min %.1f  max %.1f\n",
			stat.Quantile(0.50, stat.Empirical, samples, nil),
			stat.Quantile(0.90, stat.Empirical, samples, nil),
			stat.Quantile(0.99, stat.Empirical, samples, nil),
			minOf(samples...), maxOf(samples...))
		return nil
	},
}

func init() {
	benchCmd.Flags().IntVar(&benchSamples, "samples", 500, "Number of wakeups to measure.")
}

func minOf[T constraints.Ordered](vs ...T) T {
	m := vs[0]
	for _, v := range vs[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf[T constraints.Ordered](vs ...T) T {
	m := vs[0]
	for _, v := range vs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
