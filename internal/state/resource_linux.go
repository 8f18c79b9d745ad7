//go:build linux

package state

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

type linuxSampler struct {
	prevIdle  uint64
	prevTotal uint64
}

func newPlatformSampler() Sampler {
	return &linuxSampler{}
}

// Sample reads /proc/stat for CPU utilization (delta since the previous
// call) and /proc/meminfo for memory utilization. Any read failure yields
// 0 for that metric rather than an error — this is a best-effort gauge,
// not a safety input.
func (l *linuxSampler) Sample() (cpuPct, memPct float64) {
	cpuPct = l.sampleCPU()
	memPct = sampleMem()
	return cpuPct, memPct
}

func (l *linuxSampler) sampleCPU() float64 {
	f, err := os.Open("/proc/stat")
	if err != nil {
		return 0
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return 0
	}
	fields := strings.Fields(scanner.Text())
	if len(fields) < 5 || fields[0] != "cpu" {
		return 0
	}

	var total uint64
	values := make([]uint64, 0, len(fields)-1)
	for _, field := range fields[1:] {
		v, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			return 0
		}
		values = append(values, v)
		total += v
	}
	idle := values[3]
	if len(values) > 4 {
		idle += values[4] // iowait
	}

	defer func() {
		l.prevIdle = idle
		l.prevTotal = total
	}()

	if l.prevTotal == 0 {
		return 0
	}
	deltaTotal := total - l.prevTotal
	deltaIdle := idle - l.prevIdle
	if deltaTotal == 0 {
		return 0
	}
	busy := float64(deltaTotal-deltaIdle) / float64(deltaTotal) * 100
	if busy < 0 {
		return 0
	}
	return busy
}

func sampleMem() float64 {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0
	}
	defer f.Close()

	var total, available float64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "MemTotal:"):
			total = parseMeminfoLine(line)
		case strings.HasPrefix(line, "MemAvailable:"):
			available = parseMeminfoLine(line)
		}
	}
	if total == 0 {
		return 0
	}
	used := total - available
	return used / total * 100
}

func parseMeminfoLine(line string) float64 {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	v, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0
	}
	return v
}
