// Package numa provides a read-only view of NUMA topology: how many nodes
// exist and which node the calling thread currently runs on.
//
// This is trimmed down from
// _examples/other_examples/23skdu-longbow__numa_allocator.go, which also
// offers CPU-affinity binding and round-robin/preferred-node allocation
// policy. None of that belongs here: the allocator above this package
// already implements its own NUMA-local-then-foreign placement policy, it
// only needs the topology facts.
package numa

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

var (
	once      sync.Once
	nodeCount int
	cpuNode   map[int]int
)

func detect() {
	nodeCount = 1
	cpuNode = map[int]int{}
	if runtime.GOOS != "linux" {
		return
	}
	const sysNode = "/sys/devices/system/node"
	entries, err := os.ReadDir(sysNode)
	if err != nil {
		return
	}
	count := 0
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "node") {
			continue
		}
		nodeIDStr := strings.TrimPrefix(name, "node")
		nodeID, err := strconv.Atoi(nodeIDStr)
		if err != nil {
			continue
		}
		count++
		cpulistPath := filepath.Join(sysNode, name, "cpulist")
		data, err := os.ReadFile(cpulistPath)
		if err != nil {
			continue
		}
		for _, cpu := range parseCPUList(strings.TrimSpace(string(data))) {
			cpuNode[cpu] = nodeID
		}
	}
	if count > 0 {
		nodeCount = count
	}
}

// parseCPUList parses a Linux cpulist string like "0-3,8,10-11" into the
// individual CPU numbers it names.
func parseCPUList(s string) []int {
	var cpus []int
	if s == "" {
		return cpus
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if dash := strings.IndexByte(part, '-'); dash >= 0 {
			lo, err1 := strconv.Atoi(part[:dash])
			hi, err2 := strconv.Atoi(part[dash+1:])
			if err1 != nil || err2 != nil {
				continue
			}
			for c := lo; c <= hi; c++ {
				cpus = append(cpus, c)
			}
		} else if c, err := strconv.Atoi(part); err == nil {
			cpus = append(cpus, c)
		}
	}
	return cpus
}

// NodeCount returns the number of NUMA nodes visible to the process. It is
// always at least 1, even on systems with no NUMA support.
func NodeCount() int {
	once.Do(detect)
	return nodeCount
}

// CurrentNode returns the NUMA node of the lowest-numbered CPU in the
// calling goroutine's OS thread's affinity mask (an approximation of where
// that thread runs), or -1 if that information is unavailable.
// Because goroutines are not pinned to threads by default, the result is
// only a hint; callers that need a stable answer should
// runtime.LockOSThread first.
func CurrentNode() int {
	once.Do(detect)
	if len(cpuNode) == 0 {
		return -1
	}
	cpu := currentCPU()
	if cpu < 0 {
		return -1
	}
	if node, ok := cpuNode[cpu]; ok {
		return node
	}
	return -1
}
