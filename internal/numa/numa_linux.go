//go:build linux

package numa

import "golang.org/x/sys/unix"

// currentCPU returns the lowest CPU number the calling thread is allowed
// to run on, per its current affinity mask. It is an approximation of
// "the CPU we're on right now" cheap enough to call on the allocation
// fast path; callers that need precision should LockOSThread first.
func currentCPU() int {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return -1
	}
	const maxProbe = 1024
	for cpu := 0; cpu < maxProbe; cpu++ {
		if set.IsSet(cpu) {
			return cpu
		}
	}
	return -1
}
