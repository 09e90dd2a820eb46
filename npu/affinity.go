//go:build linux

package npu

import (
	"fmt"
	"strings"
	"syscall"
	"unsafe"
)

// CoreType selects a CPU cluster of a big.LITTLE Rockchip SoC
type CoreType int

const (
	FastCores CoreType = 0
	SlowCores CoreType = 1
	AllCores  CoreType = 2
)

// cpuMasks defines the CPU core masks of each platform by cluster
var cpuMasks = map[string]map[CoreType]uintptr{
	"rk3562": {SlowCores: 0b00001111, FastCores: 0b00001111, AllCores: 0b00001111},
	"rk3566": {SlowCores: 0b00001111, FastCores: 0b00001111, AllCores: 0b00001111},
	"rk3568": {SlowCores: 0b00001111, FastCores: 0b00001111, AllCores: 0b00001111},
	"rk3576": {SlowCores: 0b00001111, FastCores: 0b11110000, AllCores: 0b11111111},
	"rk3582": {SlowCores: 0b00001111, FastCores: 0b00110000, AllCores: 0b00111111},
	"rk3588": {SlowCores: 0b00001111, FastCores: 0b11110000, AllCores: 0b11111111},
}

// ParseCoreType parses fast, slow or all
func ParseCoreType(s string) (CoreType, error) {

	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fast":
		return FastCores, nil
	case "slow":
		return SlowCores, nil
	case "all", "":
		return AllCores, nil
	default:
		return 0, fmt.Errorf("unknown core type: %s", s)
	}
}

// CPUMask returns the CPU affinity mask of a cluster on the platform
func CPUMask(platform string, ct CoreType) (uintptr, error) {

	masks, ok := cpuMasks[strings.ToLower(strings.TrimSpace(platform))]

	if !ok {
		return 0, fmt.Errorf("unknown platform: %s", platform)
	}

	mask, ok := masks[ct]

	if !ok {
		return 0, fmt.Errorf("unknown core type %d", ct)
	}

	return mask, nil
}

// CPUCoreMask calculates the core mask from CPU core numbers, eg: []int{4,5,6,7}
func CPUCoreMask(cores []int) uintptr {

	var mask uintptr

	for _, core := range cores {
		mask |= 1 << core
	}

	return mask
}

// SetCPUAffinity pins the process to the cores in mask so preprocessing runs
// on the fast cluster while the NPU does inference
func SetCPUAffinity(mask uintptr) error {

	_, _, err := syscall.RawSyscall(syscall.SYS_SCHED_SETAFFINITY, 0,
		unsafe.Sizeof(mask), uintptr(unsafe.Pointer(&mask)))

	if err != 0 {
		return fmt.Errorf("failed to set CPU affinity: %w", err)
	}

	return nil
}

// SetCPUAffinityByPlatform pins the process to a cluster of the platform
func SetCPUAffinityByPlatform(platform string, ct CoreType) error {

	mask, err := CPUMask(platform, ct)

	if err != nil {
		return err
	}

	return SetCPUAffinity(mask)
}
