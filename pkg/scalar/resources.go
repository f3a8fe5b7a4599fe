// Package scalar implements arithmetic over the resource vectors that flow
// through offers, hosts, and task requests: CPU, memory, network bandwidth,
// disk, port ranges, and arbitrary named custom resources.
package scalar

import "math"

// epsilon absorbs floating point noise accumulated across repeated
// Add/Subtract calls within a long-lived round.
const epsilon = 0.0001

// PortRange is an inclusive [Begin, End] range of ports advertised by an
// offer or required by a task.
type PortRange struct {
	Begin uint64
	End   uint64
}

// Count returns the number of ports covered by the range.
func (p PortRange) Count() uint64 {
	if p.End < p.Begin {
		return 0
	}
	return p.End - p.Begin + 1
}

// Resources is the resource vector carried by offers, hosts, and task
// requests. Zero value is the empty vector.
type Resources struct {
	CPU         float64
	MemoryMB    float64
	NetworkMbps float64
	DiskMB      float64
	Ports       uint64 // number of discrete ports needed/available
	Custom      map[string]float64
}

// Add returns the element-wise sum of r and other.
func (r Resources) Add(other Resources) Resources {
	return Resources{
		CPU:         r.CPU + other.CPU,
		MemoryMB:    r.MemoryMB + other.MemoryMB,
		NetworkMbps: r.NetworkMbps + other.NetworkMbps,
		DiskMB:      r.DiskMB + other.DiskMB,
		Ports:       r.Ports + other.Ports,
		Custom:      mergeCustom(r.Custom, other.Custom, 1),
	}
}

// Subtract returns r minus other. Only Ports is clamped at zero; the other
// dimensions can go negative — callers that require non-negative results
// should check Contains first or use TrySubtract.
func (r Resources) Subtract(other Resources) Resources {
	return Resources{
		CPU:         r.CPU - other.CPU,
		MemoryMB:    r.MemoryMB - other.MemoryMB,
		NetworkMbps: r.NetworkMbps - other.NetworkMbps,
		DiskMB:      r.DiskMB - other.DiskMB,
		Ports:       subUint(r.Ports, other.Ports),
		Custom:      mergeCustom(r.Custom, other.Custom, -1),
	}
}

// TrySubtract returns r minus other and true if other fits within r;
// otherwise it returns the zero value and false.
func (r Resources) TrySubtract(other Resources) (Resources, bool) {
	if !r.Contains(other) {
		return Resources{}, false
	}
	return r.Subtract(other), true
}

// Contains reports whether r has at least as much of every dimension as
// other, within epsilon.
func (r Resources) Contains(other Resources) bool {
	if r.CPU-other.CPU < -epsilon {
		return false
	}
	if r.MemoryMB-other.MemoryMB < -epsilon {
		return false
	}
	if r.NetworkMbps-other.NetworkMbps < -epsilon {
		return false
	}
	if r.DiskMB-other.DiskMB < -epsilon {
		return false
	}
	if r.Ports < other.Ports {
		return false
	}
	for k, v := range other.Custom {
		if r.Custom[k]-v < -epsilon {
			return false
		}
	}
	return true
}

// Empty reports whether r carries no usable resources at all.
func (r Resources) Empty() bool {
	if r.CPU > epsilon || r.MemoryMB > epsilon || r.NetworkMbps > epsilon || r.DiskMB > epsilon || r.Ports > 0 {
		return false
	}
	for _, v := range r.Custom {
		if v > epsilon {
			return false
		}
	}
	return true
}

// Max returns the element-wise maximum of a and b; used by the
// orchestrator to derive the cluster-wide maximum per-dimension capacity
// that any single host could ever offer.
func Max(a, b Resources) Resources {
	out := Resources{
		CPU:         math.Max(a.CPU, b.CPU),
		MemoryMB:    math.Max(a.MemoryMB, b.MemoryMB),
		NetworkMbps: math.Max(a.NetworkMbps, b.NetworkMbps),
		DiskMB:      math.Max(a.DiskMB, b.DiskMB),
		Ports:       maxUint(a.Ports, b.Ports),
	}
	if len(a.Custom) > 0 || len(b.Custom) > 0 {
		out.Custom = make(map[string]float64, len(a.Custom)+len(b.Custom))
		for k, v := range a.Custom {
			out.Custom[k] = v
		}
		for k, v := range b.Custom {
			if v > out.Custom[k] {
				out.Custom[k] = v
			}
		}
	}
	return out
}

// ExceedsDimension compares need against have and returns the names of
// dimensions where need exceeds have, used to build structured
// AssignmentFailure / quota-exceeded reasons.
func ExceedsDimension(have, need Resources) []string {
	var exceeded []string
	if need.CPU-have.CPU > epsilon {
		exceeded = append(exceeded, "cpu")
	}
	if need.MemoryMB-have.MemoryMB > epsilon {
		exceeded = append(exceeded, "memoryMB")
	}
	if need.NetworkMbps-have.NetworkMbps > epsilon {
		exceeded = append(exceeded, "networkMbps")
	}
	if need.DiskMB-have.DiskMB > epsilon {
		exceeded = append(exceeded, "diskMB")
	}
	if need.Ports > have.Ports {
		exceeded = append(exceeded, "ports")
	}
	for k, v := range need.Custom {
		if v-have.Custom[k] > epsilon {
			exceeded = append(exceeded, "custom."+k)
		}
	}
	return exceeded
}

func mergeCustom(a, b map[string]float64, sign float64) map[string]float64 {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(map[string]float64, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] += sign * v
	}
	return out
}

func subUint(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

func maxUint(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
