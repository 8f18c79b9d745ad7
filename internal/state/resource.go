package state

// Sampler reports current CPU and memory utilization as percentages in
// [0, 100]. The Linux implementation reads /proc/stat and /proc/meminfo,
// adapted from the thermal/battery sysfs readers the teacher used for its
// resource governor; other platforms report zero, which the Supervisor
// treats the same way the teacher's thermal stub treats an unavailable
// sensor — safe default, no throttling decision made on it.
type Sampler interface {
	Sample() (cpuPct, memPct float64)
}

// NewSampler returns the platform sampler.
func NewSampler() Sampler {
	return newPlatformSampler()
}
