package kernel

// SysInfo implements syscall.SystemOps.
func (k *Kernel) SysInfo() (uptimeTicks uint64, usedFrames, totalFrames uint64) {
	stats := k.PMM.Stats()

	return k.Clock.Ticks(), stats.UsedFrames, stats.TotalFrames
}

// Reboot implements syscall.SystemOps by signaling the shutdown channel; a real implementation
// would instead triple-fault or jump through the reset vector.
func (k *Kernel) Reboot() {
	k.signalPowerChange()
}

// Poweroff implements syscall.SystemOps.
func (k *Kernel) Poweroff() {
	k.signalPowerChange()
}

func (k *Kernel) signalPowerChange() {
	k.mu.Lock()
	ch := k.power
	k.mu.Unlock()

	select {
	case <-ch:
	default:
		close(ch)
	}
}
