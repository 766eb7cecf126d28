package syscall

import "github.com/redstone-os/redstone/internal/log"

// SystemOps is the narrow surface the system syscall family needs: diagnostics and power state
// transitions that fall outside any other family.
type SystemOps interface {
	SysInfo() (uptimeTicks uint64, usedFrames, totalFrames uint64)
	Reboot()
	Poweroff()
}

// RegisterSystem installs the System family (0xF0-0xFF) into t.
func RegisterSystem(t *Table, ops SystemOps, logger *log.Logger) {
	if logger == nil {
		logger = log.DefaultLogger()
	}

	t.Register(SysInfo, func(a Args) (uint64, error) {
		uptime, used, total := ops.SysInfo()
		logger.Debug("sysinfo", "uptime_ticks", uptime, "used_frames", used, "total_frames", total)

		return uptime, nil
	})

	t.Register(SysReboot, func(a Args) (uint64, error) {
		logger.Warn("reboot requested via syscall")
		ops.Reboot()

		return 0, nil
	})

	t.Register(SysPoweroff, func(a Args) (uint64, error) {
		logger.Warn("poweroff requested via syscall")
		ops.Poweroff()

		return 0, nil
	})

	t.Register(SysDebug, func(a Args) (uint64, error) {
		logger.Info("debug syscall", "arg1", a.Arg1, "arg2", a.Arg2)
		return 0, nil
	})
}
