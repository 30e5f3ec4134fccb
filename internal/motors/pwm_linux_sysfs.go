//go:build linux && (arm || arm64)

package motors

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// sysfsPWM drives one hardware PWM channel via /sys/class/pwm.
//
// On Raspberry Pi the pwm-2chan overlay exposes GPIO18/GPIO19 as channels 0/1
// of pwmchip0. Hardware PWM gives a clean speed signal at the configured
// frequency; the gpio backend only does full-on/full-off.
type sysfsPWM struct {
	pwmPath  string // /sys/class/pwm/pwmchipN/pwmM
	periodNS uint64
	running  bool
}

var pwmSysfsBase = "/sys/class/pwm"

func openSysfsPWM(channel, freqHz int) (speedOut, error) {
	if channel < 0 {
		return nil, fmt.Errorf("motors: invalid pwm channel %d", channel)
	}
	if freqHz <= 0 {
		return nil, fmt.Errorf("motors: invalid pwm frequency %d", freqHz)
	}

	chip, err := findPWMChip(channel)
	if err != nil {
		return nil, err
	}
	pwmPath := filepath.Join(chip, fmt.Sprintf("pwm%d", channel))
	if err := exportChannel(chip, pwmPath, channel); err != nil {
		return nil, err
	}

	period := uint64(1_000_000_000 / freqHz)
	if period == 0 {
		period = 1
	}
	d := &sysfsPWM{pwmPath: pwmPath, periodNS: period}

	// The kernel rejects period changes while the channel runs.
	_ = d.write("enable", "0")
	if err := d.write("period", strconv.FormatUint(d.periodNS, 10)); err != nil {
		return nil, fmt.Errorf("motors: set pwm period: %w", err)
	}
	if err := d.write("duty_cycle", "0"); err != nil {
		return nil, fmt.Errorf("motors: zero pwm duty: %w", err)
	}
	if err := d.write("enable", "1"); err != nil {
		return nil, fmt.Errorf("motors: enable pwm: %w", err)
	}
	d.running = true
	return d, nil
}

// findPWMChip scans the chips in name order and returns the first whose
// channel count covers the requested channel.
func findPWMChip(channel int) (string, error) {
	entries, err := os.ReadDir(pwmSysfsBase)
	if err != nil {
		return "", fmt.Errorf("motors: read %s: %w", pwmSysfsBase, err)
	}

	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "pwmchip") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		chip := filepath.Join(pwmSysfsBase, name)
		n, rerr := readSysfsInt(filepath.Join(chip, "npwm"))
		if rerr != nil {
			continue
		}
		if n <= channel {
			continue
		}
		return chip, nil
	}
	return "", fmt.Errorf("motors: no pwmchip with channel %d under %s (is the pwm overlay enabled?)", channel, pwmSysfsBase)
}

// exportChannel makes pwmM appear under the chip. A channel someone else
// already exported is left as found.
func exportChannel(chip, pwmPath string, channel int) error {
	if _, err := os.Stat(pwmPath); err == nil {
		return nil
	}
	if err := writeAttr(filepath.Join(chip, "export"), strconv.Itoa(channel)); err != nil {
		if _, statErr := os.Stat(pwmPath); statErr == nil {
			return nil
		}
		return fmt.Errorf("motors: export pwm%d: %w", channel, err)
	}
	return waitForNode(pwmPath, 500*time.Millisecond)
}

// waitForNode polls for a node the kernel creates asynchronously after an
// export write.
func waitForNode(path string, wait time.Duration) error {
	deadline := time.Now().Add(wait)
	for {
		_, err := os.Stat(path)
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("motors: %s missing after export: %w", path, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Close parks the channel at zero duty so the motor cannot keep spinning.
func (d *sysfsPWM) Close() error {
	_ = d.write("duty_cycle", "0")
	_ = d.write("enable", "0")
	d.running = false
	return nil
}

func (d *sysfsPWM) SetDutyPercent(p float64) error {
	p = math.Min(100, math.Max(0, p))

	duty := uint64(math.Round(float64(d.periodNS) * p / 100))
	if duty > d.periodNS {
		duty = d.periodNS
	}
	if err := d.write("duty_cycle", strconv.FormatUint(duty, 10)); err != nil {
		return err
	}
	if !d.running {
		_ = d.write("enable", "1")
		d.running = true
	}
	return nil
}

func (d *sysfsPWM) write(attr, value string) error {
	return writeAttr(filepath.Join(d.pwmPath, attr), value)
}

// writeAttr opens with plain O_WRONLY: pwm attributes reject truncation
// flags, and right after an export udev may still be adjusting permissions,
// so open() can transiently fail with EACCES or ENOENT. Transient errors are
// retried for a short window.
func writeAttr(path, value string) error {
	deadline := time.Now().Add(2 * time.Second)
	for {
		err := func() error {
			f, err := os.OpenFile(path, os.O_WRONLY, 0)
			if err != nil {
				return err
			}
			if _, err := f.WriteString(value); err != nil {
				_ = f.Close()
				return err
			}
			return f.Close()
		}()
		if err == nil {
			return nil
		}
		if !transientSysfsErr(err) || time.Now().After(deadline) {
			return err
		}
		time.Sleep(25 * time.Millisecond)
	}
}

func transientSysfsErr(err error) bool {
	return errors.Is(err, os.ErrPermission) ||
		errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.EACCES) ||
		errors.Is(err, syscall.EPERM) ||
		errors.Is(err, syscall.ENOENT)
}

func readSysfsInt(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(b)))
}
