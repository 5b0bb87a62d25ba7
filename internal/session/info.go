package session

import (
	"fmt"
	"strings"

	"github.com/sshscre/sshscre/internal/errors"
	"github.com/sshscre/sshscre/internal/ui"
	"github.com/sshscre/sshscre/pkg/sshutil"
)

// NotAvailable stands in for any probe that failed or printed nothing.
const NotAvailable = "N/A"

// Probe commands for the infovds panel. Each is read-only and runs in a
// fresh shell.
const (
	probeHostname = "hostname"
	probeIP       = "hostname -I | awk '{print $1}'"
	probeOS       = `grep PRETTY_NAME /etc/os-release | cut -d '"' -f2`
	probeUptime   = "uptime -p"
	probeCPUModel = `lscpu | grep "Model name" | cut -d ":" -f2 | xargs`
	probeCPUCores = "nproc"
	probeMemUsed  = "free -h | awk '/Mem/ {print $3}'"
	probeMemTotal = "free -h | awk '/Mem/ {print $2}'"
	probeDisk     = `df -h / | tail -1 | awk '{print $3" / "$2" ("$5")"}'`
	probeLoad     = "uptime | awk -F'load average:' '{print $2}'"
)

// SystemInfo is the result of the probe battery.
type SystemInfo struct {
	Hostname string
	IP       string
	OS       string
	Uptime   string
	CPU      string
	Memory   string
	Disk     string
	Load     string
}

// CollectInfo runs the probe battery. A probe that exits non-zero or prints
// nothing reads as N/A. A transport fault stops the battery and is returned
// as an EXEC error.
func CollectInfo(remote sshutil.Remote) (SystemInfo, error) {
	var fault error
	probe := func(cmd string) string {
		if fault != nil {
			return NotAvailable
		}
		stdout, _, code, err := remote.Exec(cmd)
		if err != nil {
			fault = err
			return NotAvailable
		}
		if code != 0 {
			return NotAvailable
		}
		if out := strings.TrimSpace(string(stdout)); out != "" {
			return out
		}
		return NotAvailable
	}

	info := SystemInfo{
		Hostname: probe(probeHostname),
		IP:       probe(probeIP),
		OS:       probe(probeOS),
		Uptime:   probe(probeUptime),
		Disk:     probe(probeDisk),
		Load:     probe(probeLoad),
	}

	model, cores := probe(probeCPUModel), probe(probeCPUCores)
	switch {
	case model == NotAvailable && cores == NotAvailable:
		info.CPU = NotAvailable
	case cores == NotAvailable:
		info.CPU = model
	default:
		info.CPU = fmt.Sprintf("%s (%s cores)", model, cores)
	}

	used, total := probe(probeMemUsed), probe(probeMemTotal)
	if used == NotAvailable && total == NotAvailable {
		info.Memory = NotAvailable
	} else {
		info.Memory = used + " / " + total
	}

	if fault != nil {
		return info, errors.WrapWithCode(fault, errors.ErrExec,
			"Lost the connection while collecting system information",
			"Reconnect to the server")
	}
	return info, nil
}

// Fields returns the panel rows in display order.
func (i SystemInfo) Fields() []ui.Field {
	return []ui.Field{
		{Label: "Hostname", Value: i.Hostname},
		{Label: "IP", Value: i.IP},
		{Label: "OS", Value: i.OS},
		{Label: "Uptime", Value: i.Uptime},
		{Label: "CPU", Value: i.CPU},
		{Label: "Memory", Value: i.Memory},
		{Label: "Disk", Value: i.Disk},
		{Label: "Load", Value: i.Load},
	}
}

// Summary returns the short subset printed after connecting.
func (i SystemInfo) Summary() []ui.Field {
	return []ui.Field{
		{Label: "OS", Value: i.OS},
		{Label: "Uptime", Value: i.Uptime},
		{Label: "Memory", Value: i.Memory},
		{Label: "Disk", Value: i.Disk},
	}
}

// Render draws the infovds panel.
func (i SystemInfo) Render() string {
	return ui.RenderPanel(i.Hostname, i.Fields())
}
