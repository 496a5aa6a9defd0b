// ABOUTME: Network identity helpers: local IP discovery and wireless fingerprinting
// ABOUTME: The fingerprint drives network-change detection in the watcher

package telemetry

import (
	"context"
	"net"
	"os/exec"
	"strings"
	"time"
)

// LocalIP returns the host's outbound IPv4 address. The UDP dial never
// sends a packet; it only asks the kernel which source address routes out.
func LocalIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "unknown"
	}
	defer conn.Close()

	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return "unknown"
}

// NetworkFingerprint returns an identity for the current network
// attachment: the wireless SSID when available, otherwise the local IP.
// Wired-only hosts still detect attachment changes via address changes.
func NetworkFingerprint(ctx context.Context) string {
	if ssid := currentSSID(ctx); ssid != "" {
		return ssid
	}
	return LocalIP()
}

// currentSSID shells out to iwgetid. Hosts without a wireless interface
// (or the tool) return "".
func currentSSID(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, "iwgetid", "-r").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
