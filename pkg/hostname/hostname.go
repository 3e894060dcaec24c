// Package hostname resolves the identity reported in every payload the
// agent submits. Resolution failure is fatal at process start: an agent
// that cannot name its host would tag every sample wrong.
package hostname

import (
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
)

// ResolutionError reports that no usable hostname could be determined.
type ResolutionError struct {
	Reason string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("unable to resolve hostname: %s", e.Reason)
}

// Resolve returns the configured override when set, otherwise the
// hostname reported by the OS. Empty and loopback names are rejected.
func Resolve(override string) (string, error) {
	if override != "" {
		if !valid(override) {
			return "", &ResolutionError{Reason: fmt.Sprintf("configured hostname %q is not usable", override)}
		}
		return override, nil
	}

	info, err := host.Info()
	if err != nil {
		return "", &ResolutionError{Reason: fmt.Sprintf("host probe failed: %v", err)}
	}
	if !valid(info.Hostname) {
		return "", &ResolutionError{Reason: fmt.Sprintf("OS hostname %q is not usable", info.Hostname)}
	}
	return info.Hostname, nil
}

func valid(name string) bool {
	name = strings.TrimSpace(strings.ToLower(name))
	switch name {
	case "", "localhost", "localhost.localdomain", "ip6-localhost":
		return false
	}
	return true
}
