// Package naming validates the names operators give fleet resources.
// Server names become the first label of their DNS records, so they follow
// DNS label rules rather than whatever the cloud provider would accept.
package naming

import (
	"fmt"
	"regexp"
	"strings"
)

const maxLabel = 63

var (
	label       = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)
	environment = regexp.MustCompile(`^[a-z][a-z0-9-]+$`)
	service     = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)
)

// Key lowercases and trims s for lookups by name.
func Key(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Server checks that name can be used as a hostname label: 2 to 63
// lowercase letters, digits or hyphens, not starting or ending with a hyphen.
func Server(name string) error {
	if len(name) < 2 || len(name) > maxLabel {
		return fmt.Errorf("server name %q must be 2 to %d characters long", name, maxLabel)
	}
	if !label.MatchString(name) {
		return fmt.Errorf("server name %q must be lowercase letters, digits and inner hyphens", name)
	}
	return nil
}

// Environment requires a lowercase letter followed by at least one
// lowercase letter, digit or hyphen.
func Environment(name string) error {
	if !environment.MatchString(name) {
		return fmt.Errorf("environment name %q must match %s", name, environment)
	}
	return nil
}

// Service checks a friendly service name.
func Service(name string) error {
	if !service.MatchString(name) {
		return fmt.Errorf("service name %q may only contain letters, digits and hyphens", name)
	}
	return nil
}

// Zone checks a DNS zone name such as "example.com". A trailing dot is
// tolerated.
func Zone(name string) error {
	labels := strings.Split(strings.TrimSuffix(name, "."), ".")
	if len(labels) < 2 {
		return fmt.Errorf("zone %q needs at least two labels", name)
	}
	for _, l := range labels {
		if len(l) == 0 || len(l) > maxLabel || !label.MatchString(l) {
			return fmt.Errorf("zone %q has an invalid label %q", name, l)
		}
	}
	return nil
}
