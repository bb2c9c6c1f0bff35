// Package deploy rolls a code revision out across an environment in a
// fixed role order, and toggles the maintenance site around risky
// deploys.
package deploy

import (
	"slices"

	"nathanbeddoewebdev/fleet/internal/config"
	"nathanbeddoewebdev/fleet/internal/domain"
)

// Role orders a host within a deploy.
type Role string

const (
	RoleWorker Role = "worker"
	RoleApp    Role = "app"
	RoleOther  Role = "other"
)

// Classify puts a host in exactly one role by the OS-level names of its
// services. Worker membership wins over app membership.
func Classify(h domain.Host, policy config.DeployPolicy) Role {
	names := h.ServiceNames()
	switch {
	case intersects(names, policy.WorkerServices):
		return RoleWorker
	case intersects(names, policy.AppServices):
		return RoleApp
	default:
		return RoleOther
	}
}

// Roles is a fleet partitioned by role.
type Roles struct {
	Worker []domain.Host
	App    []domain.Host
	Other  []domain.Host
}

// Partition classifies every host. Order within a role follows hosts.
func Partition(hosts []domain.Host, policy config.DeployPolicy) Roles {
	var r Roles
	for _, h := range hosts {
		switch Classify(h, policy) {
		case RoleWorker:
			r.Worker = append(r.Worker, h)
		case RoleApp:
			r.App = append(r.App, h)
		default:
			r.Other = append(r.Other, h)
		}
	}
	return r
}

// servicesIn returns the host's services whose OS-level name is in names.
// An empty names list selects every service.
func servicesIn(h domain.Host, names []string) []domain.Service {
	if len(names) == 0 {
		return h.Services
	}
	var out []domain.Service
	for _, s := range h.Services {
		if slices.Contains(names, s.ServiceName) {
			out = append(out, s)
		}
	}
	return out
}

func intersects(a, b []string) bool {
	for _, x := range a {
		if slices.Contains(b, x) {
			return true
		}
	}
	return false
}
