// Package provision drives servers through their lifecycle: creation up to
// the active state, destruction, and the fleet-wide maintenance runs that
// follow membership changes.
package provision

import (
	"context"
	"fmt"

	"nathanbeddoewebdev/fleet/internal/agent"
	"nathanbeddoewebdev/fleet/internal/cloud"
	"nathanbeddoewebdev/fleet/internal/domain"
	"nathanbeddoewebdev/fleet/internal/firewall"
	"nathanbeddoewebdev/fleet/internal/journal"
	"nathanbeddoewebdev/fleet/internal/remote"
)

// Step names a point in the creation state machine.
type Step string

const (
	// StepNone is the last completed step before validation passes.
	StepNone               Step = "none"
	StepRequested          Step = "requested"
	StepCloudCreated       Step = "cloud_created"
	StepLocalRecorded      Step = "local_recorded"
	StepAddressesRecorded  Step = "addresses_recorded"
	StepStorageAttached    Step = "storage_attached"
	StepAgentInstalled     Step = "agent_installed"
	StepFirewallConverged  Step = "firewall_converged"
	StepConfigMgmtEnrolled Step = "config_mgmt_enrolled"
	StepActive             Step = "active"
)

const (
	// DefaultRecordTTL is the TTL of the A records created per address.
	DefaultRecordTTL = 300

	// DefaultAgentConcurrency bounds fleet-wide agent reinstalls.
	DefaultAgentConcurrency = 5
)

// Provisioner creates and destroys servers.
type Provisioner interface {
	Create(ctx context.Context, req Request) (*Report, error)
	Destroy(ctx context.Context, serverID int64) error
}

// Inventory is the slice of the inventory the orchestrator reads and writes.
type Inventory interface {
	GetEnvironment(ctx context.Context, id int64) (*domain.Environment, error)
	GetEnvironmentByName(ctx context.Context, name string) (*domain.Environment, error)
	GetDomain(ctx context.Context, id int64) (*domain.Domain, error)
	GetServiceByName(ctx context.Context, name string) (*domain.Service, error)

	CreateServer(ctx context.Context, s *domain.Server) error
	GetServer(ctx context.Context, id int64) (*domain.Server, error)
	UpdateServerStatus(ctx context.Context, id int64, status domain.ServerStatus) error
	DeleteServer(ctx context.Context, id int64) error
	AttachService(ctx context.Context, serverID, serviceID int64) error
	ClearServices(ctx context.Context, serverID int64) error

	CreateAddress(ctx context.Context, a *domain.Address) error
	DeleteAddress(ctx context.Context, id int64) error
	CreateDNSRecord(ctx context.Context, rec *domain.DNSRecord) error
	ListDNSRecords(ctx context.Context, addressID int64) ([]domain.DNSRecord, error)
	DeleteDNSRecord(ctx context.Context, id int64) error

	LoadHost(ctx context.Context, serverID int64) (*domain.Host, error)
	LoadFleet(ctx context.Context) ([]domain.Host, error)
}

// Firewall converges the packet filter across the fleet.
type Firewall interface {
	Converge(ctx context.Context) (*firewall.Report, error)
}

// ConfigMgmt enrolls and revokes hosts at the config-management authority.
type ConfigMgmt interface {
	Enroll(ctx context.Context, name, addr string) error
	Revoke(ctx context.Context, certName string) error
	Update(ctx context.Context, hosts []domain.Host, limit int) error
}

// StorageSpec requests a block volume for a new server.
type StorageSpec struct {
	Kind   string
	SizeGB int
}

// Request describes a server to create.
type Request struct {
	Name        string
	Environment string
	Image       string
	Size        string
	Location    string
	SSHKeys     []string
	Networks    []string
	Storage     *StorageSpec
	Services    []string
}

// Report describes how far a creation got. It is returned alongside any
// error so operators can find what was left behind.
type Report struct {
	RunID string `json:"run_id"`
	// Step is the last completed step.
	Step         Step             `json:"step"`
	ServerID     int64            `json:"server_id,omitempty"`
	InstanceID   string           `json:"instance_id,omitempty"`
	RootPassword string           `json:"root_password,omitempty"`
	Addresses    []domain.Address `json:"addresses,omitempty"`
	Volume       *domain.Volume   `json:"volume,omitempty"`
}

// StepError reports the step a creation stopped at.
type StepError struct {
	Server        string
	Step          Step
	LastCompleted Step
	Err           error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("provision %s: %s failed (last completed step: %s): %v",
		e.Server, e.Step, e.LastCompleted, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Orchestrator implements Provisioner over the inventory, one cloud
// account and the remote hosts.
type Orchestrator struct {
	Inventory  Inventory
	Cloud      cloud.ControlPlane
	Exec       remote.Executor
	Agent      *agent.Installer
	Firewall   Firewall
	ConfigMgmt ConfigMgmt
	Journal    journal.Repository

	// Provider is the inventory provider that Cloud talks to.
	Provider domain.Provider
	// DataDir is created on hosts without a block volume.
	DataDir   string
	RecordTTL int
}

var _ Provisioner = (*Orchestrator)(nil)

func (o *Orchestrator) recordTTL() int {
	if o.RecordTTL > 0 {
		return o.RecordTTL
	}
	return DefaultRecordTTL
}

// environmentDomains loads the public and private domains of env.
func (o *Orchestrator) environmentDomains(ctx context.Context, env *domain.Environment) (pub, priv *domain.Domain, err error) {
	pub, err = o.Inventory.GetDomain(ctx, env.PublicDomainID)
	if err != nil {
		return nil, nil, err
	}
	priv, err = o.Inventory.GetDomain(ctx, env.PrivateDomainID)
	if err != nil {
		return nil, nil, err
	}
	return pub, priv, nil
}

// CertName is the config-management certificate name of a server: its
// private DNS name.
func CertName(server string, privateDomain *domain.Domain) string {
	return server + "." + privateDomain.Name
}
