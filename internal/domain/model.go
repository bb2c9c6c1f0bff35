package domain

import "time"

// ServerStatus is the lifecycle state of a Server in the inventory.
type ServerStatus string

const (
	ServerCreating        ServerStatus = "creating"
	ServerActive          ServerStatus = "active"
	ServerDecommissioning ServerStatus = "decommissioning"
	ServerDestroyed       ServerStatus = "destroyed"
)

// Visibility marks an address as reachable from the internet or only
// from the fleet network.
type Visibility string

const (
	Public  Visibility = "public"
	Private Visibility = "private"
)

// Family is the IP address family.
type Family string

const (
	IPv4 Family = "ipv4"
	IPv6 Family = "ipv6"
)

// ServiceKind is the process manager that controls a Service.
type ServiceKind string

const (
	Supervised ServiceKind = "supervised"
	InitScript ServiceKind = "init-script"
)

// Provider is an account boundary for the cloud control plane. Compute and
// DNS name the backends; their tokens are looked up in the keyring by kind.
type Provider struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Compute   string    `json:"compute"`
	DNS       string    `json:"dns"`
	CreatedAt time.Time `json:"created_at"`
}

// Domain is a DNS zone owned by one Provider.
type Domain struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	ProviderID       int64     `json:"provider_id"`
	ProviderRecordID string    `json:"provider_record_id"`
	CreatedAt        time.Time `json:"created_at"`
}

// Environment is a named deployment target with its own domains and branch.
type Environment struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Branch          string    `json:"branch"`
	PublicDomainID  int64     `json:"public_domain_id"`
	PrivateDomainID int64     `json:"private_domain_id"`
	CreatedAt       time.Time `json:"created_at"`
}

// Server is the inventory view of a managed host. It is linked to the
// cloud side only through ProviderRecordID.
type Server struct {
	ID               int64        `json:"id"`
	Name             string       `json:"name"`
	Status           ServerStatus `json:"status"`
	EnvironmentID    int64        `json:"environment_id"`
	ProviderID       int64        `json:"provider_id"`
	ProviderRecordID string       `json:"provider_record_id"`
	Image            string       `json:"image"`
	Size             string       `json:"size"`
	Location         string       `json:"location,omitempty"`
	FirewallSnapshot string       `json:"firewall_snapshot,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// Address is an IP owned by a Server.
type Address struct {
	ID         int64      `json:"id"`
	ServerID   int64      `json:"server_id"`
	IP         string     `json:"ip"`
	Family     Family     `json:"family"`
	Visibility Visibility `json:"visibility"`
}

// DNSRecord is a provider-side record created for an Address.
type DNSRecord struct {
	ID               int64  `json:"id"`
	AddressID        int64  `json:"address_id"`
	DomainID         int64  `json:"domain_id"`
	Name             string `json:"name"`
	Type             string `json:"type"`
	Data             string `json:"data"`
	TTL              int    `json:"ttl"`
	ProviderRecordID string `json:"provider_record_id"`
}

// Service is a logical service definition attached to many servers.
type Service struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Kind        ServiceKind `json:"kind"`
	DoesReload  bool        `json:"does_reload"`
	ServiceName string      `json:"service_name"`
}

// Host is a Server joined with everything the firewall compiler and the
// deployment pipeline need to reason about it.
type Host struct {
	Server      Server      `json:"server"`
	Environment Environment `json:"environment"`
	Addresses   []Address   `json:"addresses"`
	Services    []Service   `json:"services"`
}

// PrivateIPv4 returns the first private IPv4 address, or "".
func (h Host) PrivateIPv4() string {
	return h.firstAddress(Private)
}

// PublicIPv4 returns the first public IPv4 address, or "".
func (h Host) PublicIPv4() string {
	return h.firstAddress(Public)
}

// ConnectAddress is the address used to reach the host from the operator
// machine. Public is preferred since the operator usually sits outside the
// fleet network.
func (h Host) ConnectAddress() string {
	if ip := h.PublicIPv4(); ip != "" {
		return ip
	}
	return h.PrivateIPv4()
}

// ServiceNames returns the os-level names of the host's services.
func (h Host) ServiceNames() []string {
	names := make([]string, 0, len(h.Services))
	for _, s := range h.Services {
		names = append(names, s.ServiceName)
	}
	return names
}

func (h Host) firstAddress(v Visibility) string {
	for _, a := range h.Addresses {
		if a.Visibility == v && a.Family == IPv4 {
			return a.IP
		}
	}
	return ""
}

// Instance is the cloud-side view of a server.
type Instance struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Image     string    `json:"image,omitempty"`
	Size      string    `json:"size,omitempty"`
	Location  string    `json:"location,omitempty"`
	Addresses []Address `json:"addresses"`
	CreatedAt time.Time `json:"created_at"`

	// RootPassword is set only when the provider generated one.
	RootPassword string `json:"root_password,omitempty"`
}

// InstanceSpec describes a VM to create.
type InstanceSpec struct {
	Name     string
	Image    string
	Size     string
	Location string
	SSHKeys  []string
	Networks []string
	Labels   map[string]string
}

// Volume is a block storage device on the cloud side.
type Volume struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	SizeGB      int    `json:"size_gb"`
	InstanceID  string `json:"instance_id,omitempty"`
	LinuxDevice string `json:"linux_device,omitempty"`
}

// VolumeSpec describes a volume to create.
type VolumeSpec struct {
	Name     string
	SizeGB   int
	Kind     string
	Location string
}

// Zone is a DNS zone as reported by the DNS provider.
type Zone struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// RecordSpec describes a DNS record to create.
type RecordSpec struct {
	Name    string
	Type    string
	Content string
	TTL     int
}

// Record is a DNS record as returned by the DNS provider.
type Record struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
}
