// Package cloudtest provides an in-memory cloud.ControlPlane for tests.
package cloudtest

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"nathanbeddoewebdev/fleet/internal/domain"
)

// ControlPlane is a scripted, in-memory control plane. Errors keyed by
// method name are returned instead of performing the call.
type ControlPlane struct {
	mu sync.Mutex

	// Addresses are handed to every created instance.
	Addresses []domain.Address
	// BootTimeout makes CreateInstance return the instance with a
	// *domain.TimeoutError.
	BootTimeout bool
	Err         map[string]error

	nextID    int
	instances map[string]*domain.Instance
	volumes   map[string]*domain.Volume
	zones     map[string]domain.Zone
	records   map[string]map[string]domain.Record
	calls     []string
}

// New returns an empty ControlPlane that knows the given zones by name.
func New(zoneNames ...string) *ControlPlane {
	c := &ControlPlane{
		Err:       map[string]error{},
		instances: map[string]*domain.Instance{},
		volumes:   map[string]*domain.Volume{},
		zones:     map[string]domain.Zone{},
		records:   map[string]map[string]domain.Record{},
	}
	for i, name := range zoneNames {
		id := fmt.Sprintf("zone-%d", i+1)
		c.zones[name] = domain.Zone{ID: id, Name: name, Status: "active"}
		c.records[id] = map[string]domain.Record{}
	}
	return c
}

func (c *ControlPlane) record(call string) error {
	c.calls = append(c.calls, call)
	return c.Err[call]
}

func (c *ControlPlane) id() string {
	c.nextID++
	return strconv.Itoa(100 + c.nextID)
}

// Calls returns the method names invoked so far, in order.
func (c *ControlPlane) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

// AddInstance registers an instance created outside the fake.
func (c *ControlPlane) AddInstance(inst domain.Instance) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.instances[inst.ID] = &inst
}

// AddVolume registers a volume, optionally attached.
func (c *ControlPlane) AddVolume(vol domain.Volume) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.volumes[vol.ID] = &vol
}

// Records returns the records of a zone by name.
func (c *ControlPlane) Records(zoneName string) []domain.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.Record
	for _, r := range c.records[c.zones[zoneName].ID] {
		out = append(out, r)
	}
	return out
}

// Instance reports whether an instance exists.
func (c *ControlPlane) Instance(id string) (domain.Instance, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	inst, ok := c.instances[id]
	if !ok {
		return domain.Instance{}, false
	}
	return *inst, true
}

func (c *ControlPlane) CreateInstance(_ context.Context, spec domain.InstanceSpec) (*domain.Instance, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("CreateInstance"); err != nil {
		return nil, err
	}
	inst := &domain.Instance{
		ID:        c.id(),
		Name:      spec.Name,
		Status:    "running",
		Image:     spec.Image,
		Size:      spec.Size,
		Location:  spec.Location,
		Addresses: append([]domain.Address(nil), c.Addresses...),
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	c.instances[inst.ID] = inst
	out := *inst
	if c.BootTimeout {
		out.Status = "starting"
		return &out, &domain.TimeoutError{Op: "boot server " + spec.Name, Wait: time.Minute}
	}
	return &out, nil
}

func (c *ControlPlane) DestroyInstance(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("DestroyInstance"); err != nil {
		return err
	}
	if _, ok := c.instances[id]; !ok {
		return &domain.ProviderError{Code: "not_found", Message: "server not found", Err: domain.ErrNotFound}
	}
	delete(c.instances, id)
	return nil
}

func (c *ControlPlane) GetInstance(_ context.Context, id string) (*domain.Instance, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("GetInstance"); err != nil {
		return nil, err
	}
	inst, ok := c.instances[id]
	if !ok {
		return nil, &domain.ProviderError{Code: "not_found", Message: "server not found", Err: domain.ErrNotFound}
	}
	out := *inst
	return &out, nil
}

func (c *ControlPlane) ListInstances(_ context.Context) ([]domain.Instance, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("ListInstances"); err != nil {
		return nil, err
	}
	out := make([]domain.Instance, 0, len(c.instances))
	for _, inst := range c.instances {
		out = append(out, *inst)
	}
	return out, nil
}

func (c *ControlPlane) CreateVolume(_ context.Context, spec domain.VolumeSpec) (*domain.Volume, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("CreateVolume"); err != nil {
		return nil, err
	}
	vol := &domain.Volume{ID: c.id(), Name: spec.Name, SizeGB: spec.SizeGB}
	c.volumes[vol.ID] = vol
	out := *vol
	return &out, nil
}

func (c *ControlPlane) AttachVolume(_ context.Context, instanceID, volumeID string) (*domain.Volume, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("AttachVolume"); err != nil {
		return nil, err
	}
	vol, ok := c.volumes[volumeID]
	if !ok {
		return nil, &domain.ProviderError{Code: "not_found", Message: "volume not found", Err: domain.ErrNotFound}
	}
	vol.InstanceID = instanceID
	vol.LinuxDevice = "/dev/disk/by-id/scsi-0HC_Volume_" + volumeID
	out := *vol
	return &out, nil
}

func (c *ControlPlane) DetachVolume(_ context.Context, volumeID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("DetachVolume"); err != nil {
		return err
	}
	vol, ok := c.volumes[volumeID]
	if !ok {
		return &domain.ProviderError{Code: "not_found", Message: "volume not found", Err: domain.ErrNotFound}
	}
	vol.InstanceID, vol.LinuxDevice = "", ""
	return nil
}

func (c *ControlPlane) ListVolumes(_ context.Context, instanceID string) ([]domain.Volume, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("ListVolumes"); err != nil {
		return nil, err
	}
	var out []domain.Volume
	for _, v := range c.volumes {
		if v.InstanceID == instanceID {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (c *ControlPlane) ListZones(_ context.Context) ([]domain.Zone, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("ListZones"); err != nil {
		return nil, err
	}
	out := make([]domain.Zone, 0, len(c.zones))
	for _, z := range c.zones {
		out = append(out, z)
	}
	return out, nil
}

func (c *ControlPlane) GetZoneByName(_ context.Context, name string) (*domain.Zone, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("GetZoneByName"); err != nil {
		return nil, err
	}
	z, ok := c.zones[name]
	if !ok {
		return nil, &domain.ProviderError{Message: fmt.Sprintf("zone %q not found", name), Err: domain.ErrNotFound}
	}
	return &z, nil
}

func (c *ControlPlane) CreateRecord(_ context.Context, zoneID string, spec domain.RecordSpec) (*domain.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("CreateRecord"); err != nil {
		return nil, err
	}
	recs, ok := c.records[zoneID]
	if !ok {
		return nil, &domain.ProviderError{Message: "zone not found", Err: domain.ErrNotFound}
	}
	rec := domain.Record{ID: "rec-" + c.id(), Name: spec.Name, Type: spec.Type, Content: spec.Content, TTL: spec.TTL}
	recs[rec.ID] = rec
	return &rec, nil
}

func (c *ControlPlane) DeleteRecord(_ context.Context, zoneID, recordID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("DeleteRecord"); err != nil {
		return err
	}
	if _, ok := c.records[zoneID][recordID]; !ok {
		return &domain.ProviderError{Message: "record not found", Err: domain.ErrNotFound}
	}
	delete(c.records[zoneID], recordID)
	return nil
}
