package auditlog

import "context"

// Metadata is what a command tells the audit log about its target. Commands
// may annotate in several steps, e.g. the environment up front and the run
// ID once the run exists.
type Metadata struct {
	Environment  string
	RunID        string
	ResourceType string
	ResourceID   string
	ResourceName string
}

// merge overlays the non-empty fields of next on m.
func (m Metadata) merge(next Metadata) Metadata {
	for _, f := range []struct {
		dst *string
		src string
	}{
		{&m.Environment, next.Environment},
		{&m.RunID, next.RunID},
		{&m.ResourceType, next.ResourceType},
		{&m.ResourceID, next.ResourceID},
		{&m.ResourceName, next.ResourceName},
	} {
		if f.src != "" {
			*f.dst = f.src
		}
	}
	return m
}

type metadataKey struct{}

// WithMetadata returns ctx carrying meta merged over any metadata already
// attached.
func WithMetadata(ctx context.Context, meta Metadata) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, metadataKey{}, MetadataFromContext(ctx).merge(meta))
}

// MetadataFromContext returns the metadata attached to ctx, if any.
func MetadataFromContext(ctx context.Context) Metadata {
	if ctx == nil {
		return Metadata{}
	}
	meta, _ := ctx.Value(metadataKey{}).(Metadata)
	return meta
}
