package service

import (
	"context"
	"fmt"

	"github.com/alarm-messenger/relay-server-go/internal/model"
)

// DeviceDirectory is the read side of device storage the resolver needs.
type DeviceDirectory interface {
	ListActiveIDs(ctx context.Context) ([]string, error)
	ListActiveIDsInGroups(ctx context.Context, codes []string) ([]string, error)
}

type TargetResolver struct {
	directory DeviceDirectory
}

func NewTargetResolver(directory DeviceDirectory) *TargetResolver {
	return &TargetResolver{directory: directory}
}

// Resolve returns the audience of e. Without a group filter that is every
// active device, connected or not; with one it is the union of members.
func (r *TargetResolver) Resolve(ctx context.Context, e *model.Emergency) ([]string, error) {
	var (
		ids []string
		err error
	)
	if e.HasGroupFilter() {
		ids, err = r.directory.ListActiveIDsInGroups(ctx, e.Groups)
	} else {
		ids, err = r.directory.ListActiveIDs(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve targets: %w", err)
	}
	return dedupe(ids), nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
