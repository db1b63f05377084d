package matching

import (
	"context"
	"fmt"
	"slices"

	"salonbook/internal/models"
)

// SkillRegistry answers which resources can perform which services.
type SkillRegistry interface {
	// ResourcesCovering returns resources holding a skill for every id in serviceIDs.
	ResourcesCovering(ctx context.Context, serviceIDs []int64) ([]int64, error)
}

// ResourceDirectory looks up resources. GetResource returns nil, nil when
// the resource does not exist.
type ResourceDirectory interface {
	GetResource(ctx context.Context, id int64) (*models.Resource, error)
}

// Matcher narrows resources down to those able to perform a full service set.
type Matcher struct {
	skills    SkillRegistry
	directory ResourceDirectory
}

// NewMatcher creates a new matcher.
func NewMatcher(skills SkillRegistry, directory ResourceDirectory) *Matcher {
	return &Matcher{skills: skills, directory: directory}
}

// Match returns ids of resources covering every service in serviceIDs,
// restricted to branchID when it is non-nil, in ascending order.
// An empty request or no match yields an empty result, never an error.
func (m *Matcher) Match(ctx context.Context, serviceIDs []int64, branchID *int64) ([]int64, error) {
	ids := Normalize(serviceIDs)
	if len(ids) == 0 {
		return nil, nil
	}

	candidates, err := m.skills.ResourcesCovering(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resources covering %v: %w", ids, err)
	}

	if branchID != nil {
		kept := candidates[:0:0]
		for _, id := range candidates {
			r, err := m.directory.GetResource(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("get resource %d: %w", id, err)
			}
			if r != nil && r.InBranch(*branchID) {
				kept = append(kept, id)
			}
		}
		candidates = kept
	}

	candidates = slices.Clone(candidates)
	slices.Sort(candidates)
	return slices.Compact(candidates), nil
}

// Normalize drops duplicate service ids, keeping first-seen order.
func Normalize(serviceIDs []int64) []int64 {
	if len(serviceIDs) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(serviceIDs))
	out := make([]int64, 0, len(serviceIDs))
	for _, id := range serviceIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
