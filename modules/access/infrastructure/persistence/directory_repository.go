package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/iota-uz/accessdesk/modules/access/domain/directory"
)

// InMemoryDirectoryRepository holds the people and project registry. The
// directory is read-mostly: it is seeded at startup and only consulted by
// the membership gate and approver resolution.
type InMemoryDirectoryRepository struct {
	mu       sync.RWMutex
	people   map[string]*directory.Person
	projects map[string]*directory.Project
}

func NewDirectoryRepository(people []*directory.Person, projects []*directory.Project) directory.Repository {
	r := &InMemoryDirectoryRepository{
		people:   map[string]*directory.Person{},
		projects: map[string]*directory.Project{},
	}
	for _, p := range people {
		clone := *p
		r.people[p.ID] = &clone
	}
	for _, p := range projects {
		r.projects[p.ID] = cloneProject(p)
	}
	return r
}

func (r *InMemoryDirectoryRepository) PersonByID(ctx context.Context, id string) (*directory.Person, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.people[id]
	if !ok {
		return nil, directory.ErrPersonNotFound
	}
	clone := *p
	return &clone, nil
}

func (r *InMemoryDirectoryRepository) People(ctx context.Context) ([]*directory.Person, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*directory.Person, 0, len(r.people))
	for _, p := range r.people {
		clone := *p
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *InMemoryDirectoryRepository) ProjectByID(ctx context.Context, id string) (*directory.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.projects[id]
	if !ok {
		return nil, directory.ErrProjectNotFound
	}
	return cloneProject(p), nil
}

func (r *InMemoryDirectoryRepository) Projects(ctx context.Context) ([]*directory.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*directory.Project, 0, len(r.projects))
	for _, p := range r.projects {
		out = append(out, cloneProject(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func cloneProject(p *directory.Project) *directory.Project {
	clone := *p
	clone.MemberIDs = append([]string(nil), p.MemberIDs...)
	return &clone
}
