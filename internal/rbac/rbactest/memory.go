// Package rbactest provides an in-memory rbac.Store for tests.
package rbactest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/odyssey-erp/odyssey-rbac/internal/rbac"
	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
)

type tripleKey struct {
	role, resource, action int64
}

type pairKey struct {
	user, role int64
}

// MemoryStore mirrors the PostgreSQL schema in maps, including its unique constraints and
// cascade rules.
type MemoryStore struct {
	mu sync.Mutex

	nextID      int64
	users       map[int64]bool
	roles       map[int64]string
	resources   map[int64]string
	actions     map[int64]string
	grants      map[int64]rbac.Grant
	grantIndex  map[tripleKey]int64
	assignments map[int64]rbac.Assignment
	assignIndex map[pairKey]int64

	fault error
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[int64]bool),
		roles:       make(map[int64]string),
		resources:   make(map[int64]string),
		actions:     make(map[int64]string),
		grants:      make(map[int64]rbac.Grant),
		grantIndex:  make(map[tripleKey]int64),
		assignments: make(map[int64]rbac.Assignment),
		assignIndex: make(map[pairKey]int64),
	}
}

var _ rbac.Store = (*MemoryStore)(nil)

// SetFault makes every subsequent call fail with err; nil clears it.
func (m *MemoryStore) SetFault(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fault = err
}

func (m *MemoryStore) id() int64 {
	m.nextID++
	return m.nextID
}

// AddUser registers a user and returns its ID.
func (m *MemoryStore) AddUser() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.id()
	m.users[id] = true
	return id
}

// AddRole registers a role and returns its ID.
func (m *MemoryStore) AddRole(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.id()
	m.roles[id] = name
	return id
}

// AddResource registers a resource and returns its ID.
func (m *MemoryStore) AddResource(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.id()
	m.resources[id] = shared.NormalizeName(name)
	return id
}

// AddAction registers an action and returns its ID.
func (m *MemoryStore) AddAction(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.id()
	m.actions[id] = shared.NormalizeName(name)
	return id
}

// DeleteUser removes a user, its assignments, and clears it as assigner elsewhere.
func (m *MemoryStore) DeleteUser(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
	for aid, a := range m.assignments {
		if a.UserID == id {
			m.dropAssignment(aid)
			continue
		}
		if a.AssignedBy != nil && *a.AssignedBy == id {
			a.AssignedBy = nil
			m.assignments[aid] = a
		}
	}
}

// DeleteRole removes a role with its grants and assignments.
func (m *MemoryStore) DeleteRole(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.roles, id)
	for gid, g := range m.grants {
		if g.RoleID == id {
			m.dropGrant(gid)
		}
	}
	for aid, a := range m.assignments {
		if a.RoleID == id {
			m.dropAssignment(aid)
		}
	}
}

// DeleteResource removes a resource with its grants.
func (m *MemoryStore) DeleteResource(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.resources, id)
	for gid, g := range m.grants {
		if g.ResourceID == id {
			m.dropGrant(gid)
		}
	}
}

// DeleteAction removes an action with its grants.
func (m *MemoryStore) DeleteAction(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.actions, id)
	for gid, g := range m.grants {
		if g.ActionID == id {
			m.dropGrant(gid)
		}
	}
}

// GrantCount returns the number of stored grants.
func (m *MemoryStore) GrantCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.grants)
}

// AssignmentCount returns the number of stored assignments.
func (m *MemoryStore) AssignmentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.assignments)
}

func (m *MemoryStore) dropGrant(id int64) {
	g := m.grants[id]
	delete(m.grantIndex, tripleKey{g.RoleID, g.ResourceID, g.ActionID})
	delete(m.grants, id)
}

func (m *MemoryStore) dropAssignment(id int64) {
	a := m.assignments[id]
	delete(m.assignIndex, pairKey{a.UserID, a.RoleID})
	delete(m.assignments, id)
}

// HasGrant implements rbac.GrantReader.
func (m *MemoryStore) HasGrant(_ context.Context, userID int64, resource, action string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fault != nil {
		return false, m.fault
	}
	for _, a := range m.assignments {
		if a.UserID != userID {
			continue
		}
		for _, g := range m.grants {
			if g.RoleID == a.RoleID && m.resources[g.ResourceID] == resource && m.actions[g.ActionID] == action {
				return true, nil
			}
		}
	}
	return false, nil
}

// UserGrants implements rbac.GrantLister.
func (m *MemoryStore) UserGrants(_ context.Context, userID int64) ([]rbac.GrantKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fault != nil {
		return nil, m.fault
	}
	seen := make(map[rbac.GrantKey]struct{})
	var keys []rbac.GrantKey
	for _, a := range m.assignments {
		if a.UserID != userID {
			continue
		}
		for _, g := range m.grants {
			if g.RoleID != a.RoleID {
				continue
			}
			k := rbac.GrantKey{Resource: m.resources[g.ResourceID], Action: m.actions[g.ActionID]}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Resource != keys[j].Resource {
			return keys[i].Resource < keys[j].Resource
		}
		return keys[i].Action < keys[j].Action
	})
	return keys, nil
}

// UserExists implements rbac.Store.
func (m *MemoryStore) UserExists(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fault != nil {
		return false, m.fault
	}
	return m.users[id], nil
}

// RoleName implements rbac.Store.
func (m *MemoryStore) RoleName(_ context.Context, id int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fault != nil {
		return "", m.fault
	}
	name, ok := m.roles[id]
	if !ok {
		return "", fmt.Errorf("%w: role %d", rbac.ErrNotFound, id)
	}
	return name, nil
}

// ListGrants implements rbac.Store.
func (m *MemoryStore) ListGrants(_ context.Context) ([]rbac.Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fault != nil {
		return nil, m.fault
	}
	out := make([]rbac.Grant, 0, len(m.grants))
	for _, g := range m.grants {
		out = append(out, m.decorate(g))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetGrant implements rbac.Store.
func (m *MemoryStore) GetGrant(_ context.Context, id int64) (rbac.Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fault != nil {
		return rbac.Grant{}, m.fault
	}
	g, ok := m.grants[id]
	if !ok {
		return rbac.Grant{}, fmt.Errorf("%w: permission %d", rbac.ErrNotFound, id)
	}
	return m.decorate(g), nil
}

// CreateGrant implements rbac.Store.
func (m *MemoryStore) CreateGrant(_ context.Context, roleID, resourceID, actionID int64) (rbac.Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fault != nil {
		return rbac.Grant{}, m.fault
	}
	_, okRole := m.roles[roleID]
	_, okRes := m.resources[resourceID]
	_, okAct := m.actions[actionID]
	if !okRole || !okRes || !okAct {
		return rbac.Grant{}, fmt.Errorf("%w: role, resource or action", rbac.ErrNotFound)
	}
	key := tripleKey{roleID, resourceID, actionID}
	if _, dup := m.grantIndex[key]; dup {
		return rbac.Grant{}, rbac.ErrDuplicateGrant
	}
	g := rbac.Grant{ID: m.id(), RoleID: roleID, ResourceID: resourceID, ActionID: actionID, CreatedAt: time.Now().UTC()}
	m.grants[g.ID] = g
	m.grantIndex[key] = g.ID
	return m.decorate(g), nil
}

// DeleteGrant implements rbac.Store.
func (m *MemoryStore) DeleteGrant(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fault != nil {
		return m.fault
	}
	if _, ok := m.grants[id]; !ok {
		return fmt.Errorf("%w: permission %d", rbac.ErrNotFound, id)
	}
	m.dropGrant(id)
	return nil
}

// ListAssignments implements rbac.Store.
func (m *MemoryStore) ListAssignments(_ context.Context, userID int64) ([]rbac.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fault != nil {
		return nil, m.fault
	}
	var out []rbac.Assignment
	for _, a := range m.assignments {
		if userID != 0 && a.UserID != userID {
			continue
		}
		a.RoleName = m.roles[a.RoleID]
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetAssignment implements rbac.Store.
func (m *MemoryStore) GetAssignment(_ context.Context, id int64) (rbac.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fault != nil {
		return rbac.Assignment{}, m.fault
	}
	a, ok := m.assignments[id]
	if !ok {
		return rbac.Assignment{}, fmt.Errorf("%w: assignment %d", rbac.ErrNotFound, id)
	}
	a.RoleName = m.roles[a.RoleID]
	return a, nil
}

// InsertAssignment implements rbac.Store. The lock makes check and insert one atomic step.
func (m *MemoryStore) InsertAssignment(_ context.Context, userID, roleID int64, assignedBy *int64, at time.Time) (rbac.Assignment, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fault != nil {
		return rbac.Assignment{}, false, m.fault
	}
	if !m.users[userID] {
		return rbac.Assignment{}, false, fmt.Errorf("%w: user %d", rbac.ErrNotFound, userID)
	}
	if _, ok := m.roles[roleID]; !ok {
		return rbac.Assignment{}, false, fmt.Errorf("%w: role %d", rbac.ErrNotFound, roleID)
	}
	key := pairKey{userID, roleID}
	if id, ok := m.assignIndex[key]; ok {
		return m.assignments[id], false, nil
	}
	a := rbac.Assignment{ID: m.id(), UserID: userID, RoleID: roleID, AssignedAt: at, AssignedBy: assignedBy}
	m.assignments[a.ID] = a
	m.assignIndex[key] = a.ID
	return a, true, nil
}

// DeleteAssignment implements rbac.Store.
func (m *MemoryStore) DeleteAssignment(_ context.Context, userID, roleID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fault != nil {
		return false, m.fault
	}
	id, ok := m.assignIndex[pairKey{userID, roleID}]
	if !ok {
		return false, nil
	}
	m.dropAssignment(id)
	return true, nil
}

// DeleteAssignmentByID implements rbac.Store.
func (m *MemoryStore) DeleteAssignmentByID(_ context.Context, id int64) (rbac.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fault != nil {
		return rbac.Assignment{}, m.fault
	}
	a, ok := m.assignments[id]
	if !ok {
		return rbac.Assignment{}, fmt.Errorf("%w: assignment %d", rbac.ErrNotFound, id)
	}
	m.dropAssignment(id)
	return a, nil
}

func (m *MemoryStore) decorate(g rbac.Grant) rbac.Grant {
	g.RoleName = m.roles[g.RoleID]
	g.ResourceName = m.resources[g.ResourceID]
	g.ActionName = m.actions[g.ActionID]
	return g
}
