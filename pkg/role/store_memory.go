package role

import (
	"context"
	"sort"
	"sync"

	"github.com/agubarev/handbook/pkg/database"
	"github.com/agubarev/handbook/pkg/fault"
)

type userRoleKey struct {
	userID uint32
	roleID uint32
}

// memoryStore keeps everything in memory, it is used by tests and
// the memory backend
// NOTE: writes are journaled so that a failed transaction reverts them
type memoryStore struct {
	lastID      uint32
	departments map[uint32]Department
	roles       map[uint32]Role
	permissions map[uint32]Permission
	userRoles   map[userRoleKey]UserRole
	sync.RWMutex
}

// NewMemoryStore returns an initialized role store that stores everything in memory
func NewMemoryStore() Store {
	return &memoryStore{
		departments: make(map[uint32]Department),
		roles:       make(map[uint32]Role),
		permissions: make(map[uint32]Permission),
		userRoles:   make(map[userRoleKey]UserRole),
	}
}

func (s *memoryStore) nextID() uint32 {
	s.lastID++
	return s.lastID
}

func (s *memoryStore) CreateDepartment(ctx context.Context, d Department) (Department, error) {
	if d.ID != 0 {
		return d, ErrNonZeroID
	}

	s.Lock()
	defer s.Unlock()

	for _, existing := range s.departments {
		if existing.BusinessID == d.BusinessID && existing.Name == d.Name {
			return d, fault.Invariant("Department", "Insert", "record already exists")
		}
	}

	d.ID = s.nextID()
	s.departments[d.ID] = d

	database.Journal(ctx, func() {
		s.Lock()
		delete(s.departments, d.ID)
		s.Unlock()
	})

	return d, nil
}

func (s *memoryStore) UpdateDepartment(ctx context.Context, d Department) error {
	s.Lock()
	defer s.Unlock()

	before, ok := s.departments[d.ID]
	if !ok {
		return fault.NotFound("Department")
	}

	s.departments[d.ID] = d

	database.Journal(ctx, func() {
		s.Lock()
		s.departments[d.ID] = before
		s.Unlock()
	})

	return nil
}

func (s *memoryStore) FetchDepartmentByID(ctx context.Context, id uint32, forUpdate bool) (Department, error) {
	s.RLock()
	defer s.RUnlock()

	d, ok := s.departments[id]
	if !ok {
		return d, fault.NotFound("Department")
	}

	return d, nil
}

func (s *memoryStore) FetchDepartmentsByBusinessID(ctx context.Context, businessID uint32) ([]Department, error) {
	s.RLock()
	defer s.RUnlock()

	ds := make([]Department, 0)
	for _, d := range s.departments {
		if d.BusinessID == businessID {
			ds = append(ds, d)
		}
	}

	sort.Slice(ds, func(i, j int) bool { return ds[i].ID < ds[j].ID })

	return ds, nil
}

func (s *memoryStore) DeleteDepartmentByID(ctx context.Context, id uint32) error {
	s.Lock()
	defer s.Unlock()

	d, ok := s.departments[id]
	if !ok {
		return fault.NotFound("Department")
	}

	delete(s.departments, id)

	// cascading to roles of this department
	removed := make([]Role, 0)
	for _, r := range s.roles {
		if r.DepartmentID == id {
			removed = append(removed, r)
		}
	}

	undoRoles := make([]func(), 0, len(removed))
	for _, r := range removed {
		undoRoles = append(undoRoles, s.deleteRole(r.ID))
	}

	database.Journal(ctx, func() {
		s.Lock()
		s.departments[id] = d
		s.Unlock()

		for _, undo := range undoRoles {
			undo()
		}
	})

	return nil
}

func (s *memoryStore) CreateRole(ctx context.Context, r Role) (Role, error) {
	if r.ID != 0 {
		return r, ErrNonZeroID
	}

	s.Lock()
	defer s.Unlock()

	if _, ok := s.departments[r.DepartmentID]; !ok {
		return r, fault.Invariant("Role", "Insert", "referenced record does not exist or is still in use")
	}

	for _, existing := range s.roles {
		if existing.DepartmentID == r.DepartmentID && existing.Name == r.Name {
			return r, fault.Invariant("Role", "Insert", "record already exists")
		}
	}

	r.ID = s.nextID()
	s.roles[r.ID] = r

	database.Journal(ctx, func() {
		s.Lock()
		delete(s.roles, r.ID)
		s.Unlock()
	})

	return r, nil
}

func (s *memoryStore) UpdateRole(ctx context.Context, r Role) error {
	s.Lock()
	defer s.Unlock()

	before, ok := s.roles[r.ID]
	if !ok {
		return fault.NotFound("Role")
	}

	s.roles[r.ID] = r

	database.Journal(ctx, func() {
		s.Lock()
		s.roles[r.ID] = before
		s.Unlock()
	})

	return nil
}

func (s *memoryStore) FetchRoleByID(ctx context.Context, id uint32, forUpdate bool) (Role, error) {
	s.RLock()
	defer s.RUnlock()

	r, ok := s.roles[id]
	if !ok {
		return r, fault.NotFound("Role")
	}

	return r, nil
}

func (s *memoryStore) FetchRolesByDepartmentID(ctx context.Context, departmentID uint32) ([]Role, error) {
	s.RLock()
	defer s.RUnlock()

	rs := make([]Role, 0)
	for _, r := range s.roles {
		if r.DepartmentID == departmentID {
			rs = append(rs, r)
		}
	}

	sort.Slice(rs, func(i, j int) bool { return rs[i].ID < rs[j].ID })

	return rs, nil
}

func (s *memoryStore) DeleteRoleByID(ctx context.Context, id uint32) error {
	s.Lock()
	defer s.Unlock()

	if _, ok := s.roles[id]; !ok {
		return fault.NotFound("Role")
	}

	database.Journal(ctx, s.deleteRole(id))

	return nil
}

// deleteRole removes a role along with its permission and bindings,
// returning a function that restores them
// NOTE: the caller must hold the write lock
func (s *memoryStore) deleteRole(id uint32) func() {
	r := s.roles[id]
	p, hasPermission := s.permissions[id]

	bindings := make([]UserRole, 0)
	for k, ur := range s.userRoles {
		if k.roleID == id {
			bindings = append(bindings, ur)
			delete(s.userRoles, k)
		}
	}

	delete(s.roles, id)
	delete(s.permissions, id)

	return func() {
		s.Lock()
		defer s.Unlock()

		s.roles[id] = r
		if hasPermission {
			s.permissions[id] = p
		}

		for _, ur := range bindings {
			s.userRoles[userRoleKey{ur.UserID, ur.RoleID}] = ur
		}
	}
}

func (s *memoryStore) CreatePermission(ctx context.Context, p Permission) error {
	if p.RoleID == 0 {
		return ErrZeroID
	}

	s.Lock()
	defer s.Unlock()

	if _, ok := s.permissions[p.RoleID]; ok {
		return fault.Invariant("Permission", "Insert", "record already exists")
	}

	s.permissions[p.RoleID] = p

	database.Journal(ctx, func() {
		s.Lock()
		delete(s.permissions, p.RoleID)
		s.Unlock()
	})

	return nil
}

func (s *memoryStore) UpdatePermission(ctx context.Context, p Permission) error {
	s.Lock()
	defer s.Unlock()

	before, ok := s.permissions[p.RoleID]
	if !ok {
		return fault.NotFound("Permission")
	}

	s.permissions[p.RoleID] = p

	database.Journal(ctx, func() {
		s.Lock()
		s.permissions[p.RoleID] = before
		s.Unlock()
	})

	return nil
}

func (s *memoryStore) FetchPermissionByRoleID(ctx context.Context, roleID uint32, forUpdate bool) (Permission, error) {
	s.RLock()
	defer s.RUnlock()

	p, ok := s.permissions[roleID]
	if !ok {
		return p, fault.NotFound("Permission")
	}

	return p, nil
}

func (s *memoryStore) CreateUserRole(ctx context.Context, ur UserRole) error {
	if ur.UserID == 0 || ur.RoleID == 0 {
		return ErrZeroID
	}

	s.Lock()
	defer s.Unlock()

	key := userRoleKey{ur.UserID, ur.RoleID}
	if _, ok := s.userRoles[key]; ok {
		return fault.Invariant("UserRole", "Insert", "record already exists")
	}

	if _, ok := s.roles[ur.RoleID]; !ok {
		return fault.Invariant("UserRole", "Insert", "referenced record does not exist or is still in use")
	}

	s.userRoles[key] = ur

	database.Journal(ctx, func() {
		s.Lock()
		delete(s.userRoles, key)
		s.Unlock()
	})

	return nil
}

func (s *memoryStore) HasUserRole(ctx context.Context, userID, roleID uint32) (bool, error) {
	s.RLock()
	_, ok := s.userRoles[userRoleKey{userID, roleID}]
	s.RUnlock()

	return ok, nil
}

func (s *memoryStore) DeleteUserRole(ctx context.Context, userID, roleID uint32) error {
	s.Lock()
	defer s.Unlock()

	key := userRoleKey{userID, roleID}
	ur, ok := s.userRoles[key]
	if !ok {
		return fault.NotFound("UserRole")
	}

	delete(s.userRoles, key)

	database.Journal(ctx, func() {
		s.Lock()
		s.userRoles[key] = ur
		s.Unlock()
	})

	return nil
}

func (s *memoryStore) DeleteUserRolesByBusinessID(ctx context.Context, businessID, userID uint32) error {
	s.Lock()
	defer s.Unlock()

	removed := make([]UserRole, 0)
	for k, ur := range s.userRoles {
		if k.userID != userID {
			continue
		}

		r, ok := s.roles[k.roleID]
		if !ok {
			continue
		}

		if d, ok := s.departments[r.DepartmentID]; ok && d.BusinessID == businessID {
			removed = append(removed, ur)
			delete(s.userRoles, k)
		}
	}

	database.Journal(ctx, func() {
		s.Lock()
		for _, ur := range removed {
			s.userRoles[userRoleKey{ur.UserID, ur.RoleID}] = ur
		}
		s.Unlock()
	})

	return nil
}

func (s *memoryStore) FetchUserRolesByRoleID(ctx context.Context, roleID uint32) ([]UserRole, error) {
	s.RLock()
	defer s.RUnlock()

	urs := make([]UserRole, 0)
	for k, ur := range s.userRoles {
		if k.roleID == roleID {
			urs = append(urs, ur)
		}
	}

	sort.Slice(urs, func(i, j int) bool {
		if urs[i].CreatedAt.Equal(urs[j].CreatedAt) {
			return urs[i].UserID < urs[j].UserID
		}

		return urs[i].CreatedAt.Before(urs[j].CreatedAt)
	})

	return urs, nil
}

func (s *memoryStore) FetchHeldRoles(ctx context.Context, businessID, userID uint32) ([]HeldRole, error) {
	s.RLock()
	defer s.RUnlock()

	hs := make([]HeldRole, 0)
	for k, ur := range s.userRoles {
		if k.userID != userID {
			continue
		}

		r, ok := s.roles[k.roleID]
		if !ok {
			continue
		}

		d, ok := s.departments[r.DepartmentID]
		if !ok || d.BusinessID != businessID {
			continue
		}

		hs = append(hs, HeldRole{Role: r, BusinessID: d.BusinessID, GrantedAt: ur.CreatedAt})
	}

	sort.Slice(hs, func(i, j int) bool {
		if hs[i].GrantedAt.Equal(hs[j].GrantedAt) {
			return hs[i].ID > hs[j].ID
		}

		return hs[i].GrantedAt.After(hs[j].GrantedAt)
	})

	return hs, nil
}
