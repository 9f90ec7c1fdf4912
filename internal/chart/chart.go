// Package chart holds the per-tenant chart of accounts: an arena of accounts
// keyed by id with a separate adjacency index for the parent/child tree.
// Acyclicity is enforced when accounts are added, not by the data structure.
package chart

import (
	"sort"
	"sync"

	"grootboek.dev/internal/ids"
)

// Chart is the account arena for a single tenant. Safe for concurrent use.
type Chart struct {
	mu       sync.RWMutex
	tenantID string
	accounts map[string]*Account // id -> account
	byCode   map[string]string   // code -> id
	children map[string][]string // parent id -> child ids
}

// New creates an empty chart for a tenant.
func New(tenantID string) *Chart {
	return &Chart{
		tenantID: tenantID,
		accounts: make(map[string]*Account),
		byCode:   make(map[string]string),
		children: make(map[string][]string),
	}
}

// TenantID returns the owning tenant.
func (c *Chart) TenantID() string { return c.tenantID }

// Add validates and inserts an account. The ID is assigned if empty.
func (c *Chart) Add(acc Account) (Account, error) {
	if acc.Code == "" {
		return Account{}, ErrCodeRequired
	}
	if !validType(acc.Type) {
		return Account{}, ErrInvalidType
	}
	if acc.IsControlAccount && !validControlType(acc.ControlType) {
		return Account{}, ErrMissingControl
	}
	if acc.TenantID != "" && acc.TenantID != c.tenantID {
		return Account{}, ErrTenantMismatch
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, dup := c.byCode[acc.Code]; dup {
		return Account{}, ErrDuplicateCode
	}
	if acc.ParentID != "" {
		if _, ok := c.accounts[acc.ParentID]; !ok {
			return Account{}, ErrUnknownParent
		}
	}
	if acc.ID == "" {
		acc.ID = ids.NewEntity()
	}
	acc.TenantID = c.tenantID
	acc.Active = true

	// A fresh node cannot close a cycle unless it points at itself, but the
	// walk also guards against a corrupted parent chain already in the arena.
	if err := c.checkAcyclic(acc.ID, acc.ParentID); err != nil {
		return Account{}, err
	}

	c.accounts[acc.ID] = &acc
	c.byCode[acc.Code] = acc.ID
	if acc.ParentID != "" {
		c.children[acc.ParentID] = append(c.children[acc.ParentID], acc.ID)
	}
	return acc, nil
}

// Reparent moves an account under a new parent, keeping the tree acyclic.
func (c *Chart) Reparent(id, newParentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	acc, ok := c.accounts[id]
	if !ok {
		return ErrNotFound
	}
	if newParentID != "" {
		if _, ok := c.accounts[newParentID]; !ok {
			return ErrUnknownParent
		}
		if err := c.checkAcyclic(id, newParentID); err != nil {
			return err
		}
	}
	if acc.ParentID != "" {
		c.children[acc.ParentID] = remove(c.children[acc.ParentID], id)
	}
	acc.ParentID = newParentID
	if newParentID != "" {
		c.children[newParentID] = append(c.children[newParentID], id)
	}
	return nil
}

// checkAcyclic walks the parent chain from parentID and fails if it reaches
// id. Callers hold the write lock.
func (c *Chart) checkAcyclic(id, parentID string) error {
	seen := map[string]bool{id: true}
	for cur := parentID; cur != ""; {
		if seen[cur] {
			return ErrCycle
		}
		seen[cur] = true
		parent, ok := c.accounts[cur]
		if !ok {
			return ErrUnknownParent
		}
		cur = parent.ParentID
	}
	return nil
}

// Deactivate marks an account unusable for new postings. Accounts are never
// deleted; historic entries keep referencing them.
func (c *Chart) Deactivate(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	acc, ok := c.accounts[id]
	if !ok {
		return ErrNotFound
	}
	acc.Active = false
	return nil
}

// ByID returns the account with the given id.
func (c *Chart) ByID(id string) (Account, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	acc, ok := c.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return *acc, nil
}

// ByCode returns the account with the given code.
func (c *Chart) ByCode(code string) (Account, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.byCode[code]
	if !ok {
		return Account{}, ErrNotFound
	}
	return *c.accounts[id], nil
}

// ActiveByID returns the account only when it can take new postings.
func (c *Chart) ActiveByID(id string) (Account, error) {
	acc, err := c.ByID(id)
	if err != nil {
		return Account{}, err
	}
	if !acc.Active {
		return Account{}, ErrInactive
	}
	return acc, nil
}

// Children returns the direct children of an account, ordered by code.
func (c *Chart) Children(id string) []Account {
	c.mu.RLock()
	defer c.mu.RUnlock()
	childIDs := c.children[id]
	out := make([]Account, 0, len(childIDs))
	for _, cid := range childIDs {
		out = append(out, *c.accounts[cid])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// All returns every account ordered by code.
func (c *Chart) All() []Account {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Account, 0, len(c.accounts))
	for _, acc := range c.accounts {
		out = append(out, *acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func remove(s []string, v string) []string {
	out := s[:0]
	for _, e := range s {
		if e != v {
			out = append(out, e)
		}
	}
	return out
}
