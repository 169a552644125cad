package manual

import (
	"context"

	"github.com/agubarev/handbook/pkg/database"
	"github.com/agubarev/handbook/pkg/fault"
	"github.com/agubarev/handbook/pkg/lock"
	"github.com/agubarev/handbook/pkg/role"
	"github.com/agubarev/handbook/pkg/util"
	"go.uber.org/zap"
)

// readers are the only ones who leave read receipts
var readers = []role.Access{role.AccessUser}

// sectionOf returns a section of the actor's business along with its manual
func (m *Manager) sectionOf(ctx context.Context, actor role.Actor, id uint32, forUpdate bool) (Section, Manual, error) {
	s, err := m.store.FetchSectionByID(ctx, id, forUpdate)
	if err != nil {
		return s, Manual{}, err
	}

	man, err := m.ensureManual(ctx, actor, s.ManualID, false)
	if err != nil {
		return Section{}, Manual{}, fault.NotFound("ManualSection")
	}

	return s, man, nil
}

func (m *Manager) policyOf(ctx context.Context, actor role.Actor, id uint32, forUpdate bool) (Policy, Manual, error) {
	p, err := m.store.FetchPolicyByID(ctx, id, forUpdate)
	if err != nil {
		return p, Manual{}, err
	}

	_, man, err := m.sectionOf(ctx, actor, p.SectionID, false)
	if err != nil {
		return Policy{}, Manual{}, fault.NotFound("Policy")
	}

	return p, man, nil
}

func (m *Manager) contentOf(ctx context.Context, actor role.Actor, id uint32, forUpdate bool) (Content, Manual, error) {
	c, err := m.store.FetchContentByID(ctx, id, forUpdate)
	if err != nil {
		return c, Manual{}, err
	}

	_, man, err := m.policyOf(ctx, actor, c.PolicyID, false)
	if err != nil {
		return Content{}, Manual{}, fault.NotFound("Content")
	}

	c.Checksum = util.ChecksumString(c.Body)

	return c, man, nil
}

//---------------------------------------------------------------------------
// sections
//---------------------------------------------------------------------------

// CreateSection adds a section to a manual
func (m *Manager) CreateSection(ctx context.Context, actor role.Actor, manualID uint32, s Section) (Section, error) {
	s.ID = 0
	s.ManualID = manualID
	s.Created(actor.UserID)

	if err := s.Validate(); err != nil {
		return s, fault.Invariant("ManualSection", "Insert", err.Error())
	}

	err := m.tx.WithTx(ctx, func(ctx context.Context) (err error) {
		if err = m.authorizeEdit(ctx, actor, "ManualSection", "Insert"); err != nil {
			return err
		}

		if _, err = m.ensureManual(ctx, actor, manualID, false); err != nil {
			return err
		}

		if err = m.locks.CheckInsert(ctx, lock.KManualSection, lock.Ref{Kind: lock.KManual, ID: manualID}); err != nil {
			return err
		}

		s, err = m.store.CreateSection(ctx, s)

		return err
	})

	if err != nil {
		return s, err
	}

	m.Logger().Debug("created section", zap.Uint32("id", s.ID), zap.Uint32("manual_id", manualID))

	return s, nil
}

// UpdateSection updates a section while its manual is not locked
func (m *Manager) UpdateSection(ctx context.Context, actor role.Actor, id uint32, fn func(ctx context.Context, s Section) (Section, error)) (s Section, err error) {
	err = m.tx.WithTx(ctx, func(ctx context.Context) error {
		if err = m.authorizeEdit(ctx, actor, "ManualSection", "Update"); err != nil {
			return err
		}

		current, _, err := m.sectionOf(ctx, actor, id, true)
		if err != nil {
			return err
		}

		updated, err := fn(ctx, current)
		if err != nil {
			return err
		}

		updated.ID = current.ID
		updated.Retain(current.Audit)

		changelog, err := util.ProtectedChangelog(map[string]bool{"title": true}, current, updated)
		if err != nil {
			return fault.Invariant("ManualSection", "Update", err.Error())
		}

		if len(changelog) == 0 {
			s = current
			return nil
		}

		if err = m.locks.CheckUpdate(ctx, lock.Ref{Kind: lock.KManualSection, ID: id}, lock.Flags{}); err != nil {
			return err
		}

		if err = updated.Validate(); err != nil {
			return fault.Invariant("ManualSection", "Update", err.Error())
		}

		updated.Touched(actor.UserID)
		if err = m.store.UpdateSection(ctx, updated); err != nil {
			return err
		}

		m.Logger().Debug("updated section", zap.Uint32("id", id), util.DumpChangelog(changelog))
		s = updated

		return nil
	})

	return s, err
}

// DeleteSection deletes a section along with its policies
func (m *Manager) DeleteSection(ctx context.Context, actor role.Actor, id uint32) error {
	return m.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := m.authorizeEdit(ctx, actor, "ManualSection", "Delete"); err != nil {
			return err
		}

		if _, _, err := m.sectionOf(ctx, actor, id, true); err != nil {
			return err
		}

		if err := m.locks.CheckDelete(ctx, lock.Ref{Kind: lock.KManualSection, ID: id}); err != nil {
			return err
		}

		return m.store.DeleteSectionByID(ctx, id)
	})
}

//---------------------------------------------------------------------------
// policies
//---------------------------------------------------------------------------

// CreatePolicy adds a policy to a section
func (m *Manager) CreatePolicy(ctx context.Context, actor role.Actor, sectionID uint32, p Policy) (Policy, error) {
	p.ID = 0
	p.SectionID = sectionID
	p.Created(actor.UserID)

	if err := p.Validate(); err != nil {
		return p, fault.Invariant("Policy", "Insert", err.Error())
	}

	err := m.tx.WithTx(ctx, func(ctx context.Context) (err error) {
		if err = m.authorizeEdit(ctx, actor, "Policy", "Insert"); err != nil {
			return err
		}

		if _, _, err = m.sectionOf(ctx, actor, sectionID, false); err != nil {
			return err
		}

		if err = m.locks.CheckInsert(ctx, lock.KPolicy, lock.Ref{Kind: lock.KManualSection, ID: sectionID}); err != nil {
			return err
		}

		p, err = m.store.CreatePolicy(ctx, p)

		return err
	})

	if err != nil {
		return p, err
	}

	m.Logger().Debug("created policy", zap.Uint32("id", p.ID), zap.Uint32("section_id", sectionID))

	return p, nil
}

// UpdatePolicy updates a policy while its manual is not locked
func (m *Manager) UpdatePolicy(ctx context.Context, actor role.Actor, id uint32, fn func(ctx context.Context, p Policy) (Policy, error)) (p Policy, err error) {
	err = m.tx.WithTx(ctx, func(ctx context.Context) error {
		if err = m.authorizeEdit(ctx, actor, "Policy", "Update"); err != nil {
			return err
		}

		current, _, err := m.policyOf(ctx, actor, id, true)
		if err != nil {
			return err
		}

		updated, err := fn(ctx, current)
		if err != nil {
			return err
		}

		updated.ID = current.ID
		updated.Retain(current.Audit)

		changelog, err := util.ProtectedChangelog(map[string]bool{"title": true}, current, updated)
		if err != nil {
			return fault.Invariant("Policy", "Update", err.Error())
		}

		if len(changelog) == 0 {
			p = current
			return nil
		}

		if err = m.locks.CheckUpdate(ctx, lock.Ref{Kind: lock.KPolicy, ID: id}, lock.Flags{}); err != nil {
			return err
		}

		if err = updated.Validate(); err != nil {
			return fault.Invariant("Policy", "Update", err.Error())
		}

		updated.Touched(actor.UserID)
		if err = m.store.UpdatePolicy(ctx, updated); err != nil {
			return err
		}

		m.Logger().Debug("updated policy", zap.Uint32("id", id), util.DumpChangelog(changelog))
		p = updated

		return nil
	})

	return p, err
}

// DeletePolicy deletes a policy along with its content
func (m *Manager) DeletePolicy(ctx context.Context, actor role.Actor, id uint32) error {
	return m.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := m.authorizeEdit(ctx, actor, "Policy", "Delete"); err != nil {
			return err
		}

		if _, _, err := m.policyOf(ctx, actor, id, true); err != nil {
			return err
		}

		if err := m.locks.CheckDelete(ctx, lock.Ref{Kind: lock.KPolicy, ID: id}); err != nil {
			return err
		}

		return m.store.DeletePolicyByID(ctx, id)
	})
}

//---------------------------------------------------------------------------
// contents
//---------------------------------------------------------------------------

// CreateContent adds content to a policy
func (m *Manager) CreateContent(ctx context.Context, actor role.Actor, policyID uint32, c Content) (Content, error) {
	c.ID = 0
	c.PolicyID = policyID
	c.Created(actor.UserID)

	if err := c.Validate(); err != nil {
		return c, fault.Invariant("Content", "Insert", err.Error())
	}

	err := m.tx.WithTx(ctx, func(ctx context.Context) (err error) {
		if err = m.authorizeEdit(ctx, actor, "Content", "Insert"); err != nil {
			return err
		}

		if _, _, err = m.policyOf(ctx, actor, policyID, false); err != nil {
			return err
		}

		if err = m.locks.CheckInsert(ctx, lock.KContent, lock.Ref{Kind: lock.KPolicy, ID: policyID}); err != nil {
			return err
		}

		c, err = m.store.CreateContent(ctx, c)

		return err
	})

	if err != nil {
		return c, err
	}

	c.Checksum = util.ChecksumString(c.Body)
	m.Logger().Debug("created content", zap.Uint32("id", c.ID), zap.Uint32("policy_id", policyID))

	return c, nil
}

// UpdateContent updates content while its manual is not locked
func (m *Manager) UpdateContent(ctx context.Context, actor role.Actor, id uint32, fn func(ctx context.Context, c Content) (Content, error)) (c Content, err error) {
	err = m.tx.WithTx(ctx, func(ctx context.Context) error {
		if err = m.authorizeEdit(ctx, actor, "Content", "Update"); err != nil {
			return err
		}

		current, _, err := m.contentOf(ctx, actor, id, true)
		if err != nil {
			return err
		}

		updated, err := fn(ctx, current)
		if err != nil {
			return err
		}

		updated.ID = current.ID
		updated.Retain(current.Audit)

		changelog, err := util.ProtectedChangelog(map[string]bool{
			"title": true,
			"body":  true,
		}, current, updated)

		if err != nil {
			return fault.Invariant("Content", "Update", err.Error())
		}

		if len(changelog) == 0 {
			c = current
			return nil
		}

		if err = m.locks.CheckUpdate(ctx, lock.Ref{Kind: lock.KContent, ID: id}, lock.Flags{}); err != nil {
			return err
		}

		if err = updated.Validate(); err != nil {
			return fault.Invariant("Content", "Update", err.Error())
		}

		updated.Touched(actor.UserID)
		if err = m.store.UpdateContent(ctx, updated); err != nil {
			return err
		}

		m.Logger().Debug("updated content", zap.Uint32("id", id), util.DumpChangelog(changelog))

		updated.Checksum = util.ChecksumString(updated.Body)
		c = updated

		return nil
	})

	return c, err
}

// DeleteContent deletes content along with its read receipts
func (m *Manager) DeleteContent(ctx context.Context, actor role.Actor, id uint32) error {
	return m.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := m.authorizeEdit(ctx, actor, "Content", "Delete"); err != nil {
			return err
		}

		if _, _, err := m.contentOf(ctx, actor, id, true); err != nil {
			return err
		}

		if err := m.locks.CheckDelete(ctx, lock.Ref{Kind: lock.KContent, ID: id}); err != nil {
			return err
		}

		return m.store.DeleteContentByID(ctx, id)
	})
}

// ContentByID returns content of a manual visible to the actor,
// its checksum is set
func (m *Manager) ContentByID(ctx context.Context, actor role.Actor, id uint32) (Content, error) {
	c, man, err := m.contentOf(ctx, actor, id, false)
	if err != nil {
		return c, err
	}

	if err = m.ensureVisible(ctx, actor, man, "Content"); err != nil {
		return Content{}, err
	}

	return c, nil
}

// Sections lists the sections of a manual visible to the actor
func (m *Manager) Sections(ctx context.Context, actor role.Actor, manualID uint32) ([]Section, error) {
	if _, err := m.ManualByID(ctx, actor, manualID); err != nil {
		return nil, err
	}

	return m.store.FetchSectionsByManualID(ctx, manualID)
}

// Policies lists the policies of a section
func (m *Manager) Policies(ctx context.Context, actor role.Actor, sectionID uint32) ([]Policy, error) {
	_, man, err := m.sectionOf(ctx, actor, sectionID, false)
	if err != nil {
		return nil, err
	}

	if err = m.ensureVisible(ctx, actor, man, "ManualSection"); err != nil {
		return nil, err
	}

	return m.store.FetchPoliciesBySectionID(ctx, sectionID)
}

// Contents lists the contents of a policy, their checksums are set
func (m *Manager) Contents(ctx context.Context, actor role.Actor, policyID uint32) ([]Content, error) {
	_, man, err := m.policyOf(ctx, actor, policyID, false)
	if err != nil {
		return nil, err
	}

	if err = m.ensureVisible(ctx, actor, man, "Policy"); err != nil {
		return nil, err
	}

	cs, err := m.store.FetchContentsByPolicyID(ctx, policyID)
	if err != nil {
		return nil, err
	}

	for i := range cs {
		cs[i].Checksum = util.ChecksumString(cs[i].Body)
	}

	return cs, nil
}

// ensureVisible reports a node of a hidden manual as not found
func (m *Manager) ensureVisible(ctx context.Context, actor role.Actor, man Manual, entity string) error {
	visible, err := m.visible(ctx, actor, man)
	if err != nil {
		return err
	}

	if !visible {
		return fault.NotFound(entity)
	}

	return nil
}

//---------------------------------------------------------------------------
// read receipts
//---------------------------------------------------------------------------

// readable checks that content belongs to a published manual the actor sees
func (m *Manager) readable(ctx context.Context, actor role.Actor, contentID uint32) error {
	_, man, err := m.contentOf(ctx, actor, contentID, false)
	if err != nil {
		return err
	}

	if !man.Published {
		return fault.NotFound("Content")
	}

	visible, err := m.visible(ctx, actor, man)
	if err != nil {
		return err
	}

	if !visible {
		return fault.NotFound("Content")
	}

	return nil
}

// MarkRead leaves a read receipt of the actor on a piece of content
// NOTE: reading is never lock-gated
func (m *Manager) MarkRead(ctx context.Context, actor role.Actor, contentID uint32) (r Read, err error) {
	err = m.tx.WithTx(ctx, func(ctx context.Context) error {
		if err = m.resolver.Authorize(ctx, actor, "ContentRead", "Insert", readers); err != nil {
			return err
		}

		if err = m.readable(ctx, actor, contentID); err != nil {
			return err
		}

		r = Read{
			ContentID: contentID,
			UserID:    actor.UserID,
			CreatedAt: database.Now(),
		}

		return m.store.CreateRead(ctx, r)
	})

	if err != nil {
		return r, err
	}

	m.Logger().Debug("marked content read", zap.Uint32("content_id", contentID), zap.Uint32("user_id", actor.UserID))

	return r, nil
}

// UnmarkRead removes the actor's read receipt
func (m *Manager) UnmarkRead(ctx context.Context, actor role.Actor, contentID uint32) error {
	return m.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := m.resolver.Authorize(ctx, actor, "ContentRead", "Delete", readers); err != nil {
			return err
		}

		if err := m.readable(ctx, actor, contentID); err != nil {
			return err
		}

		return m.store.DeleteRead(ctx, contentID, actor.UserID)
	})
}

// HasRead reports whether the actor has read a piece of content
func (m *Manager) HasRead(ctx context.Context, actor role.Actor, contentID uint32) (bool, error) {
	if _, _, err := m.contentOf(ctx, actor, contentID, false); err != nil {
		return false, err
	}

	return m.store.HasRead(ctx, contentID, actor.UserID)
}

// UpdateRead always fails, a receipt is deleted and created instead
func (m *Manager) UpdateRead(ctx context.Context, actor role.Actor, contentID uint32) error {
	return m.locks.RejectUpdate(lock.KContentRead)
}
