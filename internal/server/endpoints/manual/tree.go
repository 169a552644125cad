package manual

import (
	"context"

	"github.com/agubarev/handbook/internal/core"
	"github.com/agubarev/handbook/internal/server/endpoints"
	"github.com/agubarev/handbook/pkg/manual"
	"github.com/agubarev/handbook/pkg/role"
)

// sections
var (
	PostSection = endpoints.Create[manual.Section]("id", func(ctx context.Context, c *core.Core, actor role.Actor, manualID uint32, s manual.Section) (manual.Section, error) {
		return c.ManualManager().CreateSection(ctx, actor, manualID, s)
	})

	PutSection = endpoints.Update[manual.Section](func(ctx context.Context, c *core.Core, actor role.Actor, id uint32, patch func(context.Context, manual.Section) (manual.Section, error)) (manual.Section, error) {
		return c.ManualManager().UpdateSection(ctx, actor, id, patch)
	})

	DeleteSection = endpoints.Delete(func(ctx context.Context, c *core.Core, actor role.Actor, id uint32) error {
		return c.ManualManager().DeleteSection(ctx, actor, id)
	})

	ListSections = endpoints.Get[[]manual.Section](func(ctx context.Context, c *core.Core, actor role.Actor, manualID uint32) ([]manual.Section, error) {
		return c.ManualManager().Sections(ctx, actor, manualID)
	})
)

// policies
var (
	PostPolicy = endpoints.Create[manual.Policy]("id", func(ctx context.Context, c *core.Core, actor role.Actor, sectionID uint32, p manual.Policy) (manual.Policy, error) {
		return c.ManualManager().CreatePolicy(ctx, actor, sectionID, p)
	})

	PutPolicy = endpoints.Update[manual.Policy](func(ctx context.Context, c *core.Core, actor role.Actor, id uint32, patch func(context.Context, manual.Policy) (manual.Policy, error)) (manual.Policy, error) {
		return c.ManualManager().UpdatePolicy(ctx, actor, id, patch)
	})

	DeletePolicy = endpoints.Delete(func(ctx context.Context, c *core.Core, actor role.Actor, id uint32) error {
		return c.ManualManager().DeletePolicy(ctx, actor, id)
	})

	ListPolicies = endpoints.Get[[]manual.Policy](func(ctx context.Context, c *core.Core, actor role.Actor, sectionID uint32) ([]manual.Policy, error) {
		return c.ManualManager().Policies(ctx, actor, sectionID)
	})
)

// contents
var (
	PostContent = endpoints.Create[manual.Content]("id", func(ctx context.Context, c *core.Core, actor role.Actor, policyID uint32, content manual.Content) (manual.Content, error) {
		return c.ManualManager().CreateContent(ctx, actor, policyID, content)
	})

	PutContent = endpoints.Update[manual.Content](func(ctx context.Context, c *core.Core, actor role.Actor, id uint32, patch func(context.Context, manual.Content) (manual.Content, error)) (manual.Content, error) {
		return c.ManualManager().UpdateContent(ctx, actor, id, patch)
	})

	DeleteContent = endpoints.Delete(func(ctx context.Context, c *core.Core, actor role.Actor, id uint32) error {
		return c.ManualManager().DeleteContent(ctx, actor, id)
	})

	ListContents = endpoints.Get[[]manual.Content](func(ctx context.Context, c *core.Core, actor role.Actor, policyID uint32) ([]manual.Content, error) {
		return c.ManualManager().Contents(ctx, actor, policyID)
	})
)

// assignments
var (
	PostAssignment = endpoints.Create[manual.Assignment]("id", func(ctx context.Context, c *core.Core, actor role.Actor, manualID uint32, a manual.Assignment) (manual.Assignment, error) {
		return c.ManualManager().AddAssignment(ctx, actor, manualID, a)
	})

	PutAssignment = endpoints.Update[manual.Assignment](func(ctx context.Context, c *core.Core, actor role.Actor, id uint32, patch func(context.Context, manual.Assignment) (manual.Assignment, error)) (manual.Assignment, error) {
		return c.ManualManager().UpdateAssignment(ctx, actor, id, patch)
	})

	DeleteAssignment = endpoints.Delete(func(ctx context.Context, c *core.Core, actor role.Actor, id uint32) error {
		return c.ManualManager().DeleteAssignment(ctx, actor, id)
	})
)
