// Package tier implements the Tier Resolver: given a
// user and the server their message came from, decides the quality-of-
// service tier that drives fan-out scheduling and embed styling.
package tier

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/crosschat/internal/config"
	"github.com/nextlevelbuilder/crosschat/internal/store"
	"github.com/nextlevelbuilder/crosschat/internal/types"
)

// RoleLookup resolves which of a user's roles the resolver cares about,
// checked across every server the bot is a member of. A
// concrete implementation lives in internal/discordgw, backed by discordgo's
// guild member cache.
type RoleLookup interface {
	HasRoleAnywhere(ctx context.Context, userID, roleID string) (bool, error)
}

// Resolver implements the tier precedence rules.
type Resolver struct {
	roles    RoleLookup
	partners store.PartnerStore
	cfg      config.RolesConfig
	ownerID  string
}

func New(roles RoleLookup, partners store.PartnerStore, cfg config.RolesConfig, owner config.OwnerConfig) *Resolver {
	return &Resolver{roles: roles, partners: partners, cfg: cfg, ownerID: owner.UserID}
}

// Resolve evaluates the tier precedence chain for one author.
func (r *Resolver) Resolve(ctx context.Context, userID, sourceServerID string) (types.TierInfo, error) {
	// 1. Founder.
	if userID != "" && r.isOwner(userID) {
		return types.TierInfo{Tier: types.TierFounder, Priority: types.PriorityElite, IsVIP: true}, nil
	}

	isStaff, err := r.hasRole(ctx, userID, r.cfg.StaffRoleID)
	if err != nil {
		return types.TierInfo{}, err
	}
	isElite, err := r.hasRole(ctx, userID, r.cfg.EliteRoleID)
	if err != nil {
		return types.TierInfo{}, err
	}
	isArchitect, err := r.hasRole(ctx, userID, r.cfg.ArchitectRoleID)
	if err != nil {
		return types.TierInfo{}, err
	}

	// 2. Staff, priority depends on which VIP role (if any) is also held.
	if isStaff {
		priority := types.PriorityStandard
		switch {
		case isElite:
			priority = types.PriorityElite
		case isArchitect:
			priority = types.PriorityArchitect
		}
		return types.TierInfo{Tier: types.TierStaff, Priority: priority, IsVIP: isElite || isArchitect}, nil
	}

	// 3. Elite (no staff, no founder).
	if isElite {
		return types.TierInfo{Tier: types.TierElite, Priority: types.PriorityElite, IsVIP: true}, nil
	}

	// 4. Architect.
	if isArchitect {
		return types.TierInfo{Tier: types.TierArchitect, Priority: types.PriorityArchitect, IsVIP: true}, nil
	}

	// 5. Partner server, non-VIP author.
	if sourceServerID != "" && r.partners != nil {
		_, isPartner, err := r.partners.Get(ctx, sourceServerID)
		if err != nil {
			return types.TierInfo{}, fmt.Errorf("check partner server: %w", err)
		}
		if isPartner {
			return types.TierInfo{Tier: types.TierPartner, Priority: types.PriorityPartner}, nil
		}
	}

	// 6. Standard.
	return types.TierInfo{Tier: types.TierStandard, Priority: types.PriorityStandard}, nil
}

func (r *Resolver) isOwner(userID string) bool {
	return userID != "" && r.ownerID != "" && r.ownerID == userID
}

func (r *Resolver) hasRole(ctx context.Context, userID, roleID string) (bool, error) {
	if roleID == "" || userID == "" || r.roles == nil {
		return false, nil
	}
	ok, err := r.roles.HasRoleAnywhere(ctx, userID, roleID)
	if err != nil {
		return false, fmt.Errorf("check role %q: %w", roleID, err)
	}
	return ok, nil
}
