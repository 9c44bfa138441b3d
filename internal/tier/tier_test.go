package tier

import (
	"context"
	"testing"

	"github.com/nextlevelbuilder/crosschat/internal/config"
	"github.com/nextlevelbuilder/crosschat/internal/store"
	"github.com/nextlevelbuilder/crosschat/internal/types"
)

type fakeRoles struct {
	roles map[string]map[string]bool // userID -> roleID -> held
}

func (f *fakeRoles) HasRoleAnywhere(_ context.Context, userID, roleID string) (bool, error) {
	return f.roles[userID][roleID], nil
}

type fakePartners struct {
	partnered map[string]bool
}

func (f *fakePartners) Add(context.Context, store.PartnerServer) error { return nil }
func (f *fakePartners) Remove(context.Context, string) error           { return nil }
func (f *fakePartners) Get(_ context.Context, serverID string) (store.PartnerServer, bool, error) {
	return store.PartnerServer{ServerID: serverID}, f.partnered[serverID], nil
}
func (f *fakePartners) List(context.Context) ([]store.PartnerServer, error) { return nil, nil }

var testCfg = config.RolesConfig{
	StaffRoleID:     "staff",
	EliteRoleID:     "elite",
	ArchitectRoleID: "architect",
}

func TestResolve_Founder(t *testing.T) {
	r := New(&fakeRoles{}, &fakePartners{}, testCfg, config.OwnerConfig{UserID: "owner1"})
	got, err := r.Resolve(context.Background(), "owner1", "server1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Tier != types.TierFounder || got.Priority != types.PriorityElite || !got.IsVIP {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestResolve_StaffWithElite(t *testing.T) {
	roles := &fakeRoles{roles: map[string]map[string]bool{
		"u1": {"staff": true, "elite": true},
	}}
	r := New(roles, &fakePartners{}, testCfg, config.OwnerConfig{})
	got, err := r.Resolve(context.Background(), "u1", "server1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Tier != types.TierStaff || got.Priority != types.PriorityElite {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestResolve_StaffWithoutVIPRole(t *testing.T) {
	roles := &fakeRoles{roles: map[string]map[string]bool{
		"u1": {"staff": true},
	}}
	r := New(roles, &fakePartners{}, testCfg, config.OwnerConfig{})
	got, err := r.Resolve(context.Background(), "u1", "server1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Tier != types.TierStaff || got.Priority != types.PriorityStandard || got.IsVIP {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestResolve_EliteBeatsArchitect(t *testing.T) {
	roles := &fakeRoles{roles: map[string]map[string]bool{
		"u1": {"elite": true, "architect": true},
	}}
	r := New(roles, &fakePartners{}, testCfg, config.OwnerConfig{})
	got, err := r.Resolve(context.Background(), "u1", "server1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Tier != types.TierElite {
		t.Fatalf("expected elite to win over architect, got %+v", got)
	}
}

func TestResolve_PartnerServer(t *testing.T) {
	partners := &fakePartners{partnered: map[string]bool{"server1": true}}
	r := New(&fakeRoles{}, partners, testCfg, config.OwnerConfig{})
	got, err := r.Resolve(context.Background(), "u1", "server1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Tier != types.TierPartner || got.Priority != types.PriorityPartner {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestResolve_Standard(t *testing.T) {
	r := New(&fakeRoles{}, &fakePartners{}, testCfg, config.OwnerConfig{})
	got, err := r.Resolve(context.Background(), "u1", "server1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Tier != types.TierStandard || got.Priority != types.PriorityStandard {
		t.Fatalf("unexpected result: %+v", got)
	}
}
