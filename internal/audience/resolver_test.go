package audience

import (
	"context"
	"errors"
	"testing"

	"buildinghub_backend/internal/common"
	"buildinghub_backend/internal/oplog"
	"buildinghub_backend/internal/oplog/oplogtest"
	"buildinghub_backend/internal/property"
	"buildinghub_backend/internal/property/propertytest"
	"buildinghub_backend/internal/user"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type audienceWorld struct {
	resolver  *Resolver
	rec       *oplogtest.Recorder
	fx        *propertytest.Fixture
	client    *user.User
	buildingA *property.Building
	buildingB *property.Building
}

func setupAudience(t *testing.T) *audienceWorld {
	t.Helper()
	db := propertytest.OpenDB(t)
	fx := propertytest.NewFixture(t, db)
	client := fx.User(user.User{Email: propertytest.StrPtr("Manager@Example.com"), Role: common.RoleClient})
	w := &audienceWorld{
		rec:       &oplogtest.Recorder{},
		fx:        fx,
		client:    client,
		buildingA: fx.Building(client.ID, "A", "board@example.com", " MANAGER@example.com "),
		buildingB: fx.Building(client.ID, "B"),
	}
	w.resolver = NewResolver(NewGORMDirectory(db, property.NewGORMRepository(db)), w.rec, zap.NewNop())
	return w
}

func TestResolveTenantsForBuildings_EmptyInput(t *testing.T) {
	dir := &failingDirectory{}
	rec := &oplogtest.Recorder{}
	r := NewResolver(dir, rec, zap.NewNop())

	recipients, err := r.ResolveTenantsForBuildings(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, recipients)
	assert.False(t, dir.called, "no store access for an empty set")
	assert.Empty(t, rec.Entries())
}

func TestResolveTenantsForBuildings_DedupesToFirstBuilding(t *testing.T) {
	w := setupAudience(t)
	aptA := w.fx.Apartment(w.buildingA.ID, "1A")
	aptB := w.fx.Apartment(w.buildingB.ID, "1B")
	shared := w.fx.User(user.User{Email: propertytest.StrPtr("shared@example.com"), PhoneNumber: propertytest.StrPtr("+30 690 1"), SMSOptIn: true})
	onlyA := w.fx.User(user.User{Email: propertytest.StrPtr("a@example.com")})
	w.fx.Tenant(aptB.ID, shared.ID)
	w.fx.Tenant(aptA.ID, shared.ID)
	w.fx.Tenant(aptA.ID, onlyA.ID)

	recipients, err := w.resolver.ResolveTenantsForBuildings(context.Background(), []uuid.UUID{w.buildingB.ID, w.buildingA.ID})
	require.NoError(t, err)
	require.Len(t, recipients, 2)

	byUser := map[uuid.UUID]Recipient{}
	for _, r := range recipients {
		byUser[r.UserID] = r
	}
	assert.Equal(t, w.buildingB.ID, byUser[shared.ID].BuildingID, "first building in input order wins")
	assert.Equal(t, w.buildingA.ID, byUser[onlyA.ID].BuildingID)
	assert.Equal(t, "+30 690 1", byUser[shared.ID].PhoneNumber)
	assert.True(t, byUser[shared.ID].SMSOptIn)
	assert.Equal(t, shared.ID, recipients[0].UserID, "recipients are grouped by building in input order")

	entries := w.rec.ByAction("audience.resolve_tenants")
	require.Len(t, entries, 1)
	assert.Equal(t, oplog.TypeDB, entries[0].Type)
}

func TestResolveTenantsForBuildings_UnknownBuilding(t *testing.T) {
	w := setupAudience(t)

	recipients, err := w.resolver.ResolveTenantsForBuildings(context.Background(), []uuid.UUID{uuid.New()})

	require.NoError(t, err)
	assert.Empty(t, recipients)
}

func TestResolveNotificationEmailsForBuildings(t *testing.T) {
	w := setupAudience(t)
	apt := w.fx.Apartment(w.buildingA.ID, "2A")
	optedIn := w.fx.User(user.User{Email: propertytest.StrPtr("Tenant@Example.com "), EmailOptIn: true})
	optedOut := w.fx.User(user.User{Email: propertytest.StrPtr("quiet@example.com")})
	w.fx.Tenant(apt.ID, optedIn.ID)
	w.fx.Tenant(apt.ID, optedOut.ID)

	emails, err := w.resolver.ResolveNotificationEmailsForBuildings(context.Background(), []uuid.UUID{w.buildingA.ID})

	require.NoError(t, err)
	assert.Equal(t, []string{"tenant@example.com", "manager@example.com", "board@example.com"}, emails)
	assert.Len(t, w.rec.ByAction("audience.resolve_emails"), 1)
}

func TestResolveBuildingAddress(t *testing.T) {
	w := setupAudience(t)
	ctx := context.Background()

	addr, err := w.resolver.ResolveBuildingAddress(ctx, w.buildingA.ID)
	require.NoError(t, err)
	require.NotNil(t, addr)
	assert.Equal(t, "A", addr.BuildingName)
	assert.Equal(t, "1 Main St, 10558 Athens, GR", addr.Formatted)

	missing, err := w.resolver.ResolveBuildingAddress(ctx, uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

type failingDirectory struct {
	called bool
}

func (d *failingDirectory) TenantsOfBuildings(context.Context, []uuid.UUID) ([]TenantRow, error) {
	d.called = true
	return nil, errors.New("connection refused")
}

func (d *failingDirectory) StakeholdersOfBuildings(context.Context, []uuid.UUID) ([]StakeholderRow, error) {
	d.called = true
	return nil, errors.New("connection refused")
}

func (d *failingDirectory) BuildingByID(context.Context, uuid.UUID) (*property.Building, error) {
	d.called = true
	return nil, errors.New("connection refused")
}

func TestResolver_StoreErrorsAreReturned(t *testing.T) {
	rec := &oplogtest.Recorder{}
	r := NewResolver(&failingDirectory{}, rec, zap.NewNop())
	ctx := context.Background()
	ids := []uuid.UUID{uuid.New()}

	_, err := r.ResolveTenantsForBuildings(ctx, ids)
	assert.Error(t, err)

	_, err = r.ResolveNotificationEmailsForBuildings(ctx, ids)
	assert.Error(t, err)

	addr, err := r.ResolveBuildingAddress(ctx, ids[0])
	assert.Error(t, err)
	assert.Nil(t, addr)

	for _, e := range rec.Entries() {
		assert.Equal(t, oplog.StatusFail, e.Status)
	}
}
