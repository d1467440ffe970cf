package audience

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"buildinghub_backend/internal/common"
	"buildinghub_backend/internal/oplog"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Resolver turns building ids into recipients, e-mail lists and addresses.
// It has no side effects besides operation log entries.
type Resolver struct {
	dir      Directory
	recorder oplog.Recorder
	logger   *zap.Logger
}

func NewResolver(dir Directory, recorder oplog.Recorder, logger *zap.Logger) *Resolver {
	return &Resolver{dir: dir, recorder: recorder, logger: logger.Named("AudienceResolver")}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// uniqueIDs drops repeated building ids, keeping input order.
func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ResolveTenantsForBuildings returns every tenant of buildingIDs once. A tenant
// living in several of the buildings is scoped to the first of them in input
// order. Recipients are grouped by that building, in input order.
func (r *Resolver) ResolveTenantsForBuildings(ctx context.Context, buildingIDs []uuid.UUID) ([]Recipient, error) {
	ids := uniqueIDs(buildingIDs)
	if len(ids) == 0 {
		return []Recipient{}, nil
	}
	start := time.Now()

	rows, err := r.dir.TenantsOfBuildings(ctx, ids)
	if err != nil {
		r.recorder.Record(ctx, oplog.NewEntry("audience.resolve_tenants", oplog.TypeDB, start,
			map[string]interface{}{"building_ids": ids}, err))
		return nil, fmt.Errorf("resolving tenants: %w", err)
	}

	position := make(map[uuid.UUID]int, len(ids))
	for i, id := range ids {
		position[id] = i
	}
	chosen := make(map[uuid.UUID]TenantRow, len(rows))
	order := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		prev, ok := chosen[row.UserID]
		if !ok {
			order = append(order, row.UserID)
			chosen[row.UserID] = row
			continue
		}
		if position[row.BuildingID] < position[prev.BuildingID] {
			chosen[row.UserID] = row
		}
	}

	buckets := make([][]Recipient, len(ids))
	for _, userID := range order {
		row := chosen[userID]
		p := position[row.BuildingID]
		buckets[p] = append(buckets[p], Recipient{
			UserID:        row.UserID,
			BuildingID:    row.BuildingID,
			Email:         derefString(row.Email),
			PhoneNumber:   derefString(row.PhoneNumber),
			SMSOptIn:      row.SMSOptIn,
			WhatsAppOptIn: row.WhatsAppOptIn,
			EmailOptIn:    row.EmailOptIn,
			ViberOptIn:    row.ViberOptIn,
			Locale:        row.Locale,
		})
	}
	recipients := make([]Recipient, 0, len(order))
	for _, b := range buckets {
		recipients = append(recipients, b...)
	}

	r.recorder.Record(ctx, oplog.NewEntry("audience.resolve_tenants", oplog.TypeDB, start,
		map[string]interface{}{"building_ids": ids, "recipients": len(recipients)}, nil))
	return recipients, nil
}

// ResolveNotificationEmailsForBuildings returns the addresses that receive
// e-mail about buildingIDs: opted-in tenants, the managing client and the
// building's extra notification addresses. Addresses are trimmed, lower-cased
// and unique, in first-seen order.
func (r *Resolver) ResolveNotificationEmailsForBuildings(ctx context.Context, buildingIDs []uuid.UUID) ([]string, error) {
	ids := uniqueIDs(buildingIDs)
	if len(ids) == 0 {
		return []string{}, nil
	}
	start := time.Now()
	fail := func(err error) ([]string, error) {
		r.recorder.Record(ctx, oplog.NewEntry("audience.resolve_emails", oplog.TypeDB, start,
			map[string]interface{}{"building_ids": ids}, err))
		return nil, fmt.Errorf("resolving notification emails: %w", err)
	}

	tenants, err := r.ResolveTenantsForBuildings(ctx, ids)
	if err != nil {
		return fail(err)
	}
	stakeholders, err := r.dir.StakeholdersOfBuildings(ctx, ids)
	if err != nil {
		return fail(err)
	}

	seen := make(map[string]struct{})
	emails := make([]string, 0, len(tenants))
	add := func(raw string) {
		addr := strings.ToLower(strings.TrimSpace(raw))
		if addr == "" {
			return
		}
		if _, ok := seen[addr]; ok {
			return
		}
		seen[addr] = struct{}{}
		emails = append(emails, addr)
	}
	for _, t := range tenants {
		if t.EmailOptIn {
			add(t.Email)
		}
	}
	for _, s := range stakeholders {
		add(derefString(s.ClientEmail))
		for _, e := range s.NotificationEmails {
			add(e)
		}
	}

	r.recorder.Record(ctx, oplog.NewEntry("audience.resolve_emails", oplog.TypeDB, start,
		map[string]interface{}{"building_ids": ids, "emails": len(emails)}, nil))
	return emails, nil
}

// ResolveBuildingAddress returns nil and no error for an unknown building.
func (r *Resolver) ResolveBuildingAddress(ctx context.Context, buildingID uuid.UUID) (*Address, error) {
	start := time.Now()
	b, err := r.dir.BuildingByID(ctx, buildingID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			r.recorder.Record(ctx, oplog.NewEntry("audience.resolve_address", oplog.TypeDB, start,
				map[string]interface{}{"building_id": buildingID, "found": false}, nil))
			return nil, nil
		}
		r.recorder.Record(ctx, oplog.NewEntry("audience.resolve_address", oplog.TypeDB, start,
			map[string]interface{}{"building_id": buildingID}, err))
		return nil, fmt.Errorf("resolving address of building %s: %w", buildingID, err)
	}

	r.recorder.Record(ctx, oplog.NewEntry("audience.resolve_address", oplog.TypeDB, start,
		map[string]interface{}{"building_id": buildingID, "found": true}, nil))
	return &Address{
		BuildingID:   b.ID,
		BuildingName: b.Name,
		Line:         b.AddressLine,
		City:         b.City,
		PostalCode:   b.PostalCode,
		Country:      b.Country,
		Formatted:    b.FormattedAddress(),
	}, nil
}
