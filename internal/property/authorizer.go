package property

import (
	"context"

	"buildinghub_backend/internal/common"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Authorizer decides whether a user may manage a building's content.
type Authorizer struct {
	repo   Repository
	logger *zap.Logger
}

func NewAuthorizer(repo Repository, logger *zap.Logger) *Authorizer {
	return &Authorizer{repo: repo, logger: logger.Named("BuildingAuthorizer")}
}

// AuthorizeManager returns nil when userID may publish to and reorder content
// of buildingID. Admins manage every building, clients only their own.
func (a *Authorizer) AuthorizeManager(ctx context.Context, buildingID, userID uuid.UUID, role string) error {
	if !common.CanManageBuildings(role) {
		return common.ErrForbidden.WithDetails("Only building managers can perform this action.")
	}
	building, err := a.repo.FindBuildingByID(ctx, buildingID)
	if err != nil {
		return err
	}
	if role == common.RoleAdmin || building.ClientID == userID {
		return nil
	}
	a.logger.Warn("Client attempted to manage a building it does not own",
		zap.String("userID", userID.String()),
		zap.String("buildingID", buildingID.String()))
	return common.ErrForbidden.WithDetails("You do not manage this building.")
}
