package middleware

import (
	"context"
	"time"

	"buildinghub_backend/internal/common"
	"buildinghub_backend/internal/oplog"
	"buildinghub_backend/internal/user"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TokenVerifier verifies Firebase ID tokens.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// UserResolver maps a verified token to the local user account.
type UserResolver interface {
	GetOrCreateUserFromFirebaseClaims(ctx context.Context, token *firebaseauth.Token) (*user.User, bool, error)
}

// AuthMiddleware authenticates requests carrying a Firebase ID token as a
// bearer token and stores the local user's ID and role in the context.
func AuthMiddleware(verifier TokenVerifier, users UserResolver, recorder oplog.Recorder, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader(common.AuthorizationHeader) == "" {
			common.RespondWithError(c, common.ErrUnauthorized.WithDetails("Authorization header is required."))
			return
		}
		idToken := common.GetTokenFromContext(c)
		if idToken == "" {
			common.RespondWithError(c, common.ErrUnauthorized.WithDetails("Authorization header format must be 'Bearer <token>'."))
			return
		}

		ctx := c.Request.Context()
		start := time.Now()
		token, err := verifier.VerifyIDToken(ctx, idToken)
		if err != nil {
			recorder.Record(ctx, oplog.NewEntry("auth.verify_token", oplog.TypeAuth, start,
				map[string]interface{}{"path": c.FullPath()}, err))
			common.RespondWithError(c, common.ErrUnauthorized.WithDetails("Invalid or expired token."))
			return
		}

		usr, created, err := users.GetOrCreateUserFromFirebaseClaims(ctx, token)
		if err != nil {
			common.RespondWithError(c, err)
			return
		}
		if created {
			logger.Info("First sign in", zap.String("userID", usr.ID.String()))
		}

		c.Set(common.UserIDKey, usr.ID)
		c.Set(common.UserRoleKey, usr.Role)
		c.Set(common.FirebaseUIDKey, token.UID)
		if usr.Email != nil {
			c.Set(common.UserEmailKey, *usr.Email)
		}
		c.Next()
	}
}

// RoleAuthMiddleware lets through only users holding one of allowedRoles.
func RoleAuthMiddleware(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := common.GetUserRoleFromContext(c)
		if role == "" {
			common.RespondWithError(c, common.ErrForbidden.WithDetails("User role not found in context."))
			return
		}
		for _, allowed := range allowedRoles {
			if role == allowed {
				c.Next()
				return
			}
		}
		common.RespondWithError(c, common.ErrForbidden.WithDetails("You do not have sufficient permissions for this resource."))
	}
}

// ManagerRoleMiddleware admits building managers: clients and admins.
func ManagerRoleMiddleware() gin.HandlerFunc {
	return RoleAuthMiddleware(common.RoleClient, common.RoleAdmin)
}
