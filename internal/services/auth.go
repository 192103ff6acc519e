package services

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agritrace/agritrace-backend/internal/apperr"
	"github.com/agritrace/agritrace-backend/internal/logger"
	"github.com/agritrace/agritrace-backend/internal/repos"
	"github.com/agritrace/agritrace-backend/internal/requestdata"
)

type JWTClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type AuthService interface {
	// IssueToken mints an access token for a known farm or client.
	IssueToken(ctx context.Context, actorID uuid.UUID, role requestdata.Role) (string, error)
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	GetAccessTTL() time.Duration
}

type authService struct {
	db            *gorm.DB
	log           *logger.Logger
	referenceRepo repos.ReferenceRepo
	clientRepo    repos.ClientRepo
	jwtSecretKey  string
	accessTTL     time.Duration
}

func NewAuthService(
	db *gorm.DB,
	baseLog *logger.Logger,
	referenceRepo repos.ReferenceRepo,
	clientRepo repos.ClientRepo,
	jwtSecretKey string,
	accessTTL time.Duration,
) AuthService {
	serviceLog := baseLog.With("service", "AuthService")
	return &authService{
		db:            db,
		log:           serviceLog,
		referenceRepo: referenceRepo,
		clientRepo:    clientRepo,
		jwtSecretKey:  jwtSecretKey,
		accessTTL:     accessTTL,
	}
}

func (as *authService) IssueToken(ctx context.Context, actorID uuid.UUID, role requestdata.Role) (string, error) {
	switch role {
	case requestdata.RoleFarm:
		farm, err := as.referenceRepo.GetFarm(ctx, nil, actorID)
		if err != nil {
			return "", apperr.PersistenceFailure(err)
		}
		if farm == nil {
			return "", apperr.NotFound("farm %s not found", actorID)
		}
	case requestdata.RoleClient:
		client, err := as.clientRepo.GetByID(ctx, nil, actorID)
		if err != nil {
			return "", apperr.PersistenceFailure(err)
		}
		if client == nil {
			return "", apperr.NotFound("client %s not found", actorID)
		}
	default:
		return "", apperr.InvalidInput("unknown role %q", role)
	}

	claims := JWTClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actorID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(as.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(as.jwtSecretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if tokenString == "" {
		return ctx, nil
	}
	parsedToken, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(as.jwtSecretKey), nil
	})
	if err != nil {
		return ctx, fmt.Errorf("failed to parse token: %w", err)
	}
	claims, ok := parsedToken.Claims.(*JWTClaims)
	if !ok || !parsedToken.Valid {
		return ctx, fmt.Errorf("invalid or expired token")
	}
	actorID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, fmt.Errorf("invalid actor id in token: %w", err)
	}
	role := requestdata.Role(claims.Role)
	if role != requestdata.RoleFarm && role != requestdata.RoleClient {
		return ctx, fmt.Errorf("unknown role in token")
	}
	rd := &requestdata.RequestData{
		TokenString: tokenString,
		ActorID:     actorID,
		Role:        role,
	}
	return requestdata.WithRequestData(ctx, rd), nil
}

func (as *authService) GetAccessTTL() time.Duration {
	return as.accessTTL
}
