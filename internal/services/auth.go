package services

import (
  "context"
  "fmt"

  "github.com/golang-jwt/jwt/v5"
  "github.com/google/uuid"

  "github.com/notewise/notewise-backend/internal/errs"
  "github.com/notewise/notewise-backend/internal/logger"
  "github.com/notewise/notewise-backend/internal/requestdata"
)

// AuthService verifies bearer tokens and hangs the caller's identity on the
// request context.
type AuthService interface {
  SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
}

type authService struct {
  log    *logger.Logger
  secret []byte
}

func NewAuthService(log *logger.Logger, secret string) AuthService {
  return &authService{
    log:    log.With("service", "AuthService"),
    secret: []byte(secret),
  }
}

func (s *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
  token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
    if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
      return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
    }
    return s.secret, nil
  })
  if err != nil || !token.Valid {
    return ctx, errs.Wrap(errs.KindPermissionDenied, "invalid token", err)
  }

  claims, ok := token.Claims.(jwt.MapClaims)
  if !ok {
    return ctx, errs.New(errs.KindPermissionDenied, "invalid token claims")
  }
  sub, err := claims.GetSubject()
  if err != nil || sub == "" {
    return ctx, errs.New(errs.KindPermissionDenied, "token missing subject")
  }
  userID, err := uuid.Parse(sub)
  if err != nil {
    return ctx, errs.New(errs.KindPermissionDenied, "token subject is not a user id")
  }

  email, _ := claims["email"].(string)
  return requestdata.WithRequestData(ctx, &requestdata.RequestData{
    TokenString: tokenString,
    UserID:      userID,
    UserEmail:   email,
  }), nil
}
