package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/aulaprof/aula/core"
	"github.com/aulaprof/aula/core/user"
)

const (
	tokenContextKey    = "userToken"
	userContextKey     = "user"
	identityContextKey = "identity"
	tokenAudience      = "Aula Dashboard"
)

// Claims represents the authorization claims transmitted via a JWT.
// StandardClaims.Id is the session id that sign-out revokes.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Email        string `json:"email,omitempty"`
	DisplayName  string `json:"display_name,omitempty"`
}

// TokenIssuer signs session tokens with the app secret.
type TokenIssuer struct {
	conf *core.Config
	now  func() time.Time // mockable
}

func NewTokenIssuer(conf *core.Config) *TokenIssuer {
	return &TokenIssuer{conf: conf, now: time.Now}
}

func (ti *TokenIssuer) jwtConfig() middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(ti.conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    tokenContextKey,
		Claims:        new(Claims),
	}
}

// Claims returns fresh claims for usr. origIat carries over the first issue time on refresh.
func (ti *TokenIssuer) Claims(usr user.User, origIat ...int64) *Claims {
	now := ti.now()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.NewString(),
			Issuer:    ti.conf.AppName,
			Subject:   usr.ID,
			Audience:  tokenAudience,
			ExpiresAt: now.Add(ti.conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Email:        usr.Email,
		DisplayName:  usr.DisplayName(),
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func (ti *TokenIssuer) GenerateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(middleware.AlgorithmHS256)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString([]byte(ti.conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(tokenContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(userContextKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errUnauthorized
}

// getContextIdentity returns the identity set by the session guard, or the zero Identity.
func getContextIdentity(ctx echo.Context) user.Identity {
	ident, _ := ctx.Get(identityContextKey).(user.Identity)
	return ident
}

// sessionGuard rejects revoked sessions and missing or deactivated users. Runs after the JWT middleware
// on every authed request, so a sign-out or deactivation takes effect on the next request.
func sessionGuard(svc *user.Service, sessions *user.Sessions) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if sessions.IsRevoked(claims.Id) {
				return errSessionRevoked
			}

			usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
			if err != nil {
				if errors.Cause(err) == user.ErrNotFound {
					return errUnauthorized
				}
				return errors.Wrap(err, "finding session user")
			}
			if !usr.IsActive {
				return errAccountDeactivated
			}

			ctx.Set(userContextKey, usr)
			ctx.Set(identityContextKey, usr.Identity())
			return next(ctx)
		}
	}
}

func (ti *TokenIssuer) refresh(ctx echo.Context) (string, Claims, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", Claims{}, errors.Wrap(err, "getting context claims")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return "", Claims{}, errors.Wrap(err, "getting context user")
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(ti.conf.Server.JWTRefreshExpirationDelta)
	if ti.now().After(expTime) {
		return "", Claims{}, errRefreshExpired
	}

	token, err := ti.GenerateToken(ti.Claims(usr, claims.OrigIssuedAt))
	if err != nil {
		return "", Claims{}, errors.Wrap(err, "generating token")
	}
	return token, claims, nil
}
