package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/aulaprof/aula/core"
	"github.com/aulaprof/aula/core/chat"
	"github.com/aulaprof/aula/core/user"
)

type sessionApi struct {
	svc      *user.Service
	sessions *user.Sessions
	hub      *chat.Hub
	tokens   *TokenIssuer
	validate *validator.Validate
}

func registerSessionAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	guard echo.MiddlewareFunc,
	svc *user.Service,
	sessions *user.Sessions,
	hub *chat.Hub,
	tokens *TokenIssuer,
	validate *validator.Validate,
) {
	api := sessionApi{
		svc:      svc,
		sessions: sessions,
		hub:      hub,
		tokens:   tokens,
		validate: validate,
	}

	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/login", api.login)

	// authed endpoints
	sg := ag.Group("", jwt, guard)
	sg.POST("/logout", api.logout)
	sg.POST("/token-refresh", api.refreshToken)
	sg.GET("/me", api.me)
}

// Handlers

func (api *sessionApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.Authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := api.tokens.GenerateToken(api.tokens.Claims(usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, Identity: usr.Identity()})
}

// logout ends the session: its token is refused from now on and the chat transcript is dropped.
func (api *sessionApi) logout(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	api.sessions.Revoke(claims.Id)
	if api.hub != nil {
		api.hub.Drop(getContextIdentity(ctx))
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *sessionApi) refreshToken(ctx echo.Context) error {
	token, old, err := api.tokens.refresh(ctx)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	api.sessions.Revoke(old.Id)
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, Identity: getContextIdentity(ctx)})
}

func (api *sessionApi) me(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, getContextIdentity(ctx))
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token    string        `json:"token"`
		Identity user.Identity `json:"identity"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}
