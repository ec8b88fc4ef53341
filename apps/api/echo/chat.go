package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/aulaprof/aula/core/chat"
)

type chatApi struct {
	hub *chat.Hub
}

func registerChatAPI(g *echo.Group, jwt echo.MiddlewareFunc, guard echo.MiddlewareFunc, hub *chat.Hub) {
	api := chatApi{hub: hub}

	cg := g.Group("/chat", jwt, guard)
	cg.GET("", api.transcript)
	cg.POST("", api.send)
	cg.DELETE("", api.reset)
}

type (
	SendMessageRequest struct {
		Message string `json:"message"`
	}

	TranscriptResponse struct {
		Messages   []chat.Message `json:"messages"`
		Processing bool           `json:"processing"`
	}
)

// Handlers

func (api *chatApi) transcript(ctx echo.Context) error {
	panel := api.hub.Panel(getContextIdentity(ctx))
	return ctx.JSON(http.StatusOK, TranscriptResponse{Messages: panel.Transcript(), Processing: panel.Processing()})
}

// send blocks until the assistant replies. Upstream failures still answer 200 with the fallback reply.
func (api *chatApi) send(ctx echo.Context) error {
	var data SendMessageRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SendMessageRequest")
	}

	reply, err := api.hub.Panel(getContextIdentity(ctx)).Send(ctx.Request().Context(), data.Message)
	if err != nil {
		return errors.Wrap(err, "sending chat message")
	}
	return ctx.JSON(http.StatusOK, reply)
}

func (api *chatApi) reset(ctx echo.Context) error {
	api.hub.Panel(getContextIdentity(ctx)).Reset()
	return ctx.NoContent(http.StatusNoContent)
}
