package web_service

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pzhenzhou/respd/pkg/server"
)

const (
	ListSessionsPath = "/sessions"
	GetSessionPath   = "/sessions/:id"
)

func sessionManagerFrom(ctx *gin.Context) (*server.SessionManager, bool) {
	object, _ := ctx.Get(StateKeySessionManager)
	sessionMgr, ok := object.(*server.SessionManager)
	if !ok || sessionMgr == nil {
		ctx.JSON(http.StatusServiceUnavailable, ApiResponse{
			Code:    http.StatusServiceUnavailable,
			Message: "session manager not available",
		})
		return nil, false
	}
	return sessionMgr, true
}

var _ WebHandler = (*ListSessionsHandler)(nil)

type ListSessionsHandler struct {
}

func (l *ListSessionsHandler) Path() string {
	return ListSessionsPath
}

func (l *ListSessionsHandler) Method() HttpMethod {
	return GET
}

func (l *ListSessionsHandler) Handler(ctx *gin.Context) {
	sessionMgr, ok := sessionManagerFrom(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, ApiResponse{
		Code:    http.StatusOK,
		Message: "success",
		Data:    sessionMgr.List(),
	})
}

var _ WebHandler = (*GetSessionHandler)(nil)

type GetSessionHandler struct {
}

func (g *GetSessionHandler) Path() string {
	return GetSessionPath
}

func (g *GetSessionHandler) Method() HttpMethod {
	return GET
}

func (g *GetSessionHandler) Handler(ctx *gin.Context) {
	sessionMgr, ok := sessionManagerFrom(ctx)
	if !ok {
		return
	}
	id := ctx.Param("id")
	session := sessionMgr.LoadSession(id)
	if session == nil {
		ctx.JSON(http.StatusNotFound, ApiResponse{
			Code:    http.StatusNotFound,
			Message: "session not found: " + id,
		})
		return
	}
	ctx.JSON(http.StatusOK, ApiResponse{
		Code:    http.StatusOK,
		Message: "success",
		Data:    session.Info(),
	})
}
