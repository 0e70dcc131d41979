package controller

import (
	"errors"
	"flashdeck_backend/internal/service"
	"flashdeck_backend/internal/util"
	"flashdeck_backend/pkg/monitoring"
	"net/http"

	"github.com/gin-gonic/gin"
)

type PracticeController struct {
	PracticeService *service.PracticeService
	Notifier        *service.PracticeNotifier
}

func NewPracticeController(practiceService *service.PracticeService, notifier *service.PracticeNotifier) *PracticeController {
	return &PracticeController{
		PracticeService: practiceService,
		Notifier:        notifier,
	}
}

func mapPracticeError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrDeckNotFound), errors.Is(err, util.ErrSessionNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(ctx)
	case errors.Is(err, util.ErrNoPlayableCards),
		errors.Is(err, util.ErrDailyLimitExhausted),
		errors.Is(err, util.ErrNothingAvailable):
		util.Error(ctx, http.StatusConflict, err.Error())
	case errors.Is(err, util.ErrSessionEnded),
		errors.Is(err, util.ErrAnswerRequired),
		errors.Is(err, util.ErrInvalidTransition):
		util.Error(ctx, http.StatusUnprocessableEntity, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}

// EnterDeck godoc
// @Summary 进入卡组练习（幂等：当日已有会话则恢复）
// @Tags 练习
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=service.SessionView}
// @Router /api/decks/{id}/practice [post]
func (c *PracticeController) EnterDeck(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	deckID := util.MustParseUint(ctx.Param("id"))
	view, err := c.PracticeService.CreateOrResume(user.UserID, deckID)
	if err != nil {
		mapPracticeError(ctx, err)
		return
	}

	c.Notifier.NotifyChanged(ctx.Request.Context(), user.UserID, view.DeckID, view.SessionID)
	util.Success(ctx, view)
}

// GetSession godoc
// @Summary 当前会话视图
// @Tags 练习
// @Produce json
// @Security BearerAuth
// @Param reset query bool false "重连后把未判定的翻面槽位回滚到 intro"
// @Success 200 {object} util.Response{data=service.SessionView}
// @Router /api/practice/{sessionId} [get]
func (c *PracticeController) GetSession(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	reset := ctx.Query("reset") == "true"
	view, err := c.PracticeService.GetView(user.UserID, ctx.Param("sessionId"), reset)
	if err != nil {
		mapPracticeError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// ApplyEvent godoc
// @Summary 提交练习事件
// @Tags 练习
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.PracticeEvent true "事件"
// @Success 200 {object} util.Response{data=service.SessionView}
// @Router /api/practice/{sessionId}/events [post]
func (c *PracticeController) ApplyEvent(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var event service.PracticeEvent
	if err := ctx.ShouldBindJSON(&event); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	view, err := c.PracticeService.ApplyEvent(user.UserID, ctx.Param("sessionId"), event)
	if err != nil {
		monitoring.PracticeEventCounter.WithLabelValues(string(event.Type), "error").Inc()
		mapPracticeError(ctx, err)
		return
	}

	monitoring.PracticeEventCounter.WithLabelValues(string(event.Type), "ok").Inc()
	c.Notifier.NotifyChanged(ctx.Request.Context(), user.UserID, view.DeckID, view.SessionID)
	util.Success(ctx, view)
}
