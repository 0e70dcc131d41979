package controller

import (
	"flashdeck_backend/internal/model"
	"flashdeck_backend/internal/service"
	"flashdeck_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type SettingsController struct {
	SettingsService *service.SettingsService
}

func NewSettingsController(settingsService *service.SettingsService) *SettingsController {
	return &SettingsController{SettingsService: settingsService}
}

// GetSettings godoc
// @Summary 调度参数与每日额度
// @Tags 设置
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=model.UserSettings}
// @Router /api/settings [get]
func (c *SettingsController) GetSettings(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	settings, err := c.SettingsService.Get(user.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, settings)
}

type SettingsRequest struct {
	BaseIntervalMs    int64   `json:"baseIntervalMs" binding:"required"`
	RewardMultiplier  float64 `json:"rewardMultiplier" binding:"required"`
	PenaltyMultiplier float64 `json:"penaltyMultiplier" binding:"required"`
	RequiredTimeMs    int64   `json:"requiredTimeMs"`
	TimeHistoryLimit  int     `json:"timeHistoryLimit" binding:"required"`
	DailyNovelLimit   int     `json:"dailyNovelLimit"`
	DailyReviewLimit  int     `json:"dailyReviewLimit"`
}

// UpdateSettings godoc
// @Summary 更新调度参数
// @Tags 设置
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body SettingsRequest true "设置"
// @Success 200 {object} util.Response{data=model.UserSettings}
// @Router /api/settings [put]
func (c *SettingsController) UpdateSettings(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req SettingsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	settings, err := c.SettingsService.Update(user.UserID, &model.UserSettings{
		BaseIntervalMs:    req.BaseIntervalMs,
		RewardMultiplier:  req.RewardMultiplier,
		PenaltyMultiplier: req.PenaltyMultiplier,
		RequiredTimeMs:    req.RequiredTimeMs,
		TimeHistoryLimit:  req.TimeHistoryLimit,
		DailyNovelLimit:   req.DailyNovelLimit,
		DailyReviewLimit:  req.DailyReviewLimit,
	})
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, settings)
}
