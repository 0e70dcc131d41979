package controller

import (
	"errors"
	"flashdeck_backend/internal/model"
	"flashdeck_backend/internal/service"
	"flashdeck_backend/internal/util"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type DeckController struct {
	DeckService *service.DeckService
	Storage     *service.StorageService
}

func NewDeckController(deckService *service.DeckService, storage *service.StorageService) *DeckController {
	return &DeckController{
		DeckService: deckService,
		Storage:     storage,
	}
}

func mapDeckError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrDeckNotFound), errors.Is(err, util.ErrCardNotFound):
		util.NotFound(ctx)
	default:
		util.LogInternalError(ctx, err)
	}
}

// ListDecks godoc
// @Summary 卡组列表
// @Tags 卡组
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/decks [get]
func (c *DeckController) ListDecks(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	decks, err := c.DeckService.List(user.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, decks)
}

type DeckRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Archived    *bool  `json:"archived,omitempty"`
}

// CreateDeck godoc
// @Summary 创建卡组
// @Tags 卡组
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body DeckRequest true "卡组信息"
// @Success 201 {object} util.Response
// @Router /api/decks [post]
func (c *DeckController) CreateDeck(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req DeckRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	deck, err := c.DeckService.Create(user.UserID, req.Name, req.Description)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Created(ctx, deck)
}

// GetDeck godoc
// @Summary 卡组详情
// @Tags 卡组
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/decks/{id} [get]
func (c *DeckController) GetDeck(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	deck, err := c.DeckService.Get(user.UserID, util.MustParseUint(ctx.Param("id")))
	if err != nil {
		mapDeckError(ctx, err)
		return
	}
	util.Success(ctx, deck)
}

// UpdateDeck godoc
// @Summary 更新卡组（含归档）
// @Tags 卡组
// @Accept json
// @Produce json
// @Security BearerAuth
// @Router /api/decks/{id} [put]
func (c *DeckController) UpdateDeck(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req DeckRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	deck, err := c.DeckService.Update(user.UserID, util.MustParseUint(ctx.Param("id")), req.Name, req.Description, req.Archived)
	if err != nil {
		mapDeckError(ctx, err)
		return
	}
	util.Success(ctx, deck)
}

// DeleteDeck godoc
// @Summary 删除卡组
// @Tags 卡组
// @Security BearerAuth
// @Router /api/decks/{id} [delete]
func (c *DeckController) DeleteDeck(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	if err := c.DeckService.Delete(user.UserID, util.MustParseUint(ctx.Param("id"))); err != nil {
		mapDeckError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// ListCards godoc
// @Summary 卡片列表
// @Tags 卡片
// @Produce json
// @Security BearerAuth
// @Router /api/decks/{id}/cards [get]
func (c *DeckController) ListCards(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	cards, err := c.DeckService.ListCards(user.UserID, util.MustParseUint(ctx.Param("id")))
	if err != nil {
		mapDeckError(ctx, err)
		return
	}
	util.Success(ctx, cards)
}

type CardRequest struct {
	Kind   model.FlashcardKind  `json:"kind"`
	Front  string               `json:"front"`
	Back   string               `json:"back"`
	MCQ    *model.MCQPayload    `json:"mcq,omitempty"`
	Sketch *model.SketchPayload `json:"sketch,omitempty"`
}

// CreateCard godoc
// @Summary 新建卡片
// @Tags 卡片
// @Accept json
// @Produce json
// @Security BearerAuth
// @Router /api/decks/{id}/cards [post]
func (c *DeckController) CreateCard(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req CardRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	card, err := c.DeckService.CreateCard(user.UserID, util.MustParseUint(ctx.Param("id")), &model.Flashcard{
		Kind:   req.Kind,
		Front:  req.Front,
		Back:   req.Back,
		MCQ:    req.MCQ,
		Sketch: req.Sketch,
	})
	if err != nil {
		mapDeckError(ctx, err)
		return
	}
	util.Created(ctx, card)
}

// UpdateCard godoc
// @Summary 更新卡片
// @Tags 卡片
// @Accept json
// @Produce json
// @Security BearerAuth
// @Router /api/decks/{id}/cards/{cardId} [put]
func (c *DeckController) UpdateCard(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req CardRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	card, err := c.DeckService.UpdateCard(
		user.UserID,
		util.MustParseUint(ctx.Param("id")),
		util.MustParseUint(ctx.Param("cardId")),
		&model.Flashcard{
			Kind:   req.Kind,
			Front:  req.Front,
			Back:   req.Back,
			MCQ:    req.MCQ,
			Sketch: req.Sketch,
		},
	)
	if err != nil {
		mapDeckError(ctx, err)
		return
	}
	util.Success(ctx, card)
}

// DeleteCard godoc
// @Summary 删除卡片
// @Tags 卡片
// @Security BearerAuth
// @Router /api/decks/{id}/cards/{cardId} [delete]
func (c *DeckController) DeleteCard(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	err := c.DeckService.DeleteCard(
		user.UserID,
		util.MustParseUint(ctx.Param("id")),
		util.MustParseUint(ctx.Param("cardId")),
	)
	if err != nil {
		mapDeckError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// UploadSketch godoc
// @Summary 上传卡片草图
// @Tags 卡片
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Router /api/decks/{id}/cards/{cardId}/sketch [post]
func (c *DeckController) UploadSketch(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	file, header, err := ctx.Request.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "missing sketch file")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	allowed := false
	for _, e := range util.AllowedSketchExtensions {
		if ext == e {
			allowed = true
			break
		}
	}
	if !allowed {
		util.BadRequest(ctx, "unsupported sketch file type")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, util.MimeImage) {
		util.BadRequest(ctx, "sketch must be an image")
		return
	}

	objectKey := uuid.New().String() + ext
	if _, err := c.Storage.UploadSketch(ctx.Request.Context(), objectKey, file, header.Size, contentType); err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	card, err := c.DeckService.AttachSketch(
		user.UserID,
		util.MustParseUint(ctx.Param("id")),
		util.MustParseUint(ctx.Param("cardId")),
		objectKey,
	)
	if err != nil {
		mapDeckError(ctx, err)
		return
	}
	util.Success(ctx, card)
}
