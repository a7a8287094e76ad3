package api_router

import (
	"context"

	"github.com/haierkeys/fast-content-service/internal/app"
	"github.com/haierkeys/fast-content-service/internal/domain"
	"github.com/haierkeys/fast-content-service/internal/dto"
	pkgapp "github.com/haierkeys/fast-content-service/pkg/app"
	"github.com/haierkeys/fast-content-service/pkg/code"
	apperrors "github.com/haierkeys/fast-content-service/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ContentHandler 书签/笔记/提示词 API 路由处理器
type ContentHandler struct {
	*Handler
}

// NewContentHandler 创建 ContentHandler 实例
func NewContentHandler(a *app.App) *ContentHandler {
	return &ContentHandler{Handler: NewHandler(a)}
}

// bindRef 绑定实体定位参数，失败时已写出响应
func (h *ContentHandler) bindRef(c *gin.Context, method string) (*dto.ContentRefRequest, bool) {
	params := &dto.ContentRefRequest{}
	valid, errs := pkgapp.BindAndValid(c, params)
	if !valid {
		h.App.Logger().Error(method+".BindAndValid errs", zap.Error(errs))
		pkgapp.NewResponse(c).ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()).WithData(errs.MapsToString()))
		return nil, false
	}
	return params, true
}

// Get 获取单个实体
// @Summary 获取内容
// @Tags 内容
// @Produce json
// @Param params query dto.ContentRefRequest true "查询参数"
// @Success 200 {object} pkgapp.Res{data=dto.ContentDTO} "成功"
// @Router /api/content [get]
func (h *ContentHandler) Get(c *gin.Context) {
	params, ok := h.bindRef(c, "ContentHandler.Get")
	if !ok {
		return
	}

	uid := pkgapp.GetUID(c)
	ctx := c.Request.Context()

	content, err := h.App.ContentService.Get(ctx, uid, domain.EntityType(params.Type), params.ID)
	if err != nil {
		h.logError(ctx, "ContentHandler.Get", err)
		apperrors.ErrorResponse(c, err)
		return
	}

	pkgapp.NewResponse(c).ToResponse(code.Success.WithData(content))
}

// Create 创建实体并记录第一个历史版本
// @Summary 创建内容
// @Tags 内容
// @Accept json
// @Produce json
// @Param params body dto.ContentCreateRequest true "内容"
// @Success 200 {object} pkgapp.Res{data=dto.ContentDTO} "成功"
// @Router /api/content [post]
func (h *ContentHandler) Create(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := &dto.ContentCreateRequest{}

	valid, errs := pkgapp.BindAndValid(c, params)
	if !valid {
		h.App.Logger().Error("ContentHandler.Create.BindAndValid errs", zap.Error(errs))
		response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()).WithData(errs.MapsToString()))
		return
	}

	uid := pkgapp.GetUID(c)
	ctx := c.Request.Context()

	content, err := h.App.ContentService.Create(ctx, uid, params, audit(c))
	if err != nil {
		h.logError(ctx, "ContentHandler.Create", err)
		apperrors.ErrorResponse(c, err)
		return
	}

	response.ToResponse(code.Success.WithData(content))
}

// Update 更新实体并记录历史版本
// @Summary 更新内容
// @Tags 内容
// @Accept json
// @Produce json
// @Param params body dto.ContentUpdateRequest true "内容"
// @Success 200 {object} pkgapp.Res{data=dto.ContentDTO} "成功"
// @Router /api/content [put]
func (h *ContentHandler) Update(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := &dto.ContentUpdateRequest{}

	valid, errs := pkgapp.BindAndValid(c, params)
	if !valid {
		h.App.Logger().Error("ContentHandler.Update.BindAndValid errs", zap.Error(errs))
		response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()).WithData(errs.MapsToString()))
		return
	}

	uid := pkgapp.GetUID(c)
	ctx := c.Request.Context()

	content, err := h.App.ContentService.Update(ctx, uid, params, audit(c))
	if err != nil {
		h.logError(ctx, "ContentHandler.Update", err)
		apperrors.ErrorResponse(c, err)
		return
	}

	response.ToResponse(code.Success.WithData(content))
}

// Delete 软删除实体；permanent=true 时物理删除并清除历史
// @Summary 删除内容
// @Tags 内容
// @Produce json
// @Param params query dto.ContentRefRequest true "查询参数"
// @Success 200 {object} pkgapp.Res "成功"
// @Router /api/content [delete]
func (h *ContentHandler) Delete(c *gin.Context) {
	params, ok := h.bindRef(c, "ContentHandler.Delete")
	if !ok {
		return
	}

	uid := pkgapp.GetUID(c)
	ctx := c.Request.Context()

	if err := h.App.ContentService.Delete(ctx, uid, domain.EntityType(params.Type), params.ID, params.Permanent, audit(c)); err != nil {
		h.logError(ctx, "ContentHandler.Delete", err)
		apperrors.ErrorResponse(c, err)
		return
	}

	pkgapp.NewResponse(c).ToResponse(code.Success)
}

// Undelete 恢复软删除的实体
// @Summary 恢复删除
// @Tags 内容
// @Accept json
// @Produce json
// @Param params body dto.ContentRefRequest true "实体"
// @Success 200 {object} pkgapp.Res{data=dto.ContentDTO} "成功"
// @Router /api/content/undelete [post]
func (h *ContentHandler) Undelete(c *gin.Context) {
	h.stateChange(c, "ContentHandler.Undelete", h.App.ContentService.Undelete)
}

// Archive 归档实体
// @Summary 归档
// @Tags 内容
// @Accept json
// @Produce json
// @Param params body dto.ContentRefRequest true "实体"
// @Success 200 {object} pkgapp.Res{data=dto.ContentDTO} "成功"
// @Router /api/content/archive [post]
func (h *ContentHandler) Archive(c *gin.Context) {
	h.stateChange(c, "ContentHandler.Archive", h.App.ContentService.Archive)
}

// Unarchive 取消归档
// @Summary 取消归档
// @Tags 内容
// @Accept json
// @Produce json
// @Param params body dto.ContentRefRequest true "实体"
// @Success 200 {object} pkgapp.Res{data=dto.ContentDTO} "成功"
// @Router /api/content/unarchive [post]
func (h *ContentHandler) Unarchive(c *gin.Context) {
	h.stateChange(c, "ContentHandler.Unarchive", h.App.ContentService.Unarchive)
}

type stateChangeFunc func(ctx context.Context, uid int64, entityType domain.EntityType, id int64, audit domain.AuditContext) (*dto.ContentDTO, error)

func (h *ContentHandler) stateChange(c *gin.Context, method string, fn stateChangeFunc) {
	params, ok := h.bindRef(c, method)
	if !ok {
		return
	}

	uid := pkgapp.GetUID(c)
	ctx := c.Request.Context()

	content, err := fn(ctx, uid, domain.EntityType(params.Type), params.ID, audit(c))
	if err != nil {
		h.logError(ctx, method, err)
		apperrors.ErrorResponse(c, err)
		return
	}

	pkgapp.NewResponse(c).ToResponse(code.Success.WithData(content))
}
