package api_router

import (
	"github.com/haierkeys/fast-content-service/internal/app"
	"github.com/haierkeys/fast-content-service/internal/domain"
	"github.com/haierkeys/fast-content-service/internal/dto"
	pkgapp "github.com/haierkeys/fast-content-service/pkg/app"
	"github.com/haierkeys/fast-content-service/pkg/code"
	apperrors "github.com/haierkeys/fast-content-service/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HistoryHandler 内容历史 API 路由处理器
// 使用 App Container 注入依赖，支持统一错误处理
type HistoryHandler struct {
	*Handler
}

// NewHistoryHandler 创建 HistoryHandler 实例
func NewHistoryHandler(a *app.App) *HistoryHandler {
	return &HistoryHandler{Handler: NewHandler(a)}
}

// List 获取单个实体的历史记录
// @Summary 获取实体历史列表
// @Description 分页获取书签、笔记或提示词的历史记录，按版本倒序
// @Tags 内容历史
// @Produce json
// @Param params query dto.HistoryListRequest true "查询参数"
// @Success 200 {object} pkgapp.Res{data=[]dto.HistoryRecordDTO} "成功"
// @Router /api/history [get]
func (h *HistoryHandler) List(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := &dto.HistoryListRequest{}

	valid, errs := pkgapp.BindAndValid(c, params)
	if !valid {
		h.App.Logger().Error("HistoryHandler.List.BindAndValid errs", zap.Error(errs))
		response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()).WithData(errs.MapsToString()))
		return
	}

	uid := pkgapp.GetUID(c)
	ctx := c.Request.Context()

	list, count, err := h.App.HistoryService.GetEntityHistory(ctx, uid, domain.EntityType(params.EntityType), params.EntityID, pager(c))
	if err != nil {
		h.logError(ctx, "HistoryHandler.List", err)
		apperrors.ErrorResponse(c, err)
		return
	}

	response.ToResponseList(code.Success, list, int(count))
}

// UserList 获取用户的历史动态
// @Summary 获取用户历史动态
// @Description 分页获取当前用户所有实体的历史记录，可按类型过滤
// @Tags 内容历史
// @Produce json
// @Param params query dto.UserHistoryRequest false "查询参数"
// @Success 200 {object} pkgapp.Res{data=[]dto.HistoryRecordDTO} "成功"
// @Router /api/history/user [get]
func (h *HistoryHandler) UserList(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := &dto.UserHistoryRequest{}

	valid, errs := pkgapp.BindAndValid(c, params)
	if !valid {
		h.App.Logger().Error("HistoryHandler.UserList.BindAndValid errs", zap.Error(errs))
		response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()).WithData(errs.MapsToString()))
		return
	}

	uid := pkgapp.GetUID(c)
	ctx := c.Request.Context()

	list, count, err := h.App.HistoryService.GetUserHistory(ctx, uid, domain.EntityType(params.EntityType), pager(c))
	if err != nil {
		h.logError(ctx, "HistoryHandler.UserList", err)
		apperrors.ErrorResponse(c, err)
		return
	}

	response.ToResponseList(code.Success, list, int(count))
}

// Content 获取指定版本的内容
// @Summary 获取历史版本内容
// @Description 从最近的快照回放反向补丁，重建指定版本的内容
// @Tags 内容历史
// @Produce json
// @Param params query dto.HistoryContentRequest true "查询参数"
// @Success 200 {object} pkgapp.Res{data=dto.HistoryContentDTO} "成功"
// @Router /api/history/content [get]
func (h *HistoryHandler) Content(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := &dto.HistoryContentRequest{}

	valid, errs := pkgapp.BindAndValid(c, params)
	if !valid {
		h.App.Logger().Error("HistoryHandler.Content.BindAndValid errs", zap.Error(errs))
		response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()).WithData(errs.MapsToString()))
		return
	}

	uid := pkgapp.GetUID(c)
	ctx := c.Request.Context()

	result, err := h.App.HistoryService.ReconstructContentAtVersion(ctx, uid, domain.EntityType(params.EntityType), params.EntityID, params.Version)
	if err != nil {
		h.logError(ctx, "HistoryHandler.Content", err)
		apperrors.ErrorResponse(c, err)
		return
	}

	response.ToResponse(code.Success.WithData(&dto.HistoryContentDTO{
		EntityType: params.EntityType,
		EntityID:   params.EntityID,
		Version:    params.Version,
		Found:      result.Found,
		Content:    result.Content,
		Warnings:   result.Warnings,
	}))
}

// Restore 将实体恢复到指定历史版本
// @Summary 恢复历史版本
// @Description 重建指定版本的内容写回实体，并记录一条 restore 历史
// @Tags 内容历史
// @Accept json
// @Produce json
// @Param params body dto.HistoryRestoreRequest true "恢复参数"
// @Success 200 {object} pkgapp.Res{data=dto.HistoryRestoreDTO} "成功"
// @Router /api/history/restore [post]
func (h *HistoryHandler) Restore(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := &dto.HistoryRestoreRequest{}

	valid, errs := pkgapp.BindAndValid(c, params)
	if !valid {
		h.App.Logger().Error("HistoryHandler.Restore.BindAndValid errs", zap.Error(errs))
		response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()).WithData(errs.MapsToString()))
		return
	}

	uid := pkgapp.GetUID(c)
	ctx := c.Request.Context()

	content, warnings, err := h.App.ContentService.RestoreVersion(ctx, uid, domain.EntityType(params.EntityType), params.EntityID, params.Version, audit(c))
	if err != nil {
		h.logError(ctx, "HistoryHandler.Restore", err)
		apperrors.ErrorResponse(c, err)
		return
	}

	response.ToResponse(code.SuccessRestore.WithData(&dto.HistoryRestoreDTO{Content: content, Warnings: warnings}))
}
