package service

import (
	"context"
	"errors"
	"time"

	"github.com/haierkeys/fast-content-service/internal/domain"
	"github.com/haierkeys/fast-content-service/internal/dto"
	"github.com/haierkeys/fast-content-service/pkg/code"
	"github.com/haierkeys/fast-content-service/pkg/convert"
	"github.com/haierkeys/fast-content-service/pkg/logger"
	"github.com/haierkeys/fast-content-service/pkg/timex"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ContentService defines the bookmark/note/prompt business service interface.
// Every mutation and its history record commit in one transaction.
// ContentService 定义书签/笔记/提示词业务服务接口，每次变更与其历史记录在同一事务中提交
type ContentService interface {
	// Get retrieves a live entity
	// Get 获取实体
	Get(ctx context.Context, uid int64, entityType domain.EntityType, id int64) (*dto.ContentDTO, error)

	// Create creates an entity, recorded as CREATE
	// Create 创建实体，记录 CREATE
	Create(ctx context.Context, uid int64, req *dto.ContentCreateRequest, audit domain.AuditContext) (*dto.ContentDTO, error)

	// Update updates the editable fields, recorded as UPDATE
	// Update 更新可编辑字段，记录 UPDATE
	Update(ctx context.Context, uid int64, req *dto.ContentUpdateRequest, audit domain.AuditContext) (*dto.ContentDTO, error)

	// Delete soft deletes (recorded as DELETE) or permanently deletes together with its history
	// Delete 软删除（记录 DELETE）或连同历史一起永久删除
	Delete(ctx context.Context, uid int64, entityType domain.EntityType, id int64, permanent bool, audit domain.AuditContext) error

	// Undelete restores a soft-deleted entity, recorded as UNDELETE
	// Undelete 恢复软删除的实体，记录 UNDELETE
	Undelete(ctx context.Context, uid int64, entityType domain.EntityType, id int64, audit domain.AuditContext) (*dto.ContentDTO, error)

	// Archive archives an entity, recorded as ARCHIVE
	// Archive 归档实体，记录 ARCHIVE
	Archive(ctx context.Context, uid int64, entityType domain.EntityType, id int64, audit domain.AuditContext) (*dto.ContentDTO, error)

	// Unarchive unarchives an entity, recorded as UNARCHIVE
	// Unarchive 取消归档，记录 UNARCHIVE
	Unarchive(ctx context.Context, uid int64, entityType domain.EntityType, id int64, audit domain.AuditContext) (*dto.ContentDTO, error)

	// RestoreVersion writes the content of a past version back, recorded as RESTORE
	// RestoreVersion 将历史版本的内容写回，记录 RESTORE
	RestoreVersion(ctx context.Context, uid int64, entityType domain.EntityType, id, version int64, audit domain.AuditContext) (*dto.ContentDTO, []string, error)
}

// contentService implementation of ContentService interface
// contentService 实现 ContentService 接口
type contentService struct {
	contentRepo    domain.ContentRepository // Content repository // 内容仓库
	userRepo       domain.UserRepository    // User repository // 用户仓库
	tx             domain.Transactor        // Transaction runner // 事务执行器
	historyService HistoryService           // History service // 历史服务
	logger         *zap.Logger              // Logger // 日志对象
}

// NewContentService creates ContentService instance
// NewContentService 创建 ContentService 实例
func NewContentService(contentRepo domain.ContentRepository, userRepo domain.UserRepository, tx domain.Transactor, historySvc HistoryService, lg *zap.Logger) ContentService {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &contentService{
		contentRepo:    contentRepo,
		userRepo:       userRepo,
		tx:             tx,
		historyService: historySvc,
		logger:         lg,
	}
}

// domainToDTO converts domain model to DTO
// domainToDTO 将领域模型转换为 DTO
func (s *contentService) domainToDTO(c *domain.Content) (*dto.ContentDTO, error) {
	if c == nil {
		return nil, nil
	}
	out, err := convert.StructAssign(c, &dto.ContentDTO{})
	if err != nil {
		return nil, code.ErrorServerInternal.WithDetails(err.Error())
	}
	out.Type = string(c.Type)
	out.Archived = c.IsArchived()
	out.Deleted = c.IsDeleted()
	out.CreatedAt = timex.Time(c.CreatedAt)
	out.UpdatedAt = timex.Time(c.UpdatedAt)
	if out.Tags == nil {
		out.Tags = []dto.TagDTO{}
	}
	if out.Relationships == nil {
		out.Relationships = []dto.RelationshipDTO{}
	}
	return out, nil
}

// applyRequest copies the editable request fields onto c
// applyRequest 将请求中的可编辑字段写入 c
func applyRequest(c *domain.Content, req *dto.ContentCreateRequest) error {
	c.Title = req.Title
	c.Description = req.Description
	c.Content = req.Content
	c.URL = req.URL
	c.Name = req.Name

	var err error
	if c.Tags, err = convert.SliceAssign[dto.TagDTO, domain.Tag](req.Tags); err != nil {
		return err
	}
	if c.Relationships, err = convert.SliceAssign[dto.RelationshipDTO, domain.Relationship](req.Relationships); err != nil {
		return err
	}
	if c.Arguments, err = convert.SliceAssign[dto.PromptArgumentDTO, domain.PromptArgument](req.Arguments); err != nil {
		return err
	}
	return nil
}

// mapError translates repository and history errors into application codes
// mapError 将仓储与历史错误转换为业务错误码
func (s *contentService) mapError(err error) error {
	if err == nil {
		return nil
	}
	var c *code.Code
	if errors.As(err, &c) {
		return c
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return code.ErrorContentNotFound
	}
	return code.ErrorDBQuery.WithDetails(err.Error())
}

// historyError marks a failed RecordAction so it is not reported as a plain query error
type historyError struct{ err error }

func (e *historyError) Error() string { return e.err.Error() }
func (e *historyError) Unwrap() error { return e.err }

func (s *contentService) record(ctx context.Context, in RecordActionInput) error {
	if _, err := s.historyService.RecordAction(ctx, in); err != nil {
		return &historyError{err: err}
	}
	return nil
}

// write ensures the user row exists, then runs fn in the user's write transaction
// write 确保用户存在后在用户写事务中执行 fn
func (s *contentService) write(ctx context.Context, uid int64, fn func(ctx context.Context) error) error {
	if err := s.userRepo.Ensure(ctx, uid); err != nil {
		return code.ErrorDBQuery.WithDetails(err.Error())
	}
	err := s.tx.ExecuteWrite(ctx, uid, fn)
	var he *historyError
	if errors.As(err, &he) {
		return code.ErrorHistoryRecordFailed.WithDetails(he.err.Error())
	}
	return s.mapError(err)
}

// Get retrieves a live entity
// Get 获取实体
func (s *contentService) Get(ctx context.Context, uid int64, entityType domain.EntityType, id int64) (*dto.ContentDTO, error) {
	if !entityType.Valid() {
		return nil, code.ErrorEntityTypeInvalid.WithDetails(string(entityType))
	}
	c, err := s.contentRepo.GetByID(ctx, uid, entityType, id, false)
	if err != nil {
		return nil, s.mapError(err)
	}
	return s.domainToDTO(c)
}

// Create creates an entity
// Create 创建实体
func (s *contentService) Create(ctx context.Context, uid int64, req *dto.ContentCreateRequest, audit domain.AuditContext) (*dto.ContentDTO, error) {
	entityType, err := domain.ParseEntityType(req.Type)
	if err != nil {
		return nil, code.ErrorEntityTypeInvalid.WithDetails(req.Type)
	}

	c := &domain.Content{UID: uid, Type: entityType}
	if err := applyRequest(c, req); err != nil {
		return nil, code.ErrorInvalidParams.WithDetails(err.Error())
	}

	var created *domain.Content
	err = s.write(ctx, uid, func(ctx context.Context) error {
		var err error
		if created, err = s.contentRepo.Create(ctx, c); err != nil {
			return err
		}
		return s.record(ctx, RecordActionInput{
			UID:        uid,
			EntityType: entityType,
			EntityID:   created.ID,
			Action:     domain.HistoryActionCreate,
			Current:    created.Content,
			Metadata:   ExtractMetadata(created),
			Audit:      audit,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.domainToDTO(created)
}

// Update updates the editable fields
// Update 更新可编辑字段
func (s *contentService) Update(ctx context.Context, uid int64, req *dto.ContentUpdateRequest, audit domain.AuditContext) (*dto.ContentDTO, error) {
	entityType, err := domain.ParseEntityType(req.Type)
	if err != nil {
		return nil, code.ErrorEntityTypeInvalid.WithDetails(req.Type)
	}

	var updated *domain.Content
	err = s.write(ctx, uid, func(ctx context.Context) error {
		existing, err := s.contentRepo.GetByID(ctx, uid, entityType, req.ID, false)
		if err != nil {
			return err
		}
		previous := existing.Content
		if err := applyRequest(existing, &req.ContentCreateRequest); err != nil {
			return code.ErrorInvalidParams.WithDetails(err.Error())
		}
		if updated, err = s.contentRepo.Update(ctx, existing); err != nil {
			return err
		}
		return s.record(ctx, RecordActionInput{
			UID:        uid,
			EntityType: entityType,
			EntityID:   updated.ID,
			Action:     domain.HistoryActionUpdate,
			Current:    updated.Content,
			Previous:   &previous,
			Metadata:   ExtractMetadata(updated),
			Audit:      audit,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.domainToDTO(updated)
}

// Delete soft or permanently deletes an entity
// Delete 软删除或永久删除实体
func (s *contentService) Delete(ctx context.Context, uid int64, entityType domain.EntityType, id int64, permanent bool, audit domain.AuditContext) error {
	if !entityType.Valid() {
		return code.ErrorEntityTypeInvalid.WithDetails(string(entityType))
	}

	if permanent {
		return s.write(ctx, uid, func(ctx context.Context) error {
			if err := s.contentRepo.HardDelete(ctx, uid, entityType, id); err != nil {
				return err
			}
			_, err := s.historyService.DeleteEntityHistory(ctx, uid, entityType, id)
			return err
		})
	}

	return s.write(ctx, uid, func(ctx context.Context) error {
		existing, err := s.contentRepo.GetByID(ctx, uid, entityType, id, true)
		if err != nil {
			return err
		}
		if existing.IsDeleted() {
			return code.ErrorContentAlreadyDeleted
		}
		if err := s.record(ctx, RecordActionInput{
			UID:        uid,
			EntityType: entityType,
			EntityID:   id,
			Action:     domain.HistoryActionDelete,
			Current:    existing.Content,
			Previous:   &existing.Content,
			Metadata:   ExtractMetadata(existing),
			Audit:      audit,
		}); err != nil {
			return err
		}
		return s.contentRepo.SoftDelete(ctx, uid, entityType, id)
	})
}

// Undelete restores a soft-deleted entity
// Undelete 恢复软删除的实体
func (s *contentService) Undelete(ctx context.Context, uid int64, entityType domain.EntityType, id int64, audit domain.AuditContext) (*dto.ContentDTO, error) {
	return s.stateChange(ctx, uid, entityType, id, domain.HistoryActionUndelete, audit, func(ctx context.Context, c *domain.Content) error {
		if !c.IsDeleted() {
			return code.ErrorContentNotDeleted
		}
		return s.contentRepo.Undelete(ctx, uid, entityType, id)
	})
}

// Archive archives an entity
// Archive 归档实体
func (s *contentService) Archive(ctx context.Context, uid int64, entityType domain.EntityType, id int64, audit domain.AuditContext) (*dto.ContentDTO, error) {
	return s.stateChange(ctx, uid, entityType, id, domain.HistoryActionArchive, audit, func(ctx context.Context, c *domain.Content) error {
		if c.IsDeleted() {
			return code.ErrorContentAlreadyDeleted
		}
		now := time.Now()
		return s.contentRepo.SetArchived(ctx, uid, entityType, id, &now)
	})
}

// Unarchive unarchives an entity
// Unarchive 取消归档
func (s *contentService) Unarchive(ctx context.Context, uid int64, entityType domain.EntityType, id int64, audit domain.AuditContext) (*dto.ContentDTO, error) {
	return s.stateChange(ctx, uid, entityType, id, domain.HistoryActionUnarchive, audit, func(ctx context.Context, c *domain.Content) error {
		if c.IsDeleted() {
			return code.ErrorContentAlreadyDeleted
		}
		return s.contentRepo.SetArchived(ctx, uid, entityType, id, nil)
	})
}

// stateChange runs a content-preserving mutation and records it as a metadata-only action.
// stateChange 执行不改变内容的状态变更，并记录为仅元数据操作
func (s *contentService) stateChange(ctx context.Context, uid int64, entityType domain.EntityType, id int64, action domain.HistoryAction, audit domain.AuditContext, mutate func(ctx context.Context, c *domain.Content) error) (*dto.ContentDTO, error) {
	if !entityType.Valid() {
		return nil, code.ErrorEntityTypeInvalid.WithDetails(string(entityType))
	}

	var after *domain.Content
	err := s.write(ctx, uid, func(ctx context.Context) error {
		existing, err := s.contentRepo.GetByID(ctx, uid, entityType, id, true)
		if err != nil {
			return err
		}
		if err := mutate(ctx, existing); err != nil {
			return err
		}
		if after, err = s.contentRepo.GetByID(ctx, uid, entityType, id, true); err != nil {
			return err
		}
		return s.record(ctx, RecordActionInput{
			UID:        uid,
			EntityType: entityType,
			EntityID:   id,
			Action:     action,
			Current:    after.Content,
			Previous:   &existing.Content,
			Metadata:   ExtractMetadata(after),
			Audit:      audit,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.domainToDTO(after)
}

// RestoreVersion writes a past version's content back
// RestoreVersion 将历史版本的内容写回
func (s *contentService) RestoreVersion(ctx context.Context, uid int64, entityType domain.EntityType, id, version int64, audit domain.AuditContext) (*dto.ContentDTO, []string, error) {
	if !entityType.Valid() {
		return nil, nil, code.ErrorEntityTypeInvalid.WithDetails(string(entityType))
	}

	var (
		restored *domain.Content
		warnings []string
	)
	err := s.write(ctx, uid, func(ctx context.Context) error {
		existing, err := s.contentRepo.GetByID(ctx, uid, entityType, id, false)
		if err != nil {
			return err
		}

		result, err := s.historyService.ReconstructContentAtVersion(ctx, uid, entityType, id, version)
		if err != nil {
			return err
		}
		if !result.Found || result.Content == nil {
			return code.ErrorHistoryNotFound
		}
		warnings = result.Warnings

		previous := existing.Content
		existing.Content = *result.Content
		if restored, err = s.contentRepo.Update(ctx, existing); err != nil {
			return err
		}
		return s.record(ctx, RecordActionInput{
			UID:        uid,
			EntityType: entityType,
			EntityID:   id,
			Action:     domain.HistoryActionRestore,
			Current:    restored.Content,
			Previous:   &previous,
			Metadata:   ExtractMetadata(restored),
			Audit:      audit,
		})
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("content restored",
		zap.Int64(logger.FieldUID, uid),
		zap.String(logger.FieldEntityType, string(entityType)),
		zap.Int64(logger.FieldEntityID, id),
		zap.Int64(logger.FieldVersion, version),
		zap.Int("warnings", len(warnings)))

	out, err := s.domainToDTO(restored)
	return out, warnings, err
}
