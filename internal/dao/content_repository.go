package dao

import (
	"context"
	"time"

	"github.com/haierkeys/fast-content-service/internal/domain"
	"github.com/haierkeys/fast-content-service/internal/model"

	"gorm.io/gorm"
)

// contentRepository 实现 domain.ContentRepository 接口，按实体类型映射到 bookmark/note/prompt 表
type contentRepository struct {
	dao *Dao
}

// NewContentRepository 创建 ContentRepository 实例
func NewContentRepository(dao *Dao) domain.ContentRepository {
	return &contentRepository{dao: dao}
}

func (r *contentRepository) newModel(entityType domain.EntityType) (model.ContentModel, error) {
	return model.NewContentModel(string(entityType))
}

// toModel 将领域模型转换为数据库模型
func (r *contentRepository) toModel(c *domain.Content) (model.ContentModel, error) {
	m, err := r.newModel(c.Type)
	if err != nil {
		return nil, err
	}

	tags, err := toJSON(nonNilSlice(c.Tags))
	if err != nil {
		return nil, err
	}
	relationships, err := toJSON(nonNilSlice(c.Relationships))
	if err != nil {
		return nil, err
	}

	base := m.Base()
	base.ID = c.ID
	base.UID = c.UID
	base.Title = c.Title
	base.Description = c.Description
	base.Content = c.Content
	base.Tags = tags
	base.Relationships = relationships
	base.ArchivedAt = c.ArchivedAt

	switch typed := m.(type) {
	case *model.Bookmark:
		typed.URL = c.URL
	case *model.Prompt:
		typed.Name = c.Name
		args, err := toJSON(nonNilSlice(c.Arguments))
		if err != nil {
			return nil, err
		}
		typed.Arguments = args
	}
	return m, nil
}

// toDomain 将数据库模型转换为领域模型
func (r *contentRepository) toDomain(entityType domain.EntityType, m model.ContentModel) (*domain.Content, error) {
	base := m.Base()
	c := &domain.Content{
		ID:          base.ID,
		UID:         base.UID,
		Type:        entityType,
		Title:       base.Title,
		Description: base.Description,
		Content:     base.Content,
		ArchivedAt:  base.ArchivedAt,
		CreatedAt:   base.CreatedAt,
		UpdatedAt:   base.UpdatedAt,
	}
	if base.DeletedAt.Valid {
		deletedAt := base.DeletedAt.Time
		c.DeletedAt = &deletedAt
	}
	if err := fromJSON(base.Tags, &c.Tags); err != nil {
		return nil, err
	}
	if err := fromJSON(base.Relationships, &c.Relationships); err != nil {
		return nil, err
	}

	switch typed := m.(type) {
	case *model.Bookmark:
		c.URL = typed.URL
	case *model.Prompt:
		c.Name = typed.Name
		if err := fromJSON(typed.Arguments, &c.Arguments); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (r *contentRepository) scope(ctx context.Context, m model.ContentModel, uid, id int64, includeDeleted bool) *gorm.DB {
	q := r.dao.DB(ctx)
	if includeDeleted {
		q = q.Unscoped()
	}
	return q.Model(m).Where("uid = ? AND id = ?", uid, id)
}

// GetByID 获取实体
func (r *contentRepository) GetByID(ctx context.Context, uid int64, entityType domain.EntityType, id int64, includeDeleted bool) (*domain.Content, error) {
	m, err := r.newModel(entityType)
	if err != nil {
		return nil, err
	}
	q := r.dao.DB(ctx)
	if includeDeleted {
		q = q.Unscoped()
	}
	if err := q.Where("uid = ? AND id = ?", uid, id).Take(m).Error; err != nil {
		return nil, err
	}
	return r.toDomain(entityType, m)
}

// Create 创建实体
func (r *contentRepository) Create(ctx context.Context, content *domain.Content) (*domain.Content, error) {
	m, err := r.toModel(content)
	if err != nil {
		return nil, err
	}
	if err := r.dao.DB(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return r.toDomain(content.Type, m)
}

// Update 更新实体的可编辑字段
func (r *contentRepository) Update(ctx context.Context, content *domain.Content) (*domain.Content, error) {
	m, err := r.toModel(content)
	if err != nil {
		return nil, err
	}

	base := m.Base()
	updates := map[string]any{
		"title":         base.Title,
		"description":   base.Description,
		"content":       base.Content,
		"tags":          base.Tags,
		"relationships": base.Relationships,
	}
	switch typed := m.(type) {
	case *model.Bookmark:
		updates["url"] = typed.URL
	case *model.Prompt:
		updates["name"] = typed.Name
		updates["arguments"] = typed.Arguments
	}

	result := r.scope(ctx, m, content.UID, content.ID, false).Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.GetByID(ctx, content.UID, content.Type, content.ID, false)
}

// SoftDelete 软删除
func (r *contentRepository) SoftDelete(ctx context.Context, uid int64, entityType domain.EntityType, id int64) error {
	m, err := r.newModel(entityType)
	if err != nil {
		return err
	}
	result := r.dao.DB(ctx).Where("uid = ? AND id = ?", uid, id).Delete(m)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Undelete 恢复软删除
func (r *contentRepository) Undelete(ctx context.Context, uid int64, entityType domain.EntityType, id int64) error {
	m, err := r.newModel(entityType)
	if err != nil {
		return err
	}
	result := r.scope(ctx, m, uid, id, true).Where("deleted_at IS NOT NULL").Update("deleted_at", nil)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetArchived 设置或清除归档时间
func (r *contentRepository) SetArchived(ctx context.Context, uid int64, entityType domain.EntityType, id int64, archivedAt *time.Time) error {
	m, err := r.newModel(entityType)
	if err != nil {
		return err
	}
	result := r.scope(ctx, m, uid, id, false).Update("archived_at", archivedAt)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// HardDelete 物理删除
func (r *contentRepository) HardDelete(ctx context.Context, uid int64, entityType domain.EntityType, id int64) error {
	m, err := r.newModel(entityType)
	if err != nil {
		return err
	}
	result := r.dao.DB(ctx).Unscoped().Where("uid = ? AND id = ?", uid, id).Delete(m)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

var _ domain.ContentRepository = (*contentRepository)(nil)
