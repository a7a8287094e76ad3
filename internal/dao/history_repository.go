package dao

import (
	"context"
	"fmt"

	"github.com/haierkeys/fast-content-service/internal/domain"
	"github.com/haierkeys/fast-content-service/internal/model"
	"github.com/haierkeys/fast-content-service/pkg/app"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// historyRepository 实现 domain.HistoryRepository 接口
type historyRepository struct {
	dao *Dao
}

// NewHistoryRepository 创建 HistoryRepository 实例
func NewHistoryRepository(dao *Dao) domain.HistoryRepository {
	return &historyRepository{dao: dao}
}

func (r *historyRepository) entityScope(ctx context.Context, uid int64, entityType domain.EntityType, entityID int64) *gorm.DB {
	return r.dao.DB(ctx).Model(&model.ContentHistory{}).
		Where("uid = ? AND entity_type = ? AND entity_id = ?", uid, string(entityType), entityID)
}

// toModel 将领域模型转换为数据库模型
func (r *historyRepository) toModel(h *domain.HistoryRecord) (*model.ContentHistory, error) {
	m := &model.ContentHistory{
		ID:          h.ID,
		UID:         h.UID,
		EntityType:  string(h.EntityType),
		EntityID:    h.EntityID,
		Version:     h.Version,
		Action:      string(h.Action),
		Source:      h.Audit.Source,
		AuthType:    h.Audit.AuthType,
		TokenPrefix: h.Audit.TokenPrefix,
	}

	switch s := h.Stored.(type) {
	case domain.SnapshotContent:
		m.DiffType = string(domain.DiffTypeSnapshot)
		content := s.Content
		m.ContentSnapshot = &content
		if s.HasDiff {
			d := s.ReverseDiff
			m.ContentDiff = &d
		}
	case domain.DiffContent:
		m.DiffType = string(domain.DiffTypeDiff)
		d := s.ReverseDiff
		m.ContentDiff = &d
	case domain.MetadataContent, nil:
		m.DiffType = string(domain.DiffTypeMetadata)
	default:
		return nil, fmt.Errorf("unsupported stored content %T", s)
	}

	metadata := h.Metadata
	if metadata == nil {
		metadata = domain.Metadata{}
	}
	meta, err := toJSON(metadata)
	if err != nil {
		return nil, err
	}
	m.MetadataSnapshot = meta

	if h.ChangedFields != nil {
		fields, err := toJSON(h.ChangedFields)
		if err != nil {
			return nil, err
		}
		m.ChangedFields = &fields
	}
	return m, nil
}

// toDomain 将数据库模型转换为领域模型
func (r *historyRepository) toDomain(m *model.ContentHistory) (*domain.HistoryRecord, error) {
	if m == nil {
		return nil, nil
	}
	h := &domain.HistoryRecord{
		ID:         m.ID,
		UID:        m.UID,
		EntityType: domain.EntityType(m.EntityType),
		EntityID:   m.EntityID,
		Version:    m.Version,
		Action:     domain.HistoryAction(m.Action),
		Audit: domain.AuditContext{
			Source:      m.Source,
			AuthType:    m.AuthType,
			TokenPrefix: m.TokenPrefix,
		},
		CreatedAt: m.CreatedAt,
	}

	switch domain.DiffType(m.DiffType) {
	case domain.DiffTypeSnapshot:
		s := domain.SnapshotContent{}
		if m.ContentSnapshot != nil {
			s.Content = *m.ContentSnapshot
		}
		if m.ContentDiff != nil {
			s.ReverseDiff = *m.ContentDiff
			s.HasDiff = true
		}
		h.Stored = s
	case domain.DiffTypeDiff:
		d := domain.DiffContent{}
		if m.ContentDiff != nil {
			d.ReverseDiff = *m.ContentDiff
		}
		h.Stored = d
	case domain.DiffTypeMetadata:
		h.Stored = domain.MetadataContent{}
	default:
		return nil, fmt.Errorf("history %d: unknown diff type %q", m.ID, m.DiffType)
	}

	h.Metadata = domain.Metadata{}
	if err := fromJSON(m.MetadataSnapshot, &h.Metadata); err != nil {
		return nil, errors.Wrapf(err, "history %d metadata", m.ID)
	}
	if m.ChangedFields != nil {
		fields := []string{}
		if err := fromJSON(*m.ChangedFields, &fields); err != nil {
			return nil, errors.Wrapf(err, "history %d changed fields", m.ID)
		}
		h.ChangedFields = fields
	}
	return h, nil
}

func (r *historyRepository) toDomainList(ms []*model.ContentHistory) ([]*domain.HistoryRecord, error) {
	list := make([]*domain.HistoryRecord, 0, len(ms))
	for _, m := range ms {
		h, err := r.toDomain(m)
		if err != nil {
			return nil, err
		}
		list = append(list, h)
	}
	return list, nil
}

// Create 插入一条历史记录
func (r *historyRepository) Create(ctx context.Context, record *domain.HistoryRecord) (*domain.HistoryRecord, error) {
	m, err := r.toModel(record)
	if err != nil {
		return nil, err
	}
	if err := r.dao.DB(ctx).Omit(clause.Associations).Create(m).Error; err != nil {
		return nil, err
	}
	return r.toDomain(m)
}

// GetLatestVersion 获取实体的最新版本号
func (r *historyRepository) GetLatestVersion(ctx context.Context, uid int64, entityType domain.EntityType, entityID int64) (int64, error) {
	var version int64
	err := r.entityScope(ctx, uid, entityType, entityID).
		Select("COALESCE(MAX(version), 0)").
		Scan(&version).Error
	if err != nil {
		return 0, err
	}
	return version, nil
}

// GetLatest 获取最新历史记录，不存在时返回 nil
func (r *historyRepository) GetLatest(ctx context.Context, uid int64, entityType domain.EntityType, entityID int64) (*domain.HistoryRecord, error) {
	var m model.ContentHistory
	err := r.entityScope(ctx, uid, entityType, entityID).Order("version DESC").Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.toDomain(&m)
}

// GetByVersion 获取指定版本，不存在时返回 nil
func (r *historyRepository) GetByVersion(ctx context.Context, uid int64, entityType domain.EntityType, entityID, version int64) (*domain.HistoryRecord, error) {
	var m model.ContentHistory
	err := r.entityScope(ctx, uid, entityType, entityID).Where("version = ?", version).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.toDomain(&m)
}

// ListVersionRange 获取 [from, to] 范围内的历史记录，按版本倒序
func (r *historyRepository) ListVersionRange(ctx context.Context, uid int64, entityType domain.EntityType, entityID, from, to int64) ([]*domain.HistoryRecord, error) {
	var ms []*model.ContentHistory
	err := r.entityScope(ctx, uid, entityType, entityID).
		Where("version >= ? AND version <= ?", from, to).
		Order("version DESC").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	return r.toDomainList(ms)
}

// ListByEntity 分页获取实体历史
func (r *historyRepository) ListByEntity(ctx context.Context, uid int64, entityType domain.EntityType, entityID int64, page, pageSize int) ([]*domain.HistoryRecord, int64, error) {
	var count int64
	if err := r.entityScope(ctx, uid, entityType, entityID).Count(&count).Error; err != nil {
		return nil, 0, err
	}
	if count == 0 {
		return []*domain.HistoryRecord{}, 0, nil
	}

	var ms []*model.ContentHistory
	err := r.entityScope(ctx, uid, entityType, entityID).
		Order("version DESC").
		Limit(pageSize).
		Offset(app.GetPageOffset(page, pageSize)).
		Find(&ms).Error
	if err != nil {
		return nil, 0, err
	}
	list, err := r.toDomainList(ms)
	return list, count, err
}

// ListByUser 分页获取用户历史动态
func (r *historyRepository) ListByUser(ctx context.Context, uid int64, entityType domain.EntityType, page, pageSize int) ([]*domain.HistoryRecord, int64, error) {
	scope := func() *gorm.DB {
		q := r.dao.DB(ctx).Model(&model.ContentHistory{}).Where("uid = ?", uid)
		if entityType != "" {
			q = q.Where("entity_type = ?", string(entityType))
		}
		return q
	}

	var count int64
	if err := scope().Count(&count).Error; err != nil {
		return nil, 0, err
	}
	if count == 0 {
		return []*domain.HistoryRecord{}, 0, nil
	}

	var ms []*model.ContentHistory
	err := scope().
		Order("created_at DESC").
		Order("id DESC").
		Limit(pageSize).
		Offset(app.GetPageOffset(page, pageSize)).
		Find(&ms).Error
	if err != nil {
		return nil, 0, err
	}
	list, err := r.toDomainList(ms)
	return list, count, err
}

// ListEntityKeys 获取用户所有存在历史记录的实体
func (r *historyRepository) ListEntityKeys(ctx context.Context, uid int64) ([]domain.EntityKey, error) {
	var rows []struct {
		EntityType string
		EntityID   int64
	}
	err := r.dao.DB(ctx).Model(&model.ContentHistory{}).
		Distinct("entity_type", "entity_id").
		Where("uid = ?", uid).
		Order("entity_type").
		Order("entity_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	keys := make([]domain.EntityKey, 0, len(rows))
	for _, row := range rows {
		keys = append(keys, domain.EntityKey{UID: uid, EntityType: domain.EntityType(row.EntityType), EntityID: row.EntityID})
	}
	return keys, nil
}

// DeleteByEntity 删除实体的全部历史记录
func (r *historyRepository) DeleteByEntity(ctx context.Context, uid int64, entityType domain.EntityType, entityID int64) (int64, error) {
	result := r.dao.DB(ctx).
		Where("uid = ? AND entity_type = ? AND entity_id = ?", uid, string(entityType), entityID).
		Delete(&model.ContentHistory{})
	return result.RowsAffected, result.Error
}

var _ domain.HistoryRepository = (*historyRepository)(nil)
