// Package service implements the business logic layer
// Package service 实现业务逻辑层
package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/haierkeys/fast-content-service/internal/dao"
	"github.com/haierkeys/fast-content-service/internal/domain"
	"github.com/haierkeys/fast-content-service/internal/dto"
	"github.com/haierkeys/fast-content-service/pkg/app"
	"github.com/haierkeys/fast-content-service/pkg/code"
	"github.com/haierkeys/fast-content-service/pkg/diff"
	"github.com/haierkeys/fast-content-service/pkg/logger"
	"github.com/haierkeys/fast-content-service/pkg/timex"

	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// slowDiffThreshold logs patch computations slower than this
const slowDiffThreshold = 500 * time.Millisecond

// RecordActionInput Parameters for recording one action
// RecordActionInput 记录一次操作的参数
type RecordActionInput struct {
	UID        int64
	EntityType domain.EntityType
	EntityID   int64
	Action     domain.HistoryAction
	Current    string  // Content after the action // 操作后的内容
	Previous   *string // Content before the action, nil when none // 操作前的内容，不存在时为 nil
	Metadata   domain.Metadata
	Audit      domain.AuditContext
}

// HistoryService defines the content history business service interface
// HistoryService 定义内容历史业务服务接口
type HistoryService interface {
	// RecordAction appends a history record inside the caller's transaction
	// RecordAction 在调用方事务中追加一条历史记录
	RecordAction(ctx context.Context, in RecordActionInput) (*domain.HistoryRecord, error)

	// GetEntityHistory lists one entity's history, newest version first
	// GetEntityHistory 分页获取实体历史，版本倒序
	GetEntityHistory(ctx context.Context, uid int64, entityType domain.EntityType, entityID int64, pager *app.Pager) ([]*dto.HistoryRecordDTO, int64, error)

	// GetUserHistory lists the user's history across entities, entityType empty for all
	// GetUserHistory 分页获取用户跨实体的历史动态，entityType 为空表示全部
	GetUserHistory(ctx context.Context, uid int64, entityType domain.EntityType, pager *app.Pager) ([]*dto.HistoryRecordDTO, int64, error)

	// ReconstructContentAtVersion rebuilds the content of an entity at a version
	// ReconstructContentAtVersion 重建实体在指定版本的内容
	ReconstructContentAtVersion(ctx context.Context, uid int64, entityType domain.EntityType, entityID, version int64) (*domain.ReconstructionResult, error)

	// DeleteEntityHistory removes every record of an entity
	// DeleteEntityHistory 删除实体的全部历史记录
	DeleteEntityHistory(ctx context.Context, uid int64, entityType domain.EntityType, entityID int64) (int64, error)

	// VerifyEntityHistory checks version continuity and patch readability
	// VerifyEntityHistory 检查版本连续性与补丁可读性
	VerifyEntityHistory(ctx context.Context, key domain.EntityKey) ([]string, error)

	// ListEntityKeys lists the user's entities that have history
	// ListEntityKeys 获取用户存在历史记录的实体
	ListEntityKeys(ctx context.Context, uid int64) ([]domain.EntityKey, error)
}

// historyService implementation of HistoryService interface
// historyService 实现 HistoryService 接口
type historyService struct {
	historyRepo domain.HistoryRepository // History repository // 历史记录仓库
	contentRepo domain.ContentRepository // Live content repository, the reconstruction anchor // 当前内容仓库，重建锚点
	tx          domain.Transactor        // Transaction runner // 事务执行器
	codec       *diff.Codec              // Patch codec // 补丁编解码器
	policy      *storagePolicy           // Storage policy // 存储策略
	sf          *singleflight.Group      // Singleflight group // 并发请求合并组
	metrics     *HistoryMetrics          // Metrics // 指标
	logger      *zap.Logger              // Logger // 日志对象
	config      HistoryServiceConfig     // Service configuration // 服务配置
}

// NewHistoryService creates HistoryService instance
// NewHistoryService 创建 HistoryService 实例
func NewHistoryService(historyRepo domain.HistoryRepository, contentRepo domain.ContentRepository, tx domain.Transactor, codec *diff.Codec, metrics *HistoryMetrics, lg *zap.Logger, config *HistoryServiceConfig) HistoryService {
	cfg := config.withDefaults()
	if codec == nil {
		codec = diff.New()
	}
	if metrics == nil {
		metrics = NewHistoryMetrics(nil)
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	return &historyService{
		historyRepo: historyRepo,
		contentRepo: contentRepo,
		tx:          tx,
		codec:       codec,
		policy:      newStoragePolicy(codec, cfg.SnapshotInterval),
		sf:          &singleflight.Group{},
		metrics:     metrics,
		logger:      lg,
		config:      cfg,
	}
}

// domainToDTO converts domain model to DTO
// domainToDTO 将领域模型转换为 DTO
func (s *historyService) domainToDTO(h *domain.HistoryRecord) *dto.HistoryRecordDTO {
	if h == nil {
		return nil
	}
	_, hasSnapshot := h.Snapshot()
	_, hasDiff := h.ReverseDiff()
	return &dto.HistoryRecordDTO{
		ID:            h.ID,
		EntityType:    string(h.EntityType),
		EntityID:      h.EntityID,
		Version:       h.Version,
		Action:        string(h.Action),
		DiffType:      string(h.DiffType()),
		HasSnapshot:   hasSnapshot,
		HasDiff:       hasDiff,
		Metadata:      h.Metadata,
		ChangedFields: h.ChangedFields,
		Source:        h.Audit.Source,
		AuthType:      h.Audit.AuthType,
		TokenPrefix:   h.Audit.TokenPrefix,
		CreatedAt:     timex.Time(h.CreatedAt),
	}
}

func (s *historyService) domainToDTOList(list []*domain.HistoryRecord) []*dto.HistoryRecordDTO {
	results := make([]*dto.HistoryRecordDTO, 0, len(list))
	for _, h := range list {
		results = append(results, s.domainToDTO(h))
	}
	return results
}

// RecordAction allocates the next version and inserts the record in a nested transaction.
// A version collision rolls back only that savepoint and the allocation is retried;
// any other error, or running out of attempts, is returned so the caller's transaction fails.
// RecordAction 分配下一个版本号并在嵌套事务中插入记录；
// 版本冲突时仅回滚保存点并重试，其他错误或重试耗尽时返回错误，由调用方事务整体回滚
func (s *historyService) RecordAction(ctx context.Context, in RecordActionInput) (*domain.HistoryRecord, error) {
	if !in.EntityType.Valid() {
		return nil, code.ErrorEntityTypeInvalid.WithDetails(string(in.EntityType))
	}
	if !in.Action.Valid() {
		return nil, code.ErrorInvalidParams.WithDetails("unknown action " + string(in.Action))
	}
	// 非法 UTF-8 无法被反向补丁精确还原
	if !utf8.ValidString(in.Current) {
		return nil, code.ErrorInvalidParams.WithDetails("content is not valid UTF-8")
	}
	in.Audit = in.Audit.Truncated()

	var lastErr error
	for attempt := 1; attempt <= s.config.MaxRecordAttempts; attempt++ {
		var created *domain.HistoryRecord
		err := s.tx.Transaction(ctx, func(ctx context.Context) error {
			record, err := s.buildRecord(ctx, in)
			if err != nil {
				return err
			}
			created, err = s.historyRepo.Create(ctx, record)
			return err
		})
		if err == nil {
			s.metrics.RecordsTotal.WithLabelValues(string(in.EntityType), string(in.Action), string(created.DiffType())).Inc()
			s.logger.Debug("history recorded",
				zap.Int64(logger.FieldUID, in.UID),
				zap.String(logger.FieldEntityType, string(in.EntityType)),
				zap.Int64(logger.FieldEntityID, in.EntityID),
				zap.String(logger.FieldAction, string(in.Action)),
				zap.Int64(logger.FieldVersion, created.Version),
				zap.String(logger.FieldDiffType, string(created.DiffType())))
			return created, nil
		}

		lastErr = err
		if !dao.IsUniqueViolation(err) {
			break
		}
		s.metrics.RecordRetries.Inc()
		s.logger.Warn("history version collision, retrying",
			zap.Int64(logger.FieldUID, in.UID),
			zap.String(logger.FieldEntityType, string(in.EntityType)),
			zap.Int64(logger.FieldEntityID, in.EntityID),
			zap.Int(logger.FieldAttempt, attempt))
	}

	s.metrics.RecordFailures.Inc()
	s.logger.Error("history record failed",
		zap.Int64(logger.FieldUID, in.UID),
		zap.String(logger.FieldEntityType, string(in.EntityType)),
		zap.Int64(logger.FieldEntityID, in.EntityID),
		zap.String(logger.FieldAction, string(in.Action)),
		zap.Error(lastErr))
	return nil, pkgerrors.Wrap(lastErr, "record history")
}

// buildRecord computes version, storage payload and changed fields for one attempt.
// buildRecord 为一次尝试计算版本号、存储载荷与变更字段
func (s *historyService) buildRecord(ctx context.Context, in RecordActionInput) (*domain.HistoryRecord, error) {
	latestVersion, err := s.historyRepo.GetLatestVersion(ctx, in.UID, in.EntityType, in.EntityID)
	if err != nil {
		return nil, err
	}
	version := latestVersion + 1

	var previousMetadata domain.Metadata
	if latest, err := s.historyRepo.GetLatest(ctx, in.UID, in.EntityType, in.EntityID); err != nil {
		return nil, err
	} else if latest != nil {
		previousMetadata = latest.Metadata
	}

	start := time.Now()
	stored := s.policy.Decide(in.Action, version, in.Current, in.Previous)
	if _, ok := stored.(domain.MetadataContent); !ok && in.Previous != nil && in.Action != domain.HistoryActionDelete {
		elapsed := time.Since(start)
		s.metrics.DiffSeconds.Observe(elapsed.Seconds())
		if elapsed > slowDiffThreshold {
			s.logger.Warn("slow reverse patch",
				zap.Int64(logger.FieldUID, in.UID),
				zap.String(logger.FieldEntityType, string(in.EntityType)),
				zap.Int64(logger.FieldEntityID, in.EntityID),
				zap.Int("contentLen", len(in.Current)),
				zap.Duration(logger.FieldDuration, elapsed))
		}
	}

	contentChanged := in.Previous == nil || *in.Previous != in.Current
	metadata := in.Metadata
	if metadata == nil {
		metadata = domain.Metadata{}
	}

	return &domain.HistoryRecord{
		UID:           in.UID,
		EntityType:    in.EntityType,
		EntityID:      in.EntityID,
		Version:       version,
		Action:        in.Action,
		Stored:        stored,
		Metadata:      metadata,
		ChangedFields: changedFields(in.Action, previousMetadata, metadata, contentChanged),
		Audit:         in.Audit,
	}, nil
}

// GetEntityHistory lists one entity's history
// GetEntityHistory 分页获取实体历史
func (s *historyService) GetEntityHistory(ctx context.Context, uid int64, entityType domain.EntityType, entityID int64, pager *app.Pager) ([]*dto.HistoryRecordDTO, int64, error) {
	if !entityType.Valid() {
		return nil, 0, code.ErrorEntityTypeInvalid.WithDetails(string(entityType))
	}
	list, count, err := s.historyRepo.ListByEntity(ctx, uid, entityType, entityID, pager.Page, pager.PageSize)
	if err != nil {
		return nil, 0, code.ErrorDBQuery.WithDetails(err.Error())
	}
	return s.domainToDTOList(list), count, nil
}

// GetUserHistory lists the user's history feed
// GetUserHistory 分页获取用户历史动态
func (s *historyService) GetUserHistory(ctx context.Context, uid int64, entityType domain.EntityType, pager *app.Pager) ([]*dto.HistoryRecordDTO, int64, error) {
	if entityType != "" && !entityType.Valid() {
		return nil, 0, code.ErrorEntityTypeInvalid.WithDetails(string(entityType))
	}
	list, count, err := s.historyRepo.ListByUser(ctx, uid, entityType, pager.Page, pager.PageSize)
	if err != nil {
		return nil, 0, code.ErrorDBQuery.WithDetails(err.Error())
	}
	return s.domainToDTOList(list), count, nil
}

// ReconstructContentAtVersion rebuilds content at a version. Identical concurrent
// requests share one computation unless the caller is inside a transaction.
// ReconstructContentAtVersion 重建指定版本的内容；相同的并发请求合并执行（事务内调用除外）
func (s *historyService) ReconstructContentAtVersion(ctx context.Context, uid int64, entityType domain.EntityType, entityID, version int64) (*domain.ReconstructionResult, error) {
	if !entityType.Valid() {
		return nil, code.ErrorEntityTypeInvalid.WithDetails(string(entityType))
	}

	var (
		result *domain.ReconstructionResult
		err    error
	)
	if dao.InTransaction(ctx) {
		result, err = s.reconstruct(ctx, uid, entityType, entityID, version)
	} else {
		key := fmt.Sprintf("%d:%s:%d:%d", uid, entityType, entityID, version)
		// 合并的计算不随首个调用方取消，每个调用方只等待自己的 ctx
		ch := s.sf.DoChan(key, func() (any, error) {
			return s.reconstruct(context.WithoutCancel(ctx), uid, entityType, entityID, version)
		})
		select {
		case <-ctx.Done():
			err = ctx.Err()
		case r := <-ch:
			err = r.Err
			if err == nil {
				result = cloneResult(r.Val.(*domain.ReconstructionResult))
			}
		}
	}

	switch {
	case err != nil:
		s.metrics.Reconstructions.WithLabelValues("error").Inc()
		return nil, code.ErrorDBQuery.WithDetails(err.Error())
	case !result.Found:
		s.metrics.Reconstructions.WithLabelValues("not_found").Inc()
	case len(result.Warnings) > 0:
		s.metrics.Reconstructions.WithLabelValues("warning").Inc()
		s.metrics.ReconstructWarnings.Add(float64(len(result.Warnings)))
	default:
		s.metrics.Reconstructions.WithLabelValues("found").Inc()
	}
	return result, nil
}

func cloneResult(r *domain.ReconstructionResult) *domain.ReconstructionResult {
	out := &domain.ReconstructionResult{Found: r.Found}
	if r.Content != nil {
		c := *r.Content
		out.Content = &c
	}
	if r.Warnings != nil {
		out.Warnings = append([]string(nil), r.Warnings...)
	}
	return out
}

func notFound() *domain.ReconstructionResult {
	return &domain.ReconstructionResult{Found: false}
}

func found(content string, warnings []string) *domain.ReconstructionResult {
	return &domain.ReconstructionResult{Found: true, Content: &content, Warnings: warnings}
}

// reconstruct walks reverse patches from the nearest snapshot above the target,
// or from the live entity when none exists.
// reconstruct 从目标之上最近的快照（没有则从当前实体）开始，逐个应用反向补丁
func (s *historyService) reconstruct(ctx context.Context, uid int64, entityType domain.EntityType, entityID, target int64) (*domain.ReconstructionResult, error) {
	// 1. Load the anchor, including soft-deleted rows
	// 1. 读取锚点实体（包含软删除）
	anchor, err := s.contentRepo.GetByID(ctx, uid, entityType, entityID, true)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(), nil
	}
	if err != nil {
		return nil, err
	}

	// 2. Range check
	// 2. 版本范围检查
	latest, err := s.historyRepo.GetLatestVersion(ctx, uid, entityType, entityID)
	if err != nil {
		return nil, err
	}
	if latest == 0 || target < 1 || target > latest {
		return notFound(), nil
	}

	// 3. Latest version: the record's own snapshot, else the live content
	// 3. 最新版本：优先使用记录自身快照，否则使用当前内容
	if target == latest {
		record, err := s.historyRepo.GetByVersion(ctx, uid, entityType, entityID, target)
		if err != nil {
			return nil, err
		}
		if record != nil {
			if snapshot, ok := record.Snapshot(); ok {
				return found(snapshot, nil), nil
			}
		}
		return found(anchor.Content, nil), nil
	}

	// 4. Target record carries a snapshot
	// 4. 目标记录自带快照
	records, err := s.historyRepo.ListVersionRange(ctx, uid, entityType, entityID, target, latest)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 || records[len(records)-1].Version != target {
		return notFound(), nil
	}
	if snapshot, ok := records[len(records)-1].Snapshot(); ok {
		return found(snapshot, nil), nil
	}

	// 5. Drop the target; start from the lowest snapshot above it, else the anchor
	// 5. 去掉目标记录；从其上方版本最低的快照开始，没有则从锚点开始
	remaining := records[:len(records)-1]
	content := anchor.Content
	start := 0
	for i := len(remaining) - 1; i >= 0; i-- {
		if snapshot, ok := remaining[i].Snapshot(); ok {
			content = snapshot
			start = i
			break
		}
	}

	// 6. Apply reverse patches newest first down to target+1
	// 6. 从高到低应用反向补丁直到 target+1
	var warnings []string
	for _, record := range remaining[start:] {
		content, warnings = s.applyReverse(record, content, warnings)
	}

	if len(warnings) > 0 {
		s.logger.Warn("history reconstruction finished with warnings",
			zap.Int64(logger.FieldUID, uid),
			zap.String(logger.FieldEntityType, string(entityType)),
			zap.Int64(logger.FieldEntityID, entityID),
			zap.Int64(logger.FieldVersion, target),
			zap.Strings("warnings", warnings))
	}
	return found(content, warnings), nil
}

// applyReverse applies one record's reverse patch. Unreadable patches and failed hunks
// become warnings and the content passes through as produced.
// applyReverse 应用单条记录的反向补丁；无法解析或部分失败时记录警告并继续
func (s *historyService) applyReverse(record *domain.HistoryRecord, content string, warnings []string) (result string, outWarnings []string) {
	patchText, ok := record.ReverseDiff()
	if !ok {
		if _, isSnapshot := record.Snapshot(); isSnapshot && record.Action != domain.HistoryActionDelete && record.Action != domain.HistoryActionCreate {
			warnings = append(warnings, fmt.Sprintf("version %d: snapshot has no reverse patch, earlier content may be inaccurate", record.Version))
		}
		return content, warnings
	}

	result, outWarnings = content, warnings
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered while applying reverse patch",
				zap.Any("panic", r),
				zap.Int64(logger.FieldVersion, record.Version))
			result = content
			outWarnings = append(warnings, fmt.Sprintf("version %d: reverse patch failed: %v", record.Version, r))
		}
	}()

	patches, err := s.codec.PatchFromText(patchText)
	if err != nil {
		return content, append(warnings, fmt.Sprintf("version %d: reverse patch unreadable: %v", record.Version, err))
	}

	applied, hunks := s.codec.ApplyPatch(patches, content)
	if failed := diff.FailedHunks(hunks); failed > 0 {
		warnings = append(warnings, fmt.Sprintf("version %d: %d of %d patch hunks failed to apply", record.Version, failed, len(hunks)))
	}
	return applied, warnings
}

// DeleteEntityHistory removes every record of an entity
// DeleteEntityHistory 删除实体的全部历史记录
func (s *historyService) DeleteEntityHistory(ctx context.Context, uid int64, entityType domain.EntityType, entityID int64) (int64, error) {
	n, err := s.historyRepo.DeleteByEntity(ctx, uid, entityType, entityID)
	if err != nil {
		return 0, err
	}
	s.logger.Info("history deleted",
		zap.Int64(logger.FieldUID, uid),
		zap.String(logger.FieldEntityType, string(entityType)),
		zap.Int64(logger.FieldEntityID, entityID),
		zap.Int64("count", n))
	return n, nil
}

// VerifyEntityHistory reports gaps, duplicates, a missing initial snapshot and unreadable patches.
// VerifyEntityHistory 检查版本缺口、重复、首版本快照缺失与无法解析的补丁
func (s *historyService) VerifyEntityHistory(ctx context.Context, key domain.EntityKey) ([]string, error) {
	latest, err := s.historyRepo.GetLatestVersion(ctx, key.UID, key.EntityType, key.EntityID)
	if err != nil {
		return nil, err
	}
	if latest == 0 {
		return nil, nil
	}
	records, err := s.historyRepo.ListVersionRange(ctx, key.UID, key.EntityType, key.EntityID, 1, latest)
	if err != nil {
		return nil, err
	}

	var issues []string
	expected := latest
	for _, record := range records {
		switch {
		case record.Version == expected:
		case record.Version > expected:
			issues = append(issues, fmt.Sprintf("version %d duplicated", record.Version))
			continue
		default:
			issues = append(issues, fmt.Sprintf("versions %d..%d missing", record.Version+1, expected))
		}
		expected = record.Version - 1

		if patchText, ok := record.ReverseDiff(); ok {
			if _, err := s.codec.PatchFromText(patchText); err != nil {
				issues = append(issues, fmt.Sprintf("version %d: reverse patch unreadable", record.Version))
			}
		}
	}
	if expected > 0 {
		issues = append(issues, fmt.Sprintf("versions 1..%d missing", expected))
	}
	if len(records) > 0 {
		if _, ok := records[len(records)-1].Snapshot(); !ok && records[len(records)-1].Version == 1 {
			issues = append(issues, "version 1 is not a snapshot")
		}
	}
	return issues, nil
}

// ListEntityKeys lists the user's entities that have history
// ListEntityKeys 获取用户存在历史记录的实体
func (s *historyService) ListEntityKeys(ctx context.Context, uid int64) ([]domain.EntityKey, error) {
	return s.historyRepo.ListEntityKeys(ctx, uid)
}
