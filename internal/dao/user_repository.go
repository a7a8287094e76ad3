package dao

import (
	"context"

	"github.com/haierkeys/fast-content-service/internal/domain"
	"github.com/haierkeys/fast-content-service/internal/model"

	"gorm.io/gorm/clause"
)

// userRepository 实现 domain.UserRepository 接口
type userRepository struct {
	dao *Dao
}

// NewUserRepository 创建 UserRepository 实例
func NewUserRepository(dao *Dao) domain.UserRepository {
	return &userRepository{dao: dao}
}

func (r *userRepository) toDomain(m *model.User) *domain.User {
	if m == nil {
		return nil
	}
	return &domain.User{
		UID:       m.UID,
		Username:  m.Username,
		CreatedAt: m.CreatedAt,
	}
}

// GetByUID 根据UID获取用户
func (r *userRepository) GetByUID(ctx context.Context, uid int64) (*domain.User, error) {
	var m model.User
	if err := r.dao.DB(ctx).Where("uid = ?", uid).Take(&m).Error; err != nil {
		return nil, err
	}
	return r.toDomain(&m), nil
}

// Create 创建用户
func (r *userRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	m := &model.User{UID: user.UID, Username: user.Username}
	if err := r.dao.DB(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return r.toDomain(m), nil
}

// Ensure creates the user row when missing; the gateway owns identities, this table only anchors foreign keys.
// Ensure 用户不存在时创建；身份由网关管理，此表仅作为外键锚点
func (r *userRepository) Ensure(ctx context.Context, uid int64) error {
	return r.dao.DB(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "uid"}}, DoNothing: true}).
		Create(&model.User{UID: uid}).Error
}

// Delete 删除用户
func (r *userRepository) Delete(ctx context.Context, uid int64) error {
	return r.dao.DB(ctx).Where("uid = ?", uid).Delete(&model.User{}).Error
}

// GetAllUIDs 获取所有用户UID
func (r *userRepository) GetAllUIDs(ctx context.Context) ([]int64, error) {
	var uids []int64
	if err := r.dao.DB(ctx).Model(&model.User{}).Order("uid").Pluck("uid", &uids).Error; err != nil {
		return nil, err
	}
	return uids, nil
}

var _ domain.UserRepository = (*userRepository)(nil)
