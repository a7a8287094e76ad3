// Package dao 实现数据访问层
package dao

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/haierkeys/fast-content-service/pkg/util"
	"github.com/haierkeys/fast-content-service/pkg/writequeue"

	"github.com/glebarez/sqlite"
	"github.com/haierkeys/gormTracing"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// DatabaseConfig 数据库连接配置
type DatabaseConfig struct {
	Type            string
	Path            string
	UserName        string
	Password        string
	Host            string
	Port            int
	Name            string
	TablePrefix     string
	AutoMigrate     bool
	Charset         string
	ParseTime       bool
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime string
	ConnMaxIdleTime string
	RunMode         string
}

// IsSQLite 是否为 SQLite
func (c DatabaseConfig) IsSQLite() bool {
	return c.Type == "" || c.Type == "sqlite"
}

// NewDBEngineWithConfig opens the configured database.
// NewDBEngineWithConfig 根据配置打开数据库
func NewDBEngineWithConfig(c DatabaseConfig, lg *zap.Logger) (*gorm.DB, error) {
	dialector, err := newDialector(c)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(lg, c.RunMode == "debug"),
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   c.TablePrefix,
			SingularTable: true,
		},
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	_ = db.Use(&gormTracing.OpentracingPlugin{})

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "get sql.DB")
	}

	if c.IsSQLite() {
		// SQLite 单写者，所有连接串行
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(c.MaxIdleConns)
		sqlDB.SetMaxOpenConns(c.MaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(util.DurationOr(c.ConnMaxLifetime, 30*time.Minute))
	sqlDB.SetConnMaxIdleTime(util.DurationOr(c.ConnMaxIdleTime, 10*time.Minute))

	return db, nil
}

func newDialector(c DatabaseConfig) (gorm.Dialector, error) {
	switch c.Type {
	case "mysql":
		charset := c.Charset
		if charset == "" {
			charset = "utf8mb4"
		}
		return mysql.Open(fmt.Sprintf("%s:%s@tcp(%s)/%s?charset=%s&parseTime=%t&loc=Local",
			c.UserName, c.Password, c.Host, c.Name, charset, c.ParseTime)), nil

	case "postgres":
		port := c.Port
		if port == 0 {
			port = 5432
		}
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return postgres.Open(fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, port, c.UserName, c.Password, c.Name, sslMode)), nil

	case "", "sqlite":
		if c.Path == "" {
			return nil, errors.New("sqlite path is empty")
		}
		if c.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(c.Path), os.ModePerm); err != nil {
				return nil, errors.Wrap(err, "create sqlite dir")
			}
		}
		return sqlite.Open(sqliteDSN(c.Path)), nil
	}
	return nil, fmt.Errorf("unsupported database type %q", c.Type)
}

// sqliteDSN enables foreign keys (history cascades on user delete) and a busy timeout.
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Dao 持有数据库连接与写队列
type Dao struct {
	db         *gorm.DB
	writeQueue *writequeue.Manager
	logger     *zap.Logger
}

// Option Dao 选项
type Option func(*Dao)

// WithWriteQueueManager serializes ExecuteWrite per user.
// WithWriteQueueManager 按用户串行化 ExecuteWrite
func WithWriteQueueManager(m *writequeue.Manager) Option {
	return func(d *Dao) { d.writeQueue = m }
}

// WithLogger 设置日志器
func WithLogger(lg *zap.Logger) Option {
	return func(d *Dao) { d.logger = lg }
}

// New 创建 Dao
func New(db *gorm.DB, opts ...Option) *Dao {
	d := &Dao{db: db, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type txCtxKey struct{}

// DB returns the transaction carried by ctx, or the root handle bound to ctx.
// DB 返回 ctx 中的事务；没有事务时返回绑定 ctx 的根连接
func (d *Dao) DB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txCtxKey{}).(*gorm.DB); ok && tx != nil {
		return tx.WithContext(ctx)
	}
	return d.db.WithContext(ctx)
}

// Root 返回根连接（迁移等场景使用）
func (d *Dao) Root() *gorm.DB {
	return d.db
}

// InTransaction 判断 ctx 是否已携带事务
func InTransaction(ctx context.Context) bool {
	tx, ok := ctx.Value(txCtxKey{}).(*gorm.DB)
	return ok && tx != nil
}

// Transaction runs fn in a transaction stored on the ctx passed to fn.
// When ctx already carries one, gorm nests it as a SAVEPOINT, so a failing fn
// rolls back only its own work.
// Transaction 在事务中执行 fn；ctx 已有事务时 gorm 以 SAVEPOINT 嵌套，fn 失败只回滚自身
func (d *Dao) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return d.DB(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txCtxKey{}, tx))
	})
}

// ExecuteWrite runs fn in a transaction after the user's write queue admits it.
// Calls made while already inside a transaction join it directly.
// ExecuteWrite 经用户写队列放行后在事务中执行 fn；已在事务中时直接加入
func (d *Dao) ExecuteWrite(ctx context.Context, uid int64, fn func(ctx context.Context) error) error {
	if d.writeQueue == nil || InTransaction(ctx) {
		return d.Transaction(ctx, fn)
	}
	return d.writeQueue.Execute(ctx, uid, func() error {
		return d.Transaction(ctx, fn)
	})
}

// IsUniqueViolation reports a unique-constraint failure from any supported driver.
// IsUniqueViolation 判断是否为唯一约束冲突（兼容所有支持的驱动）
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "Duplicate entry")
}
