package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ollamagate/ollamagate/database/types"
	slogGorm "github.com/orandin/slog-gorm"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"
)

// DB 全局数据库实例，由 Connect 设置
var DB *gorm.DB

// Options 数据库连接选项
type Options struct {
	Type        string // 数据库类型 ("sqlite", "mysql", "postgres")
	Host        string
	Port        string
	User        string
	Password    string
	Name        string
	SSLMode     string // PostgreSQL SSL 模式
	TLSConfig   string // MySQL TLS 配置
	ReplicaHost string // 只读副本主机地址，空则不启用读写分离
	ReplicaPort string
}

// Connect 连接到数据库
//
// 根据提供的数据库类型和连接信息连接数据库，配置 slog-gorm 日志记录器并
// 自动迁移表结构。若配置了只读副本，则通过 dbresolver 启用读写分离。
func Connect(opts Options, logger *slog.Logger) (*sql.DB, error) {
	var db *gorm.DB
	var err error

	gormConfig := &gorm.Config{
		Logger: slogGorm.New(
			slogGorm.WithHandler(logger.Handler()),
		),
	}

	switch opts.Type {
	case "mysql":
		if opts.Host == "" || opts.Port == "" || opts.User == "" || opts.Password == "" || opts.Name == "" {
			return nil, errors.New("使用 MySQL 数据库需要提供主机、端口、用户名、密码和数据库名")
		}
		db, err = gorm.Open(mysql.Open(mysqlDSN(opts, opts.Host, opts.Port)), gormConfig)
	case "postgres":
		if opts.Host == "" || opts.Port == "" || opts.User == "" || opts.Password == "" || opts.Name == "" {
			return nil, errors.New("使用 PostgreSQL 数据库需要提供主机、端口、用户名、密码和数据库名")
		}
		db, err = gorm.Open(postgres.Open(postgresDSN(opts, opts.Host, opts.Port)), gormConfig)
	case "sqlite":
		fallthrough
	default:
		db, err = gorm.Open(sqlite.Open("ollamagate.db"), gormConfig)
	}

	if err != nil {
		return nil, errors.New("无法打开数据库：" + err.Error())
	}

	// 配置只读副本
	if opts.ReplicaHost != "" {
		if err := registerReplica(db, opts); err != nil {
			return nil, errors.New("无法配置只读副本：" + err.Error())
		}
	}

	if err := autoMigrate(db); err != nil {
		return nil, errors.New("无法自动迁移数据库：" + err.Error())
	}

	dbConn, err := db.DB()
	if err != nil {
		return nil, errors.New("无法获取数据库连接：" + err.Error())
	}

	DB = db

	return dbConn, nil
}

// registerReplica 通过 dbresolver 注册只读副本
func registerReplica(db *gorm.DB, opts Options) error {
	port := opts.ReplicaPort
	if port == "" {
		port = opts.Port
	}

	var replica gorm.Dialector
	switch opts.Type {
	case "mysql":
		replica = mysql.Open(mysqlDSN(opts, opts.ReplicaHost, port))
	case "postgres":
		replica = postgres.Open(postgresDSN(opts, opts.ReplicaHost, port))
	default:
		return errors.New("只读副本仅支持 mysql 和 postgres")
	}

	return db.Use(dbresolver.Register(dbresolver.Config{
		Replicas: []gorm.Dialector{replica},
	}))
}

// mysqlDSN 构造 MySQL DSN
func mysqlDSN(opts Options, host, port string) string {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		opts.User, opts.Password, host, port, opts.Name)
	if opts.TLSConfig != "" {
		dsn += "&tls=" + opts.TLSConfig
	}
	return dsn
}

// postgresDSN 构造 PostgreSQL DSN
func postgresDSN(opts Options, host, port string) string {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s",
		host, opts.User, opts.Password, opts.Name, port)
	if opts.SSLMode != "" {
		dsn += " sslmode=" + opts.SSLMode
	}
	return dsn
}

// autoMigrate 自动迁移数据库表结构
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		types.Types...,
	)
}
