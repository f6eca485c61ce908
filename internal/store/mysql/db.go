// Package mysql stores the messaging schema in MySQL through gorm, for
// deployments that share the marketplace's existing MySQL database.
package mysql

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type userRow struct {
	ID             int64     `gorm:"primaryKey;autoIncrement"`
	Username       string    `gorm:"size:50;uniqueIndex;not null"`
	DisplayName    string    `gorm:"size:100;not null;default:''"`
	HashedPassword string    `gorm:"size:255;not null"`
	IsActive       bool      `gorm:"not null;default:true"`
	CreatedAt      time.Time `gorm:"type:datetime(6);not null"`
}

func (userRow) TableName() string { return "users" }

type conversationRow struct {
	ID            int64      `gorm:"primaryKey;autoIncrement"`
	CreatorID     int64      `gorm:"not null"`
	AdID          *int64
	UserLowID     int64      `gorm:"not null;uniqueIndex:idx_conversations_pair,priority:1;check:chk_conversations_pair_order,user_low_id < user_high_id"`
	UserHighID    int64      `gorm:"not null;uniqueIndex:idx_conversations_pair,priority:2"`
	LastMessageAt *time.Time `gorm:"type:datetime(6);index"`
	CreatedAt     time.Time  `gorm:"type:datetime(6);not null"`
}

func (conversationRow) TableName() string { return "conversations" }

type participantRow struct {
	ConversationID int64      `gorm:"primaryKey;autoIncrement:false"`
	UserID         int64      `gorm:"primaryKey;autoIncrement:false;index"`
	LastReadAt     *time.Time `gorm:"type:datetime(6)"`
	IsArchived     bool       `gorm:"not null;default:false"`
	JoinedAt       time.Time  `gorm:"type:datetime(6);not null"`
}

func (participantRow) TableName() string { return "conversation_participants" }

type messageRow struct {
	ID             int64     `gorm:"primaryKey;autoIncrement"`
	ConversationID int64     `gorm:"not null;index:idx_messages_conv_id,priority:1"`
	SenderID       int64     `gorm:"not null"`
	Body           string    `gorm:"type:text;not null"`
	CreatedAt      time.Time `gorm:"type:datetime(6);not null"`
}

func (messageRow) TableName() string { return "messages" }

// Open connects to MySQL. The DSN must carry parseTime=true.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		PrepareStmt: true,
		Logger:      logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("mysql pool: %w", err)
	}
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	return db, nil
}

func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(&userRow{}, &conversationRow{}, &participantRow{}, &messageRow{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
