package infrastructure

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderModel 是订单的数据库模型，与领域实体通过 mapper 互转。
type OrderModel struct {
	ID         int64           `gorm:"primaryKey;autoIncrement"`
	UserID     int64           `gorm:"index:idx_user_date;not null"`
	ProductID  int64           `gorm:"index;not null"`
	Quantity   int             `gorm:"not null"`
	TotalPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Status     string          `gorm:"type:varchar(16);index;not null"`
	OrderDate  time.Time       `gorm:"index:idx_user_date;not null"`
	CreatedAt  time.Time       `gorm:"not null"`
	UpdatedAt  time.Time       `gorm:"not null"`
}

// TableName 指定表名。
func (OrderModel) TableName() string {
	return "orders"
}
