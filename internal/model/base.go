package model

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// swagger:model
type BaseModel struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func GenerateUUID() string {
	return uuid.New().String()
}

// IDString 进度集合里统一用十进制字符串存实体 ID
func IDString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// IDSet JSON 序列化的字符串集合，按集合语义去重
type IDSet []string

func (s IDSet) Has(id string) bool {
	for _, v := range s {
		if v == id {
			return true
		}
	}
	return false
}

// Add 幂等追加，已存在则原样返回
func (s IDSet) Add(id string) IDSet {
	if s.Has(id) {
		return s
	}
	return append(s, id)
}
