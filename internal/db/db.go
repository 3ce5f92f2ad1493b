package db

import (
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/draftkiller/backend/internal/chat"
	"github.com/draftkiller/backend/internal/models"
	"github.com/draftkiller/backend/internal/usage"
)

func Connect(dsn string) *gorm.DB {
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	if err := gdb.AutoMigrate(
		&models.User{},
		&chat.Conversation{},
		&chat.Message{},
		&usage.Record{},
	); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	return gdb
}
