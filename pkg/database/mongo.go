package database

import (
	"context"
	"time"

	"cloudshift-go/pkg/log"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

var Mongo *mongo.Database

// InitMongo 初始化 MongoDB 客户端连接（聊天文档存储）
func InitMongo(uri, dbName string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		log.Fatal("failed to connect to mongodb", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		log.Fatal("failed to ping mongodb", err)
	}

	Mongo = client.Database(dbName)
	log.Info("MongoDB connected successfully")
}
