// @title LMS 后端 API
// @version 1.0
// @description 在线课程平台后端：课程学习进度、章节测验、推广分成与移动支付。

// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package main

import (
	"flag"
	"lms_backend/internal/app"
	"lms_backend/internal/config"
	"lms_backend/pkg/logger"
	"log"
)

func main() {
	// 命令行参数
	migrateOnly := flag.Bool("migrate-only", false, "只执行数据库迁移，完成后退出")
	migrate := flag.Bool("migrate", false, "启动时强制执行数据库迁移（即使是 release 模式）")
	flag.Parse()

	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 设置迁移标志
	cfg.ForceMigrate = *migrate || *migrateOnly
	cfg.MigrateOnly = *migrateOnly

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	// 迁移完成后直接退出
	if *migrateOnly {
		log.Println("数据库迁移完成，退出程序")
		return
	}

	application.Run()
}
