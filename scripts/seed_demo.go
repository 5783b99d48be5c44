// 演示数据初始化脚本
//
// 建一门三章的示例课程（含视频、测验题）和一个兑换码，
// 方便本地联调前端学习流程：章节解锁、测验、兑换开通。
//
// 用法: go run scripts/seed_demo.go
package main

import (
	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/pkg/database"
	"lms_backend/pkg/logger"
	"log"
)

func main() {
	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}

	logger.InitLogger(cfg)

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	course := &model.Course{
		Title:       "Go 后端开发入门",
		Description: "从零开始的 Go Web 后端示例课程",
		Price:       4900,
		Currency:    "ZMW",
		Level:       "beginner",
		Published:   true,
	}
	if err := db.Create(course).Error; err != nil {
		log.Fatalf("创建课程失败: %v", err)
	}

	for i, title := range []string{"环境与语法基础", "HTTP 服务", "数据库与部署"} {
		chapter := &model.Chapter{
			CourseID: course.ID,
			Title:    title,
			Order:    i,
		}
		if err := db.Create(chapter).Error; err != nil {
			log.Fatalf("创建章节失败: %v", err)
		}

		if err := db.Create(&model.Video{
			CourseID:  course.ID,
			ChapterID: chapter.ID,
			Title:     title + " - 视频 1",
			Order:     0,
			Duration:  600,
		}).Error; err != nil {
			log.Fatalf("创建视频失败: %v", err)
		}

		questions := []model.QuizQuestion{
			{
				ChapterID: chapter.ID,
				Type:      model.MultipleChoice,
				Prompt:    title + "：下列哪个说法正确？",
				Options:   []string{"选项 A", "选项 B", "选项 C", "选项 D"},
				Answer:    1,
				Points:    2,
			},
			{
				ChapterID: chapter.ID,
				Type:      model.TrueFalse,
				Prompt:    title + "：Go 的切片是引用语义。",
				Options:   []string{"错", "对"},
				Answer:    1,
				Points:    1,
			},
		}
		for i := range questions {
			if err := db.Create(&questions[i]).Error; err != nil {
				log.Fatalf("创建测验题失败: %v", err)
			}
		}
	}

	code := &model.RedeemCode{
		Code:     "DEMO2026",
		CourseID: course.ID,
		MaxUses:  100,
	}
	if err := db.Create(code).Error; err != nil {
		log.Fatalf("创建兑换码失败: %v", err)
	}

	log.Printf("演示数据就绪：课程 #%d，兑换码 %s", course.ID, code.Code)
}
