package app

import (
	"edu_platform_backend/docs"
	"edu_platform_backend/internal/config"
	"edu_platform_backend/internal/middleware"
	"edu_platform_backend/internal/model"
	"edu_platform_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 公共路由（无需登录）
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}

	// 需要授权的路由
	auth := router.Group("/api")
	auth.Use(middleware.AuthMiddleware(cfg))
	{
		auth.GET("/me", c.auth.Me)

		// 模块：列表和详情对全部登录用户开放，详情里按角色做访问控制
		auth.GET("/modules", c.module.ListModules)
		auth.GET("/modules/:id", c.module.GetModule)

		// 学生
		student := auth.Group("")
		student.Use(middleware.RoleMiddleware(model.Student))
		{
			student.GET("/my/modules", c.enrollment.MyModules)
			student.GET("/modules/:id/quizzes/available", c.quiz.ListStudentQuizzes)
			student.GET("/quizzes/:id/take", c.quiz.GetStudentQuiz)
			student.POST("/quizzes/:id/submit", c.quiz.SubmitQuiz)
			student.GET("/submissions/:id", c.quiz.GetMySubmission)
		}

		// 教师（管理员拥有全部教师权限）
		teacher := auth.Group("")
		teacher.Use(middleware.RoleMiddleware(model.Teacher))
		{
			teacher.PUT("/modules/:id", c.module.UpdateModule)
			teacher.DELETE("/modules/:id", c.module.DeleteModule)

			teacher.POST("/modules/:id/chapters", c.module.AddChapter)
			teacher.PUT("/chapters/:id", c.module.SaveChapter)
			teacher.DELETE("/chapters/:id", c.module.DeleteChapter)
			teacher.PUT("/modules/:id/syllabus", c.module.SaveSyllabus)
			teacher.POST("/modules/:id/references", c.module.AddReference)
			teacher.PUT("/references/:id", c.module.SaveReference)
			teacher.DELETE("/references/:id", c.module.DeleteReference)

			teacher.POST("/modules/:id/attachments", c.attachment.Upload)
			teacher.GET("/modules/:id/attachments/pending", c.attachment.PendingUploads)
			teacher.DELETE("/modules/:id/attachments/temporary", c.attachment.DiscardTemporary)

			teacher.GET("/modules/:id/enrollments", c.enrollment.ListStudents)
			teacher.POST("/modules/:id/enrollments", c.enrollment.Enroll)
			teacher.DELETE("/modules/:id/enrollments/:studentId", c.enrollment.Unenroll)

			teacher.POST("/modules/:id/quizzes", c.quiz.CreateQuiz)
			teacher.GET("/modules/:id/quizzes", c.quiz.ListQuizzes)
			teacher.GET("/quizzes/:id", c.quiz.GetQuiz)
			teacher.PUT("/quizzes/:id", c.quiz.UpdateQuiz)
			teacher.DELETE("/quizzes/:id", c.quiz.DeleteQuiz)
			teacher.GET("/quizzes/:id/submissions", c.quiz.ListSubmissions)
			teacher.POST("/submissions/:id/grade", c.quiz.GradeSubmission)
		}

		// 管理员
		admin := auth.Group("/admin")
		admin.Use(middleware.RoleMiddleware(model.Admin))
		{
			admin.POST("/users/:id/approve", c.auth.ApproveUser)
		}
		auth.POST("/modules", middleware.RoleMiddleware(model.Admin), c.module.CreateModule)
	}
}
