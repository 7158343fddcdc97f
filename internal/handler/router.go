package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/benglish/academic-core/internal/middleware"
	"github.com/benglish/academic-core/internal/models"
)

// Handlers groups every HTTP handler mounted under the API prefix.
type Handlers struct {
	Agenda      *AgendaHandler
	Sessions    *SessionHandler
	Enrollments *EnrollmentHandler
	Progress    *ProgressHandler
	History     *HistoryHandler
	Plans       *PlanHandler
	Catalog     *CatalogHandler
	Placement   *PlacementHandler
	Maintenance *MaintenanceHandler
}

// RegisterRoutes mounts the API on api. auth authenticates every route except the signed
// export download and the LMS webhook, which carry their own credentials.
func RegisterRoutes(api *gin.RouterGroup, h Handlers, auth gin.HandlerFunc) {
	admin := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)
	reservers := middleware.RequireRoles(models.RoleAdmin, models.RoleStudent)
	selfOrStaff := middleware.RBAC(string(models.RoleAdmin), string(models.RoleTeacher), middleware.Self)
	authenticated := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher, models.RoleStudent)

	api.GET("/exports/:token", h.History.Download)
	api.POST("/placement/lms_result", h.Placement.LMSResult)

	secured := api.Group("")
	secured.Use(auth)

	secured.GET("/agenda", reservers, h.Agenda.Agenda)
	secured.POST("/agenda/:sessionId/viewed", authenticated, h.Agenda.MarkViewed)

	sessions := secured.Group("/sessions")
	sessions.POST("", admin, h.Sessions.Create)
	sessions.GET("/:id", authenticated, h.Sessions.Get)
	sessions.POST("/:id/publish", staff, h.Sessions.Publish)
	sessions.POST("/:id/unpublish", staff, h.Sessions.Unpublish)
	sessions.POST("/:id/start", staff, h.Sessions.Start)
	sessions.POST("/:id/cancel", staff, h.Sessions.Cancel)
	sessions.GET("/:id/resolution", authenticated, h.Sessions.Resolve)
	sessions.POST("/:id/reservations", reservers, h.Sessions.Reserve)
	sessions.DELETE("/:id/reservations", reservers, h.Sessions.CancelReservation)
	sessions.POST("/:id/attendance", staff, h.Sessions.MarkAttendance)
	sessions.POST("/:id/finish", staff, h.Sessions.Finish)
	secured.POST("/session/:id/novelty", staff, h.Sessions.RecordNovelty)
	secured.POST("/session/:id/novelty/attachments", staff, h.Sessions.UploadAttachment)
	secured.PUT("/session-enrollments/:id/grade", staff, h.Sessions.SetGrade)

	enrollments := secured.Group("/enrollments")
	enrollments.POST("", admin, h.Enrollments.Create)
	enrollments.GET("/:id", staff, h.Enrollments.Get)
	enrollments.POST("/:id/transition", admin, h.Enrollments.Transition)

	students := secured.Group("/students")
	students.GET("/:id/enrollments", selfOrStaff, h.Enrollments.ListByStudent)
	students.GET("/:id/progress", selfOrStaff, h.Progress.Get)
	students.POST("/:id/progress/recompute", admin, h.Progress.Recompute)
	students.GET("/:id/history", selfOrStaff, h.History.List)
	students.POST("/:id/history/retroactive", admin, h.History.Retroactive)
	students.POST("/:id/history/export", staff, h.History.Export)

	secured.PATCH("/history/:id", staff, h.History.Update)
	secured.POST("/history/import", admin, h.History.Import)

	plans := secured.Group("/plans")
	plans.POST("", admin, h.Plans.Create)
	plans.GET("/:id", staff, h.Plans.Get)
	plans.PUT("/:id", admin, h.Plans.Update)
	plans.POST("/:id/reconcile", admin, h.Plans.Reconcile)

	secured.GET("/subjects/:id", authenticated, h.Catalog.Subject)
	secured.PUT("/subjects/:id", admin, h.Catalog.SaveSubject)
	secured.GET("/elective-pools/:id", authenticated, h.Catalog.Pool)
	secured.GET("/catalog/check", admin, h.Catalog.Check)

	placement := secured.Group("/placement-tests")
	placement.POST("", admin, h.Placement.Create)
	placement.GET("/:id", staff, h.Placement.Get)
	placement.POST("/:id/consolidate", admin, h.Placement.Consolidate)

	if h.Maintenance != nil {
		maintenance := secured.Group("/admin/maintenance")
		maintenance.GET("", admin, h.Maintenance.Tasks)
		maintenance.POST("/:task", admin, h.Maintenance.Run)
	}
}
