package v1

import (
	"questboard/internal/api/v1/handlers"
	"questboard/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	// Auth
	api.Get("/auth/redirect", handlers.AuthRedirect)
	api.Get("/auth/callback", handlers.AuthCallback)
	api.Get("/auth/logout", middleware.UseToken, handlers.Logout)

	// Shared project links resolve without a session
	api.Get("/shared/:id", handlers.GetSharedProject)

	// Characters & difficulties (reference data)
	characterRoutes := api.Group("/characters", middleware.UseToken)
	characterRoutes.Get("/", handlers.ListCharacters)
	characterRoutes.Get("/bosses", handlers.ListBosses)
	characterRoutes.Get("/:id", handlers.GetCharacter)
	api.Get("/difficulties", middleware.UseToken, handlers.ListDifficulties)

	// User profile
	userRoutes := api.Group("/users", middleware.UseToken)
	userRoutes.Get("/me", handlers.Me)
	userRoutes.Put("/profile", handlers.UpdateProfile)

	// Projects
	projectRoutes := api.Group("/projects", middleware.UseToken)
	projectRoutes.Post("/", handlers.CreateProject)
	projectRoutes.Get("/", handlers.ListProjects)
	projectRoutes.Get("/all", handlers.ListPublicProjects)
	projectRoutes.Get("/:id", handlers.GetProject)
	projectRoutes.Put("/:id", handlers.UpdateProject)
	projectRoutes.Delete("/:id", handlers.DeleteProject)
	projectRoutes.Post("/:id/mark_done", handlers.MarkProjectDone)
	projectRoutes.Get("/:id/share", handlers.ShareProject)

	// Project attachments
	projectRoutes.Post("/:id/attachments", handlers.AddProjectAttachment)
	api.Delete("/project-attachments/:id", middleware.UseToken, handlers.DeleteProjectAttachment)

	// Collaborators
	projectRoutes.Post("/:id/collaborators", handlers.InviteCollaborator)
	projectRoutes.Get("/:id/collaborators", handlers.ListCollaborators)
	projectRoutes.Delete("/:id/collaborators/:userId", handlers.RemoveCollaborator)

	// Tasks
	projectRoutes.Post("/:id/tasks", handlers.CreateTask)
	taskRoutes := api.Group("/tasks", middleware.UseToken)
	taskRoutes.Put("/:id", handlers.UpdateTask)
	taskRoutes.Delete("/:id", handlers.DeleteTask)
	taskRoutes.Post("/:id/status", handlers.ChangeTaskStatus)
	taskRoutes.Post("/:id/reopen", handlers.ReopenTask)

	// Task attachments
	taskRoutes.Post("/:id/attachments", handlers.AddTaskAttachment)
	api.Delete("/task-attachments/:id", middleware.UseToken, handlers.DeleteTaskAttachment)
}
