package handlers

import (
	"database/sql"

	"questboard/internal/config"
	"questboard/internal/models"
	"questboard/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// InviteCollaborator adds a user to the project. Owner only. Inviting the
// same user twice is a no-op thanks to the unique (project_id, user_id)
// constraint.
func InviteCollaborator(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	projectID := c.Params("id")

	project, err := fetchProject(projectID)
	if err == sql.ErrNoRows {
		return notFound(c, "Project not found")
	}
	if err != nil {
		return serverError(c, "Error fetching project", err)
	}
	if !ensureOwner(project, userID) {
		return forbidden(c)
	}

	type InviteRequest struct {
		UserID int `json:"user_id" validate:"required"`
	}
	var req InviteRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in invite", zap.Error(err))
		return badRequest(c, "Bad request")
	}
	if err := config.Validate.Struct(req); err != nil {
		return validationFailed(c, fieldErrors(err))
	}
	if req.UserID == project.UserID {
		return validationFailed(c, map[string]string{"user_id": "owner is already on the project"})
	}

	exists, err := userExists(req.UserID)
	if err != nil {
		return serverError(c, "Error fetching user", err)
	}
	if !exists {
		return notFound(c, "User not found")
	}

	_, err = config.DB.Exec(
		"INSERT INTO project_user (project_id, user_id) VALUES ($1, $2) ON CONFLICT (project_id, user_id) DO NOTHING",
		projectID, req.UserID)
	if err != nil {
		return serverError(c, "Error adding collaborator", err)
	}

	invalidateProjectCache(projectID)

	logger.AuditLogger.Info("Collaborator invited",
		zap.String("project_id", projectID),
		zap.Int("user_id", req.UserID),
	)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Collaborator added successfully",
		"success": true,
		"status":  fiber.StatusCreated,
	})
}

// ListCollaborators returns the project's collaborators. Always an array,
// possibly empty.
func ListCollaborators(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	projectID := c.Params("id")

	project, err := fetchProject(projectID)
	if err == sql.ErrNoRows {
		return notFound(c, "Project not found")
	}
	if err != nil {
		return serverError(c, "Error fetching project", err)
	}
	collaborator, err := isCollaborator(projectID, userID)
	if err != nil {
		return serverError(c, "Error checking project access", err)
	}
	if project.UserID != userID && !collaborator && !project.IsPublic {
		return forbidden(c)
	}

	rows, err := config.DB.Query(
		`SELECT u.id, u.name, u.email, u.avatar_url, u.character_id, u.exp, u.created_at, u.updated_at
		 FROM users u
		 JOIN project_user pu ON pu.user_id = u.id
		 WHERE pu.project_id = $1 ORDER BY u.id`, projectID)
	if err != nil {
		return serverError(c, "Error fetching collaborators", err)
	}
	defer rows.Close()

	collaborators := []models.User{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.AvatarURL, &u.CharacterID, &u.Exp, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return serverError(c, "Error scanning collaborators", err)
		}
		collaborators = append(collaborators, u)
	}
	if err := rows.Err(); err != nil {
		return serverError(c, "Error iterating over collaborators", err)
	}

	return c.JSON(fiber.Map{
		"message": "Collaborators fetched successfully",
		"success": true,
		"status":  fiber.StatusOK,
		"data":    collaborators,
	})
}

// RemoveCollaborator drops the pairing. Removing a user who is not on the
// project is a no-op. Owner only.
func RemoveCollaborator(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	projectID := c.Params("id")

	project, err := fetchProject(projectID)
	if err == sql.ErrNoRows {
		return notFound(c, "Project not found")
	}
	if err != nil {
		return serverError(c, "Error fetching project", err)
	}
	if !ensureOwner(project, userID) {
		return forbidden(c)
	}

	collaboratorID, err := c.ParamsInt("userId")
	if err != nil {
		return badRequest(c, "Invalid user ID")
	}

	_, err = config.DB.Exec(
		"DELETE FROM project_user WHERE project_id = $1 AND user_id = $2", projectID, collaboratorID)
	if err != nil {
		return serverError(c, "Error removing collaborator", err)
	}

	invalidateProjectCache(projectID)

	logger.AuditLogger.Info("Collaborator removed",
		zap.String("project_id", projectID),
		zap.Int("user_id", collaboratorID),
	)
	return c.JSON(fiber.Map{
		"message": "Collaborator removed successfully",
		"success": true,
		"status":  fiber.StatusOK,
	})
}
