package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"questboard/internal/config"
	"questboard/internal/models"
	"questboard/pkg/crypto"
	"questboard/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// taskView decorates a task with the defensive status rendering.
type taskView struct {
	models.Task
	StatusDisplay string `json:"status_display"`
}

// projectDetail is the cached read model for a single project.
type projectDetail struct {
	Project       models.Project             `json:"project"`
	Attachments   []models.ProjectAttachment `json:"attachments"`
	Tasks         []taskView                 `json:"tasks"`
	Collaborators []models.User              `json:"collaborators"`
}

// CreateProject deploys a new boss. The salt is generated here and never
// changes; health starts at the difficulty's scaled base.
func CreateProject(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)

	type ProjectRequest struct {
		Title        string      `json:"title" validate:"required,max=150"`
		Description  string      `json:"description" validate:"required"`
		DueDate      string      `json:"due_date"`
		DifficultyID int         `json:"difficulty_id" validate:"required"`
		IsPublic     interface{} `json:"is_public"`
	}

	var req ProjectRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in create project", zap.Error(err))
		return badRequest(c, "Bad request")
	}
	if err := config.Validate.Struct(req); err != nil {
		return validationFailed(c, fieldErrors(err))
	}

	now := time.Now()
	dueDate, msg := parseDueDate(req.DueDate, now)
	if msg != "" {
		return validationFailed(c, map[string]string{"due_date": msg})
	}

	difficulty, err := fetchDifficulty(req.DifficultyID)
	if err == sql.ErrNoRows {
		return validationFailed(c, map[string]string{"difficulty_id": "difficulty does not exist"})
	}
	if err != nil {
		return serverError(c, "Error fetching difficulty", err)
	}

	// Visibility defaults to private when the field is absent.
	isPublic, ok := parseBoolish(req.IsPublic)
	if !ok {
		return validationFailed(c, map[string]string{"is_public": "must be a boolean"})
	}

	salt, err := crypto.RandomSalt()
	if err != nil {
		return serverError(c, "Error generating salt", err)
	}

	projectID := uuid.NewString()
	health := difficulty.InitialHealth()

	var project models.Project
	err = config.DB.QueryRow(
		`INSERT INTO projects (id, user_id, difficulty_id, title, description, due_date, salt, is_public, is_finished, health)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, $9)
		 RETURNING id, user_id, difficulty_id, title, description, due_date, salt, is_public, is_finished, health, created_at, updated_at`,
		projectID, userID, req.DifficultyID, req.Title, req.Description, dueDate, salt, isPublic, health,
	).Scan(&project.ID, &project.UserID, &project.DifficultyID, &project.Title, &project.Description,
		&project.DueDate, &project.Salt, &project.IsPublic, &project.IsFinished, &project.Health,
		&project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		return serverError(c, "Error creating project", err)
	}
	project.Salt = ""

	logger.AuditLogger.Info("Project created",
		zap.String("project_id", project.ID),
		zap.Int("user_id", userID),
		zap.Int("difficulty_id", req.DifficultyID),
	)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "New boss has deployed!",
		"success": true,
		"status":  fiber.StatusCreated,
		"data":    project,
	})
}

func scanProjects(rows *sql.Rows) ([]models.Project, error) {
	defer rows.Close()
	projects := []models.Project{}
	for rows.Next() {
		var p models.Project
		err := rows.Scan(&p.ID, &p.UserID, &p.DifficultyID, &p.Title, &p.Description, &p.DueDate,
			&p.IsPublic, &p.IsFinished, &p.Health, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// ListProjects returns the caller's projects: owned plus shared, de-duplicated
// by id through the UNION.
func ListProjects(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)

	rows, err := config.DB.Query(
		`SELECT id, user_id, difficulty_id, title, description, due_date, is_public, is_finished, health, created_at, updated_at
		 FROM projects WHERE user_id = $1
		 UNION
		 SELECT p.id, p.user_id, p.difficulty_id, p.title, p.description, p.due_date, p.is_public, p.is_finished, p.health, p.created_at, p.updated_at
		 FROM projects p
		 JOIN project_user pu ON pu.project_id = p.id
		 WHERE pu.user_id = $1
		 ORDER BY created_at DESC`, userID)
	if err != nil {
		return serverError(c, "Error fetching projects", err)
	}
	projects, err := scanProjects(rows)
	if err != nil {
		return serverError(c, "Error scanning projects", err)
	}

	return c.JSON(fiber.Map{
		"message": "Projects fetched successfully",
		"success": true,
		"status":  fiber.StatusOK,
		"data":    projects,
	})
}

// ListPublicProjects returns every project shared with the world.
func ListPublicProjects(c *fiber.Ctx) error {
	rows, err := config.DB.Query(
		`SELECT id, user_id, difficulty_id, title, description, due_date, is_public, is_finished, health, created_at, updated_at
		 FROM projects WHERE is_public = TRUE ORDER BY created_at DESC`)
	if err != nil {
		return serverError(c, "Error fetching public projects", err)
	}
	projects, err := scanProjects(rows)
	if err != nil {
		return serverError(c, "Error scanning public projects", err)
	}

	return c.JSON(fiber.Map{
		"message": "Public projects fetched successfully",
		"success": true,
		"status":  fiber.StatusOK,
		"data":    projects,
	})
}

func loadProjectDetail(projectID string) (projectDetail, error) {
	project, err := fetchProject(projectID)
	if err != nil {
		return projectDetail{}, err
	}
	// The salt stays server-side; share links carry a signature instead.
	project.Salt = ""

	detail := projectDetail{
		Project:       project,
		Attachments:   []models.ProjectAttachment{},
		Tasks:         []taskView{},
		Collaborators: []models.User{},
	}

	rows, err := config.DB.Query(
		"SELECT id, project_id, url, created_at, updated_at FROM project_attachments WHERE project_id = $1 ORDER BY id", projectID)
	if err != nil {
		return projectDetail{}, err
	}
	for rows.Next() {
		var a models.ProjectAttachment
		if err := rows.Scan(&a.ID, &a.ProjectID, &a.URL, &a.CreatedAt, &a.UpdatedAt); err != nil {
			rows.Close()
			return projectDetail{}, err
		}
		detail.Attachments = append(detail.Attachments, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return projectDetail{}, err
	}

	rows, err = config.DB.Query(
		`SELECT id, project_id, user_id, assignee_id, title, description, exp, due_date, status, created_at, updated_at
		 FROM tasks WHERE project_id = $1 ORDER BY id`, projectID)
	if err != nil {
		return projectDetail{}, err
	}
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.UserID, &t.AssigneeID, &t.Title, &t.Description,
			&t.Exp, &t.DueDate, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			rows.Close()
			return projectDetail{}, err
		}
		detail.Tasks = append(detail.Tasks, taskView{Task: t, StatusDisplay: t.Status.Display()})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return projectDetail{}, err
	}

	rows, err = config.DB.Query(
		`SELECT u.id, u.name, u.email, u.avatar_url, u.character_id, u.exp, u.created_at, u.updated_at
		 FROM users u
		 JOIN project_user pu ON pu.user_id = u.id
		 WHERE pu.project_id = $1 ORDER BY u.id`, projectID)
	if err != nil {
		return projectDetail{}, err
	}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.AvatarURL, &u.CharacterID, &u.Exp, &u.CreatedAt, &u.UpdatedAt); err != nil {
			rows.Close()
			return projectDetail{}, err
		}
		detail.Collaborators = append(detail.Collaborators, u)
	}
	rows.Close()
	return detail, rows.Err()
}

func isCollaborator(projectID string, userID int) (bool, error) {
	var one int
	err := config.DB.QueryRow(
		"SELECT 1 FROM project_user WHERE project_id = $1 AND user_id = $2", projectID, userID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetProject returns the full project detail. Readable by the owner, any
// collaborator, or anyone when the project is public. Served from Redis when
// cached.
func GetProject(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	projectID := c.Params("id")

	canRead := func(detail projectDetail) (bool, error) {
		if detail.Project.IsPublic || detail.Project.UserID == userID {
			return true, nil
		}
		return isCollaborator(projectID, userID)
	}

	cacheKey := fmt.Sprintf("project:%s", projectID)
	if cached, err := config.RedisClient.Get(config.Ctx, cacheKey).Result(); err == nil {
		var detail projectDetail
		if err = json.Unmarshal([]byte(cached), &detail); err == nil {
			ok, err := canRead(detail)
			if err != nil {
				return serverError(c, "Error checking project access", err)
			}
			if !ok {
				return forbidden(c)
			}
			return c.JSON(fiber.Map{
				"message": "Project found (from cache)",
				"success": true,
				"status":  fiber.StatusOK,
				"data":    detail,
			})
		}
	}

	detail, err := loadProjectDetail(projectID)
	if err == sql.ErrNoRows {
		return notFound(c, "Project not found")
	}
	if err != nil {
		return serverError(c, "Error fetching project", err)
	}

	ok, err := canRead(detail)
	if err != nil {
		return serverError(c, "Error checking project access", err)
	}
	if !ok {
		return forbidden(c)
	}

	if detailJSON, err := json.Marshal(detail); err == nil {
		config.RedisClient.SetEX(config.Ctx, cacheKey, detailJSON, time.Hour)
	}

	return c.JSON(fiber.Map{
		"message": "Project found",
		"success": true,
		"status":  fiber.StatusOK,
		"data":    detail,
	})
}

// UpdateProject edits title, description, due date and visibility. The
// difficulty is fixed at creation. Owner only.
func UpdateProject(c *fiber.Ctx) error {
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

	type UpdateProjectRequest struct {
		Title       string      `json:"title" validate:"required,max=150"`
		Description string      `json:"description" validate:"required"`
		DueDate     string      `json:"due_date"`
		IsPublic    interface{} `json:"is_public"`
	}

	var req UpdateProjectRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in update project", zap.Error(err))
		return badRequest(c, "Bad request")
	}
	if err := config.Validate.Struct(req); err != nil {
		return validationFailed(c, fieldErrors(err))
	}

	dueDate, msg := parseDueDate(req.DueDate, time.Now())
	if msg != "" {
		return validationFailed(c, map[string]string{"due_date": msg})
	}
	isPublic, ok := parseBoolish(req.IsPublic)
	if !ok {
		return validationFailed(c, map[string]string{"is_public": "must be a boolean"})
	}

	var updated models.Project
	err = config.DB.QueryRow(
		`UPDATE projects
		 SET title = $1, description = $2, due_date = $3, is_public = $4, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $5
		 RETURNING id, user_id, difficulty_id, title, description, due_date, is_public, is_finished, health, created_at, updated_at`,
		req.Title, req.Description, dueDate, isPublic, projectID,
	).Scan(&updated.ID, &updated.UserID, &updated.DifficultyID, &updated.Title, &updated.Description,
		&updated.DueDate, &updated.IsPublic, &updated.IsFinished, &updated.Health,
		&updated.CreatedAt, &updated.UpdatedAt)
	if err != nil {
		return serverError(c, "Error updating project", err)
	}

	invalidateProjectCache(projectID)

	logger.AuditLogger.Info("Project updated", zap.String("project_id", projectID), zap.Int("user_id", userID))
	return c.JSON(fiber.Map{
		"message": "Project updated successfully",
		"success": true,
		"status":  fiber.StatusOK,
		"data":    updated,
	})
}

// MarkProjectDone finishes the boss fight. Idempotent; there is no way back
// to unfinished. Owner only.
func MarkProjectDone(c *fiber.Ctx) error {
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

	_, err = config.DB.Exec(
		"UPDATE projects SET is_finished = TRUE, updated_at = CURRENT_TIMESTAMP WHERE id = $1", projectID)
	if err != nil {
		return serverError(c, "Error finishing project", err)
	}

	invalidateProjectCache(projectID)

	logger.AuditLogger.Info("Project marked as done", zap.String("project_id", projectID), zap.Int("user_id", userID))
	return c.JSON(fiber.Map{
		"message": "Boss defeated!",
		"success": true,
		"status":  fiber.StatusOK,
	})
}

// DeleteProject removes the project and everything hanging off it in one
// transaction: tasks, task attachments, project attachments and
// collaborations. Stored files are removed after commit; a missing file does
// not fail the delete. Owner only.
func DeleteProject(c *fiber.Ctx) error {
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

	// Collect file paths before the rows disappear.
	filePaths := []string{}
	rows, err := config.DB.Query(
		`SELECT url FROM project_attachments WHERE project_id = $1
		 UNION ALL
		 SELECT ta.url FROM task_attachments ta
		 JOIN tasks t ON t.id = ta.task_id
		 WHERE t.project_id = $1`, projectID)
	if err != nil {
		return serverError(c, "Error fetching attachment files", err)
	}
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			rows.Close()
			return serverError(c, "Error scanning attachment files", err)
		}
		filePaths = append(filePaths, path)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return serverError(c, "Error iterating attachment files", err)
	}

	tx, err := config.DB.Begin()
	if err != nil {
		return serverError(c, "Error starting transaction", err)
	}
	// Cascade is declared in the schema, but the destroy still deletes
	// explicitly so the property holds regardless of the storage layer.
	statements := []string{
		"DELETE FROM task_attachments WHERE task_id IN (SELECT id FROM tasks WHERE project_id = $1)",
		"DELETE FROM tasks WHERE project_id = $1",
		"DELETE FROM project_attachments WHERE project_id = $1",
		"DELETE FROM project_user WHERE project_id = $1",
		"DELETE FROM projects WHERE id = $1",
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt, projectID); err != nil {
			tx.Rollback()
			return serverError(c, "Error deleting project", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return serverError(c, "Error committing project delete", err)
	}

	for _, path := range filePaths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.ErrorLogger.Error("Error removing attachment file", zap.String("path", path), zap.Error(err))
		}
	}

	invalidateProjectCache(projectID)

	logger.AuditLogger.Info("Project deleted", zap.String("project_id", projectID), zap.Int("user_id", userID))
	return c.JSON(fiber.Map{
		"message": "Project deleted successfully",
		"success": true,
		"status":  fiber.StatusOK,
	})
}

// ShareProject returns a link for the project signed with its salt. Owner
// only; the link resolves through GetSharedProject without a session.
func ShareProject(c *fiber.Ctx) error {
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

	sig := crypto.SignShare(project.ID, project.Salt)
	return c.JSON(fiber.Map{
		"message": "Share link generated",
		"success": true,
		"status":  fiber.StatusOK,
		"data": fiber.Map{
			"url": fmt.Sprintf("/api/v1/shared/%s?sig=%s", project.ID, sig),
		},
	})
}

// GetSharedProject resolves a signed share link. No session required; the
// project must be public and the signature must verify against its salt.
func GetSharedProject(c *fiber.Ctx) error {
	projectID := c.Params("id")
	sig := c.Query("sig")

	project, err := fetchProject(projectID)
	if err == sql.ErrNoRows {
		return notFound(c, "Project not found")
	}
	if err != nil {
		return serverError(c, "Error fetching project", err)
	}
	if !project.IsPublic || !crypto.VerifyShare(project.ID, project.Salt, sig) {
		logger.SecurityLogger.Warn("Invalid share link", zap.String("project_id", projectID))
		return forbidden(c)
	}

	detail, err := loadProjectDetail(projectID)
	if err != nil {
		return serverError(c, "Error fetching project", err)
	}
	return c.JSON(fiber.Map{
		"message": "Project found",
		"success": true,
		"status":  fiber.StatusOK,
		"data":    detail,
	})
}
