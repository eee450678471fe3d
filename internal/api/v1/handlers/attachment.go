package handlers

import (
	"database/sql"
	"fmt"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"questboard/internal/config"
	"questboard/internal/models"
	"questboard/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// maxAttachmentSize is 15024 KB, the upload ceiling for attachments.
const maxAttachmentSize = 15024 * 1024

var allowedAttachmentExts = map[string]bool{
	".pdf":  true,
	".xls":  true,
	".xlsx": true,
	".csv":  true,
}

// validateAttachment rejects unsupported types and oversize files before
// anything touches disk.
func validateAttachment(file *multipart.FileHeader) map[string]string {
	if file.Size > maxAttachmentSize {
		return map[string]string{"file": "file size exceeds the limit of 15024 KB"}
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedAttachmentExts[ext] {
		return map[string]string{"file": "file type must be one of pdf, xls, xlsx, csv"}
	}
	return nil
}

// storeAttachment writes the upload under the parent-type subdirectory with a
// timestamp-derived unique name and returns the stored path.
func storeAttachment(c *fiber.Ctx, file *multipart.FileHeader, parentDir string) (string, error) {
	dir := path.Join(config.UploadDir, parentDir)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", err
	}
	newFilename := fmt.Sprintf("%d%s", time.Now().UnixNano(), strings.ToLower(filepath.Ext(file.Filename)))
	filePath := path.Join(dir, newFilename)
	if err := c.SaveFile(file, filePath); err != nil {
		return "", err
	}
	return filePath, nil
}

// AddProjectAttachment uploads a file onto a project. Owner or collaborator.
// The row is only written after the file save succeeds.
func AddProjectAttachment(c *fiber.Ctx) error {
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
	if project.UserID != userID && !collaborator {
		return forbidden(c)
	}

	file, err := c.FormFile("file")
	if err != nil {
		logger.ErrorLogger.Error("Error reading upload", zap.Error(err))
		return badRequest(c, "Error uploading file")
	}
	if errs := validateAttachment(file); errs != nil {
		return validationFailed(c, errs)
	}

	filePath, err := storeAttachment(c, file, "projects")
	if err != nil {
		return serverError(c, "Error saving file", err)
	}

	var attachment models.ProjectAttachment
	err = config.DB.QueryRow(
		`INSERT INTO project_attachments (project_id, url) VALUES ($1, $2)
		 RETURNING id, project_id, url, created_at, updated_at`,
		projectID, filePath,
	).Scan(&attachment.ID, &attachment.ProjectID, &attachment.URL, &attachment.CreatedAt, &attachment.UpdatedAt)
	if err != nil {
		// Don't leave the stored file orphaned if the row write failed.
		_ = os.Remove(filePath)
		return serverError(c, "Error creating attachment", err)
	}

	invalidateProjectCache(projectID)

	logger.AuditLogger.Info("Project attachment added",
		zap.String("project_id", projectID),
		zap.Int("attachment_id", attachment.ID),
	)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Attachment added successfully!",
		"success": true,
		"status":  fiber.StatusCreated,
		"data":    attachment,
	})
}

// DeleteProjectAttachment removes the row, then the file. A missing file or
// an already-deleted row still answers 200.
func DeleteProjectAttachment(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)

	attachmentID, err := c.ParamsInt("id")
	if err != nil {
		return badRequest(c, "Invalid attachment ID")
	}

	var attachment models.ProjectAttachment
	err = config.DB.QueryRow(
		"SELECT id, project_id, url, created_at, updated_at FROM project_attachments WHERE id = $1",
		attachmentID,
	).Scan(&attachment.ID, &attachment.ProjectID, &attachment.URL, &attachment.CreatedAt, &attachment.UpdatedAt)
	if err == sql.ErrNoRows {
		// Already gone; delete is idempotent.
		return c.JSON(fiber.Map{
			"message": "Attachment deleted successfully",
			"success": true,
			"status":  fiber.StatusOK,
		})
	}
	if err != nil {
		return serverError(c, "Error fetching attachment", err)
	}

	project, err := fetchProject(attachment.ProjectID)
	if err != nil {
		return serverError(c, "Error fetching project", err)
	}
	collaborator, err := isCollaborator(project.ID, userID)
	if err != nil {
		return serverError(c, "Error checking project access", err)
	}
	if project.UserID != userID && !collaborator {
		return forbidden(c)
	}

	if _, err := config.DB.Exec("DELETE FROM project_attachments WHERE id = $1", attachmentID); err != nil {
		return serverError(c, "Error deleting attachment", err)
	}
	if err := os.Remove(attachment.URL); err != nil && !os.IsNotExist(err) {
		logger.ErrorLogger.Error("Error removing attachment file", zap.String("path", attachment.URL), zap.Error(err))
	}

	invalidateProjectCache(attachment.ProjectID)

	logger.AuditLogger.Info("Project attachment deleted", zap.Int("attachment_id", attachmentID))
	return c.JSON(fiber.Map{
		"message": "Attachment deleted successfully",
		"success": true,
		"status":  fiber.StatusOK,
	})
}

// AddTaskAttachment mirrors AddProjectAttachment for tasks.
func AddTaskAttachment(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)

	taskID, err := c.ParamsInt("id")
	if err != nil {
		return badRequest(c, "Invalid task ID")
	}

	task, err := fetchTask(taskID)
	if err == sql.ErrNoRows {
		return notFound(c, "Task not found")
	}
	if err != nil {
		return serverError(c, "Error fetching task", err)
	}
	project, err := fetchProject(task.ProjectID)
	if err != nil {
		return serverError(c, "Error fetching project", err)
	}
	if !canTouchTask(task, project, userID) {
		return forbidden(c)
	}

	file, err := c.FormFile("file")
	if err != nil {
		logger.ErrorLogger.Error("Error reading upload", zap.Error(err))
		return badRequest(c, "Error uploading file")
	}
	if errs := validateAttachment(file); errs != nil {
		return validationFailed(c, errs)
	}

	filePath, err := storeAttachment(c, file, "tasks")
	if err != nil {
		return serverError(c, "Error saving file", err)
	}

	var attachment models.TaskAttachment
	err = config.DB.QueryRow(
		`INSERT INTO task_attachments (task_id, url) VALUES ($1, $2)
		 RETURNING id, task_id, url, created_at, updated_at`,
		taskID, filePath,
	).Scan(&attachment.ID, &attachment.TaskID, &attachment.URL, &attachment.CreatedAt, &attachment.UpdatedAt)
	if err != nil {
		_ = os.Remove(filePath)
		return serverError(c, "Error creating attachment", err)
	}

	invalidateProjectCache(task.ProjectID)

	logger.AuditLogger.Info("Task attachment added",
		zap.Int("task_id", taskID),
		zap.Int("attachment_id", attachment.ID),
	)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Attachment added successfully!",
		"success": true,
		"status":  fiber.StatusCreated,
		"data":    attachment,
	})
}

// DeleteTaskAttachment mirrors DeleteProjectAttachment.
func DeleteTaskAttachment(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)

	attachmentID, err := c.ParamsInt("id")
	if err != nil {
		return badRequest(c, "Invalid attachment ID")
	}

	var attachment models.TaskAttachment
	err = config.DB.QueryRow(
		"SELECT id, task_id, url, created_at, updated_at FROM task_attachments WHERE id = $1",
		attachmentID,
	).Scan(&attachment.ID, &attachment.TaskID, &attachment.URL, &attachment.CreatedAt, &attachment.UpdatedAt)
	if err == sql.ErrNoRows {
		return c.JSON(fiber.Map{
			"message": "Attachment deleted successfully",
			"success": true,
			"status":  fiber.StatusOK,
		})
	}
	if err != nil {
		return serverError(c, "Error fetching attachment", err)
	}

	task, err := fetchTask(attachment.TaskID)
	if err != nil {
		return serverError(c, "Error fetching task", err)
	}
	project, err := fetchProject(task.ProjectID)
	if err != nil {
		return serverError(c, "Error fetching project", err)
	}
	if !canTouchTask(task, project, userID) {
		return forbidden(c)
	}

	if _, err := config.DB.Exec("DELETE FROM task_attachments WHERE id = $1", attachmentID); err != nil {
		return serverError(c, "Error deleting attachment", err)
	}
	if err := os.Remove(attachment.URL); err != nil && !os.IsNotExist(err) {
		logger.ErrorLogger.Error("Error removing attachment file", zap.String("path", attachment.URL), zap.Error(err))
	}

	invalidateProjectCache(task.ProjectID)

	logger.AuditLogger.Info("Task attachment deleted", zap.Int("attachment_id", attachmentID))
	return c.JSON(fiber.Map{
		"message": "Attachment deleted successfully",
		"success": true,
		"status":  fiber.StatusOK,
	})
}
