package handlers

import (
	"database/sql"
	"os"
	"time"

	"questboard/internal/config"
	"questboard/internal/models"
	"questboard/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func fetchTask(taskID int) (models.Task, error) {
	var t models.Task
	err := config.DB.QueryRow(
		`SELECT id, project_id, user_id, assignee_id, title, description, exp, due_date, status, created_at, updated_at
		 FROM tasks WHERE id = $1`, taskID,
	).Scan(&t.ID, &t.ProjectID, &t.UserID, &t.AssigneeID, &t.Title, &t.Description,
		&t.Exp, &t.DueDate, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// canTouchTask allows the project owner, the task creator and the assignee to
// modify a task.
func canTouchTask(task models.Task, project models.Project, userID int) bool {
	if userID == project.UserID || userID == task.UserID || userID == task.AssigneeID {
		return true
	}
	logger.SecurityLogger.Warn("Task access denied",
		zap.Int("task_id", task.ID),
		zap.Int("user_id", userID),
	)
	return false
}

// applyCompletion runs the boss-battle side effects of finishing a task in
// one transaction with the status write: the assignee banks the task exp and
// the project loses health scaled by its difficulty.
func applyCompletion(tx *sql.Tx, task models.Task, difficulty models.Difficulty) error {
	if _, err := tx.Exec("UPDATE users SET exp = exp + $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2",
		task.Exp, task.AssigneeID); err != nil {
		return err
	}
	dmg := difficulty.Damage(task.Exp)
	_, err := tx.Exec(
		"UPDATE projects SET health = GREATEST(health - $1, 0), updated_at = CURRENT_TIMESTAMP WHERE id = $2",
		dmg, task.ProjectID)
	return err
}

// revertCompletion undoes applyCompletion when a completed task is reopened,
// so completing it again cannot double-award exp.
func revertCompletion(tx *sql.Tx, task models.Task, difficulty models.Difficulty) error {
	if _, err := tx.Exec("UPDATE users SET exp = GREATEST(exp - $1, 0), updated_at = CURRENT_TIMESTAMP WHERE id = $2",
		task.Exp, task.AssigneeID); err != nil {
		return err
	}
	dmg := difficulty.Damage(task.Exp)
	_, err := tx.Exec(
		"UPDATE projects SET health = health + $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2",
		dmg, task.ProjectID)
	return err
}

// CreateTask deploys a new mission under a project. The assignee must exist,
// the due date may not be in the past and exp is non-negative. Status
// defaults to Draft.
func CreateTask(c *fiber.Ctx) error {
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

	type TaskRequest struct {
		AssigneeID  int    `json:"assignee_id" validate:"required"`
		Title       string `json:"title" validate:"required"`
		Description string `json:"description" validate:"required"`
		Exp         int    `json:"exp" validate:"min=0"`
		DueDate     string `json:"due_date" validate:"required"`
		Status      string `json:"status"`
	}

	var req TaskRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in create task", zap.Error(err))
		return badRequest(c, "Bad request")
	}
	if err := config.Validate.Struct(req); err != nil {
		return validationFailed(c, fieldErrors(err))
	}

	dueDate, msg := parseDueDate(req.DueDate, time.Now())
	if msg != "" || !dueDate.Valid {
		if msg == "" {
			msg = "is required"
		}
		return validationFailed(c, map[string]string{"due_date": msg})
	}

	exists, err := userExists(req.AssigneeID)
	if err != nil {
		return serverError(c, "Error fetching assignee", err)
	}
	if !exists {
		return validationFailed(c, map[string]string{"assignee_id": "assignee does not exist"})
	}

	status := models.TaskStatus(req.Status)
	if req.Status == "" {
		status = models.StatusDraft
	}
	if !status.Valid() {
		return validationFailed(c, map[string]string{"status": "must be one of Draft, On Progress, Completed"})
	}

	var task models.Task
	err = config.DB.QueryRow(
		`INSERT INTO tasks (project_id, user_id, assignee_id, title, description, exp, due_date, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, project_id, user_id, assignee_id, title, description, exp, due_date, status, created_at, updated_at`,
		projectID, userID, req.AssigneeID, req.Title, req.Description, req.Exp, dueDate.Time, string(status),
	).Scan(&task.ID, &task.ProjectID, &task.UserID, &task.AssigneeID, &task.Title, &task.Description,
		&task.Exp, &task.DueDate, &task.Status, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return serverError(c, "Error creating task", err)
	}

	invalidateProjectCache(projectID)

	logger.AuditLogger.Info("Task created",
		zap.Int("task_id", task.ID),
		zap.String("project_id", projectID),
		zap.Int("user_id", userID),
	)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "New mission has successfully deployed!",
		"success": true,
		"status":  fiber.StatusCreated,
		"data":    taskView{Task: task, StatusDisplay: task.Status.Display()},
	})
}

// UpdateTask edits the task fields. Status changes follow the task state
// machine; moving into Completed runs the completion side effects in the
// same transaction.
func UpdateTask(c *fiber.Ctx) error {
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
	// A completed mission already paid out its exp and boss damage. Editing
	// it in place (notably reassigning it) would detach the award from the
	// user who earned it, so the row is read-only until reopened.
	if task.Status == models.StatusCompleted {
		return validationFailed(c, map[string]string{"status": "completed missions are read-only until reopened"})
	}

	type UpdateTaskRequest struct {
		AssigneeID  int    `json:"assignee_id" validate:"required"`
		Title       string `json:"title" validate:"required"`
		Description string `json:"description" validate:"required"`
		DueDate     string `json:"due_date" validate:"required"`
		Status      string `json:"status" validate:"required"`
	}

	var req UpdateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in update task", zap.Error(err))
		return badRequest(c, "Bad request")
	}
	if err := config.Validate.Struct(req); err != nil {
		return validationFailed(c, fieldErrors(err))
	}

	dueDate, msg := parseDueDate(req.DueDate, time.Now())
	if msg != "" || !dueDate.Valid {
		if msg == "" {
			msg = "is required"
		}
		return validationFailed(c, map[string]string{"due_date": msg})
	}

	exists, err := userExists(req.AssigneeID)
	if err != nil {
		return serverError(c, "Error fetching assignee", err)
	}
	if !exists {
		return validationFailed(c, map[string]string{"assignee_id": "assignee does not exist"})
	}

	newStatus := models.TaskStatus(req.Status)
	if !newStatus.Valid() {
		return validationFailed(c, map[string]string{"status": "must be one of Draft, On Progress, Completed"})
	}
	if !task.Status.CanTransition(newStatus) {
		return validationFailed(c, map[string]string{
			"status": "cannot move from " + task.Status.Display() + " to " + newStatus.Display(),
		})
	}

	tx, err := config.DB.Begin()
	if err != nil {
		return serverError(c, "Error starting transaction", err)
	}
	_, err = tx.Exec(
		`UPDATE tasks SET assignee_id = $1, title = $2, description = $3, due_date = $4, status = $5, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $6`,
		req.AssigneeID, req.Title, req.Description, dueDate.Time, string(newStatus), taskID)
	if err != nil {
		tx.Rollback()
		return serverError(c, "Error updating task", err)
	}
	if newStatus == models.StatusCompleted && task.Status != models.StatusCompleted {
		difficulty, err := fetchDifficulty(project.DifficultyID)
		if err != nil {
			tx.Rollback()
			return serverError(c, "Error fetching difficulty", err)
		}
		// Side effects use the updated assignee.
		completed := task
		completed.AssigneeID = req.AssigneeID
		if err := applyCompletion(tx, completed, difficulty); err != nil {
			tx.Rollback()
			return serverError(c, "Error applying task completion", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return serverError(c, "Error committing task update", err)
	}

	updated, err := fetchTask(taskID)
	if err != nil {
		return serverError(c, "Error fetching updated task", err)
	}

	invalidateProjectCache(task.ProjectID)

	logger.AuditLogger.Info("Task updated", zap.Int("task_id", taskID), zap.Int("user_id", userID))
	return c.JSON(fiber.Map{
		"message": "Mission updated successfully!",
		"success": true,
		"status":  fiber.StatusOK,
		"data":    taskView{Task: updated, StatusDisplay: updated.Status.Display()},
	})
}

// ChangeTaskStatus is the status-only shortcut the board UI uses. Same
// transition rules and completion side effects as UpdateTask.
func ChangeTaskStatus(c *fiber.Ctx) error {
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

	type StatusRequest struct {
		Status string `json:"status" validate:"required"`
	}
	var req StatusRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in change status", zap.Error(err))
		return badRequest(c, "Bad request")
	}
	if err := config.Validate.Struct(req); err != nil {
		return validationFailed(c, fieldErrors(err))
	}

	newStatus := models.TaskStatus(req.Status)
	if !newStatus.Valid() {
		return validationFailed(c, map[string]string{"status": "must be one of Draft, On Progress, Completed"})
	}
	if !task.Status.CanTransition(newStatus) {
		return validationFailed(c, map[string]string{
			"status": "cannot move from " + task.Status.Display() + " to " + newStatus.Display(),
		})
	}

	tx, err := config.DB.Begin()
	if err != nil {
		return serverError(c, "Error starting transaction", err)
	}
	_, err = tx.Exec("UPDATE tasks SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2",
		string(newStatus), taskID)
	if err != nil {
		tx.Rollback()
		return serverError(c, "Error updating status", err)
	}
	if newStatus == models.StatusCompleted && task.Status != models.StatusCompleted {
		difficulty, err := fetchDifficulty(project.DifficultyID)
		if err != nil {
			tx.Rollback()
			return serverError(c, "Error fetching difficulty", err)
		}
		if err := applyCompletion(tx, task, difficulty); err != nil {
			tx.Rollback()
			return serverError(c, "Error applying task completion", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return serverError(c, "Error committing status change", err)
	}

	invalidateProjectCache(task.ProjectID)

	logger.AuditLogger.Info("Task status changed",
		zap.Int("task_id", taskID),
		zap.String("from", string(task.Status)),
		zap.String("to", string(newStatus)),
	)
	return c.JSON(fiber.Map{
		"message": "Mission status updated!",
		"success": true,
		"status":  fiber.StatusOK,
		"data": fiber.Map{
			"status":         newStatus,
			"status_display": newStatus.Display(),
		},
	})
}

// ReopenTask is the only way out of Completed. It reverses the completion
// side effects so finishing the task again does not double-award.
func ReopenTask(c *fiber.Ctx) error {
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
	if task.Status != models.StatusCompleted {
		return validationFailed(c, map[string]string{"status": "only completed missions can be reopened"})
	}

	difficulty, err := fetchDifficulty(project.DifficultyID)
	if err != nil {
		return serverError(c, "Error fetching difficulty", err)
	}

	tx, err := config.DB.Begin()
	if err != nil {
		return serverError(c, "Error starting transaction", err)
	}
	_, err = tx.Exec("UPDATE tasks SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2",
		string(models.StatusOnProgress), taskID)
	if err != nil {
		tx.Rollback()
		return serverError(c, "Error reopening task", err)
	}
	if err := revertCompletion(tx, task, difficulty); err != nil {
		tx.Rollback()
		return serverError(c, "Error reverting task completion", err)
	}
	if err := tx.Commit(); err != nil {
		return serverError(c, "Error committing reopen", err)
	}

	invalidateProjectCache(task.ProjectID)

	logger.AuditLogger.Info("Task reopened", zap.Int("task_id", taskID), zap.Int("user_id", userID))
	return c.JSON(fiber.Map{
		"message": "Mission reopened",
		"success": true,
		"status":  fiber.StatusOK,
	})
}

// DeleteTask removes a task and its attachments. Project owner or creator
// only.
func DeleteTask(c *fiber.Ctx) error {
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
	if userID != project.UserID && userID != task.UserID {
		logger.SecurityLogger.Warn("Task delete denied", zap.Int("task_id", taskID), zap.Int("user_id", userID))
		return forbidden(c)
	}

	filePaths := []string{}
	rows, err := config.DB.Query("SELECT url FROM task_attachments WHERE task_id = $1", taskID)
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
	if _, err := tx.Exec("DELETE FROM task_attachments WHERE task_id = $1", taskID); err != nil {
		tx.Rollback()
		return serverError(c, "Error deleting task attachments", err)
	}
	if _, err := tx.Exec("DELETE FROM tasks WHERE id = $1", taskID); err != nil {
		tx.Rollback()
		return serverError(c, "Error deleting task", err)
	}
	if err := tx.Commit(); err != nil {
		return serverError(c, "Error committing task delete", err)
	}

	for _, path := range filePaths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.ErrorLogger.Error("Error removing attachment file", zap.String("path", path), zap.Error(err))
		}
	}

	invalidateProjectCache(task.ProjectID)

	logger.AuditLogger.Info("Task deleted", zap.Int("task_id", taskID), zap.Int("user_id", userID))
	return c.JSON(fiber.Map{
		"message": "Task deleted successfully",
		"success": true,
		"status":  fiber.StatusOK,
	})
}
