package handlers

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"questboard/internal/config"
	"questboard/internal/models"
	"questboard/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// dateLayout is the wire format for due dates, e.g. "2006-01-02 15:04:05".
const dateLayout = "2006-01-02 15:04:05"

// validationFailed renders a 422 with a field -> message map. Validation
// failures are a caller problem, so they go to the audit log, not the error
// log.
func validationFailed(c *fiber.Ctx, errs map[string]string) error {
	logger.AuditLogger.Warn("Validation error", zap.Any("errors", errs))
	return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
		"message": "Validation error",
		"errors":  errs,
		"success": false,
		"status":  fiber.StatusUnprocessableEntity,
	})
}

// fieldErrors flattens validator.ValidationErrors into a field -> message map.
func fieldErrors(err error) map[string]string {
	out := map[string]string{}
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			// Field() already carries the json name via RegisterTagNameFunc.
			out[fe.Field()] = fmt.Sprintf("failed on the '%s' rule", fe.Tag())
		}
		return out
	}
	out["body"] = err.Error()
	return out
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": msg,
		"success": false,
		"status":  fiber.StatusBadRequest,
	})
}

func notFound(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"message": msg,
		"success": false,
		"status":  fiber.StatusNotFound,
	})
}

func forbidden(c *fiber.Ctx) error {
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
		"message": "Forbidden",
		"success": false,
		"status":  fiber.StatusForbidden,
	})
}

func serverError(c *fiber.Ctx, msg string, err error) error {
	logger.ErrorLogger.Error(msg, zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": msg,
		"success": false,
		"status":  fiber.StatusInternalServerError,
	})
}

// parseDueDate accepts "<empty>" as no due date and rejects dates in the
// past. now is passed in so validation is stable within one request.
func parseDueDate(raw string, now time.Time) (sql.NullTime, string) {
	if raw == "" {
		return sql.NullTime{}, ""
	}
	t, err := time.ParseInLocation(dateLayout, raw, time.Local)
	if err != nil {
		return sql.NullTime{}, "must match format " + dateLayout
	}
	if t.Before(now) {
		return sql.NullTime{}, "must not be in the past"
	}
	return sql.NullTime{Time: t, Valid: true}, ""
}

// parseBoolish coerces a wire boolean. JSON true/false, the strings "true"
// and "false" (and the other strconv.ParseBool forms) and 0/1 are accepted;
// an absent value defaults to false. The second return is false when the
// value cannot be coerced.
func parseBoolish(v interface{}) (bool, bool) {
	switch t := v.(type) {
	case nil:
		return false, true
	case bool:
		return t, true
	case string:
		b, err := strconv.ParseBool(t)
		return b, err == nil
	case float64:
		return t == 1, t == 0 || t == 1
	default:
		return false, false
	}
}

// fetchProject loads a project row by id. Returns sql.ErrNoRows when absent.
func fetchProject(projectID string) (models.Project, error) {
	var p models.Project
	err := config.DB.QueryRow(
		`SELECT id, user_id, difficulty_id, title, description, due_date, salt,
		        is_public, is_finished, health, created_at, updated_at
		 FROM projects WHERE id = $1`, projectID,
	).Scan(&p.ID, &p.UserID, &p.DifficultyID, &p.Title, &p.Description, &p.DueDate,
		&p.Salt, &p.IsPublic, &p.IsFinished, &p.Health, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return models.Project{}, err
	}
	p.Salt = strings.TrimSpace(p.Salt)
	return p, nil
}

// ensureOwner is the single authorization guard for project mutations. It is
// applied uniformly to update, mark_done and destroy, and to the owner-only
// collaboration and attachment operations.
func ensureOwner(project models.Project, userID int) bool {
	if project.UserID != userID {
		logger.SecurityLogger.Warn("Ownership check failed",
			zap.String("project_id", project.ID),
			zap.Int("owner_id", project.UserID),
			zap.Int("user_id", userID),
		)
		return false
	}
	return true
}

// userExists reports whether a user row exists.
func userExists(userID int) (bool, error) {
	var id int
	err := config.DB.QueryRow("SELECT id FROM users WHERE id = $1", userID).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// fetchDifficulty loads a difficulty tier. Reference data, never mutated.
func fetchDifficulty(difficultyID int) (models.Difficulty, error) {
	var d models.Difficulty
	err := config.DB.QueryRow(
		"SELECT id, name, character_id, multiplier, created_at, updated_at FROM difficulties WHERE id = $1",
		difficultyID,
	).Scan(&d.ID, &d.Name, &d.CharacterID, &d.Multiplier, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

// invalidateProjectCache drops the cached project detail after a mutation.
func invalidateProjectCache(projectID string) {
	cacheKey := fmt.Sprintf("project:%s", projectID)
	config.RedisClient.Del(config.Ctx, cacheKey)
}
