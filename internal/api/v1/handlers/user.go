package handlers

import (
	"database/sql"

	"questboard/internal/config"
	"questboard/internal/models"
	"questboard/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Me returns the authenticated user with accumulated exp and the selected
// character, if any.
func Me(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)

	var user models.User
	err := config.DB.QueryRow(
		"SELECT id, name, email, avatar_url, character_id, exp, created_at, updated_at FROM users WHERE id = $1",
		userID,
	).Scan(&user.ID, &user.Name, &user.Email, &user.AvatarURL, &user.CharacterID, &user.Exp, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return notFound(c, "User not found")
	}

	data := fiber.Map{"user": user}
	if user.CharacterID.Valid {
		var ch models.Character
		err = config.DB.QueryRow(
			"SELECT id, name, image_url, is_boss, created_at, updated_at FROM characters WHERE id = $1",
			user.CharacterID.Int64,
		).Scan(&ch.ID, &ch.Name, &ch.ImageURL, &ch.IsBoss, &ch.CreatedAt, &ch.UpdatedAt)
		if err == nil {
			data["character"] = ch
		}
	}

	return c.JSON(fiber.Map{
		"message": "User found",
		"success": true,
		"status":  fiber.StatusOK,
		"data":    data,
	})
}

// UpdateProfile sets the display name and the selected avatar. Only non-boss
// characters are selectable.
func UpdateProfile(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)

	type ProfileRequest struct {
		Name        string `json:"name" validate:"required,max=48"`
		CharacterID int    `json:"character_id" validate:"required"`
	}

	var req ProfileRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in update profile", zap.Error(err))
		return badRequest(c, "Bad request")
	}
	if err := config.Validate.Struct(req); err != nil {
		return validationFailed(c, fieldErrors(err))
	}

	var isBoss bool
	err := config.DB.QueryRow("SELECT is_boss FROM characters WHERE id = $1", req.CharacterID).Scan(&isBoss)
	if err == sql.ErrNoRows {
		return validationFailed(c, map[string]string{"character_id": "character does not exist"})
	}
	if err != nil {
		return serverError(c, "Error fetching character", err)
	}
	if isBoss {
		return validationFailed(c, map[string]string{"character_id": "bosses are not selectable avatars"})
	}

	_, err = config.DB.Exec(
		"UPDATE users SET name = $1, character_id = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $3",
		req.Name, req.CharacterID, userID,
	)
	if err != nil {
		return serverError(c, "Error updating profile", err)
	}

	logger.AuditLogger.Info("Profile updated", zap.Int("user_id", userID), zap.Int("character_id", req.CharacterID))
	return c.JSON(fiber.Map{
		"message": "Profile saved successfully",
		"success": true,
		"status":  fiber.StatusOK,
	})
}
