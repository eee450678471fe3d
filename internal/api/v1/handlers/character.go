package handlers

import (
	"database/sql"

	"questboard/internal/config"
	"questboard/internal/models"
	"questboard/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func scanCharacters(rows *sql.Rows) ([]models.Character, error) {
	defer rows.Close()
	characters := []models.Character{}
	for rows.Next() {
		var ch models.Character
		if err := rows.Scan(&ch.ID, &ch.Name, &ch.ImageURL, &ch.IsBoss, &ch.CreatedAt, &ch.UpdatedAt); err != nil {
			return nil, err
		}
		characters = append(characters, ch)
	}
	return characters, rows.Err()
}

// ListCharacters returns the playable avatars.
func ListCharacters(c *fiber.Ctx) error {
	rows, err := config.DB.Query(
		"SELECT id, name, image_url, is_boss, created_at, updated_at FROM characters WHERE is_boss = FALSE ORDER BY id")
	if err != nil {
		return serverError(c, "Error fetching characters", err)
	}
	characters, err := scanCharacters(rows)
	if err != nil {
		return serverError(c, "Error scanning characters", err)
	}
	return c.JSON(fiber.Map{
		"message": "Characters fetched successfully",
		"success": true,
		"status":  fiber.StatusOK,
		"data":    characters,
	})
}

// ListBosses returns the boss characters fronting the difficulty tiers.
func ListBosses(c *fiber.Ctx) error {
	rows, err := config.DB.Query(
		"SELECT id, name, image_url, is_boss, created_at, updated_at FROM characters WHERE is_boss = TRUE ORDER BY id")
	if err != nil {
		return serverError(c, "Error fetching bosses", err)
	}
	bosses, err := scanCharacters(rows)
	if err != nil {
		return serverError(c, "Error scanning bosses", err)
	}
	return c.JSON(fiber.Map{
		"message": "Bosses fetched successfully",
		"success": true,
		"status":  fiber.StatusOK,
		"data":    bosses,
	})
}

func GetCharacter(c *fiber.Ctx) error {
	characterID, err := c.ParamsInt("id")
	if err != nil {
		return badRequest(c, "Invalid character ID")
	}

	var ch models.Character
	err = config.DB.QueryRow(
		"SELECT id, name, image_url, is_boss, created_at, updated_at FROM characters WHERE id = $1",
		characterID,
	).Scan(&ch.ID, &ch.Name, &ch.ImageURL, &ch.IsBoss, &ch.CreatedAt, &ch.UpdatedAt)
	if err != nil {
		return notFound(c, "Character not found")
	}
	return c.JSON(fiber.Map{
		"message": "Character found",
		"success": true,
		"status":  fiber.StatusOK,
		"data":    ch,
	})
}

// ListDifficulties returns the difficulty tiers with their multipliers,
// ordered easiest first.
func ListDifficulties(c *fiber.Ctx) error {
	rows, err := config.DB.Query(
		"SELECT id, name, character_id, multiplier, created_at, updated_at FROM difficulties ORDER BY multiplier")
	if err != nil {
		return serverError(c, "Error fetching difficulties", err)
	}
	defer rows.Close()

	difficulties := []models.Difficulty{}
	for rows.Next() {
		var d models.Difficulty
		if err := rows.Scan(&d.ID, &d.Name, &d.CharacterID, &d.Multiplier, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return serverError(c, "Error scanning difficulties", err)
		}
		difficulties = append(difficulties, d)
	}
	if err := rows.Err(); err != nil {
		return serverError(c, "Error iterating over difficulties", err)
	}

	logger.AuditLogger.Info("Difficulties fetched", zap.Int("count", len(difficulties)))
	return c.JSON(fiber.Map{
		"message": "Difficulties fetched successfully",
		"success": true,
		"status":  fiber.StatusOK,
		"data":    difficulties,
	})
}
