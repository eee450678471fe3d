package test

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"questboard/configs"
	v1 "questboard/internal/api/v1"
	"questboard/internal/api/v1/handlers"
	"questboard/internal/config"
	"questboard/internal/middleware"
	"questboard/internal/repository"
	"questboard/pkg/database"
	"questboard/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
)

func connectDBTest(cfg configs.Config) *sql.DB {
	psqlconn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBNameTest)
	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	return db
}

func TestMain(m *testing.M) {
	logger.InitLoggers()
	defer logger.SyncLoggers()

	// Keep LoadConfig quiet when .env is absent
	os.Setenv("GO_ENV", "test")

	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../.env"); err != nil {
			logger.SystemLogger.Info("No .env file found, using default values")
		} else {
			logger.SystemLogger.Info(".env file loaded from parent directory")
		}
	} else {
		logger.SystemLogger.Info(".env file loaded successfully")
	}

	cfg := configs.LoadConfig()
	config.DB = connectDBTest(cfg)
	defer config.DB.Close()

	logger.SystemLogger.Info("Database Connected")

	repository.CreateTableIfNotExists(config.DB)
	repository.SeedCharactersAndDifficulties(config.DB)

	config.RedisClient = database.ConnectRedis(cfg)
	defer config.RedisClient.Close()

	// Uploads land in a throwaway directory
	uploadDir, err := os.MkdirTemp("", "questboard-uploads-")
	if err != nil {
		log.Fatalf("Error creating upload dir: %v", err)
	}
	config.UploadDir = uploadDir

	code := m.Run()

	repository.DeleteAllTable(config.DB)
	os.RemoveAll(uploadDir)

	os.Exit(code)
}

// CreateTestApp initializes a Fiber app with the full v1 route set.
func CreateTestApp() *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit: 20 * 1024 * 1024,
	})
	app.Use(middleware.ErrorHandler())
	v1.RegisterRoutes(app)
	return app
}

// CreateTestUser inserts a user directly (the OAuth flow is external) and
// mints a session token for it.
func CreateTestUser(t *testing.T, name string) (token string, userID int) {
	t.Helper()
	email := fmt.Sprintf("%s_%d@example.com", name, time.Now().UnixNano())
	err := config.DB.QueryRow(
		"INSERT INTO users (name, email, avatar_url) VALUES ($1, $2, '') RETURNING id",
		name, email,
	).Scan(&userID)
	if err != nil {
		t.Fatalf("Error inserting test user: %v", err)
	}
	token, err = handlers.IssueSessionToken(userID)
	if err != nil {
		t.Fatalf("Error issuing token: %v", err)
	}
	return token, userID
}

// DifficultyID looks up a seeded difficulty tier by name.
func DifficultyID(t *testing.T, name string) int {
	t.Helper()
	var id int
	if err := config.DB.QueryRow("SELECT id FROM difficulties WHERE name = $1", name).Scan(&id); err != nil {
		t.Fatalf("Error fetching difficulty %q: %v", name, err)
	}
	return id
}

// DoJSON fires a JSON request with the bearer token and decodes the response
// envelope.
func DoJSON(t *testing.T, app *fiber.App, method, url, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Error encoding request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, url, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s error: %v", method, url, err)
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Error reading response: %v", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &result); err != nil {
			t.Fatalf("Error decoding response %q: %v", string(raw), err)
		}
	}
	return resp.StatusCode, result
}

// CreateTestProject provisions a project through the API and returns its id.
func CreateTestProject(t *testing.T, app *fiber.App, token, title, difficulty string) string {
	t.Helper()
	due := time.Now().Add(48 * time.Hour).Format("2006-01-02 15:04:05")
	code, result := DoJSON(t, app, "POST", "/api/v1/projects", token, map[string]interface{}{
		"title":         title,
		"description":   "test project",
		"due_date":      due,
		"difficulty_id": DifficultyID(t, difficulty),
		"is_public":     "false",
	})
	if code != http.StatusCreated {
		t.Fatalf("Expected 201 creating project, got %d: %v", code, result)
	}
	data := result["data"].(map[string]interface{})
	return data["id"].(string)
}
