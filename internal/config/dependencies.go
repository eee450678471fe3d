package config

import (
	"context"
	"database/sql"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
)

var (
	// Global dependencies shared across the application
	DB          *sql.DB
	SecretKey   = []byte("secret")
	Validate    = newValidator()
	Ctx         = context.Background()
	RedisClient *redis.Client

	// UploadDir is where attachment files are written. Overridden from
	// configs.LoadConfig at startup and by the test harness.
	UploadDir = "uploads"
)

// newValidator reports field errors under their json names so the 422
// error map matches the request body.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
