package auth

import (
	"github.com/caarlos0/env/v6"
	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v2"
	"github.com/golang-jwt/jwt"
)

// The platform gateway authenticates callers and mints the token; this core
// only verifies it and lifts the caller identity out of the claims so every
// operation receives an explicit caller instead of an ambient one.

type envConfig struct {
	Secret string `env:"JWT_SECRET,unset"`
}

type Config struct {
	Secret string
}

func NewConfig() (*Config, error) {
	cfg := &envConfig{}
	if err := env.Parse(cfg, env.Options{}); err != nil {
		return nil, err
	}
	return &Config{Secret: cfg.Secret}, nil
}

// Enabled reports whether request authentication is configured. Development
// setups without a secret skip the middleware entirely.
func (c *Config) Enabled() bool {
	return c.Secret != ""
}

func JWTMiddleware(cfg *Config) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: []byte(cfg.Secret),
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(&fiber.Map{
				"status":  "fail",
				"message": "missing or invalid token",
			})
		},
	})
}

// GetDataFromJWT copies the caller identity claim into request locals.
func GetDataFromJWT(c *fiber.Ctx) error {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(&fiber.Map{
			"status":  "fail",
			"message": "missing or invalid token",
		})
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(&fiber.Map{
			"status":  "fail",
			"message": "missing or invalid token",
		})
	}
	if sub, ok := claims["sub"].(string); ok {
		c.Locals("caller_id", sub)
	}
	return c.Next()
}
