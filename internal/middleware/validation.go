package middleware

import (
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v3"
)

// Field length limits.
const (
	MaxUserNameLen    = 80
	MaxTaskNameLen    = 200
	MaxDescriptionLen = 2000
	MinScore          = 1
	MaxScore          = 5
)

// uuidRe matches the canonical lowercase UUID form used for user IDs.
var uuidRe = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// ErrorResponse is a helper that returns a standard API error response.
func ErrorResponse(c fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    code,
			"message": message,
		},
	})
}

// ValidateUserName checks a display name. Returns the trimmed name, or an
// error message.
func ValidateUserName(name string) (string, string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "name is required"
	}
	if len(name) > MaxUserNameLen {
		return "", "name must be at most 80 characters"
	}
	return name, ""
}

// ValidateUserID checks that a user ID is a well-formed UUID.
func ValidateUserID(id string) (string, string) {
	id = strings.TrimSpace(strings.ToLower(id))
	if id == "" {
		return "", "userId is required"
	}
	if !uuidRe.MatchString(id) {
		return "", "userId must be a UUID"
	}
	return id, ""
}

// ValidateScore checks that a rating falls in the 1..5 star range.
func ValidateScore(score int) string {
	if score < MinScore || score > MaxScore {
		return "score must be between 1 and 5"
	}
	return ""
}

// ValidateTaskRef checks that a vote identifies its task by id, name, or
// both. Returns the trimmed id and name, or an error message.
func ValidateTaskRef(id, name string) (string, string, string) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	if id == "" && name == "" {
		return "", "", "taskId or taskName is required"
	}
	if len(name) > MaxTaskNameLen {
		return "", "", "taskName must be at most 200 characters"
	}
	return id, name, ""
}

// ValidateTaskName checks a proposed task's name.
func ValidateTaskName(name string) (string, string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "name is required"
	}
	if len(name) > MaxTaskNameLen {
		return "", "name must be at most 200 characters"
	}
	return name, ""
}

// ValidateDescription trims and bounds a proposal description.
func ValidateDescription(desc string) (string, string) {
	desc = strings.TrimSpace(desc)
	if len(desc) > MaxDescriptionLen {
		return "", "description must be at most 2000 characters"
	}
	return desc, ""
}

// ValidateCriterion checks one of the three proposal criterion scores.
func ValidateCriterion(name string, v int) string {
	if v < MinScore || v > MaxScore {
		return name + " must be between 1 and 5"
	}
	return ""
}
