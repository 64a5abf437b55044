package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

var errInvalidID = errors.New("invalid id")

func GetUserID(c *fiber.Ctx) uuid.UUID {
	userID, ok := c.Locals("user_id").(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return userID
}

func queryID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Query("id"))
	if err != nil {
		return uuid.Nil, errInvalidID
	}
	return id, nil
}
