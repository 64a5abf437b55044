package handlers

import (
	"errors"
	"log/slog"

	"github.com/AureliusIvan/threads-scheduler/internal/models"
	"github.com/AureliusIvan/threads-scheduler/internal/service"
	"github.com/AureliusIvan/threads-scheduler/internal/threads"
	"github.com/AureliusIvan/threads-scheduler/internal/transfer"
	"github.com/gofiber/fiber/v2"
)

type PostHandler struct {
	s  service.PostService
	as service.AnalyticsService
}

func NewPostHandler(service service.PostService, analytics service.AnalyticsService) *PostHandler {
	return &PostHandler{s: service, as: analytics}
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var pc transfer.PostCreation
	if err := c.BodyParser(&pc); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse body",
		})
	}

	post, err := h.s.CreatePost(c.Context(), userID, &pc)
	if err != nil {
		return postError(c, err, "Unable to create post")
	}

	return c.Status(fiber.StatusCreated).JSON(post)
}

func (h *PostHandler) UpdatePost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID, err := queryID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var pc transfer.PostCreation
	if err := c.BodyParser(&pc); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse body",
		})
	}

	post, err := h.s.UpdatePost(c.Context(), userID, postID, &pc)
	if err != nil {
		return postError(c, err, "Unable to update post")
	}

	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	userID := GetUserID(c)
	status := c.Query("status")

	switch status {
	case "", models.PostStatusDraft, models.PostStatusScheduled, models.PostStatusPublished, models.PostStatusFailed:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown status",
		})
	}

	posts, err := h.s.List(c.Context(), userID, status)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to list posts",
		})
	}

	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) PostInfo(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID, err := queryID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	post, err := h.s.PostInfo(c.Context(), postID, userID)
	if err != nil {
		return postError(c, err, "Unable to get post")
	}

	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) RemovePost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID, err := queryID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if err := h.s.Remove(c.Context(), userID, postID); err != nil {
		return postError(c, err, "Unable to remove post")
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *PostHandler) PostAnalytics(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID, err := queryID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	analytics, err := h.as.GetForPost(c.Context(), userID, postID)
	if err != nil {
		if errors.Is(err, service.ErrAnalyticsNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		return postError(c, err, "Unable to get analytics")
	}

	return c.Status(fiber.StatusOK).JSON(analytics)
}

func postError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, service.ErrPostNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrPostPublished), errors.Is(err, service.ErrPostPublishing):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrScheduleInPast),
		errors.Is(err, service.ErrInvalidPostInput),
		errors.Is(err, threads.ErrInvalidContent),
		errors.Is(err, threads.ErrUnsupportedContent):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	default:
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": fallback})
	}
}
