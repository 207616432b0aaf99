package server

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"igrepost/pkg/progress"
)

func (s *Server) getProgress(c *fiber.Ctx) error {
	rec, err := s.store.Get(c.UserContext())
	switch {
	case err == nil:
	case errors.Is(err, progress.ErrNotFound):
		rec = s.fallback
	default:
		s.log.WithError(err).Warn("Reading status failed, serving default")
		rec = s.fallback
	}

	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.JSON(rec)
}

func invalidPayload(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"error":   "Invalid payload",
	})
}

func (s *Server) postProgress(c *fiber.Ctx) error {
	update, err := progress.ParseUpdate(c.Body())
	if err != nil {
		s.log.DebugWithFields("Rejected status payload", map[string]interface{}{
			"reason": err.Error(),
		})
		return invalidPayload(c)
	}

	rec := update.Record(s.now())
	if err := s.store.Set(c.UserContext(), rec); err != nil {
		return err
	}

	s.log.DebugWithFields("Status updated", map[string]interface{}{
		"status":  string(rec.Status),
		"reel_id": rec.ReelIDOrEmpty(),
	})

	return c.JSON(fiber.Map{
		"success": true,
		"state":   rec,
	})
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"backend": string(s.backend),
		"uptime":  s.now().Sub(s.startedAt).Round(time.Second).String(),
	})
}
