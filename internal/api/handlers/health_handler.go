package handlers

import "github.com/gofiber/fiber/v2"

const apiVersion = "0.1.0"

func HealthCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "ok",
		"version": apiVersion,
	})
}
