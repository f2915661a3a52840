package handler

import (
	"quiz-forge/internal/domain"
	"quiz-forge/internal/dto"
	"quiz-forge/internal/middleware"
	"quiz-forge/internal/service"
	"quiz-forge/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// QuizHandler handles quiz-related HTTP requests
type QuizHandler struct {
	service   service.QuizService
	validator *validation.Validator
}

// NewQuizHandler creates a new QuizHandler instance
func NewQuizHandler(service service.QuizService) *QuizHandler {
	return &QuizHandler{
		service:   service,
		validator: validation.NewValidator(),
	}
}

// ListQuizzes godoc
// @Summary List my quizzes
// @Tags quizzes
// @Produce json
// @Success 200 {object} dto.QuizListResponse
// @Failure 401 {object} middleware.ErrorResponse
// @Security ApiKeyAuth
// @Router /quizzes [get]
func (h *QuizHandler) ListQuizzes(c *fiber.Ctx) error {
	resp, err := h.service.ListQuizzes(c.Context(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// GetQuiz godoc
// @Summary Get a quiz
// @Description Returns the quiz without correctness flags. includeAnswers=true (owner only) adds the answer key.
// @Tags quizzes
// @Produce json
// @Param id path string true "Quiz ID"
// @Param includeAnswers query bool false "Include the answer key"
// @Success 200 {object} dto.QuizResponse
// @Failure 403 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /quizzes/{id} [get]
func (h *QuizHandler) GetQuiz(c *fiber.Ctx) error {
	includeAnswers := c.QueryBool("includeAnswers", false)
	resp, err := h.service.GetQuiz(c.Context(), c.Params("id"), middleware.UserID(c), includeAnswers)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// GetStatus godoc
// @Summary Poll generation state
// @Tags quizzes
// @Produce json
// @Param id path string true "Quiz ID"
// @Success 200 {object} dto.QuizStatusResponse
// @Failure 403 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /quizzes/{id}/status [get]
func (h *QuizHandler) GetStatus(c *fiber.Ctx) error {
	resp, err := h.service.GetStatus(c.Context(), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// UpdateQuiz godoc
// @Summary Update quiz title or description
// @Tags quizzes
// @Accept json
// @Produce json
// @Param id path string true "Quiz ID"
// @Param request body dto.UpdateQuizRequest true "Fields to update"
// @Success 200 {object} dto.QuizResponse
// @Failure 400 {object} middleware.ValidationErrorResponse
// @Failure 403 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Security ApiKeyAuth
// @Router /quizzes/{id} [patch]
func (h *QuizHandler) UpdateQuiz(c *fiber.Ctx) error {
	var req dto.UpdateQuizRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.NewInvalidInputError("Invalid request body")
	}
	if errs := h.validator.ValidateUpdateRequest(req); len(errs) > 0 {
		return errs
	}

	resp, err := h.service.UpdateQuiz(c.Context(), c.Params("id"), middleware.UserID(c), req)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// ReplaceQuestions godoc
// @Summary Replace all questions of a quiz
// @Tags quizzes
// @Accept json
// @Produce json
// @Param id path string true "Quiz ID"
// @Param request body dto.ReplaceQuestionsRequest true "New question tree"
// @Success 200 {object} dto.QuizResponse
// @Failure 400 {object} middleware.ValidationErrorResponse
// @Failure 403 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Security ApiKeyAuth
// @Router /quizzes/{id}/questions [put]
func (h *QuizHandler) ReplaceQuestions(c *fiber.Ctx) error {
	var req dto.ReplaceQuestionsRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.NewInvalidInputError("Invalid request body")
	}
	if errs := h.validator.ValidateReplaceQuestionsRequest(req); len(errs) > 0 {
		return errs
	}

	resp, err := h.service.ReplaceQuestions(c.Context(), c.Params("id"), middleware.UserID(c), req)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// DeleteQuiz godoc
// @Summary Delete a quiz
// @Tags quizzes
// @Param id path string true "Quiz ID"
// @Success 204
// @Failure 403 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Security ApiKeyAuth
// @Router /quizzes/{id} [delete]
func (h *QuizHandler) DeleteQuiz(c *fiber.Ctx) error {
	if err := h.service.DeleteQuiz(c.Context(), c.Params("id"), middleware.UserID(c)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// EnableSharing godoc
// @Summary Enable sharing
// @Description Issues the share token on first use. Repeated calls return the same token.
// @Tags sharing
// @Produce json
// @Param id path string true "Quiz ID"
// @Success 200 {object} dto.ShareResponse
// @Failure 403 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Security ApiKeyAuth
// @Router /quizzes/{id}/share [post]
func (h *QuizHandler) EnableSharing(c *fiber.Ctx) error {
	resp, err := h.service.EnableSharing(c.Context(), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// DisableSharing godoc
// @Summary Disable sharing
// @Tags sharing
// @Produce json
// @Param id path string true "Quiz ID"
// @Success 200 {object} dto.ShareResponse
// @Failure 403 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Security ApiKeyAuth
// @Router /quizzes/{id}/share [delete]
func (h *QuizHandler) DisableSharing(c *fiber.Ctx) error {
	resp, err := h.service.DisableSharing(c.Context(), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// GetSharedQuiz godoc
// @Summary Read a shared quiz
// @Tags sharing
// @Produce json
// @Param token path string true "Share token"
// @Success 200 {object} dto.QuizResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /shared/{token} [get]
func (h *QuizHandler) GetSharedQuiz(c *fiber.Ctx) error {
	resp, err := h.service.GetSharedQuiz(c.Context(), c.Params("token"), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(resp)
}
