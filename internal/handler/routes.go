package handler

import (
	"quiz-forge/internal/middleware"
	"quiz-forge/internal/service"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts every quiz endpoint under api.
func RegisterRoutes(api fiber.Router, authService service.AuthService, quizHandler *QuizHandler, genHandler *GenerationHandler) {
	protected := middleware.Protected(authService)
	optional := middleware.OptionalAuth(authService)
	vm := middleware.NewValidationMiddleware()

	quizzes := api.Group("/quizzes")
	quizzes.Post("/generate", protected, genHandler.Generate)
	quizzes.Post("/generate/async", protected, genHandler.GenerateAsync)
	quizzes.Get("/", protected, quizHandler.ListQuizzes)

	quizzes.Get("/:id", vm.ValidateQuizID(), optional, quizHandler.GetQuiz)
	quizzes.Get("/:id/status", vm.ValidateQuizID(), optional, quizHandler.GetStatus)
	quizzes.Patch("/:id", vm.ValidateQuizID(), protected, quizHandler.UpdateQuiz)
	quizzes.Put("/:id/questions", vm.ValidateQuizID(), protected, quizHandler.ReplaceQuestions)
	quizzes.Delete("/:id", vm.ValidateQuizID(), protected, quizHandler.DeleteQuiz)
	quizzes.Post("/:id/share", vm.ValidateQuizID(), protected, quizHandler.EnableSharing)
	quizzes.Delete("/:id/share", vm.ValidateQuizID(), protected, quizHandler.DisableSharing)

	api.Get("/shared/:token", vm.ValidateShareToken(), optional, quizHandler.GetSharedQuiz)
}
