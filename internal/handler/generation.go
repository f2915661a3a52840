package handler

import (
	"encoding/base64"
	"io"
	"mime"
	"strconv"
	"strings"

	"quiz-forge/internal/domain"
	"quiz-forge/internal/dto"
	"quiz-forge/internal/middleware"
	"quiz-forge/internal/service"
	"quiz-forge/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

const maxUploadBytes = 20 << 20

// GenerationHandler handles quiz generation requests
type GenerationHandler struct {
	service   service.GenerationService
	quizzes   service.QuizService
	validator *validation.Validator
}

// NewGenerationHandler creates a new GenerationHandler instance
func NewGenerationHandler(genService service.GenerationService, quizService service.QuizService) *GenerationHandler {
	return &GenerationHandler{
		service:   genService,
		quizzes:   quizService,
		validator: validation.NewValidator(),
	}
}

// Generate godoc
// @Summary Generate a quiz
// @Description Generates a quiz from text or a PDF and stores it as FINISHED. Accepts JSON (pdfBase64) or multipart/form-data (file part).
// @Tags generation
// @Accept json,mpfd
// @Produce json
// @Param request body dto.GenerateQuizRequest true "Generation request"
// @Param model query string false "Model id override"
// @Param questionType query string false "MULTIPLE_CHOICE or TRUE_FALSE"
// @Success 201 {object} dto.QuizResponse
// @Failure 400 {object} middleware.ValidationErrorResponse
// @Failure 401 {object} middleware.ErrorResponse
// @Failure 415 {object} middleware.ErrorResponse
// @Failure 429 {object} middleware.ErrorResponse
// @Failure 502 {object} middleware.ErrorResponse
// @Failure 503 {object} middleware.ErrorResponse
// @Security ApiKeyAuth
// @Router /quizzes/generate [post]
func (h *GenerationHandler) Generate(c *fiber.Ctx) error {
	req, err := h.parseRequest(c)
	if err != nil {
		return err
	}

	quiz, err := h.service.Generate(c.Context(), req)
	if err != nil {
		return err
	}

	resp, err := h.quizzes.GetQuiz(c.Context(), quiz.ID, req.OwnerID, true)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// GenerateAsync godoc
// @Summary Queue quiz generation
// @Description Stores a PENDING quiz and generates it in the background. Poll /quizzes/{id}/status.
// @Tags generation
// @Accept json,mpfd
// @Produce json
// @Param request body dto.GenerateQuizRequest true "Generation request"
// @Success 202 {object} dto.QuizStatusResponse
// @Failure 400 {object} middleware.ValidationErrorResponse
// @Failure 401 {object} middleware.ErrorResponse
// @Failure 415 {object} middleware.ErrorResponse
// @Failure 503 {object} middleware.ErrorResponse
// @Security ApiKeyAuth
// @Router /quizzes/generate/async [post]
func (h *GenerationHandler) GenerateAsync(c *fiber.Ctx) error {
	req, err := h.parseRequest(c)
	if err != nil {
		return err
	}

	quiz, _, err := h.service.GenerateAsync(c.Context(), req)
	if err != nil {
		return err
	}

	c.Location("/api/quizzes/" + quiz.ID + "/status")
	return c.Status(fiber.StatusAccepted).JSON(dto.QuizStatusResponse{
		ID:    quiz.ID,
		State: string(quiz.State),
	})
}

// parseRequest reads a JSON or multipart body, applies query overrides and validates it.
func (h *GenerationHandler) parseRequest(c *fiber.Ctx) (domain.GenerationRequest, error) {
	var body dto.GenerateQuizRequest
	var pdf []byte

	mediaType, _, err := mime.ParseMediaType(c.Get(fiber.HeaderContentType))
	if err != nil {
		mediaType = ""
	}

	switch mediaType {
	case fiber.MIMEApplicationJSON:
		if err := c.BodyParser(&body); err != nil {
			return domain.GenerationRequest{}, domain.NewInvalidInputError("Invalid request body")
		}
		if body.PDFBase64 != "" {
			pdf, err = base64.StdEncoding.DecodeString(body.PDFBase64)
			if err != nil {
				return domain.GenerationRequest{}, domain.ValidationErrors{domain.NewInvalidFormatError("pdfBase64", "not base64")}
			}
		}
	case fiber.MIMEMultipartForm:
		body = dto.GenerateQuizRequest{
			OwnerID:      c.FormValue("ownerId"),
			Title:        c.FormValue("title"),
			Description:  c.FormValue("description"),
			Text:         c.FormValue("text"),
			Difficulty:   c.FormValue("difficulty"),
			QuestionType: firstNonEmpty(c.FormValue("questionType"), c.FormValue("type")),
			ModelID:      c.FormValue("modelId"),
			Model:        c.FormValue("model"),
		}
		if raw := c.FormValue("questionCount"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return domain.GenerationRequest{}, domain.ValidationErrors{domain.NewInvalidFormatError("questionCount", raw)}
			}
			body.QuestionCount = n
		}
		pdf, err = readUpload(c)
		if err != nil {
			return domain.GenerationRequest{}, err
		}
	default:
		return domain.GenerationRequest{}, domain.NewUnsupportedMediaTypeError(c.Get(fiber.HeaderContentType))
	}

	if v := firstNonEmpty(c.Query("model"), c.Query("modelId")); v != "" {
		body.ModelID = v
		body.Model = ""
	}
	if v := firstNonEmpty(c.Query("questionType"), c.Query("type")); v != "" {
		body.QuestionType = v
	}

	if errs := h.validator.ValidateGenerateRequest(body); len(errs) > 0 {
		return domain.GenerationRequest{}, errs
	}

	callerID := middleware.UserID(c)
	if body.OwnerID != "" && body.OwnerID != callerID {
		return domain.GenerationRequest{}, domain.NewForbiddenError("Cannot generate a quiz for another user")
	}

	// Form and query values point into fasthttp's reusable buffers and the request
	// may outlive this handler on the task queue.
	req := domain.GenerationRequest{
		OwnerID:       utils.CopyString(callerID),
		Title:         utils.CopyString(strings.TrimSpace(body.Title)),
		Description:   utils.CopyString(strings.TrimSpace(body.Description)),
		Text:          utils.CopyString(body.Text),
		PDF:           pdf,
		QuestionCount: body.QuestionCount,
		ModelID:       utils.CopyString(firstNonEmpty(body.ModelID, body.Model)),
	}
	if body.Difficulty != "" {
		req.Difficulty, _ = domain.ParseDifficulty(body.Difficulty)
	}
	if body.QuestionType != "" {
		req.QuestionType, _ = domain.ParseQuestionType(body.QuestionType)
	}
	return req, nil
}

func readUpload(c *fiber.Ctx) ([]byte, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		// no file part; text alone may still be enough
		return nil, nil
	}
	if fh.Size > maxUploadBytes {
		return nil, domain.ValidationErrors{domain.NewOutOfRangeError("file", fh.Size, 1, maxUploadBytes)}
	}

	f, err := fh.Open()
	if err != nil {
		return nil, domain.NewInvalidInputError("Unable to read uploaded file")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		return nil, domain.NewInvalidInputError("Unable to read uploaded file")
	}
	return data, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
