package handlers

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/dto"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/models"
	"github.com/ahmetcoskunkizilkaya/nutrition-reports/internal/services"
)

const uploadField = "files"

type SubmissionHandler struct {
	workflow *services.WorkflowService
}

func NewSubmissionHandler(workflow *services.WorkflowService) *SubmissionHandler {
	return &SubmissionHandler{workflow: workflow}
}

// Create accepts a multipart form with one or more "files" parts.
func (h *SubmissionHandler) Create(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	reportID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	files, closeAll, err := uploads(c)
	if err != nil {
		return badRequest(c, "Could not read uploaded files")
	}
	defer closeAll()

	sub, err := h.workflow.CreateSubmission(c.UserContext(), actor, reportID, files)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(sub)
}

func (h *SubmissionHandler) AddAttachments(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	subID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	files, closeAll, err := uploads(c)
	if err != nil {
		return badRequest(c, "Could not read uploaded files")
	}
	defer closeAll()

	atts, err := h.workflow.AddAttachments(c.UserContext(), actor, subID, files)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(atts)
}

// ListLatest is the reviewer's board: the latest attempt of every submitter.
func (h *SubmissionHandler) ListLatest(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	reportID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	subs, err := h.workflow.LatestForReport(c.UserContext(), actor, reportID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(dto.ListResponse{Data: subs, Total: int64(len(subs))})
}

func (h *SubmissionHandler) History(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	reportID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	subs, err := h.workflow.History(c.UserContext(), actor, reportID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(dto.ListResponse{Data: subs, Total: int64(len(subs))})
}

func (h *SubmissionHandler) Get(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	subID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	sub, events, err := h.workflow.GetSubmission(c.UserContext(), actor, subID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(dto.SubmissionResponse{Submission: sub, History: events})
}

func (h *SubmissionHandler) UpdateStatus(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	subID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req dto.StatusRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	sub, err := h.workflow.TransitionStatus(c.UserContext(), actor, subID, models.SubmissionStatus(req.Status), req.Note)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(sub)
}

// UpdateUserStatus transitions the latest attempt of a (report, user) pair.
func (h *SubmissionHandler) UpdateUserStatus(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	reportID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	userID, err := paramUUID(c, "userId")
	if err != nil {
		return respondError(c, err)
	}
	var req dto.StatusRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	sub, err := h.workflow.TransitionLatest(c.UserContext(), actor, reportID, userID, models.SubmissionStatus(req.Status), req.Note)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(sub)
}

func (h *SubmissionHandler) Download(c *fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	attID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	att, rc, err := h.workflow.OpenAttachment(c.UserContext(), actor, attID)
	if err != nil {
		return respondError(c, err)
	}

	c.Attachment(att.FileName)
	c.Set(fiber.HeaderContentType, att.FileType)
	size := -1
	if att.Size > 0 {
		size = int(att.Size)
	}
	// fasthttp closes rc once the body has been written.
	return c.SendStream(rc, size)
}

// uploads opens every file part of the request. The returned func closes them.
func uploads(c *fiber.Ctx) ([]services.FileUpload, func(), error) {
	form, err := c.MultipartForm()
	if errors.Is(err, fasthttp.ErrNoMultipartForm) {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, err
	}

	headers := form.File[uploadField]
	files := make([]services.FileUpload, 0, len(headers))
	opened := make([]io.Closer, 0, len(headers))
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		opened = append(opened, f)
		files = append(files, services.FileUpload{Name: fh.Filename, Size: fh.Size, Reader: f})
	}
	return files, closeAll, nil
}
