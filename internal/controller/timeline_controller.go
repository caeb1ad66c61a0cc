package controller

import (
	"errors"

	"psvs-console-be/internal/dto"
	"psvs-console-be/internal/pkg/serverutils"
	"psvs-console-be/internal/service"
	"psvs-console-be/pkg/timeline"

	"github.com/gofiber/fiber/v2"
)

type ITimelineController interface {
	RegisterRoutes(r fiber.Router)
	Open(ctx *fiber.Ctx) error
	State(ctx *fiber.Ctx) error
	Refresh(ctx *fiber.Ctx) error
	SetAutoRefresh(ctx *fiber.Ctx) error
	ToggleGroup(ctx *fiber.Ctx) error
	SelectMessage(ctx *fiber.Ctx) error
	Scroll(ctx *fiber.Ctx) error
	Settled(ctx *fiber.Ctx) error
	AcknowledgeNewMessages(ctx *fiber.Ctx) error
	Close(ctx *fiber.Ctx) error
	SubmitFeedback(ctx *fiber.Ctx) error
}

type timelineController struct {
	service         service.ITimelineService
	feedbackService service.IFeedbackService
}

func NewTimelineController(service service.ITimelineService, feedbackService service.IFeedbackService) ITimelineController {
	return &timelineController{
		service:         service,
		feedbackService: feedbackService,
	}
}

func (c *timelineController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/timeline/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("/open", c.Open)
	h.Get("/state", c.State)
	h.Post("/refresh", c.Refresh)
	h.Put("/auto-refresh", c.SetAutoRefresh)
	h.Post("/groups/toggle", c.ToggleGroup)
	h.Post("/select", c.SelectMessage)
	h.Post("/scroll", c.Scroll)
	h.Post("/settled", c.Settled)
	h.Post("/new-messages/ack", c.AcknowledgeNewMessages)
	h.Delete("", c.Close)
	h.Post("/feedback", c.SubmitFeedback)
}

func (c *timelineController) Open(ctx *fiber.Ctx) error {
	practitionerId := ctx.Locals("user_id").(string)

	var req dto.OpenTimelineRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Open(ctx.UserContext(), practitionerId, &req)
	if err != nil {
		return mapTimelineError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success open timeline", res))
}

func (c *timelineController) State(ctx *fiber.Ctx) error {
	practitionerId := ctx.Locals("user_id").(string)

	res, err := c.service.State(ctx.UserContext(), practitionerId)
	if err != nil {
		return mapTimelineError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get timeline state", res))
}

func (c *timelineController) Refresh(ctx *fiber.Ctx) error {
	practitionerId := ctx.Locals("user_id").(string)

	res, err := c.service.Refresh(ctx.UserContext(), practitionerId)
	if err != nil {
		return mapTimelineError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success refresh timeline", res))
}

func (c *timelineController) SetAutoRefresh(ctx *fiber.Ctx) error {
	practitionerId := ctx.Locals("user_id").(string)

	var req dto.SetAutoRefreshRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.SetAutoRefresh(ctx.UserContext(), practitionerId, &req)
	if err != nil {
		return mapTimelineError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success update auto-refresh", res))
}

func (c *timelineController) ToggleGroup(ctx *fiber.Ctx) error {
	practitionerId := ctx.Locals("user_id").(string)

	var req dto.ToggleGroupRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.ToggleGroup(ctx.UserContext(), practitionerId, &req)
	if err != nil {
		return mapTimelineError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success toggle group", res))
}

func (c *timelineController) SelectMessage(ctx *fiber.Ctx) error {
	practitionerId := ctx.Locals("user_id").(string)

	var req dto.SelectMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.SelectMessage(ctx.UserContext(), practitionerId, &req)
	if err != nil {
		return mapTimelineError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success select message", res))
}

func (c *timelineController) Scroll(ctx *fiber.Ctx) error {
	practitionerId := ctx.Locals("user_id").(string)

	var req dto.ScrollRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Scroll(ctx.UserContext(), practitionerId, &req)
	if err != nil {
		return mapTimelineError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success report scroll", res))
}

func (c *timelineController) Settled(ctx *fiber.Ctx) error {
	practitionerId := ctx.Locals("user_id").(string)

	res, err := c.service.Settled(ctx.UserContext(), practitionerId)
	if err != nil {
		return mapTimelineError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success report settled scroll", res))
}

func (c *timelineController) AcknowledgeNewMessages(ctx *fiber.Ctx) error {
	practitionerId := ctx.Locals("user_id").(string)

	res, err := c.service.AcknowledgeNewMessages(ctx.UserContext(), practitionerId)
	if err != nil {
		return mapTimelineError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success acknowledge new messages", res))
}

func (c *timelineController) Close(ctx *fiber.Ctx) error {
	practitionerId := ctx.Locals("user_id").(string)

	if err := c.service.Close(ctx.UserContext(), practitionerId); err != nil {
		return mapTimelineError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success close timeline", nil))
}

func (c *timelineController) SubmitFeedback(ctx *fiber.Ctx) error {
	practitionerId := ctx.Locals("user_id").(string)

	var req dto.SubmitFeedbackRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.feedbackService.Submit(ctx.UserContext(), practitionerId, &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Feedback queued", res))
}

// mapTimelineError gives view errors their HTTP status.
func mapTimelineError(err error) error {
	switch {
	case errors.Is(err, timeline.ErrClosed):
		return service.ErrNoOpenTimeline
	case errors.Is(err, timeline.ErrUnknownMessage), errors.Is(err, timeline.ErrUnknownGroup):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, timeline.ErrNotSelectable):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, timeline.ErrRefreshInFlight):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	return err
}
