package campaign

import (
	"errors"
	"fmt"

	"go-campaign/pkg/utils"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CampaignController struct {
	Service CampaignService
}

func NewCampaignController(service CampaignService) *CampaignController {
	return &CampaignController{
		Service: service,
	}
}

// errorStatus maps service errors onto HTTP status codes and user facing messages.
func errorStatus(err error) (int, string) {
	var validationErr *ValidationError
	var deliveryErr *DeliveryFailedError
	switch {
	case errors.As(err, &validationErr):
		return fiber.StatusBadRequest, validationErr.Message
	case errors.Is(err, ErrCampaignNotFound):
		return fiber.StatusNotFound, "Campaign not found"
	case errors.Is(err, ErrSenderNotFound):
		return fiber.StatusUnprocessableEntity, "User not found."
	case errors.Is(err, ErrSenderNotVerified):
		return fiber.StatusUnprocessableEntity, "Sender email is not verified. Please go to your profile to verify."
	case errors.Is(err, ErrRetryLimitReached):
		return fiber.StatusConflict, err.Error()
	case errors.As(err, &deliveryErr):
		return fiber.StatusBadGateway, deliveryErr.Error()
	default:
		return fiber.StatusInternalServerError, err.Error()
	}
}

func respondError(c *fiber.Ctx, err error, campaign *Campaign) error {
	status, msg := errorStatus(err)
	body := fiber.Map{"error": msg}
	if campaign != nil {
		body["data"] = campaign
	}
	return c.Status(status).JSON(body)
}

func ids(c *fiber.Ctx, param string) (primitive.ObjectID, primitive.ObjectID, error) {
	owner, err := utils.CurrentUserID(c)
	if err != nil {
		return primitive.NilObjectID, primitive.NilObjectID, fiber.NewError(fiber.StatusUnauthorized, "User ID not found")
	}
	if param == "" {
		return primitive.NilObjectID, owner, nil
	}
	id, err := primitive.ObjectIDFromHex(c.Params(param))
	if err != nil {
		return primitive.NilObjectID, owner, fiber.NewError(fiber.StatusBadRequest, "Invalid campaign ID")
	}
	return id, owner, nil
}

// CreateCampaign godoc
// @Summary Create campaign
// @Description Create a campaign and either schedule it or send it immediately
// @Tags campaigns
// @Accept json
// @Produce json
// @Param campaign body CampaignInput true "Campaign"
// @Success 201 {object} Campaign
// @Failure 400 {object} map[string]interface{}
// @Failure 422 {object} map[string]interface{}
// @Failure 502 {object} map[string]interface{}
// @Router /api/campaigns [post]
func (ctrl *CampaignController) CreateCampaign(c *fiber.Ctx) error {
	_, owner, err := ids(c, "")
	if err != nil {
		return err
	}

	var input CampaignInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	campaign, err := ctrl.Service.CreateCampaign(c.UserContext(), owner, &input)
	if err != nil {
		return respondError(c, err, campaign)
	}
	return c.Status(fiber.StatusCreated).JSON(campaign)
}

// ListCampaigns godoc
// @Summary List campaigns
// @Tags campaigns
// @Produce json
// @Success 200 {array} Campaign
// @Router /api/campaigns [get]
func (ctrl *CampaignController) ListCampaigns(c *fiber.Ctx) error {
	_, owner, err := ids(c, "")
	if err != nil {
		return err
	}

	campaigns, err := ctrl.Service.ListCampaigns(c.UserContext(), owner)
	if err != nil {
		return respondError(c, err, nil)
	}
	return c.JSON(campaigns)
}

// GetCampaign godoc
// @Summary Get campaign
// @Tags campaigns
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 200 {object} Campaign
// @Failure 404 {object} map[string]interface{}
// @Router /api/campaigns/{id} [get]
func (ctrl *CampaignController) GetCampaign(c *fiber.Ctx) error {
	id, owner, err := ids(c, "id")
	if err != nil {
		return err
	}

	campaign, err := ctrl.Service.GetCampaign(c.UserContext(), id, owner)
	if err != nil {
		return respondError(c, err, nil)
	}
	return c.JSON(campaign)
}

// UpdateCampaign godoc
// @Summary Update campaign
// @Description Partial update. Any pending schedule is cancelled and re-derived from the result.
// @Tags campaigns
// @Accept json
// @Produce json
// @Param id path string true "Campaign ID"
// @Param patch body CampaignPatch true "Fields to change"
// @Success 200 {object} Campaign
// @Failure 404 {object} map[string]interface{}
// @Router /api/campaigns/{id} [put]
func (ctrl *CampaignController) UpdateCampaign(c *fiber.Ctx) error {
	id, owner, err := ids(c, "id")
	if err != nil {
		return err
	}

	var patch CampaignPatch
	if err := c.BodyParser(&patch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	campaign, err := ctrl.Service.UpdateCampaign(c.UserContext(), id, owner, &patch)
	if err != nil {
		return respondError(c, err, campaign)
	}
	return c.JSON(campaign)
}

// DeleteCampaign godoc
// @Summary Delete campaign
// @Tags campaigns
// @Param id path string true "Campaign ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/campaigns/{id} [delete]
func (ctrl *CampaignController) DeleteCampaign(c *fiber.Ctx) error {
	id, owner, err := ids(c, "id")
	if err != nil {
		return err
	}

	if err := ctrl.Service.DeleteCampaign(c.UserContext(), id, owner); err != nil {
		return respondError(c, err, nil)
	}
	return c.JSON(fiber.Map{"message": "Campaign deleted"})
}

// SendCampaign godoc
// @Summary Send campaign now
// @Description Sends a draft campaign immediately, cancelling any pending schedule
// @Tags campaigns
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 200 {object} Campaign
// @Failure 409 {object} map[string]interface{}
// @Router /api/campaigns/{id}/send [post]
func (ctrl *CampaignController) SendCampaign(c *fiber.Ctx) error {
	id, owner, err := ids(c, "id")
	if err != nil {
		return err
	}

	campaign, err := ctrl.Service.SendCampaign(c.UserContext(), id, owner)
	if err != nil {
		return respondError(c, err, campaign)
	}
	return c.JSON(campaign)
}

// ExportCampaign godoc
// @Summary Export campaign analytics
// @Tags campaigns
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Campaign ID"
// @Success 200 {file} file
// @Router /api/campaigns/{id}/export [get]
func (ctrl *CampaignController) ExportCampaign(c *fiber.Ctx) error {
	id, owner, err := ids(c, "id")
	if err != nil {
		return err
	}

	data, filename, err := ctrl.Service.ExportAnalytics(c.UserContext(), id, owner)
	if err != nil {
		return respondError(c, err, nil)
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	return c.Send(data)
}

// GetMetrics godoc
// @Summary Campaign metrics
// @Tags metrics
// @Produce json
// @Param campaignId path string true "Campaign ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/metrics/{campaignId} [get]
func (ctrl *CampaignController) GetMetrics(c *fiber.Ctx) error {
	id, err := primitive.ObjectIDFromHex(c.Params("campaignId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid campaign ID"})
	}

	metrics, err := ctrl.Service.GetMetrics(c.UserContext(), id)
	if err != nil {
		return respondError(c, err, nil)
	}
	return c.JSON(fiber.Map{"metrics": metrics})
}

// GetAnalytics godoc
// @Summary Campaign analytics
// @Tags metrics
// @Produce json
// @Param campaignId path string true "Campaign ID"
// @Success 200 {object} Analytics
// @Failure 404 {object} map[string]interface{}
// @Router /api/analytics/{campaignId} [get]
func (ctrl *CampaignController) GetAnalytics(c *fiber.Ctx) error {
	id, err := primitive.ObjectIDFromHex(c.Params("campaignId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid campaign ID"})
	}

	analytics, err := ctrl.Service.GetAnalytics(c.UserContext(), id)
	if err != nil {
		return respondError(c, err, nil)
	}
	return c.JSON(analytics)
}
