package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"pricewatch-go/internal/service"
	"pricewatch-go/pkg/alert"
	"pricewatch-go/pkg/extract"
	"pricewatch-go/pkg/fetch"
	"pricewatch-go/pkg/logger"
	"pricewatch-go/pkg/monitor"
	"pricewatch-go/pkg/tracker"
)

// Controller maps the HTTP control plane onto the service layer.
type Controller struct {
	svc *service.Service
	log *logger.Logger
}

func NewController(svc *service.Service) *Controller {
	return &Controller{
		svc: svc,
		log: logger.GetLogger().WithComponent("http"),
	}
}

// Register wires all routes onto the app.
func (c *Controller) Register(app *fiber.App) {
	api := app.Group("/api")

	products := api.Group("/products")
	products.Get("/", c.listProducts)
	products.Post("/", c.trackProduct)
	products.Delete("/", c.removeProduct)
	products.Post("/check", c.checkProduct)
	products.Post("/clear", c.clearProducts)
	products.Get("/export", c.exportProducts)
	products.Post("/import", c.importProducts)

	alerts := api.Group("/alerts")
	alerts.Get("/", c.listAlerts)
	alerts.Post("/", c.addAlert)
	alerts.Delete("/:id", c.removeAlert)
	alerts.Patch("/:id/enabled", c.setAlertEnabled)

	api.Post("/sweep", c.runSweep)
	api.Post("/retries", c.runRetries)
	api.Get("/status", c.status)
	api.Get("/settings", c.getSettings)
	api.Put("/settings", c.putSettings)
}

type urlRequest struct {
	URL string `json:"url"`
}

func (c *Controller) listProducts(ctx *fiber.Ctx) error {
	return ctx.JSON(c.svc.Products.Export())
}

func (c *Controller) trackProduct(ctx *fiber.Ctx) error {
	var req urlRequest
	if err := ctx.BodyParser(&req); err != nil || req.URL == "" {
		return fiber.NewError(fiber.StatusBadRequest, "body must carry a url")
	}

	p, err := c.svc.Products.Track(ctx.Context(), req.URL)
	if err != nil {
		return c.mapError(err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(p)
}

func (c *Controller) removeProduct(ctx *fiber.Ctx) error {
	url := ctx.Query("url")
	if url == "" {
		return fiber.NewError(fiber.StatusBadRequest, "url query parameter required")
	}
	if err := c.svc.Products.Remove(ctx.Context(), url); err != nil {
		return c.mapError(err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

func (c *Controller) checkProduct(ctx *fiber.Ctx) error {
	var req urlRequest
	if err := ctx.BodyParser(&req); err != nil || req.URL == "" {
		return fiber.NewError(fiber.StatusBadRequest, "body must carry a url")
	}

	p, err := c.svc.Products.Check(ctx.Context(), req.URL)
	if err != nil {
		var vErr *tracker.ValidationError
		if errors.As(err, &vErr) {
			return fiber.NewError(fiber.StatusNotFound, vErr.Error())
		}
		// The product carries the failure detail for the caller.
		return ctx.Status(fiber.StatusBadGateway).JSON(p)
	}
	return ctx.JSON(p)
}

func (c *Controller) clearProducts(ctx *fiber.Ctx) error {
	if err := c.svc.Products.Clear(ctx.Context()); err != nil {
		return c.mapError(err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

func (c *Controller) exportProducts(ctx *fiber.Ctx) error {
	return ctx.JSON(c.svc.Products.Export())
}

func (c *Controller) importProducts(ctx *fiber.Ctx) error {
	var products []*tracker.Product
	if err := ctx.BodyParser(&products); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "body must be a product array")
	}

	added, err := c.svc.Products.Import(ctx.Context(), products)
	if err != nil {
		return c.mapError(err)
	}
	return ctx.JSON(fiber.Map{"imported": added})
}

func (c *Controller) listAlerts(ctx *fiber.Ctx) error {
	return ctx.JSON(c.svc.Alerts.List())
}

func (c *Controller) addAlert(ctx *fiber.Ctx) error {
	var a alert.Alert
	if err := ctx.BodyParser(&a); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed alert body")
	}

	if err := c.svc.Alerts.Add(ctx.Context(), &a); err != nil {
		return c.mapError(err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(a)
}

func (c *Controller) removeAlert(ctx *fiber.Ctx) error {
	if err := c.svc.Alerts.Remove(ctx.Context(), ctx.Params("id")); err != nil {
		return c.mapError(err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

func (c *Controller) setAlertEnabled(ctx *fiber.Ctx) error {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed body")
	}

	if err := c.svc.Alerts.SetEnabled(ctx.Context(), ctx.Params("id"), req.Enabled); err != nil {
		return c.mapError(err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

func (c *Controller) runSweep(ctx *fiber.Ctx) error {
	result, err := c.svc.Monitor.RunSweep(ctx.Context())
	if err != nil {
		if errors.Is(err, monitor.ErrSweepInFlight) {
			return fiber.NewError(fiber.StatusConflict, err.Error())
		}
		return c.mapError(err)
	}
	return ctx.JSON(result)
}

func (c *Controller) runRetries(ctx *fiber.Ctx) error {
	return ctx.JSON(c.svc.Monitor.RunRetryPass(ctx.Context()))
}

func (c *Controller) status(ctx *fiber.Ctx) error {
	return ctx.JSON(c.svc.Monitor.Status())
}

func (c *Controller) getSettings(ctx *fiber.Ctx) error {
	return ctx.JSON(c.svc.Monitor.Settings())
}

func (c *Controller) putSettings(ctx *fiber.Ctx) error {
	var s monitor.Settings
	if err := ctx.BodyParser(&s); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed settings body")
	}

	return ctx.JSON(c.svc.Monitor.ApplySettings(ctx.Context(), s))
}

// mapError translates domain errors to HTTP statuses. Validation
// failures are the caller's fault; everything else is upstream.
func (c *Controller) mapError(err error) error {
	var (
		tErr *tracker.ValidationError
		aErr *alert.ValidationError
		nErr *fetch.NetworkError
		xErr *extract.ExtractionError
	)
	switch {
	case errors.As(err, &tErr), errors.As(err, &aErr):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.As(err, &nErr), errors.As(err, &xErr):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	default:
		c.log.WithError(err).Error("unhandled control-plane error")
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
