package poseHandler

import (
	"errors"

	"HeadTurner/internal/api/pose"
	"HeadTurner/internal/entity"
	contextPkg "HeadTurner/pkg/context"
	"HeadTurner/pkg/handlerUtil"
	"HeadTurner/pkg/log"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"
)

func (h *PoseHandler) Generate(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), h.timeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Processing pose generation request")

	req, err := h.readPoseRequest(ctx, requestID)
	if err != nil {
		return h.handleIntakeError(ctx, errHandler, requestID, err)
	}

	result, err := h.poseService.Generate(c, req)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "generate_pose")
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
		"yaw":        req.Yaw,
		"pitch":      req.Pitch,
		"cached":     result.Cached,
	}).Info("Pose generation successful")

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, result)
}

func (h *PoseHandler) Forget(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := handlerUtil.New(h.log)

	req, err := h.readPoseRequest(ctx, requestID)
	if err != nil {
		return h.handleIntakeError(ctx, errHandler, requestID, err)
	}

	if err := h.poseService.Forget(contextPkg.FromFiberCtx(ctx), req); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "forget_pose")
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"yaw":        req.Yaw,
		"pitch":      req.Pitch,
	}).Info("Pose forgotten")

	return errHandler.HandleSuccess(ctx, fiber.StatusNoContent, nil)
}

// intakeError tags a request-reading failure with the operation it came from.
type intakeError struct {
	op  string
	err error
}

func (e *intakeError) Error() string { return e.op + ": " + e.err.Error() }

func (e *intakeError) Unwrap() error { return e.err }

// readPoseRequest accepts either a multipart upload (field "image" plus yaw
// and pitch form fields) or a JSON body with a base64 image.
func (h *PoseHandler) readPoseRequest(ctx *fiber.Ctx, requestID string) (entity.PoseRequest, error) {
	file, err := ctx.FormFile("image")
	if err == nil {
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"path":       ctx.Path(),
			"file_name":  file.Filename,
			"file_size":  file.Size,
		}).Debug("Processing file upload")

		var angles pose.AnglesRequest
		if err := ctx.BodyParser(&angles); err != nil {
			return entity.PoseRequest{}, &intakeError{op: "parse_form", err: pose.ErrBadRequest}
		}

		if err := h.validator.Struct(angles); err != nil {
			return entity.PoseRequest{}, err
		}

		image, err := h.utils.ReadImageFile(file)
		if err != nil {
			return entity.PoseRequest{}, &intakeError{op: "read_image_file", err: err}
		}

		return entity.PoseRequest{Image: image, Yaw: angles.Yaw, Pitch: angles.Pitch}, nil
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Processing JSON request")

	var body pose.GenerateRequest
	if err := ctx.BodyParser(&body); err != nil {
		return entity.PoseRequest{}, &intakeError{op: "parse_request_body", err: pose.ErrBadRequest}
	}

	if err := h.validator.Struct(body); err != nil {
		return entity.PoseRequest{}, err
	}

	image, err := h.utils.DecodeBase64Image(body.ImageBase64, body.MimeType)
	if err != nil {
		return entity.PoseRequest{}, &intakeError{op: "decode_base64_image", err: err}
	}

	return entity.PoseRequest{Image: image, Yaw: body.Yaw, Pitch: body.Pitch}, nil
}

func (h *PoseHandler) handleIntakeError(ctx *fiber.Ctx, errHandler *handlerUtil.ErrorHandler, requestID string, err error) error {
	var intakeErr *intakeError
	if errors.As(err, &intakeErr) {
		return errHandler.Handle(ctx, requestID, intakeErr.err, ctx.Path(), intakeErr.op)
	}
	return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
}

func (h *PoseHandler) Prompt(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := handlerUtil.New(h.log)

	angles, err := h.parseAngles(ctx)
	if err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, h.poseService.Prompt(angles.Yaw, angles.Pitch))
}

func (h *PoseHandler) Indicator(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := handlerUtil.New(h.log)

	angles, err := h.parseAngles(ctx)
	if err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	ind := h.poseService.Indicator(angles.Yaw, angles.Pitch)

	if ctx.Query("format", pose.IndicatorFormatSVG) == pose.IndicatorFormatJSON {
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, ind)
	}

	ctx.Type("svg")
	return ctx.SendString(ind.SVG(ctx.QueryInt("size", 0)))
}

func (h *PoseHandler) Stats(ctx *fiber.Ctx) error {
	return handlerUtil.New(h.log).HandleSuccess(ctx, fiber.StatusOK, h.poseService.Stats())
}

func (h *PoseHandler) parseAngles(ctx *fiber.Ctx) (pose.AnglesRequest, error) {
	var angles pose.AnglesRequest
	if err := ctx.QueryParser(&angles); err != nil {
		return angles, err
	}

	if err := h.validator.Struct(angles); err != nil {
		return angles, err
	}

	return angles, nil
}
