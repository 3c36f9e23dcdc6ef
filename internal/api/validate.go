//*****************************************************************************
// Copyright 2024-2025 Intel Corporation
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//*****************************************************************************

package api

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/api/dto"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/constants"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/types"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/utils"
	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/utils/bcode"
)

var validate = validator.New()

var supportedTags = []string{
	constants.TagClassification,
	constants.TagObject,
	constants.TagDarknet,
	constants.TagSegmentation,
}

// Custom error message mapping
var validationErrorMessages = map[string]string{
	"required":          "This field is required",
	"required_without":  "Either url or file is required",
	"excluded_with":     "Only one of url and file can be set",
	"supported_source":  "Unsupported source, expected rtsp://, a video or image file, or a /dev/video device",
	"supported_tag":     "Unsupported model tag",
	"url":               "Invalid URL format",
	"len":               "Invalid length",
	"hexadecimal":       "Must be hexadecimal",
	"gte":               "Value is too small",
	"lte":               "Value is too large",
	"max":               "Length cannot exceed maximum value",
	"oneof":             "Unsupported value",
	"area_points":       "Every area needs at least 3 points",
	"application_named": "Application name is required when areas or logic are set",
}

func init() {
	_ = validate.RegisterValidation("supported_source", validateSupportedSource)
	_ = validate.RegisterValidation("supported_tag", validateSupportedTag)

	validate.RegisterStructValidation(validateTaskRequest, dto.TaskRequest{})
}

func validateSupportedSource(fl validator.FieldLevel) bool {
	_, err := types.DetectSourceKind(fl.Field().String())
	return err == nil
}

func validateSupportedTag(fl validator.FieldLevel) bool {
	if fl.Field().String() == "" {
		return true
	}
	return utils.Contains(supportedTags, fl.Field().String())
}

// Struct-level validation - TaskRequest
func validateTaskRequest(sl validator.StructLevel) {
	request := sl.Current().Interface().(dto.TaskRequest)
	app := request.Application
	if app == nil {
		return
	}
	for _, area := range app.AreaPoints {
		if len(area) < 3 {
			sl.ReportError(app.AreaPoints, "AreaPoints", "AreaPoints", "area_points", "")
			break
		}
	}
	if app.Name == "" && (len(app.AreaPoints) > 0 || app.Logic != "") {
		sl.ReportError(app.Name, "Application", "Application", "application_named", "")
	}
}

// Format validation errors
func FormatValidationError(err error) error {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		var messages []string
		for _, e := range validationErrors {
			if msg, exists := validationErrorMessages[e.Tag()]; exists {
				messages = append(messages, fmt.Sprintf("%s: %s", e.Field(), msg))
			} else {
				messages = append(messages, fmt.Sprintf("%s: validation failed (%s)", e.Field(), e.Tag()))
			}
		}
		return bcode.ErrBadRequest.SetMessage("parameter validation failed: " + strings.Join(messages, "; "))
	}
	return err
}

// RequestDefaultSetter interface defines request types that need default value setting
type RequestDefaultSetter interface {
	SetDefaults()
}

// ValidateAndSetDefaults uniformly handles default value setting and validation
func ValidateAndSetDefaults(request interface{}) error {
	if setter, ok := request.(RequestDefaultSetter); ok {
		setter.SetDefaults()
	}

	if err := validate.Struct(request); err != nil {
		return FormatValidationError(err)
	}
	return nil
}
